package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
)

var (
	ErrInsufficientFunds = apperr.New(apperr.KindInsufficientFunds, "insufficient funds")
	ErrInvalidAmount     = apperr.Validation("amount must be greater than zero")
	ErrSubCentAmount     = apperr.Validation("amount must have at most two decimal places")
	ErrUnknownEvent      = apperr.Validation("unknown wallet event")
)

// Processor is the only writer of wallet balances. Every event updates the
// wallet and appends its Transaction record inside one database transaction.
type Processor struct {
	repo Repository
	tx   database.Transactor
}

func NewProcessor(repo Repository, tx database.Transactor) *Processor {
	return &Processor{repo: repo, tx: tx}
}

// ApplyEvent applies one economic event to the wallet. When ctx already
// carries a transaction the event joins it, so callers can pair it with
// their own status change.
func (p *Processor) ApplyEvent(ctx context.Context, walletID uuid.UUID, kind EventKind, amount decimal.Decimal, meta EventMeta) (*Wallet, *Transaction, error) {
	return p.apply(ctx, kind, amount, meta, func(ctx context.Context) (*Wallet, error) {
		return p.repo.GetWalletByID(ctx, walletID)
	})
}

// ApplyUserEvent is ApplyEvent addressed by the owning user.
func (p *Processor) ApplyUserEvent(ctx context.Context, userID uuid.UUID, kind EventKind, amount decimal.Decimal, meta EventMeta) (*Wallet, *Transaction, error) {
	return p.apply(ctx, kind, amount, meta, func(ctx context.Context) (*Wallet, error) {
		return p.repo.GetWalletByUserID(ctx, userID)
	})
}

func (p *Processor) apply(ctx context.Context, kind EventKind, amount decimal.Decimal, meta EventMeta, load func(context.Context) (*Wallet, error)) (*Wallet, *Transaction, error) {
	if !kind.Valid() {
		return nil, nil, ErrUnknownEvent
	}
	if err := ValidateAmount(amount); err != nil {
		return nil, nil, err
	}

	var (
		wallet *Wallet
		record *Transaction
	)

	err := p.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		w, err := load(ctx)
		if err != nil {
			return err
		}

		before := w.MainBalance
		if err := applyToWallet(w, kind, amount); err != nil {
			return err
		}

		if err := p.repo.UpdateBalances(ctx, w); err != nil {
			return err
		}

		rec := &Transaction{
			WalletID:      w.ID,
			UserID:        w.UserID,
			Kind:          kind,
			Amount:        amount,
			BalanceBefore: before,
			BalanceAfter:  w.MainBalance,
			Reference:     meta.Reference,
			SourceType:    meta.SourceType,
			SourceID:      meta.SourceID,
			Description:   meta.Description,
		}
		if rec.Reference == "" {
			rec.Reference = fmt.Sprintf("txn-%s", uuid.NewString())
		}
		if err := p.repo.CreateTransaction(ctx, rec); err != nil {
			return err
		}

		wallet, record = w, rec
		return nil
	})
	if err != nil {
		if !errors.Is(err, apperr.ErrInsufficientFunds) && !errors.Is(err, apperr.ErrNotFound) {
			logger.Warn("Wallet event failed", logger.Merge(logger.Fields{
				"kind":      kind,
				"amount":    amount.String(),
				"reference": meta.Reference,
			}, logger.WithError(err)))
		}
		return nil, nil, err
	}

	logger.Info("Wallet event applied", logger.Fields{
		"wallet_id":     wallet.ID.String(),
		logger.UserIdKey: wallet.UserID.String(),
		"kind":          kind,
		"amount":        amount.String(),
		"reference":     record.Reference,
	})
	return wallet, record, nil
}

// applyToWallet mutates the in-memory wallet for one event.
// ValidateAmount accepts positive amounts in whole cents, the precision of
// every balance column.
func ValidateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	if !amount.Equal(amount.Round(2)) {
		return ErrSubCentAmount
	}
	return nil
}

func applyToWallet(w *Wallet, kind EventKind, amount decimal.Decimal) error {
	if kind.IsDebit() && w.MainBalance.LessThan(amount) {
		return ErrInsufficientFunds
	}

	switch kind {
	case EventDepositConfirmed:
		w.MainBalance = w.MainBalance.Add(amount)
		w.TotalDeposits = w.TotalDeposits.Add(amount)
	case EventWithdrawalApproved:
		w.MainBalance = w.MainBalance.Sub(amount)
		w.TotalWithdrawals = w.TotalWithdrawals.Add(amount)
	case EventProfitAccrued:
		w.MainBalance = w.MainBalance.Add(amount)
		w.TotalEarnings = w.TotalEarnings.Add(amount)
	case EventReferralBonus:
		w.MainBalance = w.MainBalance.Add(amount)
		w.ReferralEarnings = w.ReferralEarnings.Add(amount)
	default:
		return ErrUnknownEvent
	}
	return nil
}

// EnsureWallet returns the user's wallet, creating an empty one on first use.
func (p *Processor) EnsureWallet(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	w, err := p.repo.GetWalletByUserID(ctx, userID)
	if err == nil {
		return w, nil
	}
	if !errors.Is(err, ErrWalletNotFound) {
		return nil, err
	}

	w = &Wallet{UserID: userID}
	if err := p.repo.CreateWallet(ctx, w); err != nil {
		if errors.Is(err, ErrWalletExists) {
			return p.repo.GetWalletByUserID(ctx, userID)
		}
		return nil, err
	}
	logger.Info("Wallet created", logger.Fields{logger.UserIdKey: userID.String()})
	return w, nil
}

const maxConflictRetries = 3

// Retry runs fn again when it lost an optimistic-lock race on a wallet.
// fn must re-read everything it depends on.
func Retry(fn func() error) error {
	var err error
	for i := 0; i < maxConflictRetries; i++ {
		err = fn()
		if !errors.Is(err, ErrConcurrentModification) && !errors.Is(err, ErrWalletExists) {
			return err
		}
		logger.Debug("Retrying after wallet conflict", logger.Fields{"attempt": i + 1})
	}
	return err
}
