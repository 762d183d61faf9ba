package cryptodeposit

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/notification"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/internal/wallet"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
)

type Ledger interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	ApplyUserEvent(ctx context.Context, userID uuid.UUID, kind wallet.EventKind, amount decimal.Decimal, meta wallet.EventMeta) (*wallet.Wallet, *wallet.Transaction, error)
}

type Service struct {
	repo     Repository
	ledger   Ledger
	tx       database.Transactor
	sealer   *Sealer
	notifier notification.Notifier
	now      func() time.Time
}

func NewService(repo Repository, ledger Ledger, tx database.Transactor, sealer *Sealer, notifier notification.Notifier) *Service {
	if notifier == nil {
		notifier = notification.Discard{}
	}
	return &Service{repo: repo, ledger: ledger, tx: tx, sealer: sealer, notifier: notifier, now: time.Now}
}

type CreateInput struct {
	Currency       string              `json:"currency"`
	Network        string              `json:"network"`
	ExpectedAmount decimal.NullDecimal `json:"expected_amount"`
}

// Create issues a fresh deposit address for the asset.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*CryptoDeposit, error) {
	asset, err := LookupAsset(in.Currency, in.Network)
	if err != nil {
		return nil, err
	}
	if in.ExpectedAmount.Valid && !in.ExpectedAmount.Decimal.IsPositive() {
		return nil, apperr.Validation("expected_amount must be greater than zero")
	}

	pair, err := GenerateAddress(asset.Network)
	if err != nil {
		return nil, err
	}
	sealed, err := s.sealer.Seal(pair.PrivateKey)
	if err != nil {
		return nil, err
	}
	// an address whose key cannot be recovered must never be handed out
	if opened, err := s.sealer.Open(sealed); err != nil || !bytes.Equal(opened, pair.PrivateKey) {
		return nil, fmt.Errorf("verify sealed key: %w", errSealedKeyCorrupt)
	}

	d := &CryptoDeposit{
		UserID:              userID,
		Currency:            asset.Currency,
		Network:             asset.Network,
		Address:             pair.Address,
		MinConfirmations:    asset.MinConfirmations,
		EncryptedPrivateKey: sealed,
		ExpectedAmount:      in.ExpectedAmount,
		Status:              lifecycle.StatusPending,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	logger.Info("Crypto deposit address issued", logger.Fields{
		logger.UserIdKey:   userID.String(),
		"crypto_deposit_id": d.ID.String(),
		"currency":          d.Currency,
		"network":           d.Network,
	})
	return d, nil
}

// Get returns a deposit visible to the caller. Other users' deposits are
// reported as missing.
func (s *Service) Get(ctx context.Context, caller user.User, id uuid.UUID) (*CryptoDeposit, error) {
	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.UserID != caller.ID && !caller.IsAdmin() {
		return nil, ErrCryptoDepositNotFound
	}
	return d, nil
}

type ConfirmInput struct {
	AmountUSD decimal.Decimal `json:"amount_usd"`
	TxHash    string          `json:"tx_hash"`
}

// Confirm credits amountUsd and marks the deposit confirmed in one unit of work.
func (s *Service) Confirm(ctx context.Context, id, adminID uuid.UUID, in ConfirmInput) (*CryptoDeposit, error) {
	txHash := strings.TrimSpace(in.TxHash)
	if !in.AmountUSD.IsPositive() {
		return nil, apperr.Validation("amount_usd must be greater than zero")
	}
	if txHash == "" {
		return nil, apperr.Validation("tx_hash is required")
	}
	amount := in.AmountUSD.Round(2)

	var confirmed *CryptoDeposit
	err := wallet.Retry(func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			d, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := lifecycle.Transition("crypto deposit", d.Status, lifecycle.StatusConfirmed, lifecycle.StatusConfirmed, lifecycle.StatusRejected); err != nil {
				return err
			}

			if _, err := s.ledger.EnsureWallet(ctx, d.UserID); err != nil {
				return err
			}
			_, record, err := s.ledger.ApplyUserEvent(ctx, d.UserID, wallet.EventDepositConfirmed, amount, wallet.EventMeta{
				Reference:   "crypto-deposit-" + d.ID.String(),
				SourceType:  wallet.SourceCryptoDeposit,
				SourceID:    &d.ID,
				Description: fmt.Sprintf("%s deposit on %s", d.Currency, d.Network),
			})
			if err != nil {
				return err
			}

			res := Resolution{
				Status:        lifecycle.StatusConfirmed,
				AmountUSD:     decimal.NewNullDecimal(amount),
				TxHash:        txHash,
				ResolvedBy:    adminID,
				ResolvedAt:    s.now().UTC(),
				TransactionID: &record.ID,
			}
			if err := s.repo.Resolve(ctx, d.ID, res); err != nil {
				return err
			}
			res.applyTo(d)
			confirmed = d
			return nil
		})
	})
	if errors.Is(err, wallet.ErrConcurrentModification) {
		err = ErrNotPending
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Crypto deposit confirmed", logger.Fields{
		logger.AdminIdKey:   adminID.String(),
		logger.UserIdKey:    confirmed.UserID.String(),
		"crypto_deposit_id": confirmed.ID.String(),
		"amount_usd":        amount.String(),
	})
	s.notifier.Notify(ctx, confirmed.UserID, notification.TemplateCryptoDepositConfirmed, map[string]string{
		"amount":   amount.StringFixed(2),
		"currency": confirmed.Currency,
		"network":  string(confirmed.Network),
		"tx_hash":  confirmed.TxHash,
	})
	return confirmed, nil
}

func (s *Service) Reject(ctx context.Context, id, adminID uuid.UUID, reason string) (*CryptoDeposit, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Transition("crypto deposit", d.Status, lifecycle.StatusRejected, lifecycle.StatusConfirmed, lifecycle.StatusRejected); err != nil {
		return nil, err
	}

	res := Resolution{
		Status:          lifecycle.StatusRejected,
		RejectionReason: reason,
		ResolvedBy:      adminID,
		ResolvedAt:      s.now().UTC(),
	}
	if err := s.repo.Resolve(ctx, d.ID, res); err != nil {
		return nil, err
	}
	res.applyTo(d)

	logger.Info("Crypto deposit rejected", logger.Fields{
		logger.AdminIdKey:   adminID.String(),
		"crypto_deposit_id": d.ID.String(),
	})
	s.notifier.Notify(ctx, d.UserID, notification.TemplateCryptoDepositRejected, map[string]string{
		"currency": d.Currency,
		"address":  d.Address,
		"reason":   reason,
	})
	return d, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]CryptoDeposit, int64, error) {
	return s.repo.List(ctx, filter)
}
