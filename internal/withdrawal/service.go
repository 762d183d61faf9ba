package withdrawal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/notification"
	"github.com/zjoart/varlixo/internal/payment"
	"github.com/zjoart/varlixo/internal/wallet"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
)

var ErrBalanceTooLow = apperr.Validation("insufficient balance")

type Ledger interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	ApplyUserEvent(ctx context.Context, userID uuid.UUID, kind wallet.EventKind, amount decimal.Decimal, meta wallet.EventMeta) (*wallet.Wallet, *wallet.Transaction, error)
}

type Settings struct {
	MinAmount  decimal.Decimal
	FeePercent decimal.Decimal
}

type Service struct {
	repo     Repository
	ledger   Ledger
	tx       database.Transactor
	notifier notification.Notifier
	settings Settings
	now      func() time.Time
}

func NewService(repo Repository, ledger Ledger, tx database.Transactor, notifier notification.Notifier, settings Settings) *Service {
	if notifier == nil {
		notifier = notification.Discard{}
	}
	return &Service{repo: repo, ledger: ledger, tx: tx, notifier: notifier, settings: settings, now: time.Now}
}

type CreateInput struct {
	Amount        decimal.Decimal `json:"amount"`
	PaymentMethod payment.Method  `json:"payment_method"`
	WalletAddress string          `json:"wallet_address"`
	Network       string          `json:"network"`
	BankName      string          `json:"bank_name"`
	AccountNumber string          `json:"account_number"`
	AccountName   string          `json:"account_name"`
	RoutingCode   string          `json:"routing_code"`
	UserNote      string          `json:"user_note"`
}

func (in *CreateInput) normalize() {
	in.WalletAddress = strings.TrimSpace(in.WalletAddress)
	in.Network = strings.TrimSpace(in.Network)
	in.BankName = strings.TrimSpace(in.BankName)
	in.AccountNumber = strings.TrimSpace(in.AccountNumber)
	in.AccountName = strings.TrimSpace(in.AccountName)
	in.RoutingCode = strings.TrimSpace(in.RoutingCode)
}

func (in CreateInput) validate(min decimal.Decimal) error {
	if !in.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}
	if in.Amount.LessThan(min) {
		return apperr.Validation(fmt.Sprintf("minimum withdrawal is %s", min.StringFixed(2)))
	}
	if !in.PaymentMethod.CanPayOut() {
		return apperr.Validation("unsupported payout method")
	}
	if in.PaymentMethod.IsCrypto() && in.WalletAddress == "" {
		return apperr.Validation("wallet address is required")
	}
	if in.PaymentMethod.IsBank() && (in.BankName == "" || in.AccountNumber == "" || in.AccountName == "") {
		return apperr.Validation("bank name, account number and account name are required")
	}
	return nil
}

// Fee returns the withdrawal fee for a gross amount, rounded to cents.
func (s *Service) Fee(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(s.settings.FeePercent).Div(decimal.NewFromInt(100)).Round(2)
}

// Create records a pending withdrawal. The balance is checked but not held;
// approval re-checks it when the debit is applied.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*Withdrawal, error) {
	in.normalize()
	if err := in.validate(s.settings.MinAmount); err != nil {
		return nil, err
	}

	amount := in.Amount.Round(2)
	w, err := s.ledger.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(w.MainBalance) {
		return nil, ErrBalanceTooLow
	}

	network := in.Network
	if network == "" {
		network = in.PaymentMethod.Network()
	}

	fee := s.Fee(amount)
	record := &Withdrawal{
		UserID:        userID,
		Amount:        amount,
		Fee:           fee,
		NetAmount:     amount.Sub(fee),
		PaymentMethod: in.PaymentMethod,
		Status:        lifecycle.StatusPending,
		WalletAddress: in.WalletAddress,
		BankName:      in.BankName,
		AccountNumber: in.AccountNumber,
		AccountName:   in.AccountName,
		RoutingCode:   in.RoutingCode,
		UserNote:      in.UserNote,
	}
	if in.PaymentMethod.IsCrypto() {
		record.Network = network
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, err
	}

	logger.Info("Withdrawal requested", logger.Fields{
		logger.UserIdKey: userID.String(),
		"withdrawal_id":  record.ID.String(),
		"amount":         record.Amount.String(),
		"fee":            record.Fee.String(),
	})
	return record, nil
}

// AdminApprove debits the gross amount and marks the withdrawal approved in
// one unit of work.
func (s *Service) AdminApprove(ctx context.Context, id, adminID uuid.UUID) (*Withdrawal, error) {
	var approved *Withdrawal
	err := wallet.Retry(func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			w, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := lifecycle.Transition("withdrawal", w.Status, lifecycle.StatusApproved, lifecycle.StatusApproved, lifecycle.StatusRejected); err != nil {
				return err
			}

			_, record, err := s.ledger.ApplyUserEvent(ctx, w.UserID, wallet.EventWithdrawalApproved, w.Amount, wallet.EventMeta{
				Reference:   "withdrawal-" + w.ID.String(),
				SourceType:  wallet.SourceWithdrawal,
				SourceID:    &w.ID,
				Description: fmt.Sprintf("Withdrawal via %s", w.PaymentMethod),
			})
			if err != nil {
				return err
			}

			res := Resolution{
				Status:        lifecycle.StatusApproved,
				ResolvedBy:    adminID,
				ResolvedAt:    s.now().UTC(),
				TransactionID: &record.ID,
			}
			if err := s.repo.Resolve(ctx, w.ID, res); err != nil {
				return err
			}
			res.applyTo(w)
			approved = w
			return nil
		})
	})
	if errors.Is(err, wallet.ErrConcurrentModification) {
		err = ErrNotPending
	}
	if err != nil {
		return nil, err
	}

	logger.Info("Withdrawal approved", logger.Fields{
		logger.AdminIdKey: adminID.String(),
		logger.UserIdKey:  approved.UserID.String(),
		"withdrawal_id":   approved.ID.String(),
		"amount":          approved.Amount.String(),
	})
	s.notifier.Notify(ctx, approved.UserID, notification.TemplateWithdrawalApproved, map[string]string{
		"amount": approved.Amount.StringFixed(2),
		"net":    approved.NetAmount.StringFixed(2),
	})
	return approved, nil
}

func (s *Service) AdminReject(ctx context.Context, id, adminID uuid.UUID, reason string) (*Withdrawal, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Transition("withdrawal", w.Status, lifecycle.StatusRejected, lifecycle.StatusApproved, lifecycle.StatusRejected); err != nil {
		return nil, err
	}

	res := Resolution{
		Status:          lifecycle.StatusRejected,
		RejectionReason: reason,
		ResolvedBy:      adminID,
		ResolvedAt:      s.now().UTC(),
	}
	if err := s.repo.Resolve(ctx, w.ID, res); err != nil {
		return nil, err
	}
	res.applyTo(w)

	logger.Info("Withdrawal rejected", logger.Fields{
		logger.AdminIdKey: adminID.String(),
		logger.UserIdKey:  w.UserID.String(),
		"withdrawal_id":   w.ID.String(),
	})
	s.notifier.Notify(ctx, w.UserID, notification.TemplateWithdrawalRejected, map[string]string{
		"amount": w.Amount.StringFixed(2),
		"reason": reason,
	})
	return w, nil
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Withdrawal, int64, error) {
	return s.repo.List(ctx, filter)
}
