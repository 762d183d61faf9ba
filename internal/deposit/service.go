package deposit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/payment"
	"github.com/zjoart/varlixo/internal/notification"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/internal/wallet"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/logger"
)

// Ledger is the part of the wallet processor deposits need.
type Ledger interface {
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*wallet.Wallet, error)
	ApplyUserEvent(ctx context.Context, userID uuid.UUID, kind wallet.EventKind, amount decimal.Decimal, meta wallet.EventMeta) (*wallet.Wallet, *wallet.Transaction, error)
}

type UserLookup interface {
	FindByID(ctx context.Context, id uuid.UUID) (*user.User, error)
}

type Settings struct {
	MinAmount            decimal.Decimal
	ReferralBonusPercent decimal.Decimal
}

type Service struct {
	repo     Repository
	ledger   Ledger
	tx       database.Transactor
	users    UserLookup
	notifier notification.Notifier
	settings Settings
	now      func() time.Time
}

func NewService(repo Repository, ledger Ledger, tx database.Transactor, users UserLookup, notifier notification.Notifier, settings Settings) *Service {
	if notifier == nil {
		notifier = notification.Discard{}
	}
	return &Service{
		repo:     repo,
		ledger:   ledger,
		tx:       tx,
		users:    users,
		notifier: notifier,
		settings: settings,
		now:      time.Now,
	}
}

type CreateInput struct {
	Amount         decimal.Decimal     `json:"amount"`
	AmountCrypto   decimal.NullDecimal `json:"amount_crypto"`
	Currency       string              `json:"currency"`
	PaymentMethod  payment.Method      `json:"payment_method"`
	GiftCardCode   string              `json:"gift_card_code"`
	TxHash         string              `json:"tx_hash"`
	UserNote       string              `json:"user_note"`
	ProofOfPayment string              `json:"-"`
}

func (in CreateInput) validate(min decimal.Decimal) error {
	if !in.Amount.IsPositive() {
		return apperr.Validation("amount must be greater than zero")
	}
	if in.Amount.LessThan(min) {
		return apperr.Validation(fmt.Sprintf("minimum deposit is %s", min.StringFixed(2)))
	}
	if !in.PaymentMethod.Valid() {
		return apperr.Validation("unsupported payment method")
	}
	if in.PaymentMethod.IsGiftCard() && strings.TrimSpace(in.GiftCardCode) == "" {
		return apperr.Validation("gift card code is required")
	}
	if in.AmountCrypto.Valid && !in.AmountCrypto.Decimal.IsPositive() {
		return apperr.Validation("amount_crypto must be greater than zero")
	}
	return nil
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (*Deposit, error) {
	if err := in.validate(s.settings.MinAmount); err != nil {
		return nil, err
	}

	d := &Deposit{
		UserID:         userID,
		Amount:         in.Amount.Round(2),
		AmountCrypto:   in.AmountCrypto,
		Currency:       strings.ToUpper(strings.TrimSpace(in.Currency)),
		PaymentMethod:  in.PaymentMethod,
		Status:         lifecycle.StatusPending,
		ProofOfPayment: in.ProofOfPayment,
		GiftCardCode:   strings.TrimSpace(in.GiftCardCode),
		TxHash:         strings.TrimSpace(in.TxHash),
		UserNote:       in.UserNote,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}

	logger.Info("Deposit requested", logger.Fields{
		logger.UserIdKey: userID.String(),
		"deposit_id":     d.ID.String(),
		"amount":         d.Amount.String(),
		"method":         d.PaymentMethod,
	})
	return d, nil
}

type ConfirmInput struct {
	AmountCredited decimal.Decimal `json:"amount_credited"`
	TxHash         string          `json:"tx_hash"`
}

// AdminConfirm credits the wallet and marks the deposit confirmed in one unit
// of work. A deposit that is not pending, or that another admin resolved
// first, fails with an InvalidState error and the wallet is left alone.
func (s *Service) AdminConfirm(ctx context.Context, id, adminID uuid.UUID, in ConfirmInput) (*Deposit, error) {
	if in.AmountCredited.IsNegative() {
		return nil, apperr.Validation("amount_credited must be greater than zero")
	}

	var confirmed *Deposit
	err := wallet.Retry(func() error {
		return s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			d, err := s.repo.GetByID(ctx, id)
			if err != nil {
				return err
			}
			if err := lifecycle.Transition("deposit", d.Status, lifecycle.StatusConfirmed, lifecycle.StatusConfirmed, lifecycle.StatusRejected); err != nil {
				return err
			}

			amount := in.AmountCredited
			if amount.IsZero() {
				amount = d.Amount
			}
			amount = amount.Round(2)

			if _, err := s.ledger.EnsureWallet(ctx, d.UserID); err != nil {
				return err
			}
			_, record, err := s.ledger.ApplyUserEvent(ctx, d.UserID, wallet.EventDepositConfirmed, amount, wallet.EventMeta{
				Reference:   "deposit-" + d.ID.String(),
				SourceType:  wallet.SourceDeposit,
				SourceID:    &d.ID,
				Description: fmt.Sprintf("Deposit via %s", d.PaymentMethod),
			})
			if err != nil {
				return err
			}

			if err := s.creditReferrer(ctx, d, amount); err != nil {
				return err
			}

			res := Resolution{
				Status:         lifecycle.StatusConfirmed,
				AmountCredited: decimal.NewNullDecimal(amount),
				TxHash:         strings.TrimSpace(in.TxHash),
				ResolvedBy:     adminID,
				ResolvedAt:     s.now().UTC(),
				TransactionID:  &record.ID,
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

	logger.Info("Deposit confirmed", logger.Fields{
		logger.AdminIdKey: adminID.String(),
		logger.UserIdKey:  confirmed.UserID.String(),
		"deposit_id":      confirmed.ID.String(),
		"amount":          confirmed.AmountCredited.Decimal.String(),
	})
	s.notifier.Notify(ctx, confirmed.UserID, notification.TemplateDepositConfirmed, map[string]string{
		"amount": confirmed.AmountCredited.Decimal.StringFixed(2),
		"method": string(confirmed.PaymentMethod),
	})
	return confirmed, nil
}

// creditReferrer pays the referral bonus on a user's first confirmed deposit.
func (s *Service) creditReferrer(ctx context.Context, d *Deposit, credited decimal.Decimal) error {
	if s.users == nil || !s.settings.ReferralBonusPercent.IsPositive() {
		return nil
	}

	previous, err := s.repo.CountConfirmed(ctx, d.UserID)
	if err != nil {
		return err
	}
	if previous > 0 {
		return nil
	}

	usr, err := s.users.FindByID(ctx, d.UserID)
	if err != nil {
		return err
	}
	if usr.ReferredBy == nil {
		return nil
	}

	bonus := credited.Mul(s.settings.ReferralBonusPercent).Div(decimal.NewFromInt(100)).Round(2)
	if !bonus.IsPositive() {
		return nil
	}

	if _, err := s.ledger.EnsureWallet(ctx, *usr.ReferredBy); err != nil {
		return err
	}
	_, _, err = s.ledger.ApplyUserEvent(ctx, *usr.ReferredBy, wallet.EventReferralBonus, bonus, wallet.EventMeta{
		Reference:   "referral-" + d.ID.String(),
		SourceType:  wallet.SourceReferral,
		SourceID:    &d.ID,
		Description: fmt.Sprintf("Referral bonus for %s", usr.FullName),
	})
	return err
}

func (s *Service) AdminReject(ctx context.Context, id, adminID uuid.UUID, reason string) (*Deposit, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, apperr.Validation("rejection reason is required")
	}

	d, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.Transition("deposit", d.Status, lifecycle.StatusRejected, lifecycle.StatusConfirmed, lifecycle.StatusRejected); err != nil {
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

	logger.Info("Deposit rejected", logger.Fields{
		logger.AdminIdKey: adminID.String(),
		logger.UserIdKey:  d.UserID.String(),
		"deposit_id":      d.ID.String(),
	})
	s.notifier.Notify(ctx, d.UserID, notification.TemplateDepositRejected, map[string]string{
		"amount": d.Amount.StringFixed(2),
		"reason": reason,
	})
	return d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Deposit, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context, filter Filter) ([]Deposit, int64, error) {
	return s.repo.List(ctx, filter)
}
