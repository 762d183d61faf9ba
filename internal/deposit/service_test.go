package deposit

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/payment"
	"github.com/zjoart/varlixo/internal/user"
	"github.com/zjoart/varlixo/internal/wallet"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/database/databasetest"
)

type fixture struct {
	svc     *Service
	repo    Repository
	wallets wallet.Repository
	users   user.Repository
}

func newFixture(t *testing.T, settings Settings, wrap func(Repository) Repository) *fixture {
	t.Helper()
	db := databasetest.Open(t, &user.User{}, &wallet.Wallet{}, &wallet.Transaction{}, &Deposit{})

	tx := database.NewTransactor(db)
	wallets := wallet.NewRepository(db)
	users := user.NewRepository(db)
	repo := NewRepository(db)
	if wrap != nil {
		repo = wrap(repo)
	}

	return &fixture{
		svc:     NewService(repo, wallet.NewProcessor(wallets, tx), tx, users, nil, settings),
		repo:    repo,
		wallets: wallets,
		users:   users,
	}
}

func (f *fixture) createUser(t *testing.T, referredBy *uuid.UUID) *user.User {
	t.Helper()
	u := &user.User{FullName: "Ada Obi", Email: uuid.NewString() + "@example.com", PasswordHash: "x", ReferredBy: referredBy}
	require.NoError(t, f.users.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) balance(t *testing.T, userID uuid.UUID) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.GetWalletByUserID(context.Background(), userID)
	if errors.Is(err, wallet.ErrWalletNotFound) {
		return decimal.Zero
	}
	require.NoError(t, err)
	return w.MainBalance
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

var defaultSettings = Settings{MinAmount: dec("10")}

func TestCreateValidation(t *testing.T) {
	f := newFixture(t, defaultSettings, nil)
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name string
		in   CreateInput
	}{
		{"zero amount", CreateInput{Amount: dec("0"), PaymentMethod: payment.BankTransfer}},
		{"below minimum", CreateInput{Amount: dec("9.99"), PaymentMethod: payment.BankTransfer}},
		{"unknown method", CreateInput{Amount: dec("100"), PaymentMethod: "paypal"}},
		{"gift card without code", CreateInput{Amount: dec("100"), PaymentMethod: payment.GiftCardSteam}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Create(ctx, userID, tt.in)
			assert.True(t, errors.Is(err, apperr.ErrValidation), "got %v", err)
		})
	}

	d, err := f.svc.Create(ctx, userID, CreateInput{Amount: dec("50"), PaymentMethod: payment.GiftCardAmazon, GiftCardCode: " AMZ-1 "})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusPending, d.Status)
	assert.Equal(t, "AMZ-1", d.GiftCardCode)
}

func TestAdminConfirmCreditsWallet(t *testing.T) {
	f := newFixture(t, defaultSettings, nil)
	ctx := context.Background()
	u := f.createUser(t, nil)
	adminID := uuid.New()

	d, err := f.svc.Create(ctx, u.ID, CreateInput{Amount: dec("500"), PaymentMethod: payment.BankTransfer})
	require.NoError(t, err)

	confirmed, err := f.svc.AdminConfirm(ctx, d.ID, adminID, ConfirmInput{})
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusConfirmed, confirmed.Status)
	assert.True(t, confirmed.AmountCredited.Decimal.Equal(dec("500")))
	require.NotNil(t, confirmed.TransactionID)

	w, err := f.wallets.GetWalletByUserID(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, w.MainBalance.Equal(dec("500")))
	assert.True(t, w.TotalDeposits.Equal(dec("500")))

	txs, err := f.wallets.GetTransactions(ctx, w.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, wallet.EventDepositConfirmed, txs[0].Kind)
	assert.Equal(t, "deposit-"+d.ID.String(), txs[0].Reference)

	stored, err := f.repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusConfirmed, stored.Status)
	assert.Equal(t, adminID, *stored.ResolvedBy)

	_, err = f.svc.AdminConfirm(ctx, d.ID, adminID, ConfirmInput{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	_, err = f.svc.AdminReject(ctx, d.ID, adminID, "duplicate")
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.True(t, f.balance(t, u.ID).Equal(dec("500")))
}

func TestAdminConfirmUsesCreditedOverride(t *testing.T) {
	f := newFixture(t, defaultSettings, nil)
	ctx := context.Background()
	u := f.createUser(t, nil)

	d, err := f.svc.Create(ctx, u.ID, CreateInput{Amount: dec("100"), PaymentMethod: payment.CryptoBTC})
	require.NoError(t, err)

	_, err = f.svc.AdminConfirm(ctx, d.ID, uuid.New(), ConfirmInput{AmountCredited: dec("98.5"), TxHash: "abc"})
	require.NoError(t, err)
	assert.True(t, f.balance(t, u.ID).Equal(dec("98.5")))

	stored, err := f.repo.GetByID(ctx, d.ID)
	require.NoError(t, err)
	assert.Equal(t, "abc", stored.TxHash)
}

func TestAdminReject(t *testing.T) {
	f := newFixture(t, defaultSettings, nil)
	ctx := context.Background()
	u := f.createUser(t, nil)

	d, err := f.svc.Create(ctx, u.ID, CreateInput{Amount: dec("100"), PaymentMethod: payment.BankWire})
	require.NoError(t, err)

	_, err = f.svc.AdminReject(ctx, d.ID, uuid.New(), "  ")
	assert.True(t, errors.Is(err, apperr.ErrValidation))

	rejected, err := f.svc.AdminReject(ctx, d.ID, uuid.New(), "no funds received")
	require.NoError(t, err)
	assert.Equal(t, lifecycle.StatusRejected, rejected.Status)
	assert.Equal(t, "no funds received", rejected.RejectionReason)

	_, err = f.svc.AdminConfirm(ctx, d.ID, uuid.New(), ConfirmInput{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.True(t, f.balance(t, u.ID).IsZero())
}

func TestConcurrentConfirmCreditsOnce(t *testing.T) {
	f := newFixture(t, defaultSettings, nil)
	ctx := context.Background()
	u := f.createUser(t, nil)

	d, err := f.svc.Create(ctx, u.ID, CreateInput{Amount: dec("250"), PaymentMethod: payment.BankTransfer})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.AdminConfirm(ctx, d.ID, uuid.New(), ConfirmInput{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, apperr.ErrInvalidState), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, f.balance(t, u.ID).Equal(dec("250")))
}

// racingRepository reports that someone else resolved the deposit between
// the read and the status write.
type racingRepository struct {
	Repository
}

func (racingRepository) Resolve(context.Context, uuid.UUID, Resolution) error {
	return ErrNotPending
}

func TestConfirmRollsBackCreditWhenStatusWriteLoses(t *testing.T) {
	f := newFixture(t, defaultSettings, func(r Repository) Repository { return racingRepository{r} })
	ctx := context.Background()
	u := f.createUser(t, nil)

	d, err := f.svc.Create(ctx, u.ID, CreateInput{Amount: dec("300"), PaymentMethod: payment.BankTransfer})
	require.NoError(t, err)

	_, err = f.svc.AdminConfirm(ctx, d.ID, uuid.New(), ConfirmInput{})
	assert.True(t, errors.Is(err, apperr.ErrInvalidState))
	assert.True(t, f.balance(t, u.ID).IsZero())
}

func TestReferralBonusOnFirstConfirmedDeposit(t *testing.T) {
	f := newFixture(t, Settings{MinAmount: dec("10"), ReferralBonusPercent: dec("5")}, nil)
	ctx := context.Background()
	referrer := f.createUser(t, nil)
	u := f.createUser(t, &referrer.ID)

	first, err := f.svc.Create(ctx, u.ID, CreateInput{Amount: dec("500"), PaymentMethod: payment.BankTransfer})
	require.NoError(t, err)
	_, err = f.svc.AdminConfirm(ctx, first.ID, uuid.New(), ConfirmInput{})
	require.NoError(t, err)

	w, err := f.wallets.GetWalletByUserID(ctx, referrer.ID)
	require.NoError(t, err)
	assert.True(t, w.MainBalance.Equal(dec("25")))
	assert.True(t, w.ReferralEarnings.Equal(dec("25")))

	second, err := f.svc.Create(ctx, u.ID, CreateInput{Amount: dec("200"), PaymentMethod: payment.BankTransfer})
	require.NoError(t, err)
	_, err = f.svc.AdminConfirm(ctx, second.ID, uuid.New(), ConfirmInput{})
	require.NoError(t, err)

	assert.True(t, f.balance(t, referrer.ID).Equal(dec("25")))
	assert.True(t, f.balance(t, u.ID).Equal(dec("700")))
}

func TestListFilters(t *testing.T) {
	f := newFixture(t, defaultSettings, nil)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	for _, owner := range []uuid.UUID{a, a, b} {
		_, err := f.svc.Create(ctx, owner, CreateInput{Amount: dec("20"), PaymentMethod: payment.BankTransfer})
		require.NoError(t, err)
	}

	mine, total, err := f.svc.List(ctx, Filter{UserID: &a, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	assert.Equal(t, int64(2), total)

	pending, total, err := f.svc.List(ctx, Filter{Status: lifecycle.StatusPending, Limit: 1})
	require.NoError(t, err)
	assert.Len(t, pending, 1)
	assert.Equal(t, int64(3), total)
}
