package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newTestProcessor(t *testing.T) (*Processor, *MemoryRepository, *Wallet) {
	t.Helper()
	repo := NewMemoryRepository()
	p := NewProcessor(repo, database.NoTransaction())
	w, err := p.EnsureWallet(context.Background(), uuid.New())
	require.NoError(t, err)
	return p, repo, w
}

func TestApplyEventEffects(t *testing.T) {
	tests := []struct {
		kind  EventKind
		check func(t *testing.T, w *Wallet)
	}{
		{EventDepositConfirmed, func(t *testing.T, w *Wallet) {
			assert.True(t, w.TotalDeposits.Equal(dec("100")))
		}},
		{EventProfitAccrued, func(t *testing.T, w *Wallet) {
			assert.True(t, w.TotalEarnings.Equal(dec("100")))
		}},
		{EventReferralBonus, func(t *testing.T, w *Wallet) {
			assert.True(t, w.ReferralEarnings.Equal(dec("100")))
			assert.True(t, w.TotalEarnings.IsZero())
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			p, repo, w := newTestProcessor(t)

			updated, rec, err := p.ApplyEvent(context.Background(), w.ID, tt.kind, dec("100"), EventMeta{Description: "test"})
			require.NoError(t, err)

			assert.True(t, updated.MainBalance.Equal(dec("100")))
			assert.Equal(t, tt.kind, rec.Kind)
			assert.True(t, rec.BalanceBefore.IsZero())
			assert.True(t, rec.BalanceAfter.Equal(dec("100")))
			assert.NotEmpty(t, rec.Reference)
			tt.check(t, updated)

			count, _ := repo.CountTransactions(context.Background(), w.ID)
			assert.Equal(t, int64(1), count)
		})
	}
}

func TestApplyEventWithdrawal(t *testing.T) {
	p, repo, w := newTestProcessor(t)
	ctx := context.Background()

	_, _, err := p.ApplyEvent(ctx, w.ID, EventDepositConfirmed, dec("800"), EventMeta{})
	require.NoError(t, err)

	updated, _, err := p.ApplyEvent(ctx, w.ID, EventWithdrawalApproved, dec("300"), EventMeta{})
	require.NoError(t, err)
	assert.True(t, updated.MainBalance.Equal(dec("500")))
	assert.True(t, updated.TotalWithdrawals.Equal(dec("300")))

	_, _, err = p.ApplyEvent(ctx, w.ID, EventWithdrawalApproved, dec("500.01"), EventMeta{})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.True(t, errors.Is(err, apperr.ErrInsufficientFunds))

	stored, err := repo.GetWalletByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, stored.MainBalance.Equal(dec("500")))
	assert.True(t, stored.TotalWithdrawals.Equal(dec("300")))

	count, _ := repo.CountTransactions(ctx, w.ID)
	assert.Equal(t, int64(2), count)
}

func TestApplyEventRejectsBadInput(t *testing.T) {
	p, _, w := newTestProcessor(t)
	ctx := context.Background()

	_, _, err := p.ApplyEvent(ctx, w.ID, EventDepositConfirmed, decimal.Zero, EventMeta{})
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	_, _, err = p.ApplyEvent(ctx, w.ID, EventDepositConfirmed, dec("-5"), EventMeta{})
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	_, _, err = p.ApplyEvent(ctx, w.ID, EventProfitAccrued, dec("0.004"), EventMeta{})
	assert.True(t, errors.Is(err, ErrSubCentAmount))

	_, _, err = p.ApplyEvent(ctx, w.ID, EventKind("bonus"), dec("5"), EventMeta{})
	assert.True(t, errors.Is(err, ErrUnknownEvent))

	_, _, err = p.ApplyEvent(ctx, uuid.New(), EventDepositConfirmed, dec("5"), EventMeta{})
	assert.True(t, errors.Is(err, ErrWalletNotFound))
}

func TestApplyEventStaleVersion(t *testing.T) {
	repo := NewMemoryRepository()
	w := &Wallet{UserID: uuid.New()}
	require.NoError(t, repo.CreateWallet(context.Background(), w))

	stale := *w
	w.MainBalance = dec("10")
	require.NoError(t, repo.UpdateBalances(context.Background(), w))

	stale.MainBalance = dec("20")
	err := repo.UpdateBalances(context.Background(), &stale)
	assert.True(t, errors.Is(err, ErrConcurrentModification))
}

func TestEnsureWalletIsIdempotent(t *testing.T) {
	p, _, w := newTestProcessor(t)

	again, err := p.EnsureWallet(context.Background(), w.UserID)
	require.NoError(t, err)
	assert.Equal(t, w.ID, again.ID)
}

func TestApplyUserEvent(t *testing.T) {
	p, _, w := newTestProcessor(t)

	updated, rec, err := p.ApplyUserEvent(context.Background(), w.UserID, EventProfitAccrued, dec("12.50"), EventMeta{Reference: "profit-1"})
	require.NoError(t, err)
	assert.Equal(t, w.ID, updated.ID)
	assert.Equal(t, "profit-1", rec.Reference)

	_, _, err = p.ApplyUserEvent(context.Background(), w.UserID, EventProfitAccrued, dec("12.50"), EventMeta{Reference: "profit-1"})
	assert.True(t, errors.Is(err, ErrDuplicateReference))
}

func TestRetry(t *testing.T) {
	calls := 0
	err := Retry(func() error {
		calls++
		if calls < 2 {
			return ErrConcurrentModification
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = Retry(func() error {
		calls++
		return ErrConcurrentModification
	})
	assert.True(t, errors.Is(err, ErrConcurrentModification))
	assert.Equal(t, maxConflictRetries, calls)

	calls = 0
	err = Retry(func() error {
		calls++
		return ErrInsufficientFunds
	})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, 1, calls)
}
