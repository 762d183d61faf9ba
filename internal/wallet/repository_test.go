package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zjoart/varlixo/pkg/database"
	"github.com/zjoart/varlixo/pkg/database/databasetest"
)

func newSQLProcessor(t *testing.T) (*Processor, Repository) {
	t.Helper()
	db := databasetest.Open(t, &Wallet{}, &Transaction{})
	repo := NewRepository(db)
	return NewProcessor(repo, database.NewTransactor(db)), repo
}

func TestRepositoryApplyEventPersists(t *testing.T) {
	p, repo := newSQLProcessor(t)
	ctx := context.Background()

	w, err := p.EnsureWallet(ctx, uuid.New())
	require.NoError(t, err)

	_, _, err = p.ApplyEvent(ctx, w.ID, EventDepositConfirmed, dec("1980.77"), EventMeta{Reference: "dep-1"})
	require.NoError(t, err)

	stored, err := repo.GetWalletByUserID(ctx, w.UserID)
	require.NoError(t, err)
	assert.True(t, stored.MainBalance.Equal(dec("1980.77")))
	assert.True(t, stored.TotalDeposits.Equal(dec("1980.77")))
	assert.Equal(t, int64(1), stored.Version)

	txs, err := repo.GetTransactions(ctx, w.ID, 10, 0)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, "dep-1", txs[0].Reference)
}

func TestRepositoryBalanceAndRecordAreOneUnit(t *testing.T) {
	p, repo := newSQLProcessor(t)
	ctx := context.Background()

	w, err := p.EnsureWallet(ctx, uuid.New())
	require.NoError(t, err)

	_, _, err = p.ApplyEvent(ctx, w.ID, EventDepositConfirmed, dec("100"), EventMeta{Reference: "ref-1"})
	require.NoError(t, err)

	// the second record collides on reference after the balance update ran
	_, _, err = p.ApplyEvent(ctx, w.ID, EventDepositConfirmed, dec("50"), EventMeta{Reference: "ref-1"})
	require.True(t, errors.Is(err, ErrDuplicateReference))

	stored, err := repo.GetWalletByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, stored.MainBalance.Equal(dec("100")))
	assert.True(t, stored.TotalDeposits.Equal(dec("100")))

	count, err := repo.CountTransactions(ctx, w.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestRepositoryRejectsStaleVersion(t *testing.T) {
	_, repo := newSQLProcessor(t)
	ctx := context.Background()

	w := &Wallet{UserID: uuid.New()}
	require.NoError(t, repo.CreateWallet(ctx, w))

	stale := *w
	w.MainBalance = dec("10")
	require.NoError(t, repo.UpdateBalances(ctx, w))

	stale.MainBalance = dec("99")
	assert.True(t, errors.Is(repo.UpdateBalances(ctx, &stale), ErrConcurrentModification))

	err := repo.CreateWallet(ctx, &Wallet{UserID: w.UserID})
	assert.True(t, errors.Is(err, ErrWalletExists))
}

func TestRepositoryInsufficientFundsLeavesWalletUntouched(t *testing.T) {
	p, repo := newSQLProcessor(t)
	ctx := context.Background()

	w, err := p.EnsureWallet(ctx, uuid.New())
	require.NoError(t, err)
	_, _, err = p.ApplyEvent(ctx, w.ID, EventDepositConfirmed, dec("800"), EventMeta{})
	require.NoError(t, err)

	_, _, err = p.ApplyEvent(ctx, w.ID, EventWithdrawalApproved, dec("1000"), EventMeta{})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))

	stored, err := repo.GetWalletByID(ctx, w.ID)
	require.NoError(t, err)
	assert.True(t, stored.MainBalance.Equal(dec("800")))
	assert.True(t, stored.TotalWithdrawals.IsZero())
}
