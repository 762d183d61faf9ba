package wallet

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository keeps wallets in process memory. It honours the version
// check of UpdateBalances but has no rollback, so it pairs with
// database.NoTransaction.
type MemoryRepository struct {
	mu           sync.Mutex
	wallets      map[uuid.UUID]Wallet
	transactions []Transaction
	references   map[string]struct{}
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		wallets:    make(map[uuid.UUID]Wallet),
		references: make(map[string]struct{}),
	}
}

func (m *MemoryRepository) CreateWallet(ctx context.Context, wallet *Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.wallets {
		if w.UserID == wallet.UserID {
			return ErrWalletExists
		}
	}
	if wallet.ID == uuid.Nil {
		wallet.ID = uuid.New()
	}
	now := time.Now().UTC()
	wallet.CreatedAt, wallet.UpdatedAt = now, now
	m.wallets[wallet.ID] = *wallet
	return nil
}

func (m *MemoryRepository) GetWalletByID(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[id]
	if !ok {
		return nil, ErrWalletNotFound
	}
	return &w, nil
}

func (m *MemoryRepository) GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, w := range m.wallets {
		if w.UserID == userID {
			found := w
			return &found, nil
		}
	}
	return nil, ErrWalletNotFound
}

func (m *MemoryRepository) UpdateBalances(ctx context.Context, wallet *Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.wallets[wallet.ID]
	if !ok {
		return ErrWalletNotFound
	}
	if stored.Version != wallet.Version {
		return ErrConcurrentModification
	}

	wallet.Version++
	wallet.UpdatedAt = time.Now().UTC()
	m.wallets[wallet.ID] = *wallet
	return nil
}

func (m *MemoryRepository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, dup := m.references[tx.Reference]; dup {
		return ErrDuplicateReference
	}
	if tx.ID == uuid.Nil {
		tx.ID = uuid.New()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now().UTC()
	}
	m.references[tx.Reference] = struct{}{}
	m.transactions = append(m.transactions, *tx)
	return nil
}

func (m *MemoryRepository) GetTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []Transaction
	for i := len(m.transactions) - 1; i >= 0; i-- {
		if m.transactions[i].WalletID == walletID {
			out = append(out, m.transactions[i])
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })

	if offset >= len(out) {
		return []Transaction{}, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (m *MemoryRepository) CountTransactions(ctx context.Context, walletID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, t := range m.transactions {
		if t.WalletID == walletID {
			n++
		}
	}
	return n, nil
}
