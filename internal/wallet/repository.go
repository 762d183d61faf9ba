package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"gorm.io/gorm"
)

var (
	ErrWalletNotFound         = apperr.NotFound("wallet not found")
	ErrWalletExists           = apperr.Conflict("wallet already exists")
	ErrDuplicateReference     = apperr.Conflict("duplicate transaction reference")
	ErrConcurrentModification = apperr.Conflict("wallet was modified concurrently")
)

type Repository interface {
	CreateWallet(ctx context.Context, wallet *Wallet) error
	GetWalletByID(ctx context.Context, id uuid.UUID) (*Wallet, error)
	GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error)
	// UpdateBalances writes every balance field if the stored version still
	// equals wallet.Version, then bumps the version.
	UpdateBalances(ctx context.Context, wallet *Wallet) error

	CreateTransaction(ctx context.Context, tx *Transaction) error
	GetTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]Transaction, error)
	CountTransactions(ctx context.Context, walletID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateWallet(ctx context.Context, wallet *Wallet) error {
	err := database.Conn(ctx, r.db).Create(wallet).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrWalletExists
	}
	return err
}

func (r *repository) GetWalletByID(ctx context.Context, id uuid.UUID) (*Wallet, error) {
	return r.firstWallet(ctx, "id = ?", id)
}

func (r *repository) GetWalletByUserID(ctx context.Context, userID uuid.UUID) (*Wallet, error) {
	return r.firstWallet(ctx, "user_id = ?", userID)
}

func (r *repository) firstWallet(ctx context.Context, query string, arg interface{}) (*Wallet, error) {
	var wallet Wallet
	err := database.Conn(ctx, r.db).Where(query, arg).First(&wallet).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrWalletNotFound
	}
	if err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) UpdateBalances(ctx context.Context, wallet *Wallet) error {
	now := time.Now().UTC()
	res := database.Conn(ctx, r.db).Model(&Wallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]interface{}{
			"main_balance":      wallet.MainBalance,
			"pending_balance":   wallet.PendingBalance,
			"locked_balance":    wallet.LockedBalance,
			"total_deposits":    wallet.TotalDeposits,
			"total_withdrawals": wallet.TotalWithdrawals,
			"total_earnings":    wallet.TotalEarnings,
			"referral_earnings": wallet.ReferralEarnings,
			"version":           wallet.Version + 1,
			"updated_at":        now,
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrConcurrentModification
	}

	wallet.Version++
	wallet.UpdatedAt = now
	return nil
}

func (r *repository) CreateTransaction(ctx context.Context, tx *Transaction) error {
	err := database.Conn(ctx, r.db).Create(tx).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateReference
	}
	return err
}

func (r *repository) GetTransactions(ctx context.Context, walletID uuid.UUID, limit, offset int) ([]Transaction, error) {
	var txs []Transaction
	err := database.Conn(ctx, r.db).Where("wallet_id = ?", walletID).
		Order("created_at desc").
		Limit(limit).
		Offset(offset).
		Find(&txs).Error
	return txs, err
}

func (r *repository) CountTransactions(ctx context.Context, walletID uuid.UUID) (int64, error) {
	var count int64
	err := database.Conn(ctx, r.db).Model(&Transaction{}).Where("wallet_id = ?", walletID).Count(&count).Error
	return count, err
}
