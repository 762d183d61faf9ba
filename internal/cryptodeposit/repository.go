package cryptodeposit

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"gorm.io/gorm"
)

var (
	ErrCryptoDepositNotFound = apperr.NotFound("crypto deposit not found")
	ErrNotPending            = apperr.InvalidState("crypto deposit is no longer pending")
)

type Filter struct {
	UserID *uuid.UUID
	Status lifecycle.Status
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, d *CryptoDeposit) error
	GetByID(ctx context.Context, id uuid.UUID) (*CryptoDeposit, error)
	Resolve(ctx context.Context, id uuid.UUID, res Resolution) error
	List(ctx context.Context, filter Filter) ([]CryptoDeposit, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, d *CryptoDeposit) error {
	return database.Conn(ctx, r.db).Create(d).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*CryptoDeposit, error) {
	var d CryptoDeposit
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrCryptoDepositNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) Resolve(ctx context.Context, id uuid.UUID, res Resolution) error {
	updates := map[string]interface{}{
		"status":           res.Status,
		"amount_usd":       res.AmountUSD,
		"rejection_reason": res.RejectionReason,
		"resolved_by":      res.ResolvedBy,
		"resolved_at":      res.ResolvedAt,
		"transaction_id":   res.TransactionID,
		"updated_at":       res.ResolvedAt,
	}
	if res.TxHash != "" {
		updates["tx_hash"] = res.TxHash
	}

	result := database.Conn(ctx, r.db).Model(&CryptoDeposit{}).
		Where("id = ? AND status = ?", id, lifecycle.StatusPending).
		Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter Filter) ([]CryptoDeposit, int64, error) {
	scoped := func() *gorm.DB {
		query := database.Conn(ctx, r.db).Model(&CryptoDeposit{})
		if filter.UserID != nil {
			query = query.Where("user_id = ?", *filter.UserID)
		}
		if filter.Status != "" {
			query = query.Where("status = ?", filter.Status)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}

	var deposits []CryptoDeposit
	err := scoped().Order("created_at desc").Limit(limit).Offset(filter.Offset).Find(&deposits).Error
	return deposits, total, err
}
