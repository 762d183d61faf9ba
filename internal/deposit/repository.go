package deposit

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
	ErrDepositNotFound = apperr.NotFound("deposit not found")
	ErrNotPending      = apperr.InvalidState("deposit is no longer pending")
)

type Filter struct {
	UserID *uuid.UUID
	Status lifecycle.Status
	Limit  int
	Offset int
}

type Repository interface {
	Create(ctx context.Context, d *Deposit) error
	GetByID(ctx context.Context, id uuid.UUID) (*Deposit, error)
	// Resolve moves a pending deposit to res.Status. It fails with
	// ErrNotPending when the stored status is no longer pending.
	Resolve(ctx context.Context, id uuid.UUID, res Resolution) error
	List(ctx context.Context, filter Filter) ([]Deposit, int64, error)
	CountConfirmed(ctx context.Context, userID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, d *Deposit) error {
	return database.Conn(ctx, r.db).Create(d).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Deposit, error) {
	var d Deposit
	err := database.Conn(ctx, r.db).Where("id = ?", id).First(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrDepositNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *repository) Resolve(ctx context.Context, id uuid.UUID, res Resolution) error {
	updates := map[string]interface{}{
		"status":           res.Status,
		"amount_credited":  res.AmountCredited,
		"rejection_reason": res.RejectionReason,
		"resolved_by":      res.ResolvedBy,
		"resolved_at":      res.ResolvedAt,
		"transaction_id":   res.TransactionID,
		"updated_at":       res.ResolvedAt,
	}
	if res.TxHash != "" {
		updates["tx_hash"] = res.TxHash
	}

	result := database.Conn(ctx, r.db).Model(&Deposit{}).
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

func (r *repository) List(ctx context.Context, filter Filter) ([]Deposit, int64, error) {
	scoped := func() *gorm.DB {
		query := database.Conn(ctx, r.db).Model(&Deposit{})
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

	var deposits []Deposit
	err := scoped().Order("created_at desc").Limit(limit).Offset(filter.Offset).Find(&deposits).Error
	return deposits, total, err
}

func (r *repository) CountConfirmed(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).Model(&Deposit{}).
		Where("user_id = ? AND status = ?", userID, lifecycle.StatusConfirmed).
		Count(&n).Error
	return n, err
}
