package kyc

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"gorm.io/gorm"
)

var (
	ErrSubmissionNotFound = apperr.NotFound("kyc submission not found")
	ErrNotPending         = apperr.InvalidState("kyc submission is no longer pending")
)

type Review struct {
	Status          lifecycle.Status
	RejectionReason string
	ReviewedBy      uuid.UUID
	ReviewedAt      time.Time
}

type Repository interface {
	Create(ctx context.Context, s *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	Latest(ctx context.Context, userID uuid.UUID) (*Submission, error)
	CountPending(ctx context.Context, userID uuid.UUID) (int64, error)
	Review(ctx context.Context, id uuid.UUID, review Review) error
	List(ctx context.Context, status lifecycle.Status, limit, offset int) ([]Submission, int64, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, s *Submission) error {
	return database.Conn(ctx, r.db).Create(s).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return r.first(database.Conn(ctx, r.db).Where("id = ?", id))
}

func (r *repository) Latest(ctx context.Context, userID uuid.UUID) (*Submission, error) {
	return r.first(database.Conn(ctx, r.db).Where("user_id = ?", userID).Order("created_at desc"))
}

func (r *repository) first(query *gorm.DB) (*Submission, error) {
	var s Submission
	err := query.First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *repository) CountPending(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := database.Conn(ctx, r.db).Model(&Submission{}).
		Where("user_id = ? AND status = ?", userID, lifecycle.StatusPending).
		Count(&n).Error
	return n, err
}

func (r *repository) Review(ctx context.Context, id uuid.UUID, review Review) error {
	result := database.Conn(ctx, r.db).Model(&Submission{}).
		Where("id = ? AND status = ?", id, lifecycle.StatusPending).
		Updates(map[string]interface{}{
			"status":           review.Status,
			"rejection_reason": review.RejectionReason,
			"reviewed_by":      review.ReviewedBy,
			"reviewed_at":      review.ReviewedAt,
			"updated_at":       review.ReviewedAt,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotPending
	}
	return nil
}

func (r *repository) List(ctx context.Context, status lifecycle.Status, limit, offset int) ([]Submission, int64, error) {
	scoped := func() *gorm.DB {
		query := database.Conn(ctx, r.db).Model(&Submission{})
		if status != "" {
			query = query.Where("status = ?", status)
		}
		return query
	}

	var total int64
	if err := scoped().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if limit <= 0 {
		limit = -1
	}

	var submissions []Submission
	err := scoped().Order("created_at desc").Limit(limit).Offset(offset).Find(&submissions).Error
	return submissions, total, err
}
