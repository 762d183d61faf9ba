package plan

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrPlanNotFound = apperr.NotFound("plan not found")

type Repository interface {
	// Upsert inserts the plan or updates the one with the same slug. Country
	// limits are left untouched on update.
	Upsert(ctx context.Context, p *Plan) error
	GetBySlug(ctx context.Context, slug string) (*Plan, error)
	List(ctx context.Context, activeOnly bool) ([]Plan, error)
	UpdateCountryLimits(ctx context.Context, id uuid.UUID, limits CountryLimits) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, p *Plan) error {
	return database.Conn(ctx, r.db).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "description", "min_investment", "max_investment",
			"roi_percent", "duration_days", "features", "is_active", "updated_at",
		}),
	}).Create(p).Error
}

func (r *repository) GetBySlug(ctx context.Context, slug string) (*Plan, error) {
	var p Plan
	err := database.Conn(ctx, r.db).Where("slug = ?", slug).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *repository) List(ctx context.Context, activeOnly bool) ([]Plan, error) {
	query := database.Conn(ctx, r.db).Order("min_investment asc")
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	var plans []Plan
	err := query.Find(&plans).Error
	return plans, err
}

func (r *repository) UpdateCountryLimits(ctx context.Context, id uuid.UUID, limits CountryLimits) error {
	result := database.Conn(ctx, r.db).Model(&Plan{ID: id}).Select("country_limits").Updates(&Plan{CountryLimits: limits})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrPlanNotFound
	}
	return nil
}
