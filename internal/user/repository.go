package user

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/zjoart/varlixo/pkg/apperr"
	"github.com/zjoart/varlixo/pkg/database"
	"gorm.io/gorm"
)

var (
	ErrUserNotFound = apperr.NotFound("user not found")
	ErrEmailTaken   = apperr.Conflict("email is already registered")
)

type Repository interface {
	CreateUser(ctx context.Context, user *User) error
	FindByID(ctx context.Context, id uuid.UUID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByReferralCode(ctx context.Context, code string) (*User, error)
	UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	UpdateRole(ctx context.Context, id uuid.UUID, role Role) error
	UpdateKYCStatus(ctx context.Context, id uuid.UUID, status KYCStatus) error
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) CreateUser(ctx context.Context, user *User) error {
	user.Email = NormalizeEmail(user.Email)
	err := database.Conn(ctx, r.db).Create(user).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrEmailTaken
	}
	return err
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*User, error) {
	return r.first(ctx, "email = ?", NormalizeEmail(email))
}

func (r *repository) FindByReferralCode(ctx context.Context, code string) (*User, error) {
	return r.first(ctx, "referral_code = ?", code)
}

func (r *repository) UpdatePassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return r.update(ctx, id, "password_hash", passwordHash)
}

func (r *repository) UpdateRole(ctx context.Context, id uuid.UUID, role Role) error {
	return r.update(ctx, id, "role", role)
}

func (r *repository) UpdateKYCStatus(ctx context.Context, id uuid.UUID, status KYCStatus) error {
	return r.update(ctx, id, "kyc_status", status)
}

func (r *repository) first(ctx context.Context, query string, arg interface{}) (*User, error) {
	var user User
	err := database.Conn(ctx, r.db).Where(query, arg).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *repository) update(ctx context.Context, id uuid.UUID, column string, value interface{}) error {
	res := database.Conn(ctx, r.db).Model(&User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}
