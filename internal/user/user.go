package user

import (
	"crypto/rand"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type KYCStatus string

const (
	KYCNone     KYCStatus = "none"
	KYCPending  KYCStatus = "pending"
	KYCApproved KYCStatus = "approved"
	KYCRejected KYCStatus = "rejected"
)

type User struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	FullName     string     `gorm:"not null" json:"full_name"`
	Email        string     `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string     `gorm:"not null" json:"-"`
	Role         Role       `gorm:"type:varchar(16);not null" json:"role"`
	Country      string     `gorm:"type:varchar(2)" json:"country"`
	ReferralCode string     `gorm:"uniqueIndex;not null" json:"referral_code"`
	ReferredBy   *uuid.UUID `gorm:"type:uuid" json:"referred_by,omitempty"`
	KYCStatus    KYCStatus  `gorm:"type:varchar(16);not null" json:"kyc_status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.ReferralCode == "" {
		u.ReferralCode = NewReferralCode()
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	if u.KYCStatus == "" {
		u.KYCStatus = KYCNone
	}
	return nil
}

func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

const referralAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewReferralCode returns an 8 character code without look-alike characters.
func NewReferralCode() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	var b strings.Builder
	for _, c := range buf {
		b.WriteByte(referralAlphabet[int(c)%len(referralAlphabet)])
	}
	return b.String()
}

// NormalizeEmail lowercases and trims an address before lookups and storage.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
