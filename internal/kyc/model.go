package kyc

import (
	"time"

	"github.com/google/uuid"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"gorm.io/gorm"
)

type DocumentType string

const (
	DocumentPassport       DocumentType = "passport"
	DocumentNationalID     DocumentType = "national_id"
	DocumentDriversLicense DocumentType = "drivers_license"
)

func (d DocumentType) Valid() bool {
	switch d {
	case DocumentPassport, DocumentNationalID, DocumentDriversLicense:
		return true
	}
	return false
}

type Submission struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID        `gorm:"type:uuid;index;not null" json:"user_id"`
	DocumentType    DocumentType     `gorm:"type:varchar(32);not null" json:"document_type"`
	DocumentNumber  string           `gorm:"not null" json:"document_number"`
	DocumentFile    string           `gorm:"not null" json:"document_file"`
	SelfieFile      string           `gorm:"not null" json:"selfie_file"`
	Status          lifecycle.Status `gorm:"type:varchar(16);index;not null" json:"status"`
	RejectionReason string           `json:"rejection_reason,omitempty"`
	ReviewedBy      *uuid.UUID       `gorm:"type:uuid" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time       `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (Submission) TableName() string {
	return "kyc_submissions"
}

func (s *Submission) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
