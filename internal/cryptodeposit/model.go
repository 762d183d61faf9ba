package cryptodeposit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"gorm.io/gorm"
)

type CryptoDeposit struct {
	ID                  uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID              uuid.UUID           `gorm:"type:uuid;index;not null" json:"user_id"`
	Currency            string              `gorm:"type:varchar(16);not null" json:"currency"`
	Network             Network             `gorm:"type:varchar(16);not null" json:"network"`
	Address             string              `gorm:"uniqueIndex;not null" json:"address"`
	MinConfirmations    int                 `gorm:"not null" json:"min_confirmations"`
	EncryptedPrivateKey string              `gorm:"not null" json:"-"`
	ExpectedAmount      decimal.NullDecimal `gorm:"type:numeric(30,8)" json:"expected_amount"`
	AmountUSD           decimal.NullDecimal `gorm:"column:amount_usd;type:numeric(20,2)" json:"amount_usd"`
	TxHash              string              `json:"tx_hash,omitempty"`
	Status              lifecycle.Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	RejectionReason     string              `json:"rejection_reason,omitempty"`
	ResolvedBy          *uuid.UUID          `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt          *time.Time          `json:"resolved_at,omitempty"`
	TransactionID       *uuid.UUID          `gorm:"type:uuid" json:"transaction_id,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

func (d *CryptoDeposit) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

type Resolution struct {
	Status          lifecycle.Status
	AmountUSD       decimal.NullDecimal
	TxHash          string
	RejectionReason string
	ResolvedBy      uuid.UUID
	ResolvedAt      time.Time
	TransactionID   *uuid.UUID
}

func (r Resolution) applyTo(d *CryptoDeposit) {
	d.Status = r.Status
	d.AmountUSD = r.AmountUSD
	if r.TxHash != "" {
		d.TxHash = r.TxHash
	}
	d.RejectionReason = r.RejectionReason
	d.ResolvedBy = &r.ResolvedBy
	d.ResolvedAt = &r.ResolvedAt
	d.TransactionID = r.TransactionID
	d.UpdatedAt = r.ResolvedAt
}
