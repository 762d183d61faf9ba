package deposit

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/payment"
	"gorm.io/gorm"
)

type Deposit struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey" json:"id"`
	UserID          uuid.UUID           `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount          decimal.Decimal     `gorm:"type:numeric(20,2);not null" json:"amount"`
	AmountCrypto    decimal.NullDecimal `gorm:"type:numeric(30,8)" json:"amount_crypto"`
	Currency        string              `gorm:"type:varchar(16)" json:"currency,omitempty"`
	PaymentMethod   payment.Method      `gorm:"type:varchar(32);not null" json:"payment_method"`
	Status          lifecycle.Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	ProofOfPayment  string              `json:"proof_of_payment,omitempty"`
	GiftCardCode    string              `json:"gift_card_code,omitempty"`
	TxHash          string              `json:"tx_hash,omitempty"`
	UserNote        string              `json:"user_note,omitempty"`
	AmountCredited  decimal.NullDecimal `gorm:"type:numeric(20,2)" json:"amount_credited"`
	RejectionReason string              `json:"rejection_reason,omitempty"`
	ResolvedBy      *uuid.UUID          `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time          `json:"resolved_at,omitempty"`
	TransactionID   *uuid.UUID          `gorm:"type:uuid" json:"transaction_id,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

func (d *Deposit) BeforeCreate(tx *gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}

// Resolution is the admin decision written when a deposit leaves pending.
type Resolution struct {
	Status          lifecycle.Status
	AmountCredited  decimal.NullDecimal
	TxHash          string
	RejectionReason string
	ResolvedBy      uuid.UUID
	ResolvedAt      time.Time
	TransactionID   *uuid.UUID
}

func (r Resolution) applyTo(d *Deposit) {
	d.Status = r.Status
	d.AmountCredited = r.AmountCredited
	if r.TxHash != "" {
		d.TxHash = r.TxHash
	}
	d.RejectionReason = r.RejectionReason
	d.ResolvedBy = &r.ResolvedBy
	d.ResolvedAt = &r.ResolvedAt
	d.TransactionID = r.TransactionID
	d.UpdatedAt = r.ResolvedAt
}
