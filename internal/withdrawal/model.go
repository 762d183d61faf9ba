package withdrawal

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zjoart/varlixo/internal/lifecycle"
	"github.com/zjoart/varlixo/internal/payment"
	"gorm.io/gorm"
)

type Withdrawal struct {
	ID            uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	UserID        uuid.UUID        `gorm:"type:uuid;index;not null" json:"user_id"`
	Amount        decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"amount"`
	Fee           decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"fee"`
	NetAmount     decimal.Decimal  `gorm:"type:numeric(20,2);not null" json:"net_amount"`
	PaymentMethod payment.Method   `gorm:"type:varchar(32);not null" json:"payment_method"`
	Status        lifecycle.Status `gorm:"type:varchar(16);index;not null" json:"status"`

	WalletAddress string `json:"wallet_address,omitempty"`
	Network       string `json:"network,omitempty"`
	BankName      string `json:"bank_name,omitempty"`
	AccountNumber string `json:"account_number,omitempty"`
	AccountName   string `json:"account_name,omitempty"`
	RoutingCode   string `json:"routing_code,omitempty"`
	UserNote      string `json:"user_note,omitempty"`

	RejectionReason string     `json:"rejection_reason,omitempty"`
	ResolvedBy      *uuid.UUID `gorm:"type:uuid" json:"resolved_by,omitempty"`
	ResolvedAt      *time.Time `json:"resolved_at,omitempty"`
	TransactionID   *uuid.UUID `gorm:"type:uuid" json:"transaction_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

func (w *Withdrawal) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

type Resolution struct {
	Status          lifecycle.Status
	RejectionReason string
	ResolvedBy      uuid.UUID
	ResolvedAt      time.Time
	TransactionID   *uuid.UUID
}

func (r Resolution) applyTo(w *Withdrawal) {
	w.Status = r.Status
	w.RejectionReason = r.RejectionReason
	w.ResolvedBy = &r.ResolvedBy
	w.ResolvedAt = &r.ResolvedAt
	w.TransactionID = r.TransactionID
	w.UpdatedAt = r.ResolvedAt
}
