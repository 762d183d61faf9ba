package wallet

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Wallet struct {
	ID               uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           uuid.UUID       `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	MainBalance      decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"main_balance"`
	PendingBalance   decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"pending_balance"`
	LockedBalance    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"locked_balance"`
	TotalDeposits    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_deposits"`
	TotalWithdrawals decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_withdrawals"`
	TotalEarnings    decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"total_earnings"`
	ReferralEarnings decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"referral_earnings"`
	Version          int64           `gorm:"not null" json:"-"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

type EventKind string

const (
	EventDepositConfirmed   EventKind = "deposit_confirmed"
	EventWithdrawalApproved EventKind = "withdrawal_approved"
	EventProfitAccrued      EventKind = "profit_accrued"
	EventReferralBonus      EventKind = "referral_bonus"
)

func (k EventKind) Valid() bool {
	switch k {
	case EventDepositConfirmed, EventWithdrawalApproved, EventProfitAccrued, EventReferralBonus:
		return true
	}
	return false
}

// IsDebit reports whether the event takes money out of the main balance.
func (k EventKind) IsDebit() bool {
	return k == EventWithdrawalApproved
}

type SourceType string

const (
	SourceDeposit       SourceType = "deposit"
	SourceWithdrawal    SourceType = "withdrawal"
	SourceCryptoDeposit SourceType = "crypto_deposit"
	SourceAdmin         SourceType = "admin"
	SourceReferral      SourceType = "referral"
)

// Transaction is the immutable ledger record written alongside every balance change.
type Transaction struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey" json:"id"`
	WalletID      uuid.UUID       `gorm:"type:uuid;index;not null" json:"wallet_id"`
	UserID        uuid.UUID       `gorm:"type:uuid;index;not null" json:"user_id"`
	Kind          EventKind       `gorm:"type:varchar(32);not null" json:"kind"`
	Amount        decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"amount"`
	BalanceBefore decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balance_before"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(20,2);not null" json:"balance_after"`
	Reference     string          `gorm:"uniqueIndex;not null" json:"reference"`
	SourceType    SourceType      `gorm:"type:varchar(32)" json:"source_type,omitempty"`
	SourceID      *uuid.UUID      `gorm:"type:uuid" json:"source_id,omitempty"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	return nil
}

// EventMeta describes where an event came from. Reference must be unique per
// event; an empty reference gets a generated one.
type EventMeta struct {
	Reference   string
	SourceType  SourceType
	SourceID    *uuid.UUID
	Description string
}
