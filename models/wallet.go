package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Wallet balances are stored as integer centavos (value x100) and are never
// allowed to go negative. Rows are created lazily on first credit.
type Wallet struct {
	ID           uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID       uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User         User      `gorm:"foreignKey:UserID" json:"-"`
	Balance      int64     `gorm:"default:0" json:"balance"`
	BonusBalance int64     `gorm:"default:0" json:"bonus_balance"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

func (w *Wallet) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}

type WalletTransactionType string

const (
	WalletTransactionCredit WalletTransactionType = "credit"
	WalletTransactionDebit  WalletTransactionType = "debit"
)

// WalletTransaction is the append-only audit trail for wallet mutations.
// ReferenceID links a mutation back to the operation that caused it
// (transaction number, top-up reference) so retries can be reconciled.
type WalletTransaction struct {
	ID           uuid.UUID             `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	WalletID     uuid.UUID             `gorm:"type:uuid;not null;index" json:"wallet_id"`
	UserID       uuid.UUID             `gorm:"type:uuid;not null;index" json:"user_id"`
	Type         WalletTransactionType `gorm:"not null" json:"type"`
	Amount       int64                 `gorm:"not null" json:"amount"`
	BonusUsed    int64                 `gorm:"default:0" json:"bonus_used"`
	MainUsed     int64                 `gorm:"default:0" json:"main_used"`
	BalanceAfter int64                 `gorm:"not null" json:"balance_after"`
	BonusAfter   int64                 `gorm:"not null" json:"bonus_after"`
	ReferenceID  string                `gorm:"index" json:"reference_id"`
	Notes        string                `json:"notes"`
	CreatedAt    time.Time             `json:"created_at"`
}

func (wt *WalletTransaction) BeforeCreate(tx *gorm.DB) error {
	if wt.ID == uuid.Nil {
		wt.ID = uuid.New()
	}
	return nil
}
