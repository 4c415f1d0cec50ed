package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PointsLedger holds the per-user points balances. Points are stored as
// integer x100 (one point's redemption value equals one peso). Lifetime
// counters only ever increase; CurrentBalance is the spendable amount.
type PointsLedger struct {
	ID               uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID           uuid.UUID `gorm:"type:uuid;uniqueIndex;not null" json:"user_id"`
	User             User      `gorm:"foreignKey:UserID" json:"-"`
	CurrentBalance   int64     `gorm:"default:0" json:"current_balance"`
	LifetimeEarned   int64     `gorm:"default:0" json:"lifetime_earned"`
	LifetimeRedeemed int64     `gorm:"default:0" json:"lifetime_redeemed"`
	Tier             string    `gorm:"default:Bronze" json:"tier"`
	LastActivityAt   time.Time `json:"last_activity_at"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

func (p *PointsLedger) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

type PointsTransactionType string

const (
	PointsTransactionEarn   PointsTransactionType = "earn"
	PointsTransactionRedeem PointsTransactionType = "redeem"
	PointsTransactionAdjust PointsTransactionType = "adjust"
	PointsTransactionExpire PointsTransactionType = "expire"
)

// PointsTransaction is the append-only points log. Amount is signed
// (negative for redeem/expire and downward adjustments). SourceID is the
// idempotency key: a second earn with the same (user, source) is ignored.
type PointsTransaction struct {
	ID           uuid.UUID             `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID       uuid.UUID             `gorm:"type:uuid;not null;index:idx_points_tx_user_source" json:"user_id"`
	Type         PointsTransactionType `gorm:"not null" json:"type"`
	Amount       int64                 `gorm:"not null" json:"amount"`
	BalanceAfter int64                 `gorm:"not null" json:"balance_after"`
	SourceType   string                `json:"source_type"`
	SourceID     string                `gorm:"index:idx_points_tx_user_source" json:"source_id"`
	BranchID     *uuid.UUID            `gorm:"type:uuid;index" json:"branch_id,omitempty"`
	Notes        string                `json:"notes"`
	CreatedAt    time.Time             `json:"created_at"`
}

func (pt *PointsTransaction) BeforeCreate(tx *gorm.DB) error {
	if pt.ID == uuid.Nil {
		pt.ID = uuid.New()
	}
	return nil
}
