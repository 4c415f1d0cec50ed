package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotificationType string

const (
	NotificationBookingCreated       NotificationType = "booking_created"
	NotificationBookingConfirmed     NotificationType = "booking_confirmed"
	NotificationTransactionCompleted NotificationType = "transaction_completed"
	NotificationTransactionRefunded  NotificationType = "transaction_refunded"
	NotificationVoucherAssigned      NotificationType = "voucher_assigned"
	NotificationPointsEarned         NotificationType = "points_earned"
	NotificationPointsExpiring       NotificationType = "points_expiring"
	NotificationWalletCredited       NotificationType = "wallet_credited"
)

// NotificationMetadata carries the known payload fields per notification
// type. Extra holds anything a sender needs beyond the known shapes.
type NotificationMetadata struct {
	TransactionID string            `json:"transaction_id,omitempty"`
	ReceiptNumber string            `json:"receipt_number,omitempty"`
	BookingID     string            `json:"booking_id,omitempty"`
	BookingCode   string            `json:"booking_code,omitempty"`
	VoucherCode   string            `json:"voucher_code,omitempty"`
	Amount        float64           `json:"amount,omitempty"`
	Points        float64           `json:"points,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

type Notification struct {
	ID        uuid.UUID            `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	UserID    uuid.UUID            `gorm:"type:uuid;not null;index" json:"user_id"`
	Type      NotificationType     `gorm:"not null" json:"type"`
	Title     string               `gorm:"not null" json:"title"`
	Body      string               `json:"body"`
	Metadata  NotificationMetadata `gorm:"serializer:json" json:"metadata"`
	Read      bool                 `gorm:"default:false" json:"read"`
	CreatedAt time.Time            `json:"created_at"`
	UpdatedAt time.Time            `json:"updated_at"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
