package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "pending"
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCompleted BookingStatus = "completed"
	BookingStatusCancelled BookingStatus = "cancelled"
	BookingStatusNoShow    BookingStatus = "no_show"
)

// NonTerminalBookingStatuses are the statuses considered live for the
// duplicate-booking check on (customer, service, date, barber).
var NonTerminalBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusConfirmed,
}

type Booking struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BookingCode   string         `gorm:"uniqueIndex;not null" json:"booking_code"`
	CustomerID    uuid.UUID      `gorm:"type:uuid;not null;index" json:"customer_id"`
	Customer      User           `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	ServiceID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"service_id"`
	Service       Service        `gorm:"foreignKey:ServiceID" json:"service,omitempty"`
	BarberID      *uuid.UUID     `gorm:"type:uuid;index" json:"barber_id,omitempty"`
	Barber        *Barber        `gorm:"foreignKey:BarberID" json:"barber,omitempty"`
	BranchID      uuid.UUID      `gorm:"type:uuid;not null;index" json:"branch_id"`
	Date          string         `gorm:"not null;index" json:"date"` // YYYY-MM-DD
	TimeSlot      string         `json:"time_slot"`
	Status        BookingStatus  `gorm:"default:pending" json:"status"`
	TransactionID *uuid.UUID     `gorm:"type:uuid;index" json:"transaction_id,omitempty"`
	Notes         string         `json:"notes"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Booking) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.BookingCode == "" {
		b.BookingCode = "BKG" + time.Now().Format("20060102150405") + b.ID.String()[:8]
	}
	return nil
}

// AllowedBookingTransitions defines the valid booking status state machine.
var AllowedBookingTransitions = map[BookingStatus][]BookingStatus{
	BookingStatusPending:   {BookingStatusConfirmed, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusConfirmed: {BookingStatusCompleted, BookingStatusCancelled, BookingStatusNoShow},
	BookingStatusCompleted: {},
	BookingStatusCancelled: {},
	BookingStatusNoShow:    {},
}

// IsValidBookingTransition checks if a booking status transition is allowed.
func IsValidBookingTransition(from, to BookingStatus) bool {
	allowed, exists := AllowedBookingTransitions[from]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}
