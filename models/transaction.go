package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type PaymentMethod string

const (
	PaymentMethodCash          PaymentMethod = "cash"
	PaymentMethodCard          PaymentMethod = "card"
	PaymentMethodDigitalWallet PaymentMethod = "digital_wallet"
	PaymentMethodBankTransfer  PaymentMethod = "bank_transfer"
	PaymentMethodWallet        PaymentMethod = "wallet"
	PaymentMethodCombo         PaymentMethod = "combo"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusFailed    PaymentStatus = "failed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
)

// Transaction is the committed payment record. All money fields are integer
// centavos (value x100). Rows are immutable after commit except for
// PaymentStatus transitions and the refund audit fields.
type Transaction struct {
	ID                  uuid.UUID            `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TransactionNumber   string               `gorm:"uniqueIndex;not null" json:"transaction_number"`
	ReceiptNumber       string               `gorm:"uniqueIndex;not null" json:"receipt_number"`
	BranchID            uuid.UUID            `gorm:"type:uuid;not null;index" json:"branch_id"`
	Branch              Branch               `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	CustomerID          *uuid.UUID           `gorm:"type:uuid;index" json:"customer_id,omitempty"`
	Customer            *User                `gorm:"foreignKey:CustomerID" json:"customer,omitempty"`
	CustomerEmail       string               `json:"customer_email,omitempty"`
	BarberID            *uuid.UUID           `gorm:"type:uuid;index" json:"barber_id,omitempty"`
	Barber              *Barber              `gorm:"foreignKey:BarberID" json:"barber,omitempty"`
	Subtotal            int64                `gorm:"not null" json:"subtotal"`
	DiscountAmount      int64                `gorm:"default:0" json:"discount_amount"`
	TaxAmount           int64                `gorm:"default:0" json:"tax_amount"`
	TotalAmount         int64                `gorm:"not null" json:"total_amount"`
	PaymentMethod       PaymentMethod        `gorm:"not null" json:"payment_method"`
	PaymentStatus       PaymentStatus        `gorm:"default:completed" json:"payment_status"`
	PointsRedeemed      int64                `gorm:"default:0" json:"points_redeemed"`
	WalletUsed          int64                `gorm:"default:0" json:"wallet_used"`
	CashCollected       int64                `gorm:"default:0" json:"cash_collected"`
	PointsEarned        int64                `gorm:"default:0" json:"points_earned"`
	VoucherCode         string               `json:"voucher_code,omitempty"`
	VoucherAssignmentID *uuid.UUID           `gorm:"type:uuid" json:"voucher_assignment_id,omitempty"`
	ProcessedBy         *uuid.UUID           `gorm:"type:uuid" json:"processed_by,omitempty"`
	Notes               string               `json:"notes"`
	RefundReason        string               `json:"refund_reason,omitempty"`
	RefundedBy          *uuid.UUID           `gorm:"type:uuid" json:"refunded_by,omitempty"`
	RefundedAt          *time.Time           `json:"refunded_at,omitempty"`
	Services            []TransactionService `gorm:"foreignKey:TransactionID" json:"services"`
	Products            []TransactionProduct `gorm:"foreignKey:TransactionID" json:"products"`
	CreatedAt           time.Time            `json:"created_at"`
	UpdatedAt           time.Time            `json:"updated_at"`
	DeletedAt           gorm.DeletedAt       `gorm:"index" json:"-"`
}

type TransactionService struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TransactionID uuid.UUID  `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ServiceID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"service_id"`
	ServiceName   string     `json:"service_name"` // Snapshot of service name at time of sale
	BarberID      *uuid.UUID `gorm:"type:uuid" json:"barber_id,omitempty"`
	Price         int64      `gorm:"not null" json:"price"`
	CreatedAt     time.Time  `json:"created_at"`
}

type TransactionProduct struct {
	ID            uuid.UUID `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	TransactionID uuid.UUID `gorm:"type:uuid;not null;index" json:"transaction_id"`
	ProductID     uuid.UUID `gorm:"type:uuid;not null;index" json:"product_id"`
	ProductName   string    `json:"product_name"` // Snapshot of product name at time of sale
	Price         int64     `gorm:"not null" json:"price"`
	Quantity      int       `gorm:"not null" json:"quantity"`
	CreatedAt     time.Time `json:"created_at"`
}

func (t *Transaction) BeforeCreate(tx *gorm.DB) error {
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	ts := time.Now().Format("20060102150405")
	if t.TransactionNumber == "" {
		t.TransactionNumber = "TXN-" + ts + "-" + t.ID.String()[:8]
	}
	if t.ReceiptNumber == "" {
		t.ReceiptNumber = "RCP-" + ts + "-" + t.ID.String()[:8]
	}
	return nil
}

func (ts *TransactionService) BeforeCreate(tx *gorm.DB) error {
	if ts.ID == uuid.Nil {
		ts.ID = uuid.New()
	}
	return nil
}

func (tp *TransactionProduct) BeforeCreate(tx *gorm.DB) error {
	if tp.ID == uuid.Nil {
		tp.ID = uuid.New()
	}
	return nil
}

// AllowedPaymentTransitions defines the valid payment status state machine.
var AllowedPaymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:   {PaymentStatusCompleted, PaymentStatusFailed},
	PaymentStatusCompleted: {PaymentStatusRefunded},
	PaymentStatusFailed:    {},
	PaymentStatusRefunded:  {},
}

// IsValidPaymentTransition checks if a payment status transition is allowed.
func IsValidPaymentTransition(from, to PaymentStatus) bool {
	allowed, exists := AllowedPaymentTransitions[from]
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
