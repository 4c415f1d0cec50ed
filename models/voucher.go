package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type VoucherStatus string

const (
	VoucherStatusPendingApproval VoucherStatus = "pending_approval"
	VoucherStatusActive          VoucherStatus = "active"
	VoucherStatusInactive        VoucherStatus = "inactive"
	VoucherStatusRejected        VoucherStatus = "rejected"
)

// Voucher values are stored as integer centavos (value x100). MaxUses caps
// the total number of redeemed assignments across all redemption paths.
type Voucher struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Code            string         `gorm:"uniqueIndex;not null" json:"code"`
	Value           int64          `gorm:"not null" json:"value"`
	PointsRequired  int64          `gorm:"default:0" json:"points_required"`
	MaxUses         int            `gorm:"default:1" json:"max_uses"`
	ExpiresAt       *time.Time     `json:"expires_at,omitempty"`
	BranchID        *uuid.UUID     `gorm:"type:uuid;index" json:"branch_id,omitempty"`
	CreatedBy       uuid.UUID      `gorm:"type:uuid;not null" json:"created_by"`
	Status          VoucherStatus  `gorm:"default:pending_approval" json:"status"`
	ApprovedBy      *uuid.UUID     `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time     `json:"approved_at,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
	BatchID         *uuid.UUID     `gorm:"type:uuid;index" json:"batch_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (v *Voucher) BeforeCreate(tx *gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// IsExpired compares ExpiresAt against the supplied call time.
func (v *Voucher) IsExpired(now time.Time) bool {
	return v.ExpiresAt != nil && now.After(*v.ExpiresAt)
}

type VoucherAssignmentStatus string

const (
	VoucherAssignmentAssigned VoucherAssignmentStatus = "assigned"
	VoucherAssignmentRedeemed VoucherAssignmentStatus = "redeemed"
)

// VoucherAssignment gives one user (or, for flier vouchers redeemed by a
// walk-in, nobody) a single redeemable slot on a voucher. AssignmentCode,
// when present, addresses this assignment independently of the shared
// voucher code. At most one assignment exists per (voucher, user).
type VoucherAssignment struct {
	ID             uuid.UUID               `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	VoucherID      uuid.UUID               `gorm:"type:uuid;not null;index:idx_voucher_user,unique" json:"voucher_id"`
	Voucher        Voucher                 `gorm:"foreignKey:VoucherID" json:"voucher,omitempty"`
	UserID         *uuid.UUID              `gorm:"type:uuid;index:idx_voucher_user,unique" json:"user_id,omitempty"`
	AssignmentCode *string                 `gorm:"uniqueIndex" json:"assignment_code,omitempty"`
	Status         VoucherAssignmentStatus `gorm:"default:assigned" json:"status"`
	AssignedAt     time.Time               `json:"assigned_at"`
	RedeemedAt     *time.Time              `json:"redeemed_at,omitempty"`
	AssignedBy     *uuid.UUID              `gorm:"type:uuid" json:"assigned_by,omitempty"`
	CreatedAt      time.Time               `json:"created_at"`
	UpdatedAt      time.Time               `json:"updated_at"`
}

func (va *VoucherAssignment) BeforeCreate(tx *gorm.DB) error {
	if va.ID == uuid.Nil {
		va.ID = uuid.New()
	}
	if va.AssignedAt.IsZero() {
		va.AssignedAt = time.Now()
	}
	return nil
}

type SendRequestStatus string

const (
	SendRequestPending  SendRequestStatus = "pending_approval"
	SendRequestApproved SendRequestStatus = "approved"
	SendRequestRejected SendRequestStatus = "rejected"
)

// VoucherSendRequest is a staff nomination of recipients that a higher role
// approves. Approval issues assignment codes per recipient, skipping holders
// and stopping when the voucher cap is reached.
type VoucherSendRequest struct {
	ID          uuid.UUID              `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	VoucherID   uuid.UUID              `gorm:"type:uuid;not null;index" json:"voucher_id"`
	Voucher     Voucher                `gorm:"foreignKey:VoucherID" json:"voucher,omitempty"`
	RequestedBy uuid.UUID              `gorm:"type:uuid;not null" json:"requested_by"`
	Status      SendRequestStatus      `gorm:"default:pending_approval" json:"status"`
	ApprovedBy  *uuid.UUID             `gorm:"type:uuid" json:"approved_by,omitempty"`
	ApprovedAt  *time.Time             `json:"approved_at,omitempty"`
	Notes       string                 `json:"notes"`
	Recipients  []VoucherSendRecipient `gorm:"foreignKey:SendRequestID" json:"recipients"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
}

func (sr *VoucherSendRequest) BeforeCreate(tx *gorm.DB) error {
	if sr.ID == uuid.Nil {
		sr.ID = uuid.New()
	}
	return nil
}

type VoucherSendRecipient struct {
	ID            uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	SendRequestID uuid.UUID  `gorm:"type:uuid;not null;index" json:"send_request_id"`
	UserID        *uuid.UUID `gorm:"type:uuid" json:"user_id,omitempty"`
	Email         string     `json:"email"`
	Fulfilled     bool       `gorm:"default:false" json:"fulfilled"`
	SkipReason    string     `json:"skip_reason,omitempty"`
	AssignmentID  *uuid.UUID `gorm:"type:uuid" json:"assignment_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

func (r *VoucherSendRecipient) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
