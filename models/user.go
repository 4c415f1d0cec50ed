package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type User struct {
	ID        uuid.UUID  `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	Email     string     `gorm:"uniqueIndex;not null" json:"email"`
	Password  string     `gorm:"not null" json:"-"`
	Name      string     `json:"name"`
	Role      string     `gorm:"default:customer" json:"role"` // customer, staff, branch_admin, super_admin
	BranchID  *uuid.UUID `gorm:"type:uuid;index" json:"branch_id,omitempty"`
	Branch    *Branch    `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Phone     string     `json:"phone"`
	FCMToken  string     `json:"-"`
	IsBlocked bool       `gorm:"default:false" json:"is_blocked"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsElevated reports whether the role can approve vouchers and send requests.
func (u *User) IsElevated() bool {
	return u.Role == "branch_admin" || u.Role == "super_admin"
}
