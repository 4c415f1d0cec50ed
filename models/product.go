package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product prices are stored as integer centavos (value x100).
type Product struct {
	ID            uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BranchID      *uuid.UUID     `gorm:"type:uuid;index" json:"branch_id,omitempty"`
	Branch        *Branch        `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Name          string         `gorm:"not null" json:"name"`
	Description   string         `json:"description"`
	Price         int64          `gorm:"not null" json:"price"`
	Stock         int            `gorm:"default:0" json:"stock"`
	SoldThisMonth int            `gorm:"default:0" json:"sold_this_month"`
	Brand         string         `json:"brand"`
	IsActive      bool           `gorm:"default:true" json:"is_active"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
