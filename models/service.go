package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service prices are stored as integer centavos (value x100).
type Service struct {
	ID              uuid.UUID      `gorm:"type:uuid;primary_key;default:gen_random_uuid()" json:"id"`
	BranchID        *uuid.UUID     `gorm:"type:uuid;index" json:"branch_id,omitempty"`
	Branch          *Branch        `gorm:"foreignKey:BranchID" json:"branch,omitempty"`
	Name            string         `gorm:"not null" json:"name"`
	Description     string         `json:"description"`
	Price           int64          `gorm:"not null" json:"price"`
	DurationMinutes int            `gorm:"default:30" json:"duration_minutes"`
	IsActive        bool           `gorm:"default:true" json:"is_active"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *Service) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
