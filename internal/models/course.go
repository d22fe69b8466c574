package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Course is the aggregate root that scopes one knowledge graph. Course ids
// are numeric and appear in graph URLs (/graphs/{courseID}/...).
type Course struct {
	ID          uint64         `gorm:"primaryKey;autoIncrement" json:"id"`
	AuthorID    uuid.UUID      `gorm:"type:uuid;index;not null" json:"author_id" validate:"required"`
	Title       string         `gorm:"not null" json:"title" validate:"required"`
	Description string         `gorm:"type:text" json:"description"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}
