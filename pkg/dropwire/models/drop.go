package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Drop represents a content item a user has uploaded. The binary payload
// lives in external storage; this row carries the metadata the sharing layer
// needs. A drop with no DropTag rows is private, visible only to its owner.
type Drop struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
	OwnerID   uint           `gorm:"not null;index" json:"owner_id"`
	Title     string         `gorm:"not null" json:"title"`
	Caption   string         `json:"caption"`
	Metadata  datatypes.JSON `gorm:"type:json" json:"metadata,omitempty"` // mime type, dimensions, etc.

	// Relationships
	Owner User      `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Tags  []DropTag `gorm:"foreignKey:DropID" json:"tags,omitempty"`
}
