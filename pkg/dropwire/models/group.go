package models

import (
	"time"

	"gorm.io/gorm"
)

// ReservedGroupName is the name of the per-user auto-managed group whose
// viewer set tracks the owner's connection graph.
const ReservedGroupName = "All Connections"

// Group represents an owner-scoped sharing scope for drops.
// A group is either reserved (the "All Connections" group, created lazily and
// populated from the connection graph) or custom (hand-curated by the owner).
type Group struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	OwnerID     uint           `gorm:"not null;index" json:"owner_id"`
	Name        string         `gorm:"not null" json:"name"`
	Description string         `json:"description"`
	Reserved    bool           `gorm:"default:false" json:"reserved"`

	// Relationships
	Owner   User          `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Viewers []GroupViewer `gorm:"foreignKey:GroupID" json:"viewers,omitempty"`
}
