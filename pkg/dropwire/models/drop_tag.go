package models

import "time"

// DropTag ties a drop to one of its owner's groups, granting that group's
// viewers access to the drop. Rows are hard-deleted alongside their drop or
// group so a stale edge can never keep granting access.
type DropTag struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	DropID    uint      `gorm:"not null;uniqueIndex:idx_drop_group" json:"drop_id"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_drop_group;index" json:"group_id"`

	// Relationships
	Drop  Drop  `gorm:"foreignKey:DropID" json:"drop,omitempty"`
	Group Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
}
