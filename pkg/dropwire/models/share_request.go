package models

import (
	"time"

	"gorm.io/gorm"
)

// ShareRequest is an invitation from Requester to Target. Accepting it
// connects the two users. The row is kept and marked accepted rather than
// destroyed, so the key cannot be replayed into a second establishment flow
// and the history stays queryable.
type ShareRequest struct {
	ID          uint           `gorm:"primarykey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	RequesterID uint           `gorm:"not null;index" json:"requester_id"`
	TargetID    uint           `gorm:"not null;index" json:"target_id"`
	Key         string         `gorm:"uniqueIndex;not null" json:"key"`
	Message     string         `json:"message"`
	Accepted    bool           `gorm:"default:false" json:"accepted"`
	Ignored     bool           `gorm:"default:false" json:"ignored"`
	AcceptedAt  *time.Time     `json:"accepted_at,omitempty"`

	// Relationships
	Requester User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Target    User `gorm:"foreignKey:TargetID" json:"target,omitempty"`
}
