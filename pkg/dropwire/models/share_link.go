package models

import (
	"time"

	"gorm.io/gorm"
)

// ShareLink is a durable claim token for one (creator, drop) pair. Unlike a
// ShareRequest it survives claiming: any number of distinct users can claim
// the same token, each claim independently connecting the claimer to the
// creator.
type ShareLink struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
	CreatorID  uint           `gorm:"not null;index" json:"creator_id"`
	DropID     uint           `gorm:"not null;index" json:"drop_id"`
	Token      string         `gorm:"uniqueIndex;not null" json:"token"`
	ClaimCount uint           `gorm:"default:0" json:"claim_count"`

	// Relationships
	Creator User `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Drop    Drop `gorm:"foreignKey:DropID" json:"drop,omitempty"`
}
