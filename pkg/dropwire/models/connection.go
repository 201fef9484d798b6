package models

import "time"

// Connection is the symmetric social link between two users.
// Exactly one row exists per unordered pair: UserAID always holds the smaller
// id, so callers must run both ids through NormalizePair before any lookup or
// insert. Connections are never deleted, so the row carries no soft-delete
// column.
type Connection struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserAID   uint      `gorm:"not null;uniqueIndex:idx_connection_pair" json:"user_a_id"`
	UserBID   uint      `gorm:"not null;uniqueIndex:idx_connection_pair;index" json:"user_b_id"`

	// Relationships
	UserA User `gorm:"foreignKey:UserAID" json:"user_a,omitempty"`
	UserB User `gorm:"foreignKey:UserBID" json:"user_b,omitempty"`
}

// NormalizePair orders two user ids so the smaller one comes first.
func NormalizePair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}
