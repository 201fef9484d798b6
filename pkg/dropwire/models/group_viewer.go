package models

import "time"

// GroupViewer is one row of the materialized viewer index: the user named by
// ViewerID may see drops tagged to the group. Visibility checks join this
// table instead of walking the connection graph.
//
// Rows here are derived state: a reserved group's rows can be rebuilt from
// Connections at any time. The table therefore uses hard deletes and a hard
// uniqueness constraint rather than the soft-delete pattern of the entity
// tables. The group owner never appears as a viewer of their own group;
// ownership grants access in the resolver instead.
type GroupViewer struct {
	ID        uint      `gorm:"primarykey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	GroupID   uint      `gorm:"not null;uniqueIndex:idx_group_viewer" json:"group_id"`
	ViewerID  uint      `gorm:"not null;uniqueIndex:idx_group_viewer;index" json:"viewer_id"`

	// Relationships
	Group  Group `gorm:"foreignKey:GroupID" json:"group,omitempty"`
	Viewer User  `gorm:"foreignKey:ViewerID" json:"viewer,omitempty"`
}
