package access

import (
	"errors"
	"fmt"

	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"gorm.io/gorm"
)

// CanView is the visibility predicate: true when the viewer owns the drop,
// or when at least one group the drop is tagged to lists the viewer in the
// viewer index. It is a single indexed join over drop_tags and group_viewers;
// the connection graph is never consulted at read time.
//
// A missing drop yields (false, nil), the same answer as an existing drop
// the viewer cannot see, so callers never leak whether a drop exists.
func (s *Service) CanView(viewerID, dropID uint) (bool, error) {
	var drop models.Drop
	if err := s.db.Select("id", "owner_id").First(&drop, dropID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, fmt.Errorf("load drop: %w", err)
	}
	if drop.OwnerID == viewerID {
		return true, nil
	}
	var count int64
	err := s.db.Table("drop_tags").
		Joins("JOIN group_viewers ON group_viewers.group_id = drop_tags.group_id").
		Where("drop_tags.drop_id = ? AND group_viewers.viewer_id = ?", dropID, viewerID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check visibility: %w", err)
	}
	return count > 0, nil
}

// VisibleDrops returns every drop the viewer may see, newest first: their own
// drops plus all drops tagged into groups that list them as a viewer. The
// result is a set, so a drop reachable through several groups appears once,
// and it is recomputed from current index state on every call.
func (s *Service) VisibleDrops(viewerID uint, limit, offset int) ([]models.Drop, error) {
	shared := s.db.Table("drop_tags").
		Select("drop_tags.drop_id").
		Joins("JOIN group_viewers ON group_viewers.group_id = drop_tags.group_id").
		Where("group_viewers.viewer_id = ?", viewerID)

	query := s.db.Preload("Owner").
		Where("owner_id = ? OR id IN (?)", viewerID, shared).
		Order("created_at DESC").
		Order("id DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}
	var drops []models.Drop
	if err := query.Find(&drops).Error; err != nil {
		return nil, fmt.Errorf("list visible drops: %w", err)
	}
	return drops, nil
}

// VisibleGroupIDs returns the ids of every group that currently lists the
// user as a viewer. Handy for "shared with me" style views.
func (s *Service) VisibleGroupIDs(viewerID uint) ([]uint, error) {
	var ids []uint
	err := s.db.Model(&models.GroupViewer{}).
		Where("viewer_id = ?", viewerID).
		Pluck("group_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list viewable groups: %w", err)
	}
	return ids, nil
}
