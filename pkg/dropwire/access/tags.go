package access

import (
	"errors"
	"fmt"

	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagDrop shares a drop into each of the given groups. The caller must own
// the drop and every listed group; if any group is missing or foreign the
// whole call fails before any edge is written. Tagging a group the drop is
// already shared to is a no-op, and the reserved group is a legal target
// like any other owned group.
func (s *Service) TagDrop(ownerID, dropID uint, groupIDs []uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadOwnedDrop(tx, ownerID, dropID); err != nil {
			return err
		}
		groups, err := checkOwnedGroups(tx, ownerID, groupIDs)
		if err != nil {
			return err
		}
		for _, groupID := range groups {
			edge := models.DropTag{DropID: dropID, GroupID: groupID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
				return fmt.Errorf("upsert drop tag: %w", err)
			}
		}
		return nil
	})
}

// ReplaceDropTags replaces a drop's tag set wholesale. Passing an empty list
// untags the drop entirely, making it owner-only again.
func (s *Service) ReplaceDropTags(ownerID, dropID uint, groupIDs []uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadOwnedDrop(tx, ownerID, dropID); err != nil {
			return err
		}
		groups, err := checkOwnedGroups(tx, ownerID, groupIDs)
		if err != nil {
			return err
		}
		if err := tx.Where("drop_id = ?", dropID).Delete(&models.DropTag{}).Error; err != nil {
			return fmt.Errorf("clear drop tags: %w", err)
		}
		for _, groupID := range groups {
			edge := models.DropTag{DropID: dropID, GroupID: groupID}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&edge).Error; err != nil {
				return fmt.Errorf("upsert drop tag: %w", err)
			}
		}
		return nil
	})
}

// UntagDrop removes a drop from one group. It reports whether an edge was
// actually removed.
func (s *Service) UntagDrop(ownerID, dropID, groupID uint) (bool, error) {
	var removed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if _, err := loadOwnedDrop(tx, ownerID, dropID); err != nil {
			return err
		}
		result := tx.Where("drop_id = ? AND group_id = ?", dropID, groupID).
			Delete(&models.DropTag{})
		if result.Error != nil {
			return fmt.Errorf("remove drop tag: %w", result.Error)
		}
		removed = result.RowsAffected > 0
		return nil
	})
	return removed, err
}

// loadOwnedDrop fetches a drop and checks the actor owns it.
func loadOwnedDrop(tx *gorm.DB, ownerID, dropID uint) (*models.Drop, error) {
	var drop models.Drop
	if err := tx.First(&drop, dropID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load drop: %w", err)
	}
	if drop.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return &drop, nil
}

// checkOwnedGroups dedupes the requested group ids and verifies every one
// exists and belongs to the actor.
func checkOwnedGroups(tx *gorm.DB, ownerID uint, groupIDs []uint) ([]uint, error) {
	seen := make(map[uint]bool)
	ids := make([]uint, 0, len(groupIDs))
	for _, id := range groupIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	var groups []models.Group
	if err := tx.Where("id IN ?", ids).Find(&groups).Error; err != nil {
		return nil, fmt.Errorf("check groups: %w", err)
	}
	if len(groups) != len(ids) {
		return nil, ErrNotFound
	}
	for _, g := range groups {
		if g.OwnerID != ownerID {
			return nil, ErrNotOwner
		}
	}
	return ids, nil
}
