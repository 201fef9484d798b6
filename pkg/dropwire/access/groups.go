package access

import (
	"errors"
	"fmt"

	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureReservedGroup returns the user's "All Connections" group, creating it
// on first access. The group is not created at registration time; it appears
// lazily the first time anything needs it.
func (s *Service) EnsureReservedGroup(userID uint) (*models.Group, error) {
	ok, err := userExists(s.db, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	var group models.Group
	err = s.db.Where("owner_id = ? AND reserved = ?", userID, true).
		FirstOrCreate(&group, models.Group{
			OwnerID:  userID,
			Name:     models.ReservedGroupName,
			Reserved: true,
		}).Error
	if err != nil {
		return nil, fmt.Errorf("ensure reserved group: %w", err)
	}
	return &group, nil
}

// SyncReservedGroup brings the user's reserved group in line with their
// current connections: the group is created if missing and a viewer entry is
// upserted for every connected peer. The call is idempotent and strictly
// one-directional: it never touches a peer's reserved group, so both
// establishment flows and the refresh paths can invoke it freely.
func (s *Service) SyncReservedGroup(userID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		svc := s.WithDB(tx)
		group, err := svc.EnsureReservedGroup(userID)
		if err != nil {
			return err
		}
		peers, err := svc.ConnectedUserIDs(userID)
		if err != nil {
			return err
		}
		for _, peer := range peers {
			entry := models.GroupViewer{GroupID: group.ID, ViewerID: peer}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
				return fmt.Errorf("upsert viewer entry: %w", err)
			}
		}
		return nil
	})
}

// SetGroupViewers replaces a custom group's viewer set with the given users.
// Only the group owner may call it, the reserved group is off limits, and
// every viewer id must name an existing user or the whole call fails. The
// owner is silently dropped from the new set: ownership grants access through
// the resolver, never through the index.
func (s *Service) SetGroupViewers(ownerID, groupID uint, viewerIDs []uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		group, err := loadOwnedGroup(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		if group.Reserved {
			return ErrReservedGroup
		}
		viewers, err := checkViewerIDs(tx, ownerID, viewerIDs)
		if err != nil {
			return err
		}
		if err := tx.Where("group_id = ?", group.ID).Delete(&models.GroupViewer{}).Error; err != nil {
			return fmt.Errorf("clear viewer entries: %w", err)
		}
		for _, id := range viewers {
			entry := models.GroupViewer{GroupID: group.ID, ViewerID: id}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
				return fmt.Errorf("upsert viewer entry: %w", err)
			}
		}
		return nil
	})
}

// AddGroupViewers adds the given users to a custom group's viewer set,
// keeping existing entries. Same ownership and reserved-group rules as
// SetGroupViewers.
func (s *Service) AddGroupViewers(ownerID, groupID uint, viewerIDs []uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		group, err := loadOwnedGroup(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		if group.Reserved {
			return ErrReservedGroup
		}
		viewers, err := checkViewerIDs(tx, ownerID, viewerIDs)
		if err != nil {
			return err
		}
		for _, id := range viewers {
			entry := models.GroupViewer{GroupID: group.ID, ViewerID: id}
			if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&entry).Error; err != nil {
				return fmt.Errorf("upsert viewer entry: %w", err)
			}
		}
		return nil
	})
}

// RemoveGroupViewer removes one viewer from a custom group. It reports
// whether an entry was actually removed, so callers can distinguish a
// removal from a no-op on a user who was never in the set.
func (s *Service) RemoveGroupViewer(ownerID, groupID, viewerID uint) (bool, error) {
	var removed bool
	err := s.db.Transaction(func(tx *gorm.DB) error {
		group, err := loadOwnedGroup(tx, ownerID, groupID)
		if err != nil {
			return err
		}
		if group.Reserved {
			return ErrReservedGroup
		}
		result := tx.Where("group_id = ? AND viewer_id = ?", group.ID, viewerID).
			Delete(&models.GroupViewer{})
		if result.Error != nil {
			return fmt.Errorf("remove viewer entry: %w", result.Error)
		}
		removed = result.RowsAffected > 0
		return nil
	})
	return removed, err
}

// loadOwnedGroup fetches a group and checks the actor owns it.
func loadOwnedGroup(tx *gorm.DB, ownerID, groupID uint) (*models.Group, error) {
	var group models.Group
	if err := tx.First(&group, groupID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load group: %w", err)
	}
	if group.OwnerID != ownerID {
		return nil, ErrNotOwner
	}
	return &group, nil
}

// checkViewerIDs dedupes the requested viewer ids, drops the owner, and
// verifies every remaining id names an existing user.
func checkViewerIDs(tx *gorm.DB, ownerID uint, viewerIDs []uint) ([]uint, error) {
	seen := make(map[uint]bool)
	viewers := make([]uint, 0, len(viewerIDs))
	for _, id := range viewerIDs {
		if id == ownerID || seen[id] {
			continue
		}
		seen[id] = true
		viewers = append(viewers, id)
	}
	if len(viewers) == 0 {
		return nil, nil
	}
	var count int64
	if err := tx.Model(&models.User{}).Where("id IN ?", viewers).Count(&count).Error; err != nil {
		return nil, fmt.Errorf("check viewers: %w", err)
	}
	if int(count) != len(viewers) {
		return nil, ErrNotFound
	}
	return viewers, nil
}
