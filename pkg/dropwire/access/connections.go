package access

import (
	"fmt"

	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Connect records the symmetric connection between two users. The pair is
// stored normalized (smaller id first), so the edge exists once no matter
// which side initiated it. Connecting an already-connected pair is a
// successful no-op.
//
// Connect only touches the graph. Neither user's reserved group is updated
// here; that is SyncReservedGroup's job, invoked by the establishment flows
// on the sides they promise to refresh.
func (s *Service) Connect(userA, userB uint) error {
	if userA == userB {
		return ErrSelfConnection
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		for _, id := range []uint{userA, userB} {
			ok, err := userExists(tx, id)
			if err != nil {
				return err
			}
			if !ok {
				return ErrNotFound
			}
		}
		a, b := models.NormalizePair(userA, userB)
		conn := models.Connection{UserAID: a, UserBID: b}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&conn).Error; err != nil {
			return fmt.Errorf("create connection: %w", err)
		}
		return nil
	})
}

// IsConnected reports whether a connection exists between the two users.
// A user is never considered connected to themselves.
func (s *Service) IsConnected(userA, userB uint) (bool, error) {
	if userA == userB {
		return false, nil
	}
	a, b := models.NormalizePair(userA, userB)
	var count int64
	err := s.db.Model(&models.Connection{}).
		Where("user_a_id = ? AND user_b_id = ?", a, b).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("look up connection: %w", err)
	}
	return count > 0, nil
}

// ConnectedUserIDs returns the id of every user connected to the given user.
func (s *Service) ConnectedUserIDs(userID uint) ([]uint, error) {
	var conns []models.Connection
	err := s.db.Where("user_a_id = ? OR user_b_id = ?", userID, userID).Find(&conns).Error
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	peers := make([]uint, 0, len(conns))
	for _, c := range conns {
		if c.UserAID == userID {
			peers = append(peers, c.UserBID)
		} else {
			peers = append(peers, c.UserAID)
		}
	}
	return peers, nil
}

// EstablishFromInvite runs the invitation-acceptance flow: connect the two
// users, then synchronize the acceptor's reserved group only. The inviter's
// reserved group is left as it was until their own next sync trigger, so
// content the inviter shares to "All Connections" in that window is not yet
// visible to the acceptor. That one-sidedness is this flow's contract;
// PropagateOnConnect switches it to an eager both-sides sync.
func (s *Service) EstablishFromInvite(inviterID, acceptorID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		svc := s.WithDB(tx)
		if err := svc.Connect(inviterID, acceptorID); err != nil {
			return err
		}
		if err := svc.SyncReservedGroup(acceptorID); err != nil {
			return err
		}
		if s.PropagateOnConnect {
			return svc.SyncReservedGroup(inviterID)
		}
		return nil
	})
}

// EstablishFromShareLink runs the share-link claim flow: connect creator and
// claimer, then synchronize both reserved groups, so each side's "All
// Connections" audience includes the other immediately.
func (s *Service) EstablishFromShareLink(creatorID, claimerID uint) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		svc := s.WithDB(tx)
		if err := svc.Connect(creatorID, claimerID); err != nil {
			return err
		}
		if err := svc.SyncReservedGroup(creatorID); err != nil {
			return err
		}
		return svc.SyncReservedGroup(claimerID)
	})
}

// RebuildReservedGroups re-synchronizes every user's reserved group from the
// connection graph and returns the number of users processed. The viewer
// index is derived state, so rebuilding is always safe to run.
func (s *Service) RebuildReservedGroups() (int, error) {
	var userIDs []uint
	if err := s.db.Model(&models.User{}).Pluck("id", &userIDs).Error; err != nil {
		return 0, fmt.Errorf("list users: %w", err)
	}
	for _, id := range userIDs {
		if err := s.SyncReservedGroup(id); err != nil {
			return 0, err
		}
	}
	return len(userIDs), nil
}
