package access

import (
	"errors"
	"fmt"

	"github.com/dropwire/dropwire/pkg/dropwire/models"
	"gorm.io/gorm"
)

var (
	// ErrNotFound means a referenced user, group, or drop does not exist.
	ErrNotFound = errors.New("not found")
	// ErrNotOwner means the actor tried to mutate a group or drop they do not own.
	ErrNotOwner = errors.New("not the owner")
	// ErrSelfConnection means a user tried to connect to themselves.
	ErrSelfConnection = errors.New("cannot connect a user to themselves")
	// ErrReservedGroup means the actor tried to hand-edit the auto-managed
	// "All Connections" group.
	ErrReservedGroup = errors.New("reserved group is managed automatically")
)

// Service is the access-control propagation engine. It owns the connection
// graph, each user's reserved "All Connections" group, the materialized
// viewer index that flattens the graph into (group, viewer) rows, drop
// tagging, and the visibility predicate built on top of them all.
//
// Every mutating method runs inside a single transaction, so partial state
// (a connection without its viewer entries, a half-replaced viewer set) is
// never observable. Constructing a Service over an already-open transaction
// nests via savepoints.
type Service struct {
	db *gorm.DB

	// PropagateOnConnect makes invitation acceptance synchronize both sides'
	// reserved groups instead of only the acceptor's. Off by default: the
	// one-sided invite behavior is the documented contract, and this switch
	// is an explicit extension for deployments that want eager propagation.
	PropagateOnConnect bool
}

// NewService creates an access service over the given database handle.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// WithDB returns a copy of the service bound to another handle, typically an
// open transaction, so engine calls can join a caller's transaction.
func (s *Service) WithDB(db *gorm.DB) *Service {
	return &Service{db: db, PropagateOnConnect: s.PropagateOnConnect}
}

// userExists reports whether a (non-deleted) user row exists for the id.
func userExists(db *gorm.DB, userID uint) (bool, error) {
	var count int64
	if err := db.Model(&models.User{}).Where("id = ?", userID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("look up user: %w", err)
	}
	return count > 0, nil
}
