// Package store provides database access interfaces and implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/kinship-labs/kinship/internal/models"
)

// Common store errors. Implementations translate driver failures into these
// so callers can branch without knowing the backend.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert violates a uniqueness
	// constraint (active edge pair, live invitation pair, type name).
	ErrDuplicate = errors.New("duplicate record")
)

// EdgeFilter narrows edge listings. Zero value means no filtering.
type EdgeFilter struct {
	ActiveOnly    bool
	VisibleOnly   bool
	ShareableOnly bool
	ManagerOnly   bool
	// MemberIDs restricts results to the given members when non-empty.
	MemberIDs []string
}

// RelationshipTypeStore defines operations over the relationship-type catalog.
type RelationshipTypeStore interface {
	// Create inserts a new relationship type. Returns ErrDuplicate when the
	// normalized name is taken.
	Create(ctx context.Context, rt *models.RelationshipType) error
	// GetByName retrieves an active type by normalized name.
	GetByName(ctx context.Context, name string) (*models.RelationshipType, error)
	// List retrieves types ordered by sort_order then display name.
	List(ctx context.Context, activeOnly bool) ([]*models.RelationshipType, error)
	// ListReciprocal retrieves active reciprocal types.
	ListReciprocal(ctx context.Context) ([]*models.RelationshipType, error)
	// ListByGeneration retrieves active types with the given offset.
	ListByGeneration(ctx context.Context, offset int) ([]*models.RelationshipType, error)
	// Update replaces the mutable fields of a type.
	Update(ctx context.Context, rt *models.RelationshipType) error
	// UpdateRules replaces just the calculation rules of a type.
	UpdateRules(ctx context.Context, name string, rules map[string]string) error
	// Deactivate soft-deletes a type. Types are never hard-deleted.
	Deactivate(ctx context.Context, name string) error
}

// MemberStore defines operations for member management.
type MemberStore interface {
	// Create inserts a new member.
	Create(ctx context.Context, m *models.Member) error
	// Get retrieves a member by ID.
	Get(ctx context.Context, id string) (*models.Member, error)
	// ListByIDs retrieves members for the given IDs, skipping misses.
	ListByIDs(ctx context.Context, ids []string) ([]*models.Member, error)
	// Update replaces the mutable fields of a member.
	Update(ctx context.Context, m *models.Member) error
	// Deactivate soft-deletes a member.
	Deactivate(ctx context.Context, id string) error
}

// EdgeStore defines operations over user-to-member edges.
type EdgeStore interface {
	// Create inserts a new edge. Returns ErrDuplicate when an active edge
	// already exists for the (user, member) pair.
	Create(ctx context.Context, e *models.Edge) error
	// Get retrieves an edge by ID.
	Get(ctx context.Context, id string) (*models.Edge, error)
	// GetActiveByPair retrieves the active edge for a (user, member) pair,
	// or nil when none exists.
	GetActiveByPair(ctx context.Context, userID, memberID string) (*models.Edge, error)
	// ListByUser retrieves a user's edges matching the filter, newest first.
	ListByUser(ctx context.Context, userID string, f EdgeFilter) ([]*models.Edge, error)
	// ListByMember retrieves all active edges pointing at a member.
	ListByMember(ctx context.Context, memberID string) ([]*models.Edge, error)
	// Update replaces the mutable fields of an edge.
	Update(ctx context.Context, e *models.Edge) error
	// Deactivate soft-deletes an edge. Permanent removal-from-effect.
	Deactivate(ctx context.Context, id string) error
	// SetVisibility hides or reveals an edge without deactivating it.
	SetVisibility(ctx context.Context, id string, visible bool) error
	// Delete hard-deletes an edge. Maintenance use only.
	Delete(ctx context.Context, id string) error
	// DeleteInactiveBefore hard-deletes edges deactivated before the cutoff
	// and returns the number removed.
	DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// InvitationCounts aggregates invitation totals by status.
type InvitationCounts struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Declined int `json:"declined"`
	Expired  int `json:"expired"`
}

// InvitationStore defines operations for invitation management.
type InvitationStore interface {
	// Create inserts a new invitation. Returns ErrDuplicate when a live
	// pending invitation already exists for the (inviter, email) pair.
	Create(ctx context.Context, inv *models.Invitation) error
	// Get retrieves an invitation by ID.
	Get(ctx context.Context, id string) (*models.Invitation, error)
	// GetByToken retrieves an invitation by its token.
	GetByToken(ctx context.Context, token string) (*models.Invitation, error)
	// GetLivePending retrieves the unexpired pending invitation for the
	// (inviter, normalized email) pair, or nil when none exists.
	GetLivePending(ctx context.Context, inviterID, email string) (*models.Invitation, error)
	// HasAcceptedBetween reports whether an accepted invitation links the
	// two users in either direction.
	HasAcceptedBetween(ctx context.Context, userA, userB string) (bool, error)
	// ListSent retrieves invitations sent by a user, newest first.
	ListSent(ctx context.Context, inviterID string) ([]*models.Invitation, error)
	// ListReceived retrieves invitations addressed to an email, newest first.
	ListReceived(ctx context.Context, email string) ([]*models.Invitation, error)
	// Update replaces the mutable fields of an invitation.
	Update(ctx context.Context, inv *models.Invitation) error
	// ExpirePending transitions pending invitations past their deadline to
	// expired and returns the number affected. Idempotent.
	ExpirePending(ctx context.Context, now time.Time) (int, error)
	// ExpireStaleFor transitions lapsed pending invitations for the
	// (inviter, normalized email) pair to expired, so a stale row never
	// blocks a replacement invitation.
	ExpireStaleFor(ctx context.Context, inviterID, email string, now time.Time) (int, error)
	// CountsByUser aggregates sent and received totals for a user.
	CountsByUser(ctx context.Context, userID string) (sent, received *InvitationCounts, err error)
}

// UserStore defines operations for user management.
type UserStore interface {
	// Create creates a new user with a hashed password.
	Create(ctx context.Context, email, password, firstName, lastName string) (*models.User, error)
	// GetByEmail retrieves a user by normalized email.
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id string) (*models.User, error)
	// Authenticate verifies credentials and returns the user.
	Authenticate(ctx context.Context, email, password string) (*models.User, error)
}

// Store is the main interface for database operations.
type Store interface {
	// RelationshipTypes returns the relationship-type catalog store.
	RelationshipTypes() RelationshipTypeStore
	// Members returns the member store.
	Members() MemberStore
	// Edges returns the edge store.
	Edges() EdgeStore
	// Invitations returns the invitation store.
	Invitations() InvitationStore
	// Users returns the user store.
	Users() UserStore

	// WithTx executes the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// Otherwise, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error

	// Close closes the database connection.
	Close() error
}
