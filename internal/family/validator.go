package family

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/internal/store"
)

// conflictTable lists relationship labels that cannot coexist between the
// same (user, member) pair. Symmetric by construction. Pairs absent from the
// table are non-conflicting by default.
var conflictTable = map[string][]string{
	"parent":      {"child", "sibling", "spouse"},
	"child":       {"parent", "sibling", "spouse"},
	"spouse":      {"parent", "child", "sibling"},
	"sibling":     {"parent", "child", "spouse"},
	"grandparent": {"grandchild"},
	"grandchild":  {"grandparent"},
}

// ConflictsWith reports whether two relationship labels are mutually
// exclusive between the same pair.
func ConflictsWith(a, b string) bool {
	a = models.NormalizeRelationName(a)
	b = models.NormalizeRelationName(b)
	for _, c := range conflictTable[a] {
		if c == b {
			return true
		}
	}
	return false
}

// Validator performs compatibility and conflict checks, both standalone
// (pre-flight) and inside the invitation workflow.
type Validator struct {
	store  store.Store
	logger *slog.Logger
}

// NewValidator creates a new validator.
func NewValidator(st store.Store, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{store: st, logger: logger}
}

// ValidateNewRelationship checks whether a new edge with the given relation
// may be created between a user and a member. Returns ok=false with a
// human-readable reason for domain rejections; err is reserved for
// infrastructure failures.
func (v *Validator) ValidateNewRelationship(ctx context.Context, userID, memberID, relation string) (bool, string, error) {
	relation = models.NormalizeRelationName(relation)

	existing, err := v.store.Edges().GetActiveByPair(ctx, userID, memberID)
	if err != nil {
		return false, "", err
	}
	if existing != nil {
		if existing.Relation != relation && ConflictsWith(relation, existing.Relation) {
			return false, fmt.Sprintf("conflicts with existing %s relationship", existing.Relation), nil
		}
		return false, fmt.Sprintf("relationship already exists: %s", existing.Relation), nil
	}

	if _, err := v.store.RelationshipTypes().GetByName(ctx, relation); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, fmt.Sprintf("unknown relationship type: %s", relation), nil
		}
		return false, "", err
	}

	return true, "", nil
}

// ValidateInvitationEmail checks whether the inviter may send an invitation
// to the given address. Returns a typed domain error on rejection.
func (v *Validator) ValidateInvitationEmail(ctx context.Context, inviter *models.User, email string) error {
	email = models.NormalizeEmail(email)

	if email == models.NormalizeEmail(inviter.Email) {
		return ErrSelfInvitation
	}

	live, err := v.store.Invitations().GetLivePending(ctx, inviter.ID, email)
	if err != nil {
		return err
	}
	if live != nil {
		return ErrDuplicateInvitation
	}

	invitee, err := v.store.Users().GetByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return nil // not yet a user; nothing further to check
	}
	if err != nil {
		return err
	}

	connected, err := v.store.Invitations().HasAcceptedBetween(ctx, inviter.ID, invitee.ID)
	if err != nil {
		return err
	}
	if connected {
		return ErrAlreadyConnected
	}
	return nil
}
