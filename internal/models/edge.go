package models

import (
	"fmt"
	"time"
)

// Edge is a user-to-member relationship record, the unit of the family graph.
// At most one active edge may exist per (user, member) pair.
type Edge struct {
	ID       string `json:"id"`
	UserID   string `json:"user_id"`
	MemberID string `json:"member_id"`

	// Relation references RelationshipType.Name and labels this user's
	// relationship to the member.
	Relation string `json:"relation"`

	IsShareable bool `json:"is_shareable"` // may be exposed to invitees
	IsManager   bool `json:"is_manager"`   // may edit/delete the member
	IsPrimary   bool `json:"is_primary"`   // advisory, not enforced unique

	// IsActive is the soft-delete flag; IsVisible hides without deactivating.
	IsActive  bool `json:"is_active"`
	IsVisible bool `json:"is_visible"`

	CreatedByUserID string `json:"created_by_user_id"`
	// InvitationID is set exactly when the edge was derived during an
	// invitation acceptance.
	InvitationID string `json:"invitation_id,omitempty"`
	Notes        string `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsDerived reports whether the edge was synthesized by the derivation
// engine rather than entered directly.
func (e *Edge) IsDerived() bool {
	return e.InvitationID != ""
}

// CanEdit reports whether the edge grants edit rights over the member.
func (e *Edge) CanEdit() bool {
	return e.IsManager && e.IsActive
}

// CanShare reports whether the member behind this edge may be offered to an
// invitee. Sharing requires management rights.
func (e *Edge) CanShare() bool {
	return e.IsShareable && e.IsActive && e.IsManager
}

// DerivedEdge builds the edge created for an invitee during acceptance.
// Derived edges are always view-only and non-transitive: never manager,
// never shareable.
func DerivedEdge(inviteeUserID, memberID, relation string, inv *Invitation) *Edge {
	intended := inv.IntendedRelationship
	if intended == "" {
		intended = DefaultIntendedRelationship
	}
	return &Edge{
		UserID:          inviteeUserID,
		MemberID:        memberID,
		Relation:        relation,
		IsShareable:     false,
		IsManager:       false,
		IsActive:        true,
		IsVisible:       true,
		CreatedByUserID: inv.InviterUserID,
		InvitationID:    inv.ID,
		Notes:           fmt.Sprintf("Derived from invitation: %s relationship", intended),
	}
}
