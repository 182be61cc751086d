package models

import (
	"strings"
	"time"
)

// InvitationStatus represents the status of an invitation.
type InvitationStatus string

const (
	// InvitationStatusPending indicates the invitation awaits a response.
	InvitationStatusPending InvitationStatus = "pending"
	// InvitationStatusAccepted indicates the invitation has been accepted.
	InvitationStatusAccepted InvitationStatus = "accepted"
	// InvitationStatusDeclined indicates the invitee declined.
	InvitationStatusDeclined InvitationStatus = "declined"
	// InvitationStatusExpired indicates the invitation lapsed unanswered.
	InvitationStatusExpired InvitationStatus = "expired"
	// InvitationStatusCancelled indicates the inviter withdrew it.
	InvitationStatusCancelled InvitationStatus = "cancelled"
)

// DefaultIntendedRelationship is the label assumed when an invitation does
// not specify one. It has no composition rule anywhere, so derivation yields
// zero edges for such invitations; this mirrors the historical behavior.
const DefaultIntendedRelationship = "family"

// Invitation expiry bounds in days.
const (
	MinExpiryDays     = 1
	MaxExpiryDays     = 30
	DefaultExpiryDays = 7
)

// Invitation is a time-boxed offer from an inviter to an email address,
// carrying the intended relationship between inviter and invitee and the
// sharing scope used for derivation.
type Invitation struct {
	ID            string `json:"id"`
	InviterUserID string `json:"inviter_user_id"`

	InviteeEmail  string `json:"invitee_email"`
	InviteeUserID string `json:"invitee_user_id,omitempty"` // set on acceptance

	// Token is the only addressable credential for accept/decline/preview.
	Token   string           `json:"token"`
	Message string           `json:"message,omitempty"`
	Status  InvitationStatus `json:"status"`

	// IntendedRelationship is the label the invitee will hold relative to
	// the inviter (R2 for the calculator).
	IntendedRelationship string `json:"intended_relationship,omitempty"`
	RelationshipContext  string `json:"relationship_context,omitempty"`

	// ShareAllMembers and MemberIDs are mutually exclusive: exactly one of
	// "all" or an explicit allowlist must be populated at creation.
	ShareAllMembers bool     `json:"share_all_members"`
	MemberIDs       []string `json:"member_ids,omitempty"`

	ExpiresAt   time.Time  `json:"expires_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// NormalizeEmail canonicalizes an invitee email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// IsExpiredAt reports whether the invitation is past its deadline at the
// given instant. The boundary counts as expired.
func (i *Invitation) IsExpiredAt(now time.Time) bool {
	return !now.Before(i.ExpiresAt)
}

// IsExpired reports whether the invitation has expired.
func (i *Invitation) IsExpired() bool {
	return i.IsExpiredAt(time.Now())
}

// IsLiveAt reports whether the invitation can still be responded to at the
// given instant: pending status and not yet expired. A time-elapsed pending
// invitation is functionally expired even before a sweep marks it so.
func (i *Invitation) IsLiveAt(now time.Time) bool {
	return i.Status == InvitationStatusPending && !i.IsExpiredAt(now)
}

// IsLive reports whether the invitation can still be responded to.
func (i *Invitation) IsLive() bool {
	return i.IsLiveAt(time.Now())
}

// IsTerminal reports whether the invitation is in a sink state.
func (i *Invitation) IsTerminal() bool {
	return i.Status != InvitationStatusPending
}
