package family

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/internal/store"
)

// Domain errors surfaced by the invitation workflow. The API layer maps
// these to user-facing responses; none of them indicate infrastructure
// failure.
var (
	ErrInvitationNotFound  = errors.New("invitation not found")
	ErrInvalidState        = errors.New("invitation is not in a state that allows this action")
	ErrEmailMismatch       = errors.New("invitation email does not match user email")
	ErrNotInviter          = errors.New("only the inviter may cancel an invitation")
	ErrSelfInvitation      = errors.New("cannot invite yourself")
	ErrDuplicateInvitation = errors.New("a pending invitation already exists for this email")
	ErrAlreadyConnected    = errors.New("users are already connected")
	ErrShareScope          = errors.New("exactly one of share_all_members or member_ids must be provided")
	ErrExpiryOutOfRange    = errors.New("expires_in_days must be between 1 and 30")
	ErrUnknownRelationship = errors.New("unknown relationship type")
)

// InvitationMailer delivers invitation notifications. Implementations must
// be safe for concurrent use; failures are logged, never fatal.
type InvitationMailer interface {
	SendInvitation(ctx context.Context, inv *models.Invitation, inviterName string) error
}

// InvitationService owns the invitation lifecycle and orchestrates the
// derivation of edges on acceptance.
type InvitationService struct {
	store     store.Store
	registry  *Registry
	validator *Validator
	mailer    InvitationMailer
	logger    *slog.Logger
}

// NewInvitationService creates the invitation workflow service. mailer may
// be nil, in which case no notifications are sent.
func NewInvitationService(st store.Store, registry *Registry, mailer InvitationMailer, logger *slog.Logger) *InvitationService {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvitationService{
		store:     st,
		registry:  registry,
		validator: NewValidator(st, logger),
		mailer:    mailer,
		logger:    logger,
	}
}

// Validator exposes the service's validator for pre-flight checks.
func (s *InvitationService) Validator() *Validator {
	return s.validator
}

// CreateInvitationInput carries the parameters for a new invitation.
type CreateInvitationInput struct {
	InviteeEmail         string
	Message              string
	IntendedRelationship string
	RelationshipContext  string
	ShareAllMembers      bool
	MemberIDs            []string
	ExpiresInDays        int
}

// Create issues a new invitation. The sharing scope must be exactly one of
// "all shareable members" or an explicit allowlist.
func (s *InvitationService) Create(ctx context.Context, inviterID string, in CreateInvitationInput) (*models.Invitation, error) {
	if in.ShareAllMembers && len(in.MemberIDs) > 0 {
		return nil, ErrShareScope
	}
	if !in.ShareAllMembers && len(in.MemberIDs) == 0 {
		return nil, ErrShareScope
	}

	days := in.ExpiresInDays
	if days == 0 {
		days = models.DefaultExpiryDays
	}
	if days < models.MinExpiryDays || days > models.MaxExpiryDays {
		return nil, ErrExpiryOutOfRange
	}

	if in.IntendedRelationship != "" {
		if _, err := s.registry.Get(ctx, in.IntendedRelationship); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, ErrUnknownRelationship
			}
			return nil, err
		}
	}

	inviter, err := s.store.Users().GetByID(ctx, inviterID)
	if err != nil {
		return nil, fmt.Errorf("resolving inviter: %w", err)
	}

	if err := s.validator.ValidateInvitationEmail(ctx, inviter, in.InviteeEmail); err != nil {
		return nil, err
	}

	// A lapsed pending invitation is functionally expired even before the
	// background sweep marks it so; clear it out of the way of the
	// pending-uniqueness backstop.
	if _, err := s.store.Invitations().ExpireStaleFor(ctx, inviter.ID, in.InviteeEmail, time.Now()); err != nil {
		return nil, fmt.Errorf("expiring stale invitation: %w", err)
	}

	token, err := newInvitationToken()
	if err != nil {
		return nil, err
	}

	inv := &models.Invitation{
		InviterUserID:        inviter.ID,
		InviteeEmail:         models.NormalizeEmail(in.InviteeEmail),
		Token:                token,
		Message:              in.Message,
		Status:               models.InvitationStatusPending,
		IntendedRelationship: models.NormalizeRelationName(in.IntendedRelationship),
		RelationshipContext:  in.RelationshipContext,
		ShareAllMembers:      in.ShareAllMembers,
		MemberIDs:            in.MemberIDs,
		ExpiresAt:            time.Now().AddDate(0, 0, days),
	}

	if err := s.store.Invitations().Create(ctx, inv); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost the race to a concurrent create for the same pair; the
			// storage-level partial unique index is the final backstop.
			return nil, ErrDuplicateInvitation
		}
		return nil, err
	}

	s.logger.Info("created invitation",
		"invitation_id", inv.ID,
		"inviter_id", inviter.ID,
		"intended_relationship", inv.IntendedRelationship,
	)

	if s.mailer != nil {
		if err := s.mailer.SendInvitation(ctx, inv, inviter.DisplayName()); err != nil {
			s.logger.Error("failed to send invitation email",
				"invitation_id", inv.ID, "error", err)
		}
	}

	return inv, nil
}

// newInvitationToken returns an opaque token with 256 bits of randomness.
// The token is the only way to address an invitation for accept, decline,
// and preview; the numeric ID is never exposed to avoid enumeration.
func newInvitationToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating invitation token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// Accept transitions the invitation to accepted and materializes derived
// edges for the invitee, all within a single transaction. A zero-length
// edge list is a valid outcome. Retrying an already-accepted invitation
// fails with ErrInvalidState, which callers should treat as prior success.
func (s *InvitationService) Accept(ctx context.Context, token, inviteeUserID string) (*models.Invitation, []*models.Edge, error) {
	inv, err := s.store.Invitations().GetByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if !inv.IsLiveAt(now) {
		return nil, nil, ErrInvalidState
	}

	invitee, err := s.store.Users().GetByID(ctx, inviteeUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving invitee: %w", err)
	}
	if models.NormalizeEmail(invitee.Email) != inv.InviteeEmail {
		return nil, nil, ErrEmailMismatch
	}

	inv.Status = models.InvitationStatusAccepted
	inv.InviteeUserID = invitee.ID
	inv.RespondedAt = &now

	var created []*models.Edge
	err = s.store.WithTx(ctx, func(tx store.Store) error {
		if err := tx.Invitations().Update(ctx, inv); err != nil {
			return fmt.Errorf("updating invitation: %w", err)
		}
		edges, err := s.deriveEdges(ctx, tx, inv)
		if err != nil {
			return err
		}
		created = edges
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.Info("accepted invitation",
		"invitation_id", inv.ID,
		"invitee_id", invitee.ID,
		"edges_created", len(created),
	)
	return inv, created, nil
}

// deriveEdges computes and inserts the invitee's derived edges. Individual
// members that cannot be derived or already have an edge are logged and
// skipped; only infrastructure errors abort the transaction.
func (s *InvitationService) deriveEdges(ctx context.Context, tx store.Store, inv *models.Invitation) ([]*models.Edge, error) {
	candidates, err := s.candidateEdges(ctx, tx, inv)
	if err != nil {
		return nil, err
	}

	intended := inv.IntendedRelationship
	if intended == "" {
		intended = models.DefaultIntendedRelationship
	}

	calc := NewCalculator(s.registry)
	var created []*models.Edge

	for _, cand := range candidates {
		derived, err := calc.Derive(ctx, cand.Relation, intended)
		if err != nil {
			return nil, err
		}
		if derived == "" {
			s.logger.Info("skipping uncalculable relationship",
				"invitation_id", inv.ID,
				"member_id", cand.MemberID,
				"relation", cand.Relation,
				"intended", intended,
			)
			continue
		}

		existing, err := tx.Edges().GetActiveByPair(ctx, inv.InviteeUserID, cand.MemberID)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.logger.Info("skipping existing relationship",
				"invitation_id", inv.ID,
				"member_id", cand.MemberID,
			)
			continue
		}

		edge := models.DerivedEdge(inv.InviteeUserID, cand.MemberID, derived, inv)
		if err := tx.Edges().Create(ctx, edge); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// A concurrent insert won; treat as already existing.
				s.logger.Info("skipping concurrently created relationship",
					"invitation_id", inv.ID,
					"member_id", cand.MemberID,
				)
				continue
			}
			return nil, fmt.Errorf("creating derived edge: %w", err)
		}
		created = append(created, edge)
	}

	return created, nil
}

// candidateEdges returns the inviter's edges eligible for sharing. Sharing
// always requires active, shareable, manager edges; a non-manager cannot
// expose a member through this path.
func (s *InvitationService) candidateEdges(ctx context.Context, st store.Store, inv *models.Invitation) ([]*models.Edge, error) {
	filter := store.EdgeFilter{
		ActiveOnly:    true,
		ShareableOnly: true,
		ManagerOnly:   true,
	}
	if !inv.ShareAllMembers {
		// An explicit-scope invitation with no allowlist shares nothing. An
		// empty MemberIDs filter would mean "no restriction".
		if len(inv.MemberIDs) == 0 {
			return nil, nil
		}
		filter.MemberIDs = inv.MemberIDs
	}
	return st.Edges().ListByUser(ctx, inv.InviterUserID, filter)
}

// Decline marks a live invitation as declined, optionally recording a reason.
func (s *InvitationService) Decline(ctx context.Context, token, reason string) (*models.Invitation, error) {
	inv, err := s.store.Invitations().GetByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}

	now := time.Now()
	if !inv.IsLiveAt(now) {
		return nil, ErrInvalidState
	}

	inv.Status = models.InvitationStatusDeclined
	inv.RespondedAt = &now
	if reason != "" {
		inv.RelationshipContext = "Declined: " + reason
	}

	if err := s.store.Invitations().Update(ctx, inv); err != nil {
		return nil, err
	}

	s.logger.Info("declined invitation", "invitation_id", inv.ID)
	return inv, nil
}

// Cancel withdraws a pending invitation. Restricted to the inviter.
func (s *InvitationService) Cancel(ctx context.Context, id, requestingUserID string) error {
	inv, err := s.store.Invitations().Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return ErrInvitationNotFound
	}
	if err != nil {
		return err
	}

	if inv.InviterUserID != requestingUserID {
		return ErrNotInviter
	}
	if inv.Status != models.InvitationStatusPending {
		return ErrInvalidState
	}

	inv.Status = models.InvitationStatusCancelled
	if err := s.store.Invitations().Update(ctx, inv); err != nil {
		return err
	}

	s.logger.Info("cancelled invitation", "invitation_id", inv.ID)
	return nil
}

// ExpireOld bulk-transitions overdue pending invitations to expired and
// returns the number affected. Idempotent.
func (s *InvitationService) ExpireOld(ctx context.Context) (int, error) {
	n, err := s.store.Invitations().ExpirePending(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		s.logger.Info("expired invitations", "count", n)
	}
	return n, nil
}

// InvitationPreview describes what accepting an invitation would create.
type InvitationPreview struct {
	InvitationID         string           `json:"invitation_id"`
	InviterName          string           `json:"inviter_name"`
	IntendedRelationship string           `json:"intended_relationship,omitempty"`
	Message              string           `json:"message,omitempty"`
	RelationshipContext  string           `json:"relationship_context,omitempty"`
	ExpiresAt            time.Time        `json:"expires_at"`
	Members              []*PreviewMember `json:"members"`
}

// PreviewMember pairs a shared member with its current and derived relations.
// DerivedRelation is empty when the composition is unresolvable, meaning no
// edge would be created for that member.
type PreviewMember struct {
	MemberID        string `json:"member_id"`
	Name            string `json:"name"`
	Age             int    `json:"age,omitempty"`
	AvatarURL       string `json:"avatar_url,omitempty"`
	CurrentRelation string `json:"current_relation"`
	DerivedRelation string `json:"derived_relation,omitempty"`
}

// Preview re-runs the candidate-member and derivation computation without
// writing, letting the invitee inspect the outcome before accepting. The
// token is the only credential required.
func (s *InvitationService) Preview(ctx context.Context, token string) (*InvitationPreview, error) {
	inv, err := s.store.Invitations().GetByToken(ctx, token)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, err
	}
	if !inv.IsLive() {
		return nil, ErrInvalidState
	}

	inviter, err := s.store.Users().GetByID(ctx, inv.InviterUserID)
	if err != nil {
		return nil, fmt.Errorf("resolving inviter: %w", err)
	}

	candidates, err := s.candidateEdges(ctx, s.store, inv)
	if err != nil {
		return nil, err
	}

	memberIDs := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		memberIDs = append(memberIDs, cand.MemberID)
	}
	members, err := s.store.Members().ListByIDs(ctx, memberIDs)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*models.Member, len(members))
	for _, m := range members {
		byID[m.ID] = m
	}

	intended := inv.IntendedRelationship
	if intended == "" {
		intended = models.DefaultIntendedRelationship
	}

	calc := NewCalculator(s.registry)
	preview := &InvitationPreview{
		InvitationID:         inv.ID,
		InviterName:          inviter.DisplayName(),
		IntendedRelationship: inv.IntendedRelationship,
		Message:              inv.Message,
		RelationshipContext:  inv.RelationshipContext,
		ExpiresAt:            inv.ExpiresAt,
	}

	now := time.Now()
	for _, cand := range candidates {
		m, ok := byID[cand.MemberID]
		if !ok {
			continue
		}
		derived, err := calc.Derive(ctx, cand.Relation, intended)
		if err != nil {
			return nil, err
		}
		preview.Members = append(preview.Members, &PreviewMember{
			MemberID:        m.ID,
			Name:            m.FullName(),
			Age:             m.Age(now),
			AvatarURL:       m.AvatarURL,
			CurrentRelation: cand.Relation,
			DerivedRelation: derived,
		})
	}

	return preview, nil
}

// ListSent returns invitations sent by a user, newest first.
func (s *InvitationService) ListSent(ctx context.Context, inviterID string) ([]*models.Invitation, error) {
	return s.store.Invitations().ListSent(ctx, inviterID)
}

// ListReceived returns invitations addressed to a user's email, newest first.
func (s *InvitationService) ListReceived(ctx context.Context, email string) ([]*models.Invitation, error) {
	return s.store.Invitations().ListReceived(ctx, email)
}

// Stats aggregates a user's sent and received invitation counts.
type Stats struct {
	Sent     *store.InvitationCounts `json:"sent"`
	Received *store.InvitationCounts `json:"received"`
}

// StatsFor returns invitation statistics for a user.
func (s *InvitationService) StatsFor(ctx context.Context, userID string) (*Stats, error) {
	sent, received, err := s.store.Invitations().CountsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Stats{Sent: sent, Received: received}, nil
}
