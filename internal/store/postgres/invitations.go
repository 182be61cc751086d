package postgres

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/internal/store"
	"github.com/lib/pq"
)

// InvitationStore implements store.InvitationStore using PostgreSQL.
type InvitationStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *InvitationStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const invitationColumns = `id, inviter_user_id, invitee_email, invitee_user_id, token,
	message, status, intended_relationship, relationship_context, share_all_members,
	member_ids, expires_at, responded_at, created_at, updated_at`

// Create inserts a new invitation. The partial unique index on pending
// (inviter, email) pairs backstops the duplicate check; a violation is
// surfaced as store.ErrDuplicate.
func (s *InvitationStore) Create(ctx context.Context, inv *models.Invitation) error {
	if inv.ID == "" {
		inv.ID = uuid.New().String()
	}
	if inv.Status == "" {
		inv.Status = models.InvitationStatusPending
	}
	inv.InviteeEmail = models.NormalizeEmail(inv.InviteeEmail)
	now := time.Now()
	if inv.CreatedAt.IsZero() {
		inv.CreatedAt = now
	}
	inv.UpdatedAt = now

	query := `
		INSERT INTO invitations (id, inviter_user_id, invitee_email, invitee_user_id,
			token, message, status, intended_relationship, relationship_context,
			share_all_members, member_ids, expires_at, responded_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := s.conn().ExecContext(ctx, query,
		inv.ID, inv.InviterUserID, inv.InviteeEmail, nullString(inv.InviteeUserID),
		inv.Token, inv.Message, string(inv.Status), inv.IntendedRelationship,
		inv.RelationshipContext, inv.ShareAllMembers, pq.Array(inv.MemberIDs),
		inv.ExpiresAt, inv.RespondedAt, inv.CreatedAt, inv.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func scanInvitation(row interface{ Scan(...any) error }) (*models.Invitation, error) {
	var inv models.Invitation
	var status string
	var inviteeUserID sql.NullString
	var respondedAt sql.NullTime

	err := row.Scan(
		&inv.ID, &inv.InviterUserID, &inv.InviteeEmail, &inviteeUserID, &inv.Token,
		&inv.Message, &status, &inv.IntendedRelationship, &inv.RelationshipContext,
		&inv.ShareAllMembers, pq.Array(&inv.MemberIDs),
		&inv.ExpiresAt, &respondedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	inv.Status = models.InvitationStatus(status)
	if inviteeUserID.Valid {
		inv.InviteeUserID = inviteeUserID.String
	}
	if respondedAt.Valid {
		inv.RespondedAt = &respondedAt.Time
	}
	return &inv, nil
}

// Get retrieves an invitation by ID.
func (s *InvitationStore) Get(ctx context.Context, id string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE id = $1`

	inv, err := scanInvitation(s.conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return inv, err
}

// GetByToken retrieves an invitation by its token.
func (s *InvitationStore) GetByToken(ctx context.Context, token string) (*models.Invitation, error) {
	query := `SELECT ` + invitationColumns + ` FROM invitations WHERE token = $1`

	inv, err := scanInvitation(s.conn().QueryRowContext(ctx, query, token))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return inv, err
}

// GetLivePending retrieves the unexpired pending invitation for the pair, or
// nil when none exists.
func (s *InvitationStore) GetLivePending(ctx context.Context, inviterID, email string) (*models.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations
		WHERE inviter_user_id = $1 AND invitee_email = $2
			AND status = 'pending' AND expires_at > now()
		ORDER BY created_at DESC LIMIT 1
	`

	inv, err := scanInvitation(s.conn().QueryRowContext(ctx, query, inviterID, models.NormalizeEmail(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

// HasAcceptedBetween reports whether an accepted invitation links the two
// users in either direction.
func (s *InvitationStore) HasAcceptedBetween(ctx context.Context, userA, userB string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM invitations
			WHERE status = 'accepted'
				AND ((inviter_user_id = $1 AND invitee_user_id = $2)
					OR (inviter_user_id = $2 AND invitee_user_id = $1))
		)
	`

	var connected bool
	err := s.conn().QueryRowContext(ctx, query, userA, userB).Scan(&connected)
	return connected, err
}

func (s *InvitationStore) list(ctx context.Context, query string, args ...any) ([]*models.Invitation, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var invitations []*models.Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		invitations = append(invitations, inv)
	}
	return invitations, rows.Err()
}

// ListSent retrieves invitations sent by a user, newest first.
func (s *InvitationStore) ListSent(ctx context.Context, inviterID string) ([]*models.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations WHERE inviter_user_id = $1
		ORDER BY created_at DESC
	`
	return s.list(ctx, query, inviterID)
}

// ListReceived retrieves invitations addressed to an email, newest first.
func (s *InvitationStore) ListReceived(ctx context.Context, email string) ([]*models.Invitation, error) {
	query := `
		SELECT ` + invitationColumns + `
		FROM invitations WHERE invitee_email = $1
		ORDER BY created_at DESC
	`
	return s.list(ctx, query, models.NormalizeEmail(email))
}

// Update replaces the mutable fields of an invitation.
func (s *InvitationStore) Update(ctx context.Context, inv *models.Invitation) error {
	query := `
		UPDATE invitations
		SET invitee_user_id = $1, status = $2, relationship_context = $3,
			responded_at = $4, updated_at = now()
		WHERE id = $5
	`

	res, err := s.conn().ExecContext(ctx, query,
		nullString(inv.InviteeUserID), string(inv.Status),
		inv.RelationshipContext, inv.RespondedAt, inv.ID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// ExpirePending transitions pending invitations past their deadline to
// expired. Idempotent, safe to run repeatedly.
func (s *InvitationStore) ExpirePending(ctx context.Context, now time.Time) (int, error) {
	query := `
		UPDATE invitations
		SET status = 'expired', updated_at = now()
		WHERE status = 'pending' AND expires_at <= $1
	`

	res, err := s.conn().ExecContext(ctx, query, now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// ExpireStaleFor transitions lapsed pending invitations for the (inviter,
// email) pair to expired. Run before inserting a replacement so a stale row
// does not trip the pending-uniqueness index.
func (s *InvitationStore) ExpireStaleFor(ctx context.Context, inviterID, email string, now time.Time) (int, error) {
	query := `
		UPDATE invitations
		SET status = 'expired', updated_at = now()
		WHERE inviter_user_id = $1 AND invitee_email = $2
		  AND status = 'pending' AND expires_at <= $3
	`

	res, err := s.conn().ExecContext(ctx, query, inviterID, models.NormalizeEmail(email), now)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// CountsByUser aggregates sent and received totals for a user.
func (s *InvitationStore) CountsByUser(ctx context.Context, userID string) (*store.InvitationCounts, *store.InvitationCounts, error) {
	sent := &store.InvitationCounts{}
	received := &store.InvitationCounts{}

	query := `
		SELECT status, COUNT(*) FROM invitations
		WHERE inviter_user_id = $1 GROUP BY status
	`
	if err := s.countInto(ctx, sent, query, userID); err != nil {
		return nil, nil, err
	}

	query = `
		SELECT status, COUNT(*) FROM invitations
		WHERE invitee_user_id = $1 GROUP BY status
	`
	if err := s.countInto(ctx, received, query, userID); err != nil {
		return nil, nil, err
	}

	return sent, received, nil
}

func (s *InvitationStore) countInto(ctx context.Context, counts *store.InvitationCounts, query string, args ...any) error {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return err
		}
		counts.Total += n
		switch models.InvitationStatus(status) {
		case models.InvitationStatusPending:
			counts.Pending = n
		case models.InvitationStatusAccepted:
			counts.Accepted = n
		case models.InvitationStatusDeclined:
			counts.Declined = n
		case models.InvitationStatusExpired:
			counts.Expired = n
		}
	}
	return rows.Err()
}
