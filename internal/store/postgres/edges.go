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

// EdgeStore implements store.EdgeStore using PostgreSQL.
type EdgeStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *EdgeStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const edgeColumns = `id, user_id, member_id, relation, is_shareable, is_manager,
	is_primary, is_active, is_visible, created_by_user_id, invitation_id, notes,
	created_at, updated_at`

// Create inserts a new edge. A partial unique index on active (user, member)
// pairs is the final backstop against concurrent duplicates; a violation is
// surfaced as store.ErrDuplicate.
func (s *EdgeStore) Create(ctx context.Context, e *models.Edge) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.CreatedByUserID == "" {
		e.CreatedByUserID = e.UserID
	}
	now := time.Now()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now

	query := `
		INSERT INTO user_member_edges (id, user_id, member_id, relation, is_shareable,
			is_manager, is_primary, is_active, is_visible, created_by_user_id,
			invitation_id, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err := s.conn().ExecContext(ctx, query,
		e.ID, e.UserID, e.MemberID, e.Relation, e.IsShareable,
		e.IsManager, e.IsPrimary, e.IsActive, e.IsVisible, e.CreatedByUserID,
		nullString(e.InvitationID), e.Notes, e.CreatedAt, e.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func scanEdge(row interface{ Scan(...any) error }) (*models.Edge, error) {
	var e models.Edge
	var invitationID sql.NullString

	err := row.Scan(
		&e.ID, &e.UserID, &e.MemberID, &e.Relation, &e.IsShareable,
		&e.IsManager, &e.IsPrimary, &e.IsActive, &e.IsVisible,
		&e.CreatedByUserID, &invitationID, &e.Notes,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if invitationID.Valid {
		e.InvitationID = invitationID.String
	}
	return &e, nil
}

// Get retrieves an edge by ID.
func (s *EdgeStore) Get(ctx context.Context, id string) (*models.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM user_member_edges WHERE id = $1`

	e, err := scanEdge(s.conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return e, err
}

// GetActiveByPair retrieves the active edge for a (user, member) pair, or nil
// when none exists.
func (s *EdgeStore) GetActiveByPair(ctx context.Context, userID, memberID string) (*models.Edge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM user_member_edges
		WHERE user_id = $1 AND member_id = $2 AND is_active
	`

	e, err := scanEdge(s.conn().QueryRowContext(ctx, query, userID, memberID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// ListByUser retrieves a user's edges matching the filter, newest first.
func (s *EdgeStore) ListByUser(ctx context.Context, userID string, f store.EdgeFilter) ([]*models.Edge, error) {
	query := `SELECT ` + edgeColumns + ` FROM user_member_edges WHERE user_id = $1`
	args := []any{userID}

	if f.ActiveOnly {
		query += ` AND is_active`
	}
	if f.VisibleOnly {
		query += ` AND is_visible`
	}
	if f.ShareableOnly {
		query += ` AND is_shareable`
	}
	if f.ManagerOnly {
		query += ` AND is_manager`
	}
	if len(f.MemberIDs) > 0 {
		args = append(args, pq.Array(f.MemberIDs))
		query += ` AND member_id = ANY($2)`
	}
	query += ` ORDER BY created_at DESC`

	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []*models.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// ListByMember retrieves all active edges pointing at a member.
func (s *EdgeStore) ListByMember(ctx context.Context, memberID string) ([]*models.Edge, error) {
	query := `
		SELECT ` + edgeColumns + `
		FROM user_member_edges
		WHERE member_id = $1 AND is_active
		ORDER BY created_at DESC
	`

	rows, err := s.conn().QueryContext(ctx, query, memberID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []*models.Edge
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return edges, rows.Err()
}

// Update replaces the mutable fields of an edge.
func (s *EdgeStore) Update(ctx context.Context, e *models.Edge) error {
	query := `
		UPDATE user_member_edges
		SET relation = $1, is_shareable = $2, is_manager = $3, is_primary = $4,
			is_active = $5, is_visible = $6, notes = $7, updated_at = now()
		WHERE id = $8
	`

	res, err := s.conn().ExecContext(ctx, query,
		e.Relation, e.IsShareable, e.IsManager, e.IsPrimary,
		e.IsActive, e.IsVisible, e.Notes, e.ID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// Deactivate soft-deletes an edge.
func (s *EdgeStore) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE user_member_edges SET is_active = FALSE, updated_at = now() WHERE id = $1`
	res, err := s.conn().ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// SetVisibility hides or reveals an edge without deactivating it.
func (s *EdgeStore) SetVisibility(ctx context.Context, id string, visible bool) error {
	query := `UPDATE user_member_edges SET is_visible = $1, updated_at = now() WHERE id = $2`
	res, err := s.conn().ExecContext(ctx, query, visible, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// Delete hard-deletes an edge. Maintenance use only.
func (s *EdgeStore) Delete(ctx context.Context, id string) error {
	query := `DELETE FROM user_member_edges WHERE id = $1`
	res, err := s.conn().ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// DeleteInactiveBefore hard-deletes edges deactivated before the cutoff.
func (s *EdgeStore) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	query := `DELETE FROM user_member_edges WHERE NOT is_active AND updated_at < $1`
	res, err := s.conn().ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
