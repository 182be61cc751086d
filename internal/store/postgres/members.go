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

// MemberStore implements store.MemberStore using PostgreSQL.
type MemberStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *MemberStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const memberColumns = `id, first_name, last_name, birth_date, interests, skills,
	avatar_url, is_active, created_at, updated_at`

// Create inserts a new member.
func (s *MemberStore) Create(ctx context.Context, m *models.Member) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	now := time.Now()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
	m.IsActive = true

	query := `
		INSERT INTO members (id, first_name, last_name, birth_date, interests, skills,
			avatar_url, is_active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := s.conn().ExecContext(ctx, query,
		m.ID, m.FirstName, m.LastName, m.BirthDate,
		pq.Array(m.Interests), pq.Array(m.Skills),
		m.AvatarURL, m.IsActive, m.CreatedAt, m.UpdatedAt,
	)
	return err
}

func scanMember(row interface{ Scan(...any) error }) (*models.Member, error) {
	var m models.Member
	var birthDate sql.NullTime

	err := row.Scan(
		&m.ID, &m.FirstName, &m.LastName, &birthDate,
		pq.Array(&m.Interests), pq.Array(&m.Skills),
		&m.AvatarURL, &m.IsActive, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if birthDate.Valid {
		m.BirthDate = &birthDate.Time
	}
	return &m, nil
}

// Get retrieves a member by ID.
func (s *MemberStore) Get(ctx context.Context, id string) (*models.Member, error) {
	query := `SELECT ` + memberColumns + ` FROM members WHERE id = $1`

	m, err := scanMember(s.conn().QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return m, err
}

// ListByIDs retrieves members for the given IDs, skipping misses.
func (s *MemberStore) ListByIDs(ctx context.Context, ids []string) ([]*models.Member, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + memberColumns + ` FROM members WHERE id = ANY($1)`
	rows, err := s.conn().QueryContext(ctx, query, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []*models.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// Update replaces the mutable fields of a member.
func (s *MemberStore) Update(ctx context.Context, m *models.Member) error {
	query := `
		UPDATE members
		SET first_name = $1, last_name = $2, birth_date = $3, interests = $4,
			skills = $5, avatar_url = $6, is_active = $7, updated_at = now()
		WHERE id = $8
	`

	res, err := s.conn().ExecContext(ctx, query,
		m.FirstName, m.LastName, m.BirthDate,
		pq.Array(m.Interests), pq.Array(m.Skills),
		m.AvatarURL, m.IsActive, m.ID,
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// Deactivate soft-deletes a member.
func (s *MemberStore) Deactivate(ctx context.Context, id string) error {
	query := `UPDATE members SET is_active = FALSE, updated_at = now() WHERE id = $1`
	res, err := s.conn().ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}
