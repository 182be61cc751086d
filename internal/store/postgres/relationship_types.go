package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/internal/store"
)

// RelationshipTypeStore implements store.RelationshipTypeStore using PostgreSQL.
type RelationshipTypeStore struct {
	db     *sql.DB
	tx     *sql.Tx
	logger *slog.Logger
}

func (s *RelationshipTypeStore) conn() queryable {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

const relationshipTypeColumns = `id, name, display_name, description, calculation_rules,
	is_reciprocal, generation_offset, is_active, sort_order, created_at, updated_at`

// Create inserts a new relationship type.
func (s *RelationshipTypeStore) Create(ctx context.Context, rt *models.RelationshipType) error {
	if rt.ID == "" {
		rt.ID = uuid.New().String()
	}
	rt.Name = models.NormalizeRelationName(rt.Name)
	now := time.Now()
	if rt.CreatedAt.IsZero() {
		rt.CreatedAt = now
	}
	rt.UpdatedAt = now

	rules, err := json.Marshal(rt.CalculationRules)
	if err != nil {
		return fmt.Errorf("encoding calculation rules: %w", err)
	}

	query := `
		INSERT INTO relationship_types (id, name, display_name, description, calculation_rules,
			is_reciprocal, generation_offset, is_active, sort_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = s.conn().ExecContext(ctx, query,
		rt.ID, rt.Name, rt.DisplayName, rt.Description, rules,
		rt.IsReciprocal, rt.GenerationOffset, rt.IsActive, rt.SortOrder,
		rt.CreatedAt, rt.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

func scanRelationshipType(row interface{ Scan(...any) error }) (*models.RelationshipType, error) {
	var rt models.RelationshipType
	var rules []byte

	err := row.Scan(
		&rt.ID, &rt.Name, &rt.DisplayName, &rt.Description, &rules,
		&rt.IsReciprocal, &rt.GenerationOffset, &rt.IsActive, &rt.SortOrder,
		&rt.CreatedAt, &rt.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(rules) > 0 {
		if err := json.Unmarshal(rules, &rt.CalculationRules); err != nil {
			return nil, fmt.Errorf("decoding calculation rules: %w", err)
		}
	}
	return &rt, nil
}

// GetByName retrieves an active type by normalized name.
func (s *RelationshipTypeStore) GetByName(ctx context.Context, name string) (*models.RelationshipType, error) {
	query := `
		SELECT ` + relationshipTypeColumns + `
		FROM relationship_types WHERE name = $1 AND is_active
	`

	rt, err := scanRelationshipType(s.conn().QueryRowContext(ctx, query, models.NormalizeRelationName(name)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	return rt, err
}

func (s *RelationshipTypeStore) list(ctx context.Context, query string, args ...any) ([]*models.RelationshipType, error) {
	rows, err := s.conn().QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var types []*models.RelationshipType
	for rows.Next() {
		rt, err := scanRelationshipType(rows)
		if err != nil {
			return nil, err
		}
		types = append(types, rt)
	}
	return types, rows.Err()
}

// List retrieves types ordered by sort_order then display name.
func (s *RelationshipTypeStore) List(ctx context.Context, activeOnly bool) ([]*models.RelationshipType, error) {
	query := `SELECT ` + relationshipTypeColumns + ` FROM relationship_types`
	if activeOnly {
		query += ` WHERE is_active`
	}
	query += ` ORDER BY sort_order, display_name`
	return s.list(ctx, query)
}

// ListReciprocal retrieves active reciprocal types.
func (s *RelationshipTypeStore) ListReciprocal(ctx context.Context) ([]*models.RelationshipType, error) {
	query := `
		SELECT ` + relationshipTypeColumns + `
		FROM relationship_types WHERE is_active AND is_reciprocal
		ORDER BY sort_order
	`
	return s.list(ctx, query)
}

// ListByGeneration retrieves active types with the given offset.
func (s *RelationshipTypeStore) ListByGeneration(ctx context.Context, offset int) ([]*models.RelationshipType, error) {
	query := `
		SELECT ` + relationshipTypeColumns + `
		FROM relationship_types WHERE is_active AND generation_offset = $1
		ORDER BY sort_order
	`
	return s.list(ctx, query, offset)
}

// Update replaces the mutable fields of a type. The name itself is immutable
// once referenced by edges, so it is used only as the key.
func (s *RelationshipTypeStore) Update(ctx context.Context, rt *models.RelationshipType) error {
	rules, err := json.Marshal(rt.CalculationRules)
	if err != nil {
		return fmt.Errorf("encoding calculation rules: %w", err)
	}

	query := `
		UPDATE relationship_types
		SET display_name = $1, description = $2, calculation_rules = $3,
			is_reciprocal = $4, generation_offset = $5, is_active = $6,
			sort_order = $7, updated_at = now()
		WHERE name = $8
	`

	res, err := s.conn().ExecContext(ctx, query,
		rt.DisplayName, rt.Description, rules,
		rt.IsReciprocal, rt.GenerationOffset, rt.IsActive, rt.SortOrder,
		models.NormalizeRelationName(rt.Name),
	)
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// UpdateRules replaces just the calculation rules of a type.
func (s *RelationshipTypeStore) UpdateRules(ctx context.Context, name string, rules map[string]string) error {
	encoded, err := json.Marshal(rules)
	if err != nil {
		return fmt.Errorf("encoding calculation rules: %w", err)
	}

	query := `UPDATE relationship_types SET calculation_rules = $1, updated_at = now() WHERE name = $2`
	res, err := s.conn().ExecContext(ctx, query, encoded, models.NormalizeRelationName(name))
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

// Deactivate soft-deletes a type.
func (s *RelationshipTypeStore) Deactivate(ctx context.Context, name string) error {
	query := `UPDATE relationship_types SET is_active = FALSE, updated_at = now() WHERE name = $1`
	res, err := s.conn().ExecContext(ctx, query, models.NormalizeRelationName(name))
	if err != nil {
		return err
	}
	return requireRowAffected(res)
}

func requireRowAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}
