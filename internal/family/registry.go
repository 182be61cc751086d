// Package family implements the relationship-derivation engine: the
// relationship-type catalog, the composition calculator, compatibility
// validation, and the invitation workflow that materializes derived edges.
package family

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kinship-labs/kinship/internal/models"
	"github.com/kinship-labs/kinship/internal/store"
	"gopkg.in/yaml.v3"
)

// Registry provides access to the relationship-type catalog and owns seeding.
type Registry struct {
	store  store.Store
	logger *slog.Logger
}

// NewRegistry creates a new relationship-type registry.
func NewRegistry(st store.Store, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{store: st, logger: logger}
}

// Get retrieves an active relationship type by name.
func (r *Registry) Get(ctx context.Context, name string) (*models.RelationshipType, error) {
	return r.store.RelationshipTypes().GetByName(ctx, name)
}

// List retrieves relationship types ordered for display.
func (r *Registry) List(ctx context.Context, activeOnly bool) ([]*models.RelationshipType, error) {
	return r.store.RelationshipTypes().List(ctx, activeOnly)
}

// ListReciprocal retrieves active reciprocal types (spouse, sibling).
func (r *Registry) ListReciprocal(ctx context.Context) ([]*models.RelationshipType, error) {
	return r.store.RelationshipTypes().ListReciprocal(ctx)
}

// ListByGeneration retrieves active types at the given generational distance.
func (r *Registry) ListByGeneration(ctx context.Context, offset int) ([]*models.RelationshipType, error) {
	return r.store.RelationshipTypes().ListByGeneration(ctx, offset)
}

// Rules returns the calculation rules for a relationship type. A missing or
// inactive type yields an empty map, not an error; only infrastructure
// failures propagate.
func (r *Registry) Rules(ctx context.Context, name string) (map[string]string, error) {
	rt, err := r.Get(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, err
	}
	if rt.CalculationRules == nil {
		return map[string]string{}, nil
	}
	return rt.CalculationRules, nil
}

// FindOpposite resolves the inverse of a relationship via the "opposite"
// rule. Any miss along the way (unknown type, no rule, unknown target) yields
// nil, not an error: callers must treat a missing opposite as unknown.
func (r *Registry) FindOpposite(ctx context.Context, name string) (*models.RelationshipType, error) {
	rt, err := r.Get(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	oppositeName := rt.Rule(models.RuleOpposite)
	if oppositeName == "" {
		return nil, nil
	}

	opposite, err := r.Get(ctx, oppositeName)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return opposite, nil
}

// CreateType adds a new relationship type to the catalog.
func (r *Registry) CreateType(ctx context.Context, rt *models.RelationshipType) error {
	if err := rt.Validate(); err != nil {
		return err
	}
	rt.IsActive = true
	return r.store.RelationshipTypes().Create(ctx, rt)
}

// UpdateRules replaces the calculation rules of a type, letting admins edit
// the composition algebra without a redeploy.
func (r *Registry) UpdateRules(ctx context.Context, name string, rules map[string]string) error {
	return r.store.RelationshipTypes().UpdateRules(ctx, name, rules)
}

// Deactivate retires a relationship type. Types referenced by edges are
// never hard-deleted.
func (r *Registry) Deactivate(ctx context.Context, name string) error {
	return r.store.RelationshipTypes().Deactivate(ctx, name)
}

// seedOverride is the YAML shape for seed-time adjustments to the canonical
// type set.
type seedOverride struct {
	Name             string            `yaml:"name"`
	DisplayName      string            `yaml:"display_name"`
	Description      string            `yaml:"description"`
	CalculationRules map[string]string `yaml:"calculation_rules"`
	IsReciprocal     *bool             `yaml:"is_reciprocal"`
	GenerationOffset *int              `yaml:"generation_offset"`
	SortOrder        *int              `yaml:"sort_order"`
}

// Seed idempotently inserts the canonical relationship types, skipping any
// whose normalized name already exists. When overridePath is non-empty, a
// YAML file of per-type overrides is merged over the built-in defaults
// first; overrides naming unknown types are appended as new types. Returns
// the types actually created.
func (r *Registry) Seed(ctx context.Context, overridePath string) ([]*models.RelationshipType, error) {
	defaults := models.DefaultRelationshipTypes()

	if overridePath != "" {
		merged, err := applySeedOverrides(defaults, overridePath)
		if err != nil {
			return nil, fmt.Errorf("loading seed overrides: %w", err)
		}
		defaults = merged
	}

	var created []*models.RelationshipType
	for _, rt := range defaults {
		_, err := r.Get(ctx, rt.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, store.ErrNotFound) {
			return nil, err
		}

		rt.IsActive = true
		if err := rt.Validate(); err != nil {
			return nil, fmt.Errorf("seeding %q: %w", rt.Name, err)
		}
		if err := r.store.RelationshipTypes().Create(ctx, rt); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// Lost a race to a concurrent seeder; already present.
				continue
			}
			return nil, fmt.Errorf("seeding %q: %w", rt.Name, err)
		}
		created = append(created, rt)
	}

	r.logger.Info("seeded relationship types", "created", len(created))
	return created, nil
}

func applySeedOverrides(defaults []*models.RelationshipType, path string) ([]*models.RelationshipType, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var overrides []seedOverride
	if err := yaml.Unmarshal(raw, &overrides); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	byName := make(map[string]*models.RelationshipType, len(defaults))
	for _, rt := range defaults {
		byName[rt.Name] = rt
	}

	for _, o := range overrides {
		name := models.NormalizeRelationName(o.Name)
		rt, ok := byName[name]
		if !ok {
			rt = &models.RelationshipType{Name: name}
			byName[name] = rt
			defaults = append(defaults, rt)
		}
		if o.DisplayName != "" {
			rt.DisplayName = o.DisplayName
		}
		if o.Description != "" {
			rt.Description = o.Description
		}
		if o.CalculationRules != nil {
			rt.CalculationRules = o.CalculationRules
		}
		if o.IsReciprocal != nil {
			rt.IsReciprocal = *o.IsReciprocal
		}
		if o.GenerationOffset != nil {
			rt.GenerationOffset = *o.GenerationOffset
		}
		if o.SortOrder != nil {
			rt.SortOrder = *o.SortOrder
		}
	}
	return defaults, nil
}
