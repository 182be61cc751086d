// Package models provides data structures for the Kinship platform.
package models

import (
	"fmt"
	"strings"
	"time"
)

// Rule-map keys used by the relationship calculator.
const (
	// RuleOpposite maps a relationship to its inverse (parent -> child).
	RuleOpposite = "opposite"
	// ruleSuffix is appended to a relationship name to form a composition key.
	ruleSuffix = "_relation"
)

// Generation offset bounds. -1 is a parent, +1 a child, ±2 grandparent/grandchild.
const (
	MinGenerationOffset = -3
	MaxGenerationOffset = 3
)

// CompositionKey returns the rule-map key for composing with the given
// relationship, e.g. "spouse" -> "spouse_relation".
func CompositionKey(relation string) string {
	return relation + ruleSuffix
}

// RelationshipType describes a named kind of user-to-member relationship and
// carries the data-driven composition rules the calculator consults.
type RelationshipType struct {
	ID          string `json:"id"`
	Name        string `json:"name"` // unique lowercase slug, immutable once referenced
	DisplayName string `json:"display_name"`
	Description string `json:"description,omitempty"`

	// CalculationRules maps composition keys ("spouse_relation") and the
	// special "opposite" key to resulting relationship names.
	CalculationRules map[string]string `json:"calculation_rules,omitempty"`

	IsReciprocal     bool `json:"is_reciprocal"`
	GenerationOffset int  `json:"generation_offset"`

	IsActive  bool `json:"is_active"`
	SortOrder int  `json:"sort_order"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NormalizeRelationName canonicalizes a relationship name for lookups and
// uniqueness checks.
func NormalizeRelationName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Validate checks structural constraints on the type.
func (rt *RelationshipType) Validate() error {
	if NormalizeRelationName(rt.Name) == "" {
		return fmt.Errorf("relationship type name is required")
	}
	if rt.GenerationOffset < MinGenerationOffset || rt.GenerationOffset > MaxGenerationOffset {
		return fmt.Errorf("generation_offset %d out of range [%d, %d]",
			rt.GenerationOffset, MinGenerationOffset, MaxGenerationOffset)
	}
	return nil
}

// Rule looks up a calculation rule by key. Returns "" when absent.
func (rt *RelationshipType) Rule(key string) string {
	if rt.CalculationRules == nil {
		return ""
	}
	return rt.CalculationRules[key]
}

// DefaultRelationshipTypes returns the canonical set used to seed a fresh
// installation. Callers must not mutate the returned values.
func DefaultRelationshipTypes() []*RelationshipType {
	return []*RelationshipType{
		{
			Name:             "parent",
			DisplayName:      "Parent",
			Description:      "Biological or adoptive parent",
			GenerationOffset: -1,
			CalculationRules: map[string]string{
				"opposite":         "child",
				"spouse_relation":  "step_parent",
				"sibling_relation": "aunt_uncle",
				"parent_relation":  "grandparent",
			},
			SortOrder: 1,
		},
		{
			Name:             "child",
			DisplayName:      "Child",
			Description:      "Biological or adoptive child",
			GenerationOffset: 1,
			CalculationRules: map[string]string{
				"opposite":         "parent",
				"spouse_relation":  "step_child",
				"sibling_relation": "niece_nephew",
				"child_relation":   "grandchild",
			},
			SortOrder: 2,
		},
		{
			Name:             "spouse",
			DisplayName:      "Spouse",
			Description:      "Married partner",
			GenerationOffset: 0,
			IsReciprocal:     true,
			CalculationRules: map[string]string{
				"opposite":         "spouse",
				"parent_relation":  "parent_in_law",
				"child_relation":   "step_child",
				"sibling_relation": "sibling_in_law",
			},
			SortOrder: 3,
		},
		{
			Name:             "sibling",
			DisplayName:      "Sibling",
			Description:      "Brother or sister",
			GenerationOffset: 0,
			IsReciprocal:     true,
			CalculationRules: map[string]string{
				"opposite":         "sibling",
				"parent_relation":  "aunt_uncle",
				"child_relation":   "niece_nephew",
				"spouse_relation":  "sibling_in_law",
			},
			SortOrder: 4,
		},
		{
			Name:             "grandparent",
			DisplayName:      "Grandparent",
			Description:      "Parent's parent",
			GenerationOffset: -2,
			CalculationRules: map[string]string{
				"opposite":         "grandchild",
				"spouse_relation":  "step_grandparent",
				"sibling_relation": "great_aunt_uncle",
			},
			SortOrder: 5,
		},
		{
			Name:             "grandchild",
			DisplayName:      "Grandchild",
			Description:      "Child's child",
			GenerationOffset: 2,
			CalculationRules: map[string]string{
				"opposite":        "grandparent",
				"spouse_relation": "step_grandchild",
			},
			SortOrder: 6,
		},
		{
			Name:             "step_parent",
			DisplayName:      "Step Parent",
			Description:      "Parent by marriage",
			GenerationOffset: -1,
			CalculationRules: map[string]string{
				"opposite": "step_child",
			},
			SortOrder: 7,
		},
		{
			Name:             "step_child",
			DisplayName:      "Step Child",
			Description:      "Spouse's child from a previous relationship",
			GenerationOffset: 1,
			CalculationRules: map[string]string{
				"opposite": "step_parent",
			},
			SortOrder: 8,
		},
		{
			Name:             "aunt_uncle",
			DisplayName:      "Aunt/Uncle",
			Description:      "Parent's sibling",
			GenerationOffset: -1,
			CalculationRules: map[string]string{
				"opposite":        "niece_nephew",
				"spouse_relation": "aunt_uncle_in_law",
			},
			SortOrder: 9,
		},
		{
			Name:             "niece_nephew",
			DisplayName:      "Niece/Nephew",
			Description:      "Sibling's child",
			GenerationOffset: 1,
			CalculationRules: map[string]string{
				"opposite": "aunt_uncle",
			},
			SortOrder: 10,
		},
		{
			Name:             "guardian",
			DisplayName:      "Guardian",
			Description:      "Legal guardian or caregiver",
			GenerationOffset: -1,
			CalculationRules: map[string]string{
				"opposite": "ward",
			},
			SortOrder: 11,
		},
		{
			Name:             "ward",
			DisplayName:      "Ward",
			Description:      "Person under guardianship",
			GenerationOffset: 1,
			CalculationRules: map[string]string{
				"opposite": "guardian",
			},
			SortOrder: 12,
		},
		// The remaining types exist as derivation outputs: edges referencing
		// them must resolve against the catalog.
		{
			Name:             "parent_in_law",
			DisplayName:      "Parent-in-law",
			Description:      "Spouse's parent",
			GenerationOffset: -1,
			SortOrder:        13,
		},
		{
			Name:             "sibling_in_law",
			DisplayName:      "Sibling-in-law",
			Description:      "Spouse's sibling or sibling's spouse",
			GenerationOffset: 0,
			IsReciprocal:     true,
			CalculationRules: map[string]string{
				"opposite": "sibling_in_law",
			},
			SortOrder: 14,
		},
		{
			Name:             "step_grandparent",
			DisplayName:      "Step-grandparent",
			Description:      "Grandparent's spouse",
			GenerationOffset: -2,
			CalculationRules: map[string]string{
				"opposite": "step_grandchild",
			},
			SortOrder: 15,
		},
		{
			Name:             "step_grandchild",
			DisplayName:      "Step-grandchild",
			Description:      "Grandchild's step-relation",
			GenerationOffset: 2,
			CalculationRules: map[string]string{
				"opposite": "step_grandparent",
			},
			SortOrder: 16,
		},
		{
			Name:             "great_aunt_uncle",
			DisplayName:      "Great Aunt/Uncle",
			Description:      "Grandparent's sibling",
			GenerationOffset: -2,
			SortOrder:        17,
		},
		{
			Name:             "aunt_uncle_in_law",
			DisplayName:      "Aunt/Uncle-in-law",
			Description:      "Aunt or uncle's spouse",
			GenerationOffset: -1,
			SortOrder:        18,
		},
	}
}
