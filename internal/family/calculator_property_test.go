package family

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kinship-labs/kinship/internal/models"
)

var canonicalNames = []string{
	"parent", "child", "spouse", "sibling",
	"grandparent", "grandchild", "step_parent", "step_child",
	"aunt_uncle", "niece_nephew", "guardian", "ward",
}

func newTestRegistry(t *testing.T) (*mockStore, *Registry) {
	t.Helper()
	st := newMockStore()
	st.seedTypes()
	return st, NewRegistry(st, slog.New(slog.DiscardHandler))
}

// Derivation is a pure function of its two inputs: repeated calls, and calls
// through fresh calculators, must agree.
func TestDeriveDeterminism(t *testing.T) {
	_, registry := newTestRegistry(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same inputs always produce the same output", prop.ForAll(
		func(toMember, toInvitee string) bool {
			calc := NewCalculator(registry)
			first, err := calc.Derive(ctx, toMember, toInvitee)
			if err != nil {
				return false
			}
			second, err := calc.Derive(ctx, toMember, toInvitee)
			if err != nil {
				return false
			}
			fresh, err := NewCalculator(registry).Derive(ctx, toMember, toInvitee)
			if err != nil {
				return false
			}
			return first == second && first == fresh
		},
		gen.OneConstOf(toAnySlice(canonicalNames)...),
		gen.OneConstOf(toAnySlice(canonicalNames)...),
	))

	properties.Property("normalization makes case and whitespace irrelevant", prop.ForAll(
		func(toMember, toInvitee string) bool {
			calc := NewCalculator(registry)
			plain, err := calc.Derive(ctx, toMember, toInvitee)
			if err != nil {
				return false
			}
			noisy, err := calc.Derive(ctx, "  "+strings.ToUpper(toMember), strings.ToUpper(toInvitee)+" ")
			if err != nil {
				return false
			}
			return plain == noisy
		},
		gen.OneConstOf(toAnySlice(canonicalNames)...),
		gen.OneConstOf(toAnySlice(canonicalNames)...),
	))

	properties.TestingRun(t)
}

// An unknown intended relationship never resolves: the result is empty for
// every inviter-to-member relation, and never an error.
func TestDeriveUnknownIntendedYieldsNothing(t *testing.T) {
	_, registry := newTestRegistry(t)
	ctx := context.Background()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("unresolvable compositions yield empty, not error", prop.ForAll(
		func(toMember string) bool {
			calc := NewCalculator(registry)
			derived, err := calc.Derive(ctx, toMember, "family")
			return err == nil && derived == ""
		},
		gen.OneConstOf(toAnySlice(canonicalNames)...),
	))

	properties.TestingRun(t)
}

func TestDeriveKnownCompositions(t *testing.T) {
	_, registry := newTestRegistry(t)
	ctx := context.Background()
	calc := NewCalculator(registry)

	cases := []struct {
		toMember  string
		toInvitee string
		want      string
	}{
		{"parent", "spouse", "step_parent"},
		{"parent", "sibling", "aunt_uncle"},
		{"parent", "parent", "grandparent"},
		{"child", "spouse", "step_child"},
		{"child", "sibling", "niece_nephew"},
		{"child", "child", "grandchild"},
		{"spouse", "parent", "parent_in_law"},
		{"spouse", "child", "step_child"},
		{"spouse", "sibling", "sibling_in_law"},
		{"sibling", "spouse", "sibling_in_law"},
		{"sibling", "parent", "aunt_uncle"},
		{"sibling", "child", "niece_nephew"},
		{"grandparent", "spouse", "step_grandparent"},
		{"grandchild", "spouse", "step_grandchild"},
		{"guardian", "spouse", ""},
		{"ward", "parent", ""},
		{"step_parent", "sibling", ""},
	}

	for _, tc := range cases {
		got, err := calc.Derive(ctx, tc.toMember, tc.toInvitee)
		if err != nil {
			t.Fatalf("Derive(%s, %s): %v", tc.toMember, tc.toInvitee, err)
		}
		if got != tc.want {
			t.Errorf("Derive(%s, %s) = %q, want %q", tc.toMember, tc.toInvitee, got, tc.want)
		}
	}
}

// Type-specific rules win over the built-in fallback table, and the fallback
// still applies once a type's rules are removed.
func TestDeriveRulePrecedence(t *testing.T) {
	st, registry := newTestRegistry(t)
	ctx := context.Background()

	if err := st.RelationshipTypes().UpdateRules(ctx, "parent", map[string]string{
		"spouse_relation": "co_parent",
	}); err != nil {
		t.Fatalf("UpdateRules: %v", err)
	}

	got, err := NewCalculator(registry).Derive(ctx, "parent", "spouse")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if got != "co_parent" {
		t.Errorf("type rule should win: got %q, want %q", got, "co_parent")
	}

	if err := st.RelationshipTypes().UpdateRules(ctx, "parent", map[string]string{}); err != nil {
		t.Fatalf("UpdateRules: %v", err)
	}
	got, err = NewCalculator(registry).Derive(ctx, "parent", "spouse")
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	if got != "step_parent" {
		t.Errorf("fallback should apply without a type rule: got %q, want %q", got, "step_parent")
	}
}

func toAnySlice(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// Every label the calculator can emit must exist in the seeded catalog, or
// storing the derived edge would fail its relation lookup.
func TestDerivationOutputsAreSeeded(t *testing.T) {
	seeded := make(map[string]bool)
	for _, rt := range models.DefaultRelationshipTypes() {
		seeded[rt.Name] = true
	}

	for pair, derived := range fallbackRules {
		if !seeded[derived] {
			t.Errorf("fallback (%s, %s) -> %q is not a seeded type",
				pair.toMember, pair.toInvitee, derived)
		}
	}

	for _, rt := range models.DefaultRelationshipTypes() {
		for key, derived := range rt.CalculationRules {
			if !seeded[derived] {
				t.Errorf("%s rule %q -> %q is not a seeded type", rt.Name, key, derived)
			}
		}
	}
}
