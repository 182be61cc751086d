package family

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestSeedIdempotency(t *testing.T) {
	st := newMockStore()
	registry := NewRegistry(st, nil)
	ctx := context.Background()

	created, err := registry.Seed(ctx, "")
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(created) != 18 {
		t.Fatalf("first seed created %d types, want 18", len(created))
	}

	created, err = registry.Seed(ctx, "")
	if err != nil {
		t.Fatalf("Seed (second run): %v", err)
	}
	if len(created) != 0 {
		t.Errorf("second seed created %d types, want 0", len(created))
	}

	types, err := registry.List(ctx, true)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(types) != 18 {
		t.Errorf("catalog holds %d types, want 18", len(types))
	}
}

func TestSeedOverrides(t *testing.T) {
	st := newMockStore()
	registry := NewRegistry(st, nil)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "types.yaml")
	override := `
- name: parent
  display_name: Mother/Father
- name: godparent
  display_name: Godparent
  description: Religious sponsor
  generation_offset: -1
  calculation_rules:
    opposite: godchild
`
	if err := os.WriteFile(path, []byte(override), 0o600); err != nil {
		t.Fatalf("writing override file: %v", err)
	}

	created, err := registry.Seed(ctx, path)
	if err != nil {
		t.Fatalf("Seed: %v", err)
	}
	if len(created) != 19 {
		t.Fatalf("seed created %d types, want 19", len(created))
	}

	parent, err := registry.Get(ctx, "parent")
	if err != nil {
		t.Fatalf("Get(parent): %v", err)
	}
	if parent.DisplayName != "Mother/Father" {
		t.Errorf("parent display name = %q, want %q", parent.DisplayName, "Mother/Father")
	}

	god, err := registry.Get(ctx, "godparent")
	if err != nil {
		t.Fatalf("Get(godparent): %v", err)
	}
	if god.Rule("opposite") != "godchild" {
		t.Errorf("godparent opposite = %q, want %q", god.Rule("opposite"), "godchild")
	}
}

func TestFindOpposite(t *testing.T) {
	st := newMockStore()
	st.seedTypes()
	registry := NewRegistry(st, nil)
	ctx := context.Background()

	cases := []struct {
		name string
		want string // "" means no opposite resolves
	}{
		{"parent", "child"},
		{"child", "parent"},
		{"spouse", "spouse"},
		{"sibling", "sibling"},
		{"grandparent", "grandchild"},
		{"guardian", "ward"},
		{"no_such_type", ""},
	}

	for _, tc := range cases {
		got, err := registry.FindOpposite(ctx, tc.name)
		if err != nil {
			t.Fatalf("FindOpposite(%s): %v", tc.name, err)
		}
		if tc.want == "" {
			if got != nil {
				t.Errorf("FindOpposite(%s) = %q, want none", tc.name, got.Name)
			}
			continue
		}
		if got == nil || got.Name != tc.want {
			t.Errorf("FindOpposite(%s) = %v, want %q", tc.name, got, tc.want)
		}
	}
}

// An opposite rule pointing at a type that is not in the catalog resolves to
// nothing rather than failing.
func TestFindOppositeDanglingRule(t *testing.T) {
	st := newMockStore()
	st.seedTypes()
	registry := NewRegistry(st, nil)
	ctx := context.Background()

	if err := st.RelationshipTypes().UpdateRules(ctx, "guardian", map[string]string{
		"opposite": "protege",
	}); err != nil {
		t.Fatalf("UpdateRules: %v", err)
	}

	got, err := registry.FindOpposite(ctx, "guardian")
	if err != nil {
		t.Fatalf("FindOpposite: %v", err)
	}
	if got != nil {
		t.Errorf("dangling opposite resolved to %q, want none", got.Name)
	}
}

func TestRulesForUnknownType(t *testing.T) {
	st := newMockStore()
	registry := NewRegistry(st, nil)

	rules, err := registry.Rules(context.Background(), "no_such_type")
	if err != nil {
		t.Fatalf("Rules: %v", err)
	}
	if len(rules) != 0 {
		t.Errorf("unknown type yielded %d rules, want 0", len(rules))
	}
}
