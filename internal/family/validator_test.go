package family

import (
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestConflictSymmetry(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("conflicts are symmetric", prop.ForAll(
		func(a, b string) bool {
			return ConflictsWith(a, b) == ConflictsWith(b, a)
		},
		gen.OneConstOf(toAnySlice(canonicalNames)...),
		gen.OneConstOf(toAnySlice(canonicalNames)...),
	))

	properties.Property("a relation never conflicts with itself", prop.ForAll(
		func(a string) bool {
			return !ConflictsWith(a, a)
		},
		gen.OneConstOf(toAnySlice(canonicalNames)...),
	))

	properties.TestingRun(t)
}

func TestConflictsWith(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"parent", "child", true},
		{"parent", "sibling", true},
		{"parent", "spouse", true},
		{"grandparent", "grandchild", true},
		{"Parent", " CHILD ", true}, // normalized before lookup
		{"parent", "guardian", false},
		{"spouse", "grandparent", false},
		{"step_parent", "step_child", false},
		{"guardian", "ward", false},
	}
	for _, tc := range cases {
		if got := ConflictsWith(tc.a, tc.b); got != tc.want {
			t.Errorf("ConflictsWith(%q, %q) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestValidateNewRelationship(t *testing.T) {
	st := newMockStore()
	st.seedTypes()
	v := NewValidator(st, slog.New(slog.DiscardHandler))
	ctx := context.Background()

	user := st.addUser("alice@example.com")
	member := st.addMember("Bob")

	ok, reason, err := v.ValidateNewRelationship(ctx, user.ID, member.ID, "parent")
	if err != nil || !ok {
		t.Fatalf("fresh pair should validate: ok=%v reason=%q err=%v", ok, reason, err)
	}

	st.addEdge(user.ID, member.ID, "parent", true, true)

	ok, reason, err = v.ValidateNewRelationship(ctx, user.ID, member.ID, "child")
	if err != nil {
		t.Fatalf("ValidateNewRelationship: %v", err)
	}
	if ok || !strings.Contains(reason, "conflicts with existing parent") {
		t.Errorf("conflicting relation should be rejected: ok=%v reason=%q", ok, reason)
	}

	ok, reason, err = v.ValidateNewRelationship(ctx, user.ID, member.ID, "parent")
	if err != nil {
		t.Fatalf("ValidateNewRelationship: %v", err)
	}
	if ok || !strings.Contains(reason, "already exists") {
		t.Errorf("duplicate relation should be rejected: ok=%v reason=%q", ok, reason)
	}

	other := st.addMember("Carol")
	ok, reason, err = v.ValidateNewRelationship(ctx, user.ID, other.ID, "second_cousin")
	if err != nil {
		t.Fatalf("ValidateNewRelationship: %v", err)
	}
	if ok || !strings.Contains(reason, "unknown relationship type") {
		t.Errorf("unknown type should be rejected: ok=%v reason=%q", ok, reason)
	}
}
