package models

import "testing"

func TestDerivedEdge(t *testing.T) {
	inv := &Invitation{
		ID:                   "inv-1",
		InviterUserID:        "alice",
		IntendedRelationship: "spouse",
	}

	e := DerivedEdge("bob", "member-1", "step_parent", inv)

	if e.IsManager || e.IsShareable {
		t.Error("derived edges must be view-only")
	}
	if !e.IsActive || !e.IsVisible {
		t.Error("derived edges start active and visible")
	}
	if !e.IsDerived() {
		t.Error("derived edge must reference its invitation")
	}
	if e.CreatedByUserID != "alice" {
		t.Errorf("created_by = %q, want inviter", e.CreatedByUserID)
	}
	if e.Notes != "Derived from invitation: spouse relationship" {
		t.Errorf("unexpected notes: %q", e.Notes)
	}
	if e.CanEdit() || e.CanShare() {
		t.Error("derived edges grant no edit or share rights")
	}
}

func TestDerivedEdgeDefaultsIntended(t *testing.T) {
	inv := &Invitation{ID: "inv-2", InviterUserID: "alice"}
	e := DerivedEdge("bob", "member-1", "step_parent", inv)
	if e.Notes != "Derived from invitation: family relationship" {
		t.Errorf("unexpected notes: %q", e.Notes)
	}
}
