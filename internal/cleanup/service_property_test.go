package cleanup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kinship-labs/kinship/internal/store"
)

// fakeEdgeStore tracks deactivation timestamps and honors the purge cutoff.
// Unused sub-store methods come from the embedded nil interface.
type fakeEdgeStore struct {
	store.EdgeStore
	deactivated []time.Time
	err         error
}

func (f *fakeEdgeStore) DeleteInactiveBefore(ctx context.Context, cutoff time.Time) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	kept := f.deactivated[:0]
	n := 0
	for _, ts := range f.deactivated {
		if ts.Before(cutoff) {
			n++
		} else {
			kept = append(kept, ts)
		}
	}
	f.deactivated = kept
	return n, nil
}

type fakeStore struct {
	store.Store
	edges *fakeEdgeStore
}

func (f *fakeStore) Edges() store.EdgeStore { return f.edges }

type stubExpirer struct {
	expired int
	err     error
}

func (s *stubExpirer) ExpireOld(ctx context.Context) (int, error) {
	return s.expired, s.err
}

// A maintenance pass purges exactly the edges deactivated longer ago than
// the retention period and preserves the rest.
func TestEdgeRetentionEnforcement(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("a pass purges exactly the edges past retention", prop.ForAll(
		func(retentionDays, oldCount, youngCount int) bool {
			retention := time.Duration(retentionDays) * 24 * time.Hour
			now := time.Now()

			edges := &fakeEdgeStore{}
			for i := 0; i < oldCount; i++ {
				edges.deactivated = append(edges.deactivated,
					now.Add(-retention-time.Duration(i+1)*24*time.Hour))
			}
			for i := 0; i < youngCount; i++ {
				edges.deactivated = append(edges.deactivated,
					now.Add(-retention+time.Duration(i+1)*time.Hour))
			}

			svc := NewService(&fakeStore{edges: edges}, &stubExpirer{}, &Settings{
				SweepInterval: time.Minute,
				EdgeRetention: retention,
			}, nil)

			result, err := svc.RunOnce(context.Background())
			if err != nil || len(result.Errors) != 0 {
				return false
			}
			return result.EdgesPurged == oldCount && len(edges.deactivated) == youngCount
		},
		gen.IntRange(1, 60),
		gen.IntRange(0, 5),
		gen.IntRange(0, 5),
	))

	properties.TestingRun(t)
}

// A failing expiry step is recorded without stopping the edge purge.
func TestRunOnceAccumulatesErrors(t *testing.T) {
	edges := &fakeEdgeStore{
		deactivated: []time.Time{time.Now().Add(-48 * time.Hour)},
	}
	svc := NewService(&fakeStore{edges: edges}, &stubExpirer{err: errors.New("db down")}, &Settings{
		SweepInterval: time.Minute,
		EdgeRetention: 24 * time.Hour,
	}, nil)

	result, err := svc.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(result.Errors) != 1 {
		t.Errorf("recorded %d errors, want 1", len(result.Errors))
	}
	if result.EdgesPurged != 1 {
		t.Errorf("purged %d edges, want 1", result.EdgesPurged)
	}
}

func TestSettingsValidation(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("settings validate iff all values are positive", prop.ForAll(
		func(sweepMinutes, retentionHours int) bool {
			settings := &Settings{
				SweepInterval: time.Duration(sweepMinutes) * time.Minute,
				EdgeRetention: time.Duration(retentionHours) * time.Hour,
			}
			err := settings.Validate()
			valid := sweepMinutes > 0 && retentionHours > 0
			return (err == nil) == valid
		},
		gen.IntRange(-10, 10),
		gen.IntRange(-10, 10),
	))

	properties.TestingRun(t)
}

func TestDefaultSettings(t *testing.T) {
	if err := DefaultSettings().Validate(); err != nil {
		t.Errorf("default settings should validate: %v", err)
	}
}
