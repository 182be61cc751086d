// Package cleanup provides background maintenance: expiring overdue
// invitations and purging long-deactivated edges.
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kinship-labs/kinship/internal/store"
)

// Default values for cleanup settings.
const (
	DefaultSweepInterval = time.Hour
	DefaultEdgeRetention = 365 * 24 * time.Hour
)

// Settings holds cleanup configuration.
type Settings struct {
	// SweepInterval is how often the maintenance pass runs.
	SweepInterval time.Duration `json:"sweep_interval"`
	// EdgeRetention is how long deactivated edges are kept before permanent
	// removal.
	EdgeRetention time.Duration `json:"edge_retention"`
}

// Validate validates that all cleanup settings have positive values.
func (s *Settings) Validate() error {
	if s.SweepInterval <= 0 {
		return fmt.Errorf("sweep_interval must be positive, got %v", s.SweepInterval)
	}
	if s.EdgeRetention <= 0 {
		return fmt.Errorf("edge_retention must be positive, got %v", s.EdgeRetention)
	}
	return nil
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		SweepInterval: DefaultSweepInterval,
		EdgeRetention: DefaultEdgeRetention,
	}
}

// invitationExpirer transitions overdue pending invitations to expired.
type invitationExpirer interface {
	ExpireOld(ctx context.Context) (int, error)
}

// Result holds the outcome of one maintenance pass.
type Result struct {
	InvitationsExpired int           `json:"invitations_expired"`
	EdgesPurged        int           `json:"edges_purged"`
	Errors             []string      `json:"errors,omitempty"`
	Duration           time.Duration `json:"duration"`
}

// Service runs periodic maintenance over invitations and edges.
type Service struct {
	store    store.Store
	expirer  invitationExpirer
	settings *Settings
	logger   *slog.Logger
}

// NewService creates a new cleanup service. Nil settings fall back to
// defaults.
func NewService(st store.Store, expirer invitationExpirer, settings *Settings, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if settings == nil {
		settings = DefaultSettings()
	}
	return &Service{
		store:    st,
		expirer:  expirer,
		settings: settings,
		logger:   logger.With("component", "cleanup"),
	}
}

// Settings returns the active settings.
func (s *Service) Settings() *Settings {
	return s.settings
}

// RunOnce performs a single maintenance pass. Failures in one step are
// recorded and do not stop the rest of the pass.
func (s *Service) RunOnce(ctx context.Context) (*Result, error) {
	start := time.Now()
	result := &Result{}

	expired, err := s.expirer.ExpireOld(ctx)
	if err != nil {
		s.logger.Error("invitation expiry sweep failed", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("expiring invitations: %v", err))
	} else {
		result.InvitationsExpired = expired
	}

	cutoff := time.Now().Add(-s.settings.EdgeRetention)
	purged, err := s.store.Edges().DeleteInactiveBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("edge purge failed", "error", err)
		result.Errors = append(result.Errors, fmt.Sprintf("purging edges: %v", err))
	} else {
		result.EdgesPurged = purged
	}

	result.Duration = time.Since(start)
	if result.InvitationsExpired > 0 || result.EdgesPurged > 0 || len(result.Errors) > 0 {
		s.logger.Info("maintenance pass completed",
			"invitations_expired", result.InvitationsExpired,
			"edges_purged", result.EdgesPurged,
			"errors", len(result.Errors),
			"duration", result.Duration,
		)
	}
	return result, nil
}

// Run executes maintenance passes on the configured interval until the
// context is cancelled. An initial pass runs immediately.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info("starting cleanup loop", "interval", s.settings.SweepInterval)

	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error("maintenance pass failed", "error", err)
	}

	ticker := time.NewTicker(s.settings.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cleanup loop stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil {
				s.logger.Error("maintenance pass failed", "error", err)
			}
		}
	}
}
