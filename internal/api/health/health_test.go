package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type stubPinger struct {
	err error
}

func (p *stubPinger) Ping(ctx context.Context) error {
	return p.err
}

func TestCheckAggregatesComponents(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	parameters.Rng.Seed(time.Now().UnixNano())

	properties := gopter.NewProperties(parameters)

	properties.Property("overall status is healthy iff every component is", prop.ForAll(
		func(dbHealthy, mailHealthy bool) bool {
			checker := NewChecker("test")
			checker.Register("database", pingerFor(dbHealthy))
			checker.Register("mail", pingerFor(mailHealthy))

			resp := checker.Check(context.Background())

			if len(resp.Components) != 2 {
				return false
			}
			wantOverall := StatusHealthy
			if !dbHealthy || !mailHealthy {
				wantOverall = StatusUnhealthy
			}
			return resp.Status == wantOverall &&
				statusFor(resp, "database") == statusOf(dbHealthy) &&
				statusFor(resp, "mail") == statusOf(mailHealthy)
		},
		gen.Bool(),
		gen.Bool(),
	))

	properties.TestingRun(t)
}

func pingerFor(healthy bool) Pinger {
	if healthy {
		return &stubPinger{}
	}
	return &stubPinger{err: errors.New("connection refused")}
}

func statusFor(resp *Response, name string) Status {
	return resp.Components[name].Status
}

func statusOf(healthy bool) Status {
	if healthy {
		return StatusHealthy
	}
	return StatusUnhealthy
}

func TestCheckNoComponents(t *testing.T) {
	checker := NewChecker("v1.0.0")
	resp := checker.Check(context.Background())

	if resp.Status != StatusHealthy {
		t.Errorf("expected healthy with no components, got %s", resp.Status)
	}
	if resp.Version != "v1.0.0" {
		t.Errorf("unexpected version %q", resp.Version)
	}
}

func TestCheckUnhealthyMessage(t *testing.T) {
	checker := NewChecker("test")
	checker.Register("database", &stubPinger{err: errors.New("dial tcp: connection refused")})

	resp := checker.Check(context.Background())

	db := resp.Components["database"]
	if db.Status != StatusUnhealthy {
		t.Fatalf("expected unhealthy, got %s", db.Status)
	}
	if db.Message != "dial tcp: connection refused" {
		t.Errorf("unexpected message %q", db.Message)
	}
}

func TestHandlerStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		pinger     Pinger
		wantStatus int
	}{
		{"healthy", &stubPinger{}, 200},
		{"unhealthy", &stubPinger{err: errors.New("down")}, 503},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checker := NewChecker("test")
			checker.Register("database", tt.pinger)

			rec := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/health", nil)
			checker.Handler()(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}

			var resp Response
			if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if _, ok := resp.Components["database"]; !ok {
				t.Error("response missing database component")
			}
		})
	}
}

func TestComponentNamesSorted(t *testing.T) {
	checker := NewChecker("test")
	checker.Register("mail", &stubPinger{})
	checker.Register("database", &stubPinger{})

	names := checker.ComponentNames()
	if len(names) != 2 || names[0] != "database" || names[1] != "mail" {
		t.Errorf("unexpected component names %v", names)
	}
}
