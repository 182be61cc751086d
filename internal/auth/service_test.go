package auth

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func newTestService(expiry time.Duration) *Service {
	return NewService(&Config{
		JWTSecret:   []byte("test-secret-key-that-is-long-enough"),
		TokenExpiry: expiry,
	}, nil)
}

func TestTokenRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	svc := newTestService(time.Hour)

	properties.Property("generated tokens validate to their claims", prop.ForAll(
		func(userID, email string) bool {
			token, err := svc.GenerateToken(userID, email)
			if err != nil {
				return false
			}
			claims, err := svc.ValidateToken(token)
			if err != nil {
				return false
			}
			return claims.UserID == userID && claims.Email == email
		},
		gen.Identifier(),
		gen.AlphaString(),
	))

	properties.TestingRun(t)
}

func TestGenerateTokenRequiresUserID(t *testing.T) {
	svc := newTestService(time.Hour)
	if _, err := svc.GenerateToken("", "a@b.com"); err != ErrMissingClaims {
		t.Errorf("expected ErrMissingClaims, got %v", err)
	}
}

func TestValidateTokenRejections(t *testing.T) {
	svc := newTestService(time.Hour)

	if _, err := svc.ValidateToken(""); err != ErrInvalidToken {
		t.Errorf("empty token: expected ErrInvalidToken, got %v", err)
	}
	if _, err := svc.ValidateToken("not-a-jwt"); err != ErrInvalidToken {
		t.Errorf("garbage token: expected ErrInvalidToken, got %v", err)
	}

	expired := newTestService(-time.Hour)
	token, err := expired.GenerateToken("user-1", "a@b.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); err != ErrExpiredToken {
		t.Errorf("expired token: expected ErrExpiredToken, got %v", err)
	}

	other := NewService(&Config{
		JWTSecret:   []byte("a-completely-different-secret-key-here"),
		TokenExpiry: time.Hour,
	}, nil)
	token, err = other.GenerateToken("user-1", "a@b.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	if _, err := svc.ValidateToken(token); err == nil {
		t.Error("token signed with another secret should not validate")
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := map[string]string{
		"Bearer abc123":  "abc123",
		"bearer abc123":  "abc123",
		"Bearer  abc123": "abc123",
		"Basic abc123":   "",
		"abc123":         "",
		"":               "",
	}
	for header, want := range cases {
		if got := ExtractBearerToken(header); got != want {
			t.Errorf("ExtractBearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}
