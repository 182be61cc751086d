package models

import (
	"strings"
	"time"
)

// Member represents a person tracked in a family network. A member is not
// necessarily a platform user; ownership is expressed through manager edges.
type Member struct {
	ID        string     `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`
	BirthDate *time.Time `json:"birth_date,omitempty"`

	Interests []string `json:"interests,omitempty"`
	Skills    []string `json:"skills,omitempty"`
	AvatarURL string   `json:"avatar_url,omitempty"`

	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FullName returns the member's display name.
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName + " " + m.LastName)
}

// Age returns the member's age in whole years at the given time, or -1 when
// the birth date is unknown. Age is always derived, never stored.
func (m *Member) Age(now time.Time) int {
	if m.BirthDate == nil {
		return -1
	}
	years := now.Year() - m.BirthDate.Year()
	anniversary := m.BirthDate.AddDate(years, 0, 0)
	if anniversary.After(now) {
		years--
	}
	return years
}
