// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// ═══════════════════════════════════════════════════════════════════════════
// Identifiers
// ═══════════════════════════════════════════════════════════════════════════

// NewID returns a random UUID string for users, courses and learning paths.
func NewID() string {
	return uuid.NewString()
}

// ═══════════════════════════════════════════════════════════════════════════
// Role
// ═══════════════════════════════════════════════════════════════════════════

// Role is the platform role of a user.
type Role string

const (
	RoleLearner    Role = "learner"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
	RoleOrgManager Role = "org_manager"
)

// IsValid checks if the role is one of the known roles.
func (r Role) IsValid() bool {
	switch r {
	case RoleLearner, RoleInstructor, RoleAdmin, RoleOrgManager:
		return true
	}
	return false
}

// CanAuthorCourses reports whether the role may create, update and delete courses
// and upload media.
func (r Role) CanAuthorCourses() bool {
	return r == RoleAdmin || r == RoleInstructor
}

// CanViewAnalytics reports whether the role may read platform-wide analytics.
func (r Role) CanViewAnalytics() bool {
	return r == RoleAdmin || r == RoleOrgManager
}

// IsAdmin reports whether the role is admin.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin
}

// ParseRole parses a role string. Empty input yields the learner role.
func ParseRole(s string) (Role, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return RoleLearner, nil
	}
	r := Role(s)
	if !r.IsValid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// Percentages
// ═══════════════════════════════════════════════════════════════════════════

// ClampPercent bounds v to [0, 100].
func ClampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// ═══════════════════════════════════════════════════════════════════════════
// Clock
// ═══════════════════════════════════════════════════════════════════════════

// Clock returns the current time. Handlers take a Clock so tests can pin time.
type Clock func() time.Time

// SystemClock returns the wall clock in UTC.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// OrSystem returns c, or SystemClock when c is nil.
func (c Clock) OrSystem() Clock {
	if c == nil {
		return SystemClock
	}
	return c
}
