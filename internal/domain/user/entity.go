// Package user contains the platform user profile and its derived course sets.
package user

import (
	"strings"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// USER ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// User is a learner, instructor, administrator or organization manager.
// EnrolledCourses and CompletedCourses are maintained by the enrollment engine
// and never contain the same course id twice.
type User struct {
	ID               string      `json:"id"`
	Email            string      `json:"email"`
	Name             string      `json:"name"`
	Role             shared.Role `json:"role"`
	Organization     string      `json:"organization,omitempty"`
	EnrolledCourses  []string    `json:"enrolledCourses"`
	CompletedCourses []string    `json:"completedCourses"`
	LearningPaths    []string    `json:"learningPaths"`
	Skills           []string    `json:"skills"`
	CreatedAt        time.Time   `json:"createdAt"`
	UpdatedAt        *time.Time  `json:"updatedAt,omitempty"`
}

// NewUserParams contains the signup fields.
type NewUserParams struct {
	ID           string
	Email        string
	Name         string
	Role         shared.Role
	Organization string
	Skills       []string
	CreatedAt    time.Time
}

// NewUser builds a profile with empty course sets.
func NewUser(p NewUserParams) (*User, error) {
	email := NormalizeEmail(p.Email)
	if p.ID == "" {
		return nil, shared.Validation("user", "Create", "id is required")
	}
	if email == "" || !strings.Contains(email, "@") {
		return nil, shared.Validation("user", "Create", "a valid email is required")
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, shared.Validation("user", "Create", "name is required")
	}
	role := p.Role
	if role == "" {
		role = shared.RoleLearner
	}
	if !role.IsValid() {
		return nil, shared.ErrInvalidRole
	}

	skills := p.Skills
	if skills == nil {
		skills = []string{}
	}

	return &User{
		ID:               p.ID,
		Email:            email,
		Name:             strings.TrimSpace(p.Name),
		Role:             role,
		Organization:     strings.TrimSpace(p.Organization),
		EnrolledCourses:  []string{},
		CompletedCourses: []string{},
		LearningPaths:    []string{},
		Skills:           skills,
		CreatedAt:        p.CreatedAt,
	}, nil
}

// NormalizeEmail lowercases and trims an e-mail address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ─────────────────────────────────────────────────────────────────────────────
// Course sets
// ─────────────────────────────────────────────────────────────────────────────

// IsEnrolledIn reports whether courseID is in EnrolledCourses.
func (u *User) IsEnrolledIn(courseID string) bool {
	return contains(u.EnrolledCourses, courseID)
}

// HasCompleted reports whether courseID is in CompletedCourses.
func (u *User) HasCompleted(courseID string) bool {
	return contains(u.CompletedCourses, courseID)
}

// AddEnrolledCourse appends courseID unless already present.
// It returns true when the set changed.
func (u *User) AddEnrolledCourse(courseID string) bool {
	if u.IsEnrolledIn(courseID) {
		return false
	}
	u.EnrolledCourses = append(u.EnrolledCourses, courseID)
	return true
}

// MarkCourseCompleted appends courseID to CompletedCourses unless already present.
func (u *User) MarkCourseCompleted(courseID string) bool {
	if u.HasCompleted(courseID) {
		return false
	}
	u.CompletedCourses = append(u.CompletedCourses, courseID)
	return true
}

// MergeSkills adds the given skills, skipping case-insensitive duplicates.
func (u *User) MergeSkills(skills []string) bool {
	changed := false
	for _, s := range skills {
		s = strings.TrimSpace(s)
		if s == "" || containsFold(u.Skills, s) {
			continue
		}
		u.Skills = append(u.Skills, s)
		changed = true
	}
	return changed
}

// IsActive reports whether the user has at least one enrollment.
func (u *User) IsActive() bool {
	return len(u.EnrolledCourses) > 0
}

// Normalize replaces nil slices loaded from older records with empty ones.
func (u *User) Normalize() {
	if u.EnrolledCourses == nil {
		u.EnrolledCourses = []string{}
	}
	if u.CompletedCourses == nil {
		u.CompletedCourses = []string{}
	}
	if u.LearningPaths == nil {
		u.LearningPaths = []string{}
	}
	if u.Skills == nil {
		u.Skills = []string{}
	}
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

func containsFold(list []string, v string) bool {
	for _, item := range list {
		if strings.EqualFold(item, v) {
			return true
		}
	}
	return false
}
