// Package enrollment contains the enrollment aggregate and its completion
// state machine.
package enrollment

import (
	"fmt"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status is the enrollment lifecycle state. The only transition is
// in_progress -> completed and it never reverses.
type Status string

const (
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// CompletePercent is the progress at which an enrollment completes.
const CompletePercent = 100.0

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT ENTITY
// ══════════════════════════════════════════════════════════════════════════════

// Enrollment is one user's registration in one course. At most one exists per
// (user, course) pair because its ID is derived from the pair.
type Enrollment struct {
	ID               string     `json:"id"`
	UserID           string     `json:"userId"`
	CourseID         string     `json:"courseId"`
	EnrolledAt       time.Time  `json:"enrolledAt"`
	Progress         float64    `json:"progress"`
	CompletedModules []string   `json:"completedModules"`
	LastAccessedAt   time.Time  `json:"lastAccessedAt"`
	Status           Status     `json:"status"`
	CompletedAt      *time.Time `json:"completedAt,omitempty"`
}

// ID builds the deterministic enrollment identifier for a pair.
func ID(userID, courseID string) string {
	return fmt.Sprintf("enrollment:%s:%s", userID, courseID)
}

// New creates a fresh in-progress enrollment.
func New(userID, courseID string, now time.Time) (*Enrollment, error) {
	if userID == "" || courseID == "" {
		return nil, shared.Validation("enrollment", "New", "user id and course id are required")
	}
	return &Enrollment{
		ID:               ID(userID, courseID),
		UserID:           userID,
		CourseID:         courseID,
		EnrolledAt:       now,
		Progress:         0,
		CompletedModules: []string{},
		LastAccessedAt:   now,
		Status:           StatusInProgress,
	}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// IsCompleted reports whether the enrollment reached the terminal state.
func (e *Enrollment) IsCompleted() bool {
	return e.Status == StatusCompleted
}

// HasCompletedModule reports whether moduleID is already recorded.
func (e *Enrollment) HasCompletedModule(moduleID string) bool {
	for _, m := range e.CompletedModules {
		if m == moduleID {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Mutations
// ─────────────────────────────────────────────────────────────────────────────

// AddCompletedModule records moduleID once. Returns false when it was already
// present or empty.
func (e *Enrollment) AddCompletedModule(moduleID string) bool {
	if moduleID == "" || e.HasCompletedModule(moduleID) {
		return false
	}
	e.CompletedModules = append(e.CompletedModules, moduleID)
	return true
}

// Recompute sets progress to the share of completed modules. Completed
// modules that no longer exist in the course are not counted. A course
// without modules has denominator one.
func (e *Enrollment) Recompute(courseModuleIDs []string) {
	total := len(courseModuleIDs)
	if total == 0 {
		e.setProgress(float64(len(e.CompletedModules)) * CompletePercent)
		return
	}

	known := make(map[string]struct{}, total)
	for _, id := range courseModuleIDs {
		known[id] = struct{}{}
	}
	done := 0
	for _, id := range e.CompletedModules {
		if _, ok := known[id]; ok {
			done++
		}
	}
	e.setProgress(float64(done) / float64(total) * CompletePercent)
}

// SetProgress applies an explicit progress value, clamped to [0,100].
// Lower values than the current progress are ignored.
func (e *Enrollment) SetProgress(p float64) {
	e.setProgress(p)
}

// Touch records access time.
func (e *Enrollment) Touch(now time.Time) {
	e.LastAccessedAt = now
}

// Complete moves the enrollment to completed, forcing progress to 100.
// CompletedAt is only set on the first transition. Returns true on that
// transition.
func (e *Enrollment) Complete(now time.Time) bool {
	e.Progress = CompletePercent
	if e.Status == StatusCompleted {
		return false
	}
	e.Status = StatusCompleted
	if e.CompletedAt == nil {
		at := now
		e.CompletedAt = &at
	}
	return true
}

// CompleteIfDone transitions to completed when progress reached 100.
func (e *Enrollment) CompleteIfDone(now time.Time) bool {
	if e.Progress >= CompletePercent {
		return e.Complete(now)
	}
	return false
}

// Normalize repairs fields that older records may have left empty.
func (e *Enrollment) Normalize() {
	if e.CompletedModules == nil {
		e.CompletedModules = []string{}
	}
	if e.Status == "" {
		e.Status = StatusInProgress
	}
}

// setProgress clamps p and never lowers progress; completed stays at 100.
func (e *Enrollment) setProgress(p float64) {
	p = shared.ClampPercent(p)
	if e.Status == StatusCompleted {
		p = CompletePercent
	}
	if p > e.Progress || e.Status == StatusCompleted {
		e.Progress = p
	}
}
