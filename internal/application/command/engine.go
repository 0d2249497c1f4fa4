package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLLMENT ENGINE
// Keeps Enrollment, User and Course consistent. Every read-modify-write runs
// under a lock; locks are always taken in the order
// enrollment -> user -> course. Writes to the three keys are not atomic:
// a failure after the enrollment write leaves the others to be repaired by
// the next event on the same pair.
// ══════════════════════════════════════════════════════════════════════════════

// EngineDeps are the collaborators shared by the enrollment commands.
type EngineDeps struct {
	Users       user.Repository
	Courses     course.Repository
	Enrollments enrollment.Repository
	Locker      shared.Locker
	Publisher   shared.EventPublisher
	Clock       shared.Clock
}

type engine struct {
	users       user.Repository
	courses     course.Repository
	enrollments enrollment.Repository
	locker      shared.Locker
	publisher   shared.EventPublisher
	now         shared.Clock
}

func newEngine(d EngineDeps) *engine {
	pub := d.Publisher
	if pub == nil {
		pub = shared.NoopPublisher{}
	}
	return &engine{
		users:       d.Users,
		courses:     d.Courses,
		enrollments: d.Enrollments,
		locker:      d.Locker,
		publisher:   pub,
		now:         d.Clock.OrSystem(),
	}
}

func enrollmentLock(userID, courseID string) string { return enrollment.ID(userID, courseID) }
func userLock(userID string) string                 { return "user:" + userID }
func courseLock(courseID string) string             { return "course:" + courseID }

// ─────────────────────────────────────────────────────────────────────────────
// Completion
// ─────────────────────────────────────────────────────────────────────────────

// completion describes one CompleteModule request.
type completion struct {
	UserID        string
	CourseID      string
	ModuleID      string
	Progress      *float64
	MarkCompleted bool
}

// completionOutcome reports what a completion changed.
type completionOutcome struct {
	Enrollment      *enrollment.Enrollment
	ModuleAdded     bool
	CourseCompleted bool
}

// completeLocked applies a completion. The caller holds the enrollment lock.
func (e *engine) completeLocked(ctx context.Context, c completion) (*completionOutcome, error) {
	enr, err := e.enrollments.Get(ctx, c.UserID, c.CourseID)
	if err != nil {
		return nil, err
	}

	crs, err := e.courses.Get(ctx, c.CourseID)
	if err != nil && !shared.IsNotFound(err) {
		return nil, fmt.Errorf("load course: %w", err)
	}
	if crs != nil && c.ModuleID != "" && !crs.HasModule(c.ModuleID) {
		return nil, shared.Validation("enrollment", "CompleteModule", "module "+c.ModuleID+" is not part of the course")
	}

	now := e.now()
	out := &completionOutcome{Enrollment: enr}
	out.ModuleAdded = enr.AddCompletedModule(c.ModuleID)

	switch {
	case c.Progress != nil:
		enr.SetProgress(*c.Progress)
	case crs != nil:
		enr.Recompute(moduleIDs(crs))
	}
	enr.Touch(now)

	if c.MarkCompleted {
		out.CourseCompleted = enr.Complete(now)
	} else {
		out.CourseCompleted = enr.CompleteIfDone(now)
	}

	if err := e.enrollments.Save(ctx, enr); err != nil {
		return nil, fmt.Errorf("save enrollment: %w", err)
	}

	if enr.IsCompleted() {
		if err := e.recordCourseCompleted(ctx, c.UserID, c.CourseID); err != nil {
			return nil, err
		}
	}

	var events []shared.Event
	if out.ModuleAdded {
		events = append(events, shared.NewEnrollmentEvent(shared.EventModuleCompleted,
			enr.ID, enr.UserID, enr.CourseID, c.ModuleID, enr.Progress, now))
	}
	if out.CourseCompleted {
		events = append(events, shared.NewEnrollmentEvent(shared.EventCourseCompleted,
			enr.ID, enr.UserID, enr.CourseID, "", enr.Progress, now))
	}
	publishAll(e.publisher, events)

	return out, nil
}

// recordCourseCompleted adds the course to the user's completed set. Running
// it for an already completed enrollment repairs an earlier partial failure.
func (e *engine) recordCourseCompleted(ctx context.Context, userID, courseID string) error {
	return withLock(ctx, e.locker, userLock(userID), func() error {
		u, err := e.users.Get(ctx, userID)
		if shared.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if !u.MarkCourseCompleted(courseID) {
			return nil
		}
		if err := e.users.Save(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		return nil
	})
}

func moduleIDs(c *course.Course) []string {
	ids := make([]string, len(c.Modules))
	for i, m := range c.Modules {
		ids[i] = m.ID
	}
	return ids
}
