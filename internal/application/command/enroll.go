package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENROLL COMMAND
// Registers a user in a course. Enrolling twice returns the existing
// enrollment and changes nothing else.
// ══════════════════════════════════════════════════════════════════════════════

// EnrollCommand contains the pair to enroll.
type EnrollCommand struct {
	UserID   string
	CourseID string
}

// Validate validates the command.
func (c EnrollCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrMissingCredential
	}
	if c.CourseID == "" {
		return shared.Validation("enrollment", "Enroll", "courseId is required")
	}
	return nil
}

// EnrollResult contains the enrollment and whether it already existed.
type EnrollResult struct {
	Enrollment      *enrollment.Enrollment
	AlreadyEnrolled bool
}

// EnrollHandler handles EnrollCommand.
type EnrollHandler struct {
	*engine
}

// NewEnrollHandler creates a new EnrollHandler.
func NewEnrollHandler(deps EngineDeps) *EnrollHandler {
	return &EnrollHandler{engine: newEngine(deps)}
}

// Handle executes the enroll command.
func (h *EnrollHandler) Handle(ctx context.Context, cmd EnrollCommand) (*EnrollResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *EnrollResult
	err := withLock(ctx, h.locker, enrollmentLock(cmd.UserID, cmd.CourseID), func() error {
		existing, err := h.enrollments.Get(ctx, cmd.UserID, cmd.CourseID)
		if err == nil {
			result = &EnrollResult{Enrollment: existing, AlreadyEnrolled: true}
			return nil
		}
		if !shared.IsNotFound(err) {
			return fmt.Errorf("load enrollment: %w", err)
		}

		if _, err := h.courses.Get(ctx, cmd.CourseID); err != nil {
			return err
		}
		if _, err := h.users.Get(ctx, cmd.UserID); err != nil {
			return err
		}

		now := h.now()
		enr, err := enrollment.New(cmd.UserID, cmd.CourseID, now)
		if err != nil {
			return err
		}
		if err := h.enrollments.Save(ctx, enr); err != nil {
			return fmt.Errorf("save enrollment: %w", err)
		}

		if err := h.addToUser(ctx, cmd.UserID, cmd.CourseID); err != nil {
			return err
		}
		if err := h.incrementCourse(ctx, cmd.CourseID); err != nil {
			return err
		}

		publishAll(h.publisher, []shared.Event{
			shared.NewEnrollmentEvent(shared.EventEnrollmentCreated, enr.ID, enr.UserID, enr.CourseID, "", 0, now),
		})
		result = &EnrollResult{Enrollment: enr}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (h *EnrollHandler) addToUser(ctx context.Context, userID, courseID string) error {
	return withLock(ctx, h.locker, userLock(userID), func() error {
		u, err := h.users.Get(ctx, userID)
		if err != nil {
			return fmt.Errorf("load user: %w", err)
		}
		if !u.AddEnrolledCourse(courseID) {
			return nil
		}
		if err := h.users.Save(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		return nil
	})
}

func (h *EnrollHandler) incrementCourse(ctx context.Context, courseID string) error {
	return withLock(ctx, h.locker, courseLock(courseID), func() error {
		c, err := h.courses.Get(ctx, courseID)
		if shared.IsNotFound(err) {
			// deleted meanwhile; the enrollment stays and reads tolerate it
			return nil
		}
		if err != nil {
			return fmt.Errorf("load course: %w", err)
		}
		c.IncrementEnrollments()
		if err := h.courses.Save(ctx, c); err != nil {
			return fmt.Errorf("save course: %w", err)
		}
		return nil
	})
}
