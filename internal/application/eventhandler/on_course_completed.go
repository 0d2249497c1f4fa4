// Package eventhandler contains reactions to domain events. Handlers run on
// the event bus and never fail the command that published the event.
package eventhandler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/domain/user"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON COURSE COMPLETED HANDLER
// Adds the skills taught by a finished course to the learner's profile.
// ═══════════════════════════════════════════════════════════════════════════

// OnCourseCompletedHandler merges course skills into user skills.
type OnCourseCompletedHandler struct {
	users   user.Repository
	courses course.Repository
	locker  shared.Locker
	logger  *slog.Logger
	timeout time.Duration
}

// NewOnCourseCompletedHandler creates the handler.
func NewOnCourseCompletedHandler(
	users user.Repository,
	courses course.Repository,
	locker shared.Locker,
	logger *slog.Logger,
) *OnCourseCompletedHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnCourseCompletedHandler{
		users:   users,
		courses: courses,
		locker:  locker,
		logger:  logger.With("handler", "on_course_completed"),
		timeout: 10 * time.Second,
	}
}

// EventType returns the event this handler subscribes to.
func (h *OnCourseCompletedHandler) EventType() shared.EventType {
	return shared.EventCourseCompleted
}

// Handle implements shared.EventHandler.
func (h *OnCourseCompletedHandler) Handle(event shared.Event) error {
	e, ok := event.(shared.EnrollmentEvent)
	if !ok || e.EventType() != shared.EventCourseCompleted {
		h.logger.Warn("unexpected event", "event_type", event.EventType())
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	c, err := h.courses.Get(ctx, e.CourseID)
	if shared.IsNotFound(err) {
		h.logger.Debug("course gone, nothing to merge", "course_id", e.CourseID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("load course: %w", err)
	}
	if len(c.Skills) == 0 {
		return nil
	}

	unlock, err := h.locker.Lock(ctx, "user:"+e.UserID)
	if err != nil {
		return err
	}
	defer unlock()

	u, err := h.users.Get(ctx, e.UserID)
	if shared.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load user: %w", err)
	}
	if !u.MergeSkills(c.Skills) {
		return nil
	}
	if err := h.users.Save(ctx, u); err != nil {
		return fmt.Errorf("save user: %w", err)
	}

	h.logger.Info("skills merged",
		"user_id", e.UserID,
		"course_id", e.CourseID,
		"skills", len(u.Skills),
	)
	return nil
}

// Register subscribes the handler on bus.
func (h *OnCourseCompletedHandler) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(h.EventType(), h.Handle)
}
