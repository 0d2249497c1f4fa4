package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COURSE COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// Actor is the authenticated caller of an authoring command.
type Actor struct {
	UserID string
	Role   shared.Role
}

// CourseDeps are the collaborators of the course commands.
type CourseDeps struct {
	Courses   course.Repository
	Locker    shared.Locker
	Publisher shared.EventPublisher
	Clock     shared.Clock
	NewID     func() string
}

func (d CourseDeps) withDefaults() CourseDeps {
	if d.Publisher == nil {
		d.Publisher = shared.NoopPublisher{}
	}
	if d.NewID == nil {
		d.NewID = shared.NewID
	}
	d.Clock = d.Clock.OrSystem()
	return d
}

// ─────────────────────────────────────────────────────────────────────────────
// Create
// ─────────────────────────────────────────────────────────────────────────────

// CreateCourseCommand creates a catalog entry.
type CreateCourseCommand struct {
	Actor Actor
	Draft course.Draft
}

// Validate validates the command.
func (c CreateCourseCommand) Validate() error {
	if c.Actor.UserID == "" {
		return shared.ErrMissingCredential
	}
	if err := requireRole(c.Actor.Role.CanAuthorCourses()); err != nil {
		return err
	}
	return validateStruct("course", "Create", c.Draft)
}

// CreateCourseHandler handles CreateCourseCommand.
type CreateCourseHandler struct {
	deps CourseDeps
}

// NewCreateCourseHandler creates a new CreateCourseHandler.
func NewCreateCourseHandler(deps CourseDeps) *CreateCourseHandler {
	return &CreateCourseHandler{deps: deps.withDefaults()}
}

// Handle executes the command.
func (h *CreateCourseHandler) Handle(ctx context.Context, cmd CreateCourseCommand) (*course.Course, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	now := h.deps.Clock()
	c, err := course.New(h.deps.NewID(), cmd.Actor.UserID, cmd.Draft, now)
	if err != nil {
		return nil, err
	}
	if err := h.deps.Courses.Save(ctx, c); err != nil {
		return nil, fmt.Errorf("save course: %w", err)
	}

	_ = h.deps.Publisher.Publish(shared.NewCourseChangedEvent(shared.EventCourseCreated, c.ID, cmd.Actor.UserID, c.Title, now))
	return c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Update
// ─────────────────────────────────────────────────────────────────────────────

// UpdateCourseCommand applies a patch to an existing course.
type UpdateCourseCommand struct {
	Actor    Actor
	CourseID string
	Patch    course.Patch
}

// Validate validates the command.
func (c UpdateCourseCommand) Validate() error {
	if c.Actor.UserID == "" {
		return shared.ErrMissingCredential
	}
	if err := requireRole(c.Actor.Role.CanAuthorCourses()); err != nil {
		return err
	}
	if c.CourseID == "" {
		return shared.Validation("course", "Update", "course id is required")
	}
	return validateStruct("course", "Update", c.Patch)
}

// UpdateCourseHandler handles UpdateCourseCommand.
type UpdateCourseHandler struct {
	deps CourseDeps
}

// NewUpdateCourseHandler creates a new UpdateCourseHandler.
func NewUpdateCourseHandler(deps CourseDeps) *UpdateCourseHandler {
	return &UpdateCourseHandler{deps: deps.withDefaults()}
}

// Handle executes the command.
func (h *UpdateCourseHandler) Handle(ctx context.Context, cmd UpdateCourseCommand) (*course.Course, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var updated *course.Course
	err := withLock(ctx, h.deps.Locker, courseLock(cmd.CourseID), func() error {
		c, err := h.deps.Courses.Get(ctx, cmd.CourseID)
		if err != nil {
			return err
		}
		if err := cmd.Patch.Apply(c, h.deps.Clock()); err != nil {
			return err
		}
		if err := h.deps.Courses.Save(ctx, c); err != nil {
			return fmt.Errorf("save course: %w", err)
		}
		updated = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Delete
// ─────────────────────────────────────────────────────────────────────────────

// DeleteCourseCommand removes a course. Enrollments referencing it are kept
// and read back with a nil course.
type DeleteCourseCommand struct {
	Actor    Actor
	CourseID string
}

// Validate validates the command.
func (c DeleteCourseCommand) Validate() error {
	if c.Actor.UserID == "" {
		return shared.ErrMissingCredential
	}
	if err := requireRole(c.Actor.Role.CanAuthorCourses()); err != nil {
		return err
	}
	if c.CourseID == "" {
		return shared.Validation("course", "Delete", "course id is required")
	}
	return nil
}

// DeleteCourseHandler handles DeleteCourseCommand.
type DeleteCourseHandler struct {
	deps CourseDeps
}

// NewDeleteCourseHandler creates a new DeleteCourseHandler.
func NewDeleteCourseHandler(deps CourseDeps) *DeleteCourseHandler {
	return &DeleteCourseHandler{deps: deps.withDefaults()}
}

// Handle executes the command.
func (h *DeleteCourseHandler) Handle(ctx context.Context, cmd DeleteCourseCommand) error {
	if err := cmd.Validate(); err != nil {
		return err
	}

	return withLock(ctx, h.deps.Locker, courseLock(cmd.CourseID), func() error {
		c, err := h.deps.Courses.Get(ctx, cmd.CourseID)
		if err != nil {
			return err
		}
		if !c.CanBeDeletedBy(cmd.Actor.UserID, cmd.Actor.Role) {
			return shared.ErrNotCourseOwner
		}
		if err := h.deps.Courses.Delete(ctx, cmd.CourseID); err != nil {
			return fmt.Errorf("delete course: %w", err)
		}
		_ = h.deps.Publisher.Publish(shared.NewCourseChangedEvent(shared.EventCourseDeleted, c.ID, cmd.Actor.UserID, c.Title, h.deps.Clock()))
		return nil
	})
}
