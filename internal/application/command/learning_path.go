package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learning-hub/internal/domain/learningpath"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// CreateLearningPathCommand creates a curated path. Admin only.
type CreateLearningPathCommand struct {
	Actor Actor
	Draft learningpath.Draft
}

// Validate validates the command.
func (c CreateLearningPathCommand) Validate() error {
	if c.Actor.UserID == "" {
		return shared.ErrMissingCredential
	}
	if err := requireRole(c.Actor.Role.IsAdmin()); err != nil {
		return err
	}
	return validateStruct("learningpath", "Create", c.Draft)
}

// CreateLearningPathHandler handles CreateLearningPathCommand.
type CreateLearningPathHandler struct {
	paths learningpath.Repository
	clock shared.Clock
	newID func() string
}

// NewCreateLearningPathHandler creates a new CreateLearningPathHandler.
func NewCreateLearningPathHandler(paths learningpath.Repository, clock shared.Clock) *CreateLearningPathHandler {
	return &CreateLearningPathHandler{paths: paths, clock: clock.OrSystem(), newID: shared.NewID}
}

// Handle executes the command. Course ids are stored as given.
func (h *CreateLearningPathHandler) Handle(ctx context.Context, cmd CreateLearningPathCommand) (*learningpath.LearningPath, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	p, err := learningpath.New(h.newID(), cmd.Actor.UserID, cmd.Draft, h.clock())
	if err != nil {
		return nil, err
	}
	if err := h.paths.Save(ctx, p); err != nil {
		return nil, fmt.Errorf("save learning path: %w", err)
	}
	return p, nil
}
