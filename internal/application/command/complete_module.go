package command

import (
	"context"
	"math"

	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE MODULE COMMAND
// Records a finished module and recomputes course progress. Repeating a
// module is a no-op for completedModules.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteModuleCommand updates enrollment progress.
type CompleteModuleCommand struct {
	UserID   string
	CourseID string

	// ModuleID is optional; when empty only progress/status change.
	ModuleID string

	// Progress overrides the computed value when set. Clamped to [0,100].
	Progress *float64

	// MarkCompleted completes the course regardless of progress.
	MarkCompleted bool
}

// Validate validates the command.
func (c CompleteModuleCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrMissingCredential
	}
	if c.CourseID == "" {
		return shared.Validation("enrollment", "CompleteModule", "courseId is required")
	}
	if c.Progress != nil && (math.IsNaN(*c.Progress) || math.IsInf(*c.Progress, 0)) {
		return shared.ErrInvalidProgress
	}
	return nil
}

// CompleteModuleResult contains the updated enrollment.
type CompleteModuleResult struct {
	Enrollment *enrollment.Enrollment

	// ModuleAdded is false when the module was already recorded.
	ModuleAdded bool

	// CourseCompleted is true only on the transition to completed.
	CourseCompleted bool
}

// CompleteModuleHandler handles CompleteModuleCommand.
type CompleteModuleHandler struct {
	*engine
}

// NewCompleteModuleHandler creates a new CompleteModuleHandler.
func NewCompleteModuleHandler(deps EngineDeps) *CompleteModuleHandler {
	return &CompleteModuleHandler{engine: newEngine(deps)}
}

// Handle executes the command.
func (h *CompleteModuleHandler) Handle(ctx context.Context, cmd CompleteModuleCommand) (*CompleteModuleResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var out *completionOutcome
	err := withLock(ctx, h.locker, enrollmentLock(cmd.UserID, cmd.CourseID), func() error {
		var err error
		out, err = h.completeLocked(ctx, completion{
			UserID:        cmd.UserID,
			CourseID:      cmd.CourseID,
			ModuleID:      cmd.ModuleID,
			Progress:      cmd.Progress,
			MarkCompleted: cmd.MarkCompleted,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	return &CompleteModuleResult{
		Enrollment:      out.Enrollment,
		ModuleAdded:     out.ModuleAdded,
		CourseCompleted: out.CourseCompleted,
	}, nil
}
