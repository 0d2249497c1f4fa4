package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/progress"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT VIDEO PROGRESS COMMAND
// Stores the latest watch sample for a module. The first sample at or above
// the completion threshold cascades into module completion; later ones are
// no-ops because the module is already recorded.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitVideoProgressCommand is one client watch sample.
type SubmitVideoProgressCommand struct {
	UserID   string
	CourseID string `validate:"required"`
	ModuleID string `validate:"required"`

	WatchedSeconds float64 `validate:"gte=0"`
	TotalSeconds   float64 `validate:"gte=0"`
	Percentage     float64 `validate:"gte=0"`

	// ElapsedSeconds, when set, replaces the explicit figures with a
	// wall-clock estimate: elapsed time since the video opened plus
	// ResumeFromSeconds, over TotalSeconds (or the module length).
	ElapsedSeconds    *float64 `validate:"omitempty,gte=0"`
	ResumeFromSeconds float64  `validate:"gte=0"`
}

// Validate validates the command.
func (c SubmitVideoProgressCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrMissingCredential
	}
	return validateStruct("video_progress", "Submit", c)
}

// SubmitVideoProgressResult contains the stored sample and any cascade.
type SubmitVideoProgressResult struct {
	Progress *progress.VideoProgress

	// Enrollment is set when the sample cascaded into module completion.
	Enrollment      *enrollment.Enrollment
	Cascaded        bool
	CourseCompleted bool
}

// SubmitVideoProgressHandler handles SubmitVideoProgressCommand.
type SubmitVideoProgressHandler struct {
	*engine
	samples progress.Repository
}

// NewSubmitVideoProgressHandler creates a new SubmitVideoProgressHandler.
func NewSubmitVideoProgressHandler(deps EngineDeps, samples progress.Repository) *SubmitVideoProgressHandler {
	return &SubmitVideoProgressHandler{engine: newEngine(deps), samples: samples}
}

// Handle executes the command.
func (h *SubmitVideoProgressHandler) Handle(ctx context.Context, cmd SubmitVideoProgressCommand) (*SubmitVideoProgressResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var result *SubmitVideoProgressResult
	err := withLock(ctx, h.locker, enrollmentLock(cmd.UserID, cmd.CourseID), func() error {
		crs, err := h.courses.Get(ctx, cmd.CourseID)
		if err != nil && !shared.IsNotFound(err) {
			return fmt.Errorf("load course: %w", err)
		}

		sample, err := h.sample(cmd, crs)
		if err != nil {
			return err
		}

		vp, err := progress.New(cmd.UserID, cmd.CourseID, cmd.ModuleID, sample, h.now())
		if err != nil {
			return err
		}
		if err := h.samples.Save(ctx, vp); err != nil {
			return fmt.Errorf("save video progress: %w", err)
		}
		result = &SubmitVideoProgressResult{Progress: vp}

		if !vp.Completed {
			return nil
		}

		enr, err := h.enrollments.Get(ctx, cmd.UserID, cmd.CourseID)
		if shared.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("load enrollment: %w", err)
		}
		if enr.HasCompletedModule(cmd.ModuleID) {
			return nil
		}

		out, err := h.completeLocked(ctx, completion{
			UserID:   cmd.UserID,
			CourseID: cmd.CourseID,
			ModuleID: cmd.ModuleID,
		})
		if err != nil {
			return err
		}
		result.Enrollment = out.Enrollment
		result.Cascaded = out.ModuleAdded
		result.CourseCompleted = out.CourseCompleted
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// sample builds the figures to store, estimating from elapsed time when asked.
func (h *SubmitVideoProgressHandler) sample(cmd SubmitVideoProgressCommand, crs *course.Course) (progress.Sample, error) {
	var module *course.Module
	if crs != nil {
		m, ok := crs.Module(cmd.ModuleID)
		if !ok {
			return progress.Sample{}, shared.Validation("video_progress", "Submit", "module "+cmd.ModuleID+" is not part of the course")
		}
		module = &m
	}

	if cmd.ElapsedSeconds == nil {
		return progress.Sample{
			WatchedSeconds: cmd.WatchedSeconds,
			TotalSeconds:   cmd.TotalSeconds,
			Percentage:     cmd.Percentage,
		}, nil
	}

	total := cmd.TotalSeconds
	if total <= 0 && module != nil {
		total = module.LengthSeconds()
	}
	if total <= 0 {
		return progress.Sample{}, shared.Validation("video_progress", "Submit", "totalSeconds is required when the course is unknown")
	}

	elapsed := time.Duration(*cmd.ElapsedSeconds * float64(time.Second))
	return progress.EstimateFromElapsed(elapsed, cmd.ResumeFromSeconds, total), nil
}
