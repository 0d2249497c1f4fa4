package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/learnhub/learning-hub/internal/domain/analytics"
	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/progress"
	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEARNER QUERIES
// Everything here is scoped to the caller's own user id.
// ══════════════════════════════════════════════════════════════════════════════

// MyEnrollmentsHandler lists a user's enrollments with their courses.
type MyEnrollmentsHandler struct {
	enrollments enrollment.Repository
	courses     course.Repository
}

// NewMyEnrollmentsHandler creates a new MyEnrollmentsHandler.
func NewMyEnrollmentsHandler(enrollments enrollment.Repository, courses course.Repository) *MyEnrollmentsHandler {
	return &MyEnrollmentsHandler{enrollments: enrollments, courses: courses}
}

// Handle returns enrollments most recently accessed first. Course is nil for
// deleted courses.
func (h *MyEnrollmentsHandler) Handle(ctx context.Context, userID string) ([]analytics.CourseProgress, error) {
	if userID == "" {
		return nil, shared.ErrMissingCredential
	}

	list, err := h.enrollments.ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	sort.SliceStable(list, func(i, j int) bool {
		if !list[i].LastAccessedAt.Equal(list[j].LastAccessedAt) {
			return list[i].LastAccessedAt.After(list[j].LastAccessedAt)
		}
		return list[i].CourseID < list[j].CourseID
	})

	ids := make([]string, len(list))
	for i, e := range list {
		ids[i] = e.CourseID
	}
	courses, err := h.courses.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load enrolled courses: %w", err)
	}

	out := make([]analytics.CourseProgress, len(list))
	for i, e := range list {
		out[i] = analytics.CourseProgress{Enrollment: e, Course: courses[i]}
	}
	return out, nil
}

// UserProgressHandler summarizes a user's learning.
type UserProgressHandler struct {
	mine *MyEnrollmentsHandler
}

// NewUserProgressHandler creates a new UserProgressHandler.
func NewUserProgressHandler(enrollments enrollment.Repository, courses course.Repository) *UserProgressHandler {
	return &UserProgressHandler{mine: NewMyEnrollmentsHandler(enrollments, courses)}
}

// Handle returns the summary; averageProgress is 0 without enrollments.
func (h *UserProgressHandler) Handle(ctx context.Context, userID string) (*analytics.UserProgress, error) {
	list, err := h.mine.Handle(ctx, userID)
	if err != nil {
		return nil, err
	}
	up := analytics.SummarizeUser(list)
	return &up, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Video progress
// ─────────────────────────────────────────────────────────────────────────────

// VideoProgressHandler reads stored watch samples.
type VideoProgressHandler struct {
	samples progress.Repository
}

// NewVideoProgressHandler creates a new VideoProgressHandler.
func NewVideoProgressHandler(samples progress.Repository) *VideoProgressHandler {
	return &VideoProgressHandler{samples: samples}
}

// Get returns the sample for one module, or nil when none was submitted.
func (h *VideoProgressHandler) Get(ctx context.Context, userID, courseID, moduleID string) (*progress.VideoProgress, error) {
	if userID == "" {
		return nil, shared.ErrMissingCredential
	}
	vp, err := h.samples.Get(ctx, userID, courseID, moduleID)
	if shared.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load video progress: %w", err)
	}
	return vp, nil
}

// ListByCourse returns all samples of the user in one course ordered by module id.
func (h *VideoProgressHandler) ListByCourse(ctx context.Context, userID, courseID string) ([]*progress.VideoProgress, error) {
	if userID == "" {
		return nil, shared.ErrMissingCredential
	}
	list, err := h.samples.ListByCourse(ctx, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("list video progress: %w", err)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ModuleID < list[j].ModuleID })
	return list, nil
}
