// Package query contains read operations (CQRS - Queries).
// Queries never modify state.
package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/learningpath"
)

// ══════════════════════════════════════════════════════════════════════════════
// CATALOG QUERIES
// Courses and learning paths. Public, no caller identity required.
// ══════════════════════════════════════════════════════════════════════════════

// ListCoursesQuery filters the catalog.
type ListCoursesQuery struct {
	Filter course.Filter
}

// ListCoursesHandler handles ListCoursesQuery.
type ListCoursesHandler struct {
	courses course.Repository
}

// NewListCoursesHandler creates a new ListCoursesHandler.
func NewListCoursesHandler(courses course.Repository) *ListCoursesHandler {
	return &ListCoursesHandler{courses: courses}
}

// Handle returns matching courses, newest first.
func (h *ListCoursesHandler) Handle(ctx context.Context, q ListCoursesQuery) ([]*course.Course, error) {
	all, err := h.courses.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	out := q.Filter.Apply(all)
	sortCourses(out)
	return out, nil
}

func sortCourses(cs []*course.Course) {
	sort.SliceStable(cs, func(i, j int) bool {
		if !cs[i].CreatedAt.Equal(cs[j].CreatedAt) {
			return cs[i].CreatedAt.After(cs[j].CreatedAt)
		}
		return cs[i].ID < cs[j].ID
	})
}

// GetCourseHandler loads one course.
type GetCourseHandler struct {
	courses course.Repository
}

// NewGetCourseHandler creates a new GetCourseHandler.
func NewGetCourseHandler(courses course.Repository) *GetCourseHandler {
	return &GetCourseHandler{courses: courses}
}

// Handle returns shared.ErrCourseNotFound when absent.
func (h *GetCourseHandler) Handle(ctx context.Context, courseID string) (*course.Course, error) {
	return h.courses.Get(ctx, courseID)
}

// ─────────────────────────────────────────────────────────────────────────────
// Learning paths
// ─────────────────────────────────────────────────────────────────────────────

// LearningPathDetail is a path with the courses it references. Ids that no
// longer resolve to a course are left out of Courses.
type LearningPathDetail struct {
	*learningpath.LearningPath
	Courses []*course.Course `json:"courses"`
}

// LearningPathsHandler serves path listings and details.
type LearningPathsHandler struct {
	paths   learningpath.Repository
	courses course.Repository
}

// NewLearningPathsHandler creates a new LearningPathsHandler.
func NewLearningPathsHandler(paths learningpath.Repository, courses course.Repository) *LearningPathsHandler {
	return &LearningPathsHandler{paths: paths, courses: courses}
}

// List returns every path ordered by title.
func (h *LearningPathsHandler) List(ctx context.Context) ([]*learningpath.LearningPath, error) {
	paths, err := h.paths.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list learning paths: %w", err)
	}
	sort.SliceStable(paths, func(i, j int) bool {
		if paths[i].Title != paths[j].Title {
			return paths[i].Title < paths[j].Title
		}
		return paths[i].ID < paths[j].ID
	})
	return paths, nil
}

// Get returns the path enriched with its existing courses, required first.
func (h *LearningPathsHandler) Get(ctx context.Context, pathID string) (*LearningPathDetail, error) {
	p, err := h.paths.Get(ctx, pathID)
	if err != nil {
		return nil, err
	}

	found, err := h.courses.GetMany(ctx, p.CourseIDs())
	if err != nil {
		return nil, fmt.Errorf("load path courses: %w", err)
	}

	courses := make([]*course.Course, 0, len(found))
	for _, c := range found {
		if c != nil {
			courses = append(courses, c)
		}
	}
	return &LearningPathDetail{LearningPath: p, Courses: courses}, nil
}
