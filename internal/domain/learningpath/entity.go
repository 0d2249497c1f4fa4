// Package learningpath models curated bundles of courses.
package learningpath

import (
	"strings"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// LearningPath groups required and optional courses. Course ids are not
// checked against the catalog; missing ones are dropped when the path is read.
type LearningPath struct {
	ID                string    `json:"id"`
	Title             string    `json:"title"`
	Description       string    `json:"description"`
	RequiredCourses   []string  `json:"requiredCourses"`
	OptionalCourses   []string  `json:"optionalCourses"`
	EstimatedDuration string    `json:"estimatedDuration"`
	Skills            []string  `json:"skills"`
	Level             string    `json:"level"`
	EnrollmentCount   int       `json:"enrollmentCount"`
	CreatedBy         string    `json:"createdBy,omitempty"`
	CreatedAt         time.Time `json:"createdAt"`
}

// Draft holds the author-supplied fields of a new path.
type Draft struct {
	Title             string   `json:"title" validate:"required,max=200"`
	Description       string   `json:"description" validate:"max=5000"`
	RequiredCourses   []string `json:"requiredCourses" validate:"max=100,dive,required"`
	OptionalCourses   []string `json:"optionalCourses" validate:"max=100,dive,required"`
	EstimatedDuration string   `json:"estimatedDuration" validate:"max=50"`
	Skills            []string `json:"skills" validate:"max=30,dive,min=1,max=60"`
	Level             string   `json:"level" validate:"max=60"`
}

// New creates a path with a zero enrollment counter.
func New(id, createdBy string, d Draft, now time.Time) (*LearningPath, error) {
	if strings.TrimSpace(d.Title) == "" {
		return nil, shared.Validation("learningpath", "Create", "title is required")
	}
	return &LearningPath{
		ID:                id,
		Title:             strings.TrimSpace(d.Title),
		Description:       d.Description,
		RequiredCourses:   orEmpty(d.RequiredCourses),
		OptionalCourses:   orEmpty(d.OptionalCourses),
		EstimatedDuration: d.EstimatedDuration,
		Skills:            orEmpty(d.Skills),
		Level:             d.Level,
		CreatedBy:         createdBy,
		CreatedAt:         now,
	}, nil
}

// CourseIDs returns required then optional course ids, without duplicates.
func (p *LearningPath) CourseIDs() []string {
	seen := make(map[string]struct{}, len(p.RequiredCourses)+len(p.OptionalCourses))
	ids := make([]string, 0, len(p.RequiredCourses)+len(p.OptionalCourses))
	for _, list := range [][]string{p.RequiredCourses, p.OptionalCourses} {
		for _, id := range list {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

func orEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
