package analytics

import (
	"context"
	"fmt"

	"github.com/learnhub/learning-hub/internal/domain/course"
	"github.com/learnhub/learning-hub/internal/domain/enrollment"
	"github.com/learnhub/learning-hub/internal/domain/learningpath"
	"github.com/learnhub/learning-hub/internal/domain/user"
)

// SnapshotRepository stores snapshots under analytics_snapshot:{date}.
type SnapshotRepository interface {
	Save(ctx context.Context, s *Snapshot) error
	// List returns snapshots newest first.
	List(ctx context.Context) ([]*Snapshot, error)
}

// Sources are the repositories a full scan reads.
type Sources struct {
	Users       user.Repository
	Courses     course.Repository
	Enrollments enrollment.Repository
	Paths       learningpath.Repository
}

// Load scans every entity kind. Cost is linear in the store size.
func (s Sources) Load(ctx context.Context) (Dataset, error) {
	var (
		d   Dataset
		err error
	)
	if d.Users, err = s.Users.List(ctx); err != nil {
		return Dataset{}, fmt.Errorf("list users: %w", err)
	}
	if d.Courses, err = s.Courses.List(ctx); err != nil {
		return Dataset{}, fmt.Errorf("list courses: %w", err)
	}
	if d.Enrollments, err = s.Enrollments.List(ctx); err != nil {
		return Dataset{}, fmt.Errorf("list enrollments: %w", err)
	}
	if d.Paths, err = s.Paths.List(ctx); err != nil {
		return Dataset{}, fmt.Errorf("list learning paths: %w", err)
	}
	return d, nil
}
