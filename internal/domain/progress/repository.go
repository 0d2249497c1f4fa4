package progress

import "context"

// Repository stores samples under video_progress:{user}:{course}:{module}.
type Repository interface {
	// Get returns shared.ErrNotFound when no sample exists.
	Get(ctx context.Context, userID, courseID, moduleID string) (*VideoProgress, error)

	// Save overwrites the sample for the triple.
	Save(ctx context.Context, p *VideoProgress) error

	// ListByCourse returns all samples of one user within one course.
	ListByCourse(ctx context.Context, userID, courseID string) ([]*VideoProgress, error)
}
