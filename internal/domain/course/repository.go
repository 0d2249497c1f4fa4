package course

import "context"

// Repository stores courses under course:{id}.
type Repository interface {
	// Get returns shared.ErrCourseNotFound when the course is absent.
	Get(ctx context.Context, id string) (*Course, error)

	// GetMany returns courses aligned with ids; absent courses are nil.
	GetMany(ctx context.Context, ids []string) ([]*Course, error)

	// Save creates or overwrites the course.
	Save(ctx context.Context, c *Course) error

	// Delete removes the course. Deleting an absent course is not an error.
	Delete(ctx context.Context, id string) error

	// List returns every course. Order is unspecified.
	List(ctx context.Context) ([]*Course, error)
}
