package enrollment

import "context"

// Repository stores enrollments under enrollment:{userId}:{courseId}.
type Repository interface {
	// Get returns shared.ErrEnrollmentNotFound when the pair is not enrolled.
	Get(ctx context.Context, userID, courseID string) (*Enrollment, error)

	// Save creates or overwrites the enrollment.
	Save(ctx context.Context, e *Enrollment) error

	// ListByUser returns every enrollment of one user.
	ListByUser(ctx context.Context, userID string) ([]*Enrollment, error)

	// List returns every enrollment in the store.
	List(ctx context.Context) ([]*Enrollment, error)
}
