package learningpath

import "context"

// Repository stores paths under path:{id}.
type Repository interface {
	// Get returns shared.ErrPathNotFound when the path is absent.
	Get(ctx context.Context, id string) (*LearningPath, error)

	// Save creates or overwrites the path.
	Save(ctx context.Context, p *LearningPath) error

	// List returns every path. Order is unspecified.
	List(ctx context.Context) ([]*LearningPath, error)
}
