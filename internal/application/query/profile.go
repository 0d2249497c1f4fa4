package query

import (
	"context"

	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/domain/user"
)

// GetProfileHandler loads the caller's profile.
type GetProfileHandler struct {
	users user.Repository
}

// NewGetProfileHandler creates a new GetProfileHandler.
func NewGetProfileHandler(users user.Repository) *GetProfileHandler {
	return &GetProfileHandler{users: users}
}

// Handle returns shared.ErrUserNotFound for an unknown id.
func (h *GetProfileHandler) Handle(ctx context.Context, userID string) (*user.User, error) {
	if userID == "" {
		return nil, shared.ErrMissingCredential
	}
	return h.users.Get(ctx, userID)
}
