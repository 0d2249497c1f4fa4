package command

import (
	"context"
	"fmt"

	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/domain/user"
)

// UpdateProfileCommand patches the caller's own profile.
type UpdateProfileCommand struct {
	UserID string
	Patch  user.ProfilePatch
}

// Validate validates the command.
func (c UpdateProfileCommand) Validate() error {
	if c.UserID == "" {
		return shared.ErrMissingCredential
	}
	return validateStruct("user", "Update", c.Patch)
}

// UpdateProfileHandler handles UpdateProfileCommand.
type UpdateProfileHandler struct {
	users  user.Repository
	locker shared.Locker
	clock  shared.Clock
}

// NewUpdateProfileHandler creates a new UpdateProfileHandler.
func NewUpdateProfileHandler(users user.Repository, locker shared.Locker, clock shared.Clock) *UpdateProfileHandler {
	return &UpdateProfileHandler{users: users, locker: locker, clock: clock.OrSystem()}
}

// Handle executes the command. An empty patch returns the profile unchanged.
func (h *UpdateProfileHandler) Handle(ctx context.Context, cmd UpdateProfileCommand) (*user.User, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var updated *user.User
	err := withLock(ctx, h.locker, userLock(cmd.UserID), func() error {
		u, err := h.users.Get(ctx, cmd.UserID)
		if err != nil {
			return err
		}
		updated = u
		if cmd.Patch.IsEmpty() {
			return nil
		}
		if err := cmd.Patch.Apply(u, h.clock()); err != nil {
			return err
		}
		if err := h.users.Save(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
