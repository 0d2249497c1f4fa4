package user

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Implementations live in infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository stores user profiles under user:{id}.
type Repository interface {
	// Get returns shared.ErrUserNotFound when the profile is absent.
	Get(ctx context.Context, id string) (*User, error)

	// Save creates or overwrites the profile.
	Save(ctx context.Context, u *User) error

	// List returns every profile. Order is unspecified.
	List(ctx context.Context) ([]*User, error)
}

// Credential is the login secret for one e-mail address.
type Credential struct {
	Email        string `json:"email"`
	UserID       string `json:"userId"`
	PasswordHash string `json:"passwordHash"`
}

// CredentialRepository stores credentials under credential:{email}.
type CredentialRepository interface {
	// Get returns shared.ErrNotFound when no credential exists for email.
	Get(ctx context.Context, email string) (*Credential, error)

	// Save creates or overwrites the credential.
	Save(ctx context.Context, c *Credential) error
}
