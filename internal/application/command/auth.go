package command

import (
	"context"
	"fmt"
	"time"

	"github.com/learnhub/learning-hub/internal/domain/shared"
	"github.com/learnhub/learning-hub/internal/domain/user"
)

// ══════════════════════════════════════════════════════════════════════════════
// SIGNUP & LOGIN
// ══════════════════════════════════════════════════════════════════════════════

// AuthDeps are the collaborators of signup and login.
type AuthDeps struct {
	Users       user.Repository
	Credentials user.CredentialRepository
	Hasher      PasswordHasher
	Tokens      TokenIssuer
	Locker      shared.Locker
	Publisher   shared.EventPublisher
	Clock       shared.Clock
}

func (d AuthDeps) withDefaults() AuthDeps {
	if d.Publisher == nil {
		d.Publisher = shared.NoopPublisher{}
	}
	d.Clock = d.Clock.OrSystem()
	return d
}

func credentialLock(email string) string { return "credential:" + email }

// Session is the result of a successful signup or login.
type Session struct {
	User      *user.User
	Token     string
	ExpiresAt time.Time
}

// ─────────────────────────────────────────────────────────────────────────────
// Signup
// ─────────────────────────────────────────────────────────────────────────────

// SignupCommand registers a new account.
type SignupCommand struct {
	Email        string   `json:"email" validate:"required,email,max=254"`
	Password     string   `json:"password" validate:"required,min=6,max=72"`
	Name         string   `json:"name" validate:"required,max=120"`
	Role         string   `json:"role" validate:"omitempty,oneof=learner instructor org_manager"`
	Organization string   `json:"organization" validate:"max=120"`
	Skills       []string `json:"skills" validate:"max=50,dive,min=1,max=60"`
}

// Validate validates the command. Admins cannot be self-registered.
func (c SignupCommand) Validate() error {
	return validateStruct("user", "Signup", c)
}

// SignupHandler handles SignupCommand.
type SignupHandler struct {
	deps  AuthDeps
	newID func() string
}

// NewSignupHandler creates a new SignupHandler.
func NewSignupHandler(deps AuthDeps) *SignupHandler {
	return &SignupHandler{deps: deps.withDefaults(), newID: shared.NewID}
}

// Handle executes the command.
func (h *SignupHandler) Handle(ctx context.Context, cmd SignupCommand) (*Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return h.register(ctx, cmd, shared.Role(cmd.Role))
}

// register writes the user and its credential. The role is not checked
// against what self-signup allows.
func (h *SignupHandler) register(ctx context.Context, cmd SignupCommand, role shared.Role) (*Session, error) {
	email := user.NormalizeEmail(cmd.Email)
	var created *user.User
	err := withLock(ctx, h.deps.Locker, credentialLock(email), func() error {
		if _, err := h.deps.Credentials.Get(ctx, email); err == nil {
			return shared.ErrEmailAlreadyTaken
		} else if !shared.IsNotFound(err) {
			return fmt.Errorf("load credential: %w", err)
		}

		hash, err := h.deps.Hasher.Hash(cmd.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		u, err := user.NewUser(user.NewUserParams{
			ID:           h.newID(),
			Email:        email,
			Name:         cmd.Name,
			Role:         role,
			Organization: cmd.Organization,
			Skills:       cmd.Skills,
			CreatedAt:    h.deps.Clock(),
		})
		if err != nil {
			return err
		}

		if err := h.deps.Users.Save(ctx, u); err != nil {
			return fmt.Errorf("save user: %w", err)
		}
		if err := h.deps.Credentials.Save(ctx, &user.Credential{Email: email, UserID: u.ID, PasswordHash: hash}); err != nil {
			return fmt.Errorf("save credential: %w", err)
		}
		created = u
		return nil
	})
	if err != nil {
		return nil, err
	}

	_ = h.deps.Publisher.Publish(shared.NewUserRegisteredEvent(created.ID, created.Email, string(created.Role), created.CreatedAt))

	token, exp, err := h.deps.Tokens.Issue(created.ID, created.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: created, Token: token, ExpiresAt: exp}, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Admin bootstrap
// ─────────────────────────────────────────────────────────────────────────────

// BootstrapAdminCommand describes the operator account configured through
// ADMIN_EMAIL and ADMIN_PASSWORD.
type BootstrapAdminCommand struct {
	Email    string `validate:"required,email,max=254"`
	Password string `validate:"required,min=8,max=72"`
	Name     string `validate:"required,max=120"`
}

// EnsureAdmin creates an admin account unless the e-mail is already
// registered. An existing account keeps its role and password. It reports
// whether an account was created.
func EnsureAdmin(ctx context.Context, deps AuthDeps, cmd BootstrapAdminCommand) (bool, error) {
	if err := validateStruct("user", "BootstrapAdmin", cmd); err != nil {
		return false, err
	}
	h := NewSignupHandler(deps)
	_, err := h.register(ctx, SignupCommand{
		Email:    cmd.Email,
		Password: cmd.Password,
		Name:     cmd.Name,
	}, shared.RoleAdmin)
	if shared.IsAlreadyExists(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Login
// ─────────────────────────────────────────────────────────────────────────────

// LoginCommand exchanges e-mail and password for a bearer token.
type LoginCommand struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// Validate validates the command.
func (c LoginCommand) Validate() error {
	return validateStruct("user", "Login", c)
}

// LoginHandler handles LoginCommand.
type LoginHandler struct {
	deps AuthDeps
}

// NewLoginHandler creates a new LoginHandler.
func NewLoginHandler(deps AuthDeps) *LoginHandler {
	return &LoginHandler{deps: deps.withDefaults()}
}

// Handle executes the command. Unknown e-mail and wrong password fail the same way.
func (h *LoginHandler) Handle(ctx context.Context, cmd LoginCommand) (*Session, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	cred, err := h.deps.Credentials.Get(ctx, user.NormalizeEmail(cmd.Email))
	if shared.IsNotFound(err) {
		return nil, shared.ErrWrongPassword
	}
	if err != nil {
		return nil, fmt.Errorf("load credential: %w", err)
	}
	if err := h.deps.Hasher.Compare(cred.PasswordHash, cmd.Password); err != nil {
		return nil, shared.ErrWrongPassword
	}

	u, err := h.deps.Users.Get(ctx, cred.UserID)
	if err != nil {
		return nil, err
	}

	token, exp, err := h.deps.Tokens.Issue(u.ID, u.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{User: u, Token: token, ExpiresAt: exp}, nil
}
