// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/learnhub/learning-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PORTS
// Implemented in infrastructure; declared here so handlers stay testable.
// ══════════════════════════════════════════════════════════════════════════════

// PasswordHasher hashes and verifies login passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	// Compare returns nil when password matches hash.
	Compare(hash, password string) error
}

// TokenIssuer mints bearer credentials for authenticated users.
type TokenIssuer interface {
	Issue(userID string, role shared.Role) (token string, expiresAt time.Time, err error)
}

// ObjectStorage stores uploaded media and hands out time-limited URLs.
type ObjectStorage interface {
	Upload(ctx context.Context, path, contentType string, body io.Reader, size int64) error
	SignedURL(ctx context.Context, path string, ttl time.Duration) (string, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// VALIDATION
// ══════════════════════════════════════════════════════════════════════════════

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct runs struct tags and turns failures into one validation error.
func validateStruct(domain, op string, v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.WrapError(domain, op, shared.ErrValidation, "invalid input", err)
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, describe(fe))
	}
	return shared.Validation(domain, op, strings.Join(msgs, "; "))
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.IndexByte(field, '.'); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email"
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "gte", "lte":
		return fmt.Sprintf("%s is out of range", field)
	}
	return fmt.Sprintf("%s failed %s", field, fe.Tag())
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func publishAll(p shared.EventPublisher, events []shared.Event) {
	if p == nil {
		return
	}
	for _, e := range events {
		_ = p.Publish(e)
	}
}

// withLock runs fn while holding key.
func withLock(ctx context.Context, l shared.Locker, key string, fn func() error) error {
	unlock, err := l.Lock(ctx, key)
	if err != nil {
		return err
	}
	defer unlock()
	return fn()
}

// requireRole fails with ErrRoleNotPermitted unless allowed.
func requireRole(allowed bool) error {
	if !allowed {
		return shared.ErrRoleNotPermitted
	}
	return nil
}
