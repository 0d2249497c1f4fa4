package shared

import "context"

// Locker serializes read-modify-write sequences on one aggregate key.
// Lock blocks until the key is free or ctx is done; the returned func
// releases it and is safe to call once.
type Locker interface {
	Lock(ctx context.Context, key string) (func(), error)
}

// LockTimeout wraps a context error from a failed acquisition.
func LockTimeout(key string, cause error) error {
	return WrapError("lock", "Acquire", ErrTimeout, "could not acquire "+key, cause)
}
