package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnhub/learning-hub/pkg/circuitbreaker"
)

func ok(context.Context) error { return nil }

func TestCompositeHealthChecker_NoChecks(t *testing.T) {
	status := NewCompositeHealthChecker("v1").Check(context.Background())
	assert.True(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "No health checks registered", status.Message)
}

func TestCompositeHealthChecker_OptionalFailureKeepsReady(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.AddCheck("store", ok)
	c.AddOptionalCheck("object_storage", func(context.Context) error { return errors.New("down") })

	status := c.Check(context.Background())
	assert.False(t, status.Healthy)
	assert.True(t, status.Ready)
	assert.Equal(t, "Some checks failed: object_storage", status.Message)
	require.Contains(t, status.Checks, "object_storage")
	assert.True(t, status.Checks["object_storage"].Optional)
	assert.Equal(t, "down", status.Checks["object_storage"].Message)
	assert.Equal(t, "OK", status.Checks["store"].Message)
}

func TestCompositeHealthChecker_RequiredFailureAndTimeout(t *testing.T) {
	c := NewCompositeHealthChecker("v1")
	c.SetTimeout(10 * time.Millisecond)
	c.AddCheck("store", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	status := c.Check(context.Background())
	assert.False(t, status.Ready)
	assert.Equal(t, context.DeadlineExceeded.Error(), status.Checks["store"].Message)

	// re-adding a name replaces the check
	c.AddCheck("store", ok)
	status = c.Check(context.Background())
	assert.True(t, status.Ready)
	assert.Len(t, status.Checks, 1)
}

func TestNewBreakerCheck(t *testing.T) {
	state := circuitbreaker.StateOpen
	check := NewBreakerCheck(func() circuitbreaker.State { return state })
	assert.ErrorIs(t, check(context.Background()), ErrCircuitOpen)

	state = circuitbreaker.StateHalfOpen
	assert.NoError(t, check(context.Background()))
}
