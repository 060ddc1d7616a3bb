package dispatcher

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(1000, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), time.Second)
}

func TestRateLimiter_PenaltyDelaysNextSend(t *testing.T) {
	rl := NewRateLimiter(1000, 10)
	rl.Penalize(50 * time.Millisecond)

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond, "penalty window must be waited out")
}

func TestRateLimiter_PenaltyNeverShrinks(t *testing.T) {
	rl := NewRateLimiter(1000, 10)
	rl.Penalize(80 * time.Millisecond)
	rl.Penalize(10 * time.Millisecond) // shorter penalty must not override

	start := time.Now()
	require.NoError(t, rl.Wait(context.Background()))
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestRateLimiter_WaitHonoursCancellation(t *testing.T) {
	rl := NewRateLimiter(1000, 10)
	rl.Penalize(5 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := rl.Wait(ctx)
	assert.Error(t, err)
}

func TestNewRateLimiter_Defaults(t *testing.T) {
	rl := NewRateLimiter(0, 0)
	require.NoError(t, rl.Wait(context.Background()))
}
