package revocation

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newTestRegistry() (*Registry, *fakeClock) {
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	return NewRegistry(WithClock(clock.Now)), clock
}

func TestRevoke_ThenIsRevoked(t *testing.T) {
	r, clock := newTestRegistry()

	assert.False(t, r.IsRevoked("tok"))

	r.Revoke("tok", clock.Now().Add(time.Hour))
	assert.True(t, r.IsRevoked("tok"))
	assert.False(t, r.IsRevoked("other"))
}

func TestIsRevoked_LazyExpiry(t *testing.T) {
	r, clock := newTestRegistry()
	r.Revoke("tok", clock.Now().Add(time.Hour))
	require.Equal(t, 1, r.Len())

	clock.Advance(time.Hour + time.Second)

	assert.False(t, r.IsRevoked("tok"))
	assert.Equal(t, 0, r.Len(), "expired entry should be removed on lookup")
}

func TestIsRevoked_AtExactExpiry(t *testing.T) {
	r, clock := newTestRegistry()
	r.Revoke("tok", clock.Now().Add(time.Minute))

	clock.Advance(time.Minute)
	assert.True(t, r.IsRevoked("tok"), "entry is live until now is strictly after expiry")
}

func TestRevoke_Idempotent(t *testing.T) {
	r, clock := newTestRegistry()
	exp := clock.Now().Add(time.Hour)

	r.Revoke("tok", exp)
	r.Revoke("tok", exp)

	assert.Equal(t, 1, r.Len())
	assert.True(t, r.IsRevoked("tok"))
}

func TestRevoke_AlreadyExpired(t *testing.T) {
	r, clock := newTestRegistry()
	r.Revoke("tok", clock.Now().Add(-time.Minute))

	assert.False(t, r.IsRevoked("tok"))
}

func TestSweep_RemovesOnlyExpired(t *testing.T) {
	r, clock := newTestRegistry()
	r.Revoke("short", clock.Now().Add(time.Minute))
	r.Revoke("long", clock.Now().Add(2*time.Hour))

	clock.Advance(time.Hour)

	assert.Equal(t, 1, r.Sweep())
	assert.Equal(t, 1, r.Len())
	assert.True(t, r.IsRevoked("long"))
}

func TestRun_SweepsOnInterval(t *testing.T) {
	r := NewRegistry(WithSweepInterval(10 * time.Millisecond))
	r.Revoke("tok", time.Now().Add(20*time.Millisecond))
	require.Equal(t, 1, r.Len())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	require.Eventually(t, func() bool {
		return r.Len() == 0
	}, time.Second, 10*time.Millisecond, "sweep never removed the expired entry")
}

func TestClose_DropsEverything(t *testing.T) {
	r, clock := newTestRegistry()
	r.Revoke("a", clock.Now().Add(time.Hour))
	r.Revoke("b", clock.Now().Add(time.Hour))

	r.Close()
	assert.Equal(t, 0, r.Len())
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r, clock := newTestRegistry()
	exp := clock.Now().Add(time.Hour)

	var wg sync.WaitGroup
	var hits atomic.Int64
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tok := fmt.Sprintf("tok-%d", i%10)
			r.Revoke(tok, exp)
			if r.IsRevoked(tok) {
				hits.Add(1)
			}
			r.Sweep()
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(50), hits.Load())
	assert.Equal(t, 10, r.Len())
}
