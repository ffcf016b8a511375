// Package revocation holds tokens invalidated before their natural expiry.
//
// The registry is process-local. It is created once by the gateway, swept by
// Run until the gateway shuts down, and then closed. Entries live exactly as
// long as the token they revoke would have.
package revocation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
)

const DefaultSweepInterval = time.Hour

type Registry struct {
	entries       *ttlcache.Cache[string, time.Time]
	sweepInterval time.Duration
	now           func() time.Time
	logger        zerolog.Logger
}

type Option func(*Registry)

func WithSweepInterval(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.sweepInterval = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		entries: ttlcache.New[string, time.Time](
			ttlcache.WithDisableTouchOnHit[string, time.Time](),
		),
		sweepInterval: DefaultSweepInterval,
		now:           time.Now,
		logger:        zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Revoke blacklists token until expiresAt. Calling it again overwrites the
// previous entry.
func (r *Registry) Revoke(token string, expiresAt time.Time) {
	ttl := expiresAt.Sub(r.now())
	if ttl <= 0 {
		// ttlcache treats a non-positive ttl as "default" or "never";
		// an already-expired entry must still expire.
		ttl = time.Nanosecond
	}
	r.entries.Set(key(token), expiresAt, ttl)
}

func (r *Registry) IsRevoked(token string) bool {
	k := key(token)
	item := r.entries.Get(k)
	if item == nil {
		return false
	}

	if r.now().After(item.Value()) {
		r.entries.Delete(k)
		return false
	}
	return true
}

// Sweep drops every entry whose expiry has passed and reports how many.
func (r *Registry) Sweep() int {
	before := r.entries.Len()
	r.entries.DeleteExpired()

	now := r.now()
	for k, item := range r.entries.Items() {
		if now.After(item.Value()) {
			r.entries.Delete(k)
		}
	}
	return before - r.entries.Len()
}

// Run sweeps on a fixed interval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if removed := r.Sweep(); removed > 0 {
				r.logger.Debug().Int("removed", removed).Int("remaining", r.Len()).Msg("revocation sweep")
			}
		case <-ctx.Done():
			return
		}
	}
}

func (r *Registry) Len() int {
	return r.entries.Len()
}

func (r *Registry) Close() {
	r.entries.DeleteAll()
}

func key(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
