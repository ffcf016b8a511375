package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/fjod/shopgate/api-gateway/internal/token"
	"github.com/fjod/shopgate/pkg/envelope"
	"github.com/fjod/shopgate/pkg/logger"
)

type Verifier interface {
	Verify(tokenString string) (token.Identity, error)
	ExpiryOf(tokenString string) (time.Time, bool)
}

type Revocations interface {
	Revoke(tokenString string, expiresAt time.Time)
	IsRevoked(tokenString string) bool
}

type identityKey struct{}

func IdentityFromContext(ctx context.Context) (token.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(token.Identity)
	return id, ok
}

type AuthGate struct {
	verifier    Verifier
	revocations Revocations
	logger      zerolog.Logger
}

func NewAuthGate(verifier Verifier, revocations Revocations, logger zerolog.Logger) *AuthGate {
	return &AuthGate{verifier: verifier, revocations: revocations, logger: logger}
}

// Require builds the gate for one route. Downstream services trust
// X-User-Id, so a caller-supplied value never survives the gate.
func (g *AuthGate) Require(authRequired bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r = r.Clone(r.Context())
			r.Header.Del(HeaderUserID)
			r.Header.Set(HeaderAuthNeeded, strconv.FormatBool(authRequired))

			if !authRequired {
				next.ServeHTTP(w, r)
				return
			}

			id, ok := g.authenticate(r)
			if !ok {
				envelope.WriteError(w, http.StatusUnauthorized, envelope.CodeUnauthenticated, "authentication required")
				return
			}

			r.Header.Set(HeaderUserID, id.SubjectID)
			stripCredential(r)
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), identityKey{}, id)))
		})
	}
}

func (g *AuthGate) authenticate(r *http.Request) (token.Identity, bool) {
	l := g.log(r.Context())

	tok, ok := ExtractCredential(r)
	if !ok {
		l.Debug().Str("path", r.URL.Path).Msg("no credential presented")
		return token.Identity{}, false
	}
	if g.revocations.IsRevoked(tok) {
		l.Info().Str("path", r.URL.Path).Msg("revoked token presented")
		return token.Identity{}, false
	}

	id, err := g.verifier.Verify(tok)
	if err != nil {
		l.Info().Err(err).Str("path", r.URL.Path).Msg("token verification failed")
		return token.Identity{}, false
	}
	return id, true
}

// RevokeOnLogout records the presented token as revoked until its own
// expiry, then forwards the logout. The credential never reaches the
// upstream, whether or not it was valid.
func (g *AuthGate) RevokeOnLogout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, ok := ExtractCredential(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		r = r.Clone(r.Context())
		r.Header.Del(HeaderUserID)
		stripCredential(r)

		if g.revocations.IsRevoked(tok) {
			next.ServeHTTP(w, r)
			return
		}

		id, err := g.verifier.Verify(tok)
		if err != nil {
			g.log(r.Context()).Info().Err(err).Msg("logout with invalid token")
			next.ServeHTTP(w, r)
			return
		}

		expiresAt, ok := g.verifier.ExpiryOf(tok)
		if !ok {
			expiresAt = id.ExpiresAt
		}
		g.revocations.Revoke(tok, expiresAt)
		g.log(r.Context()).Info().Str("user_id", id.SubjectID).Msg("session revoked")

		r.Header.Set(HeaderUserID, id.SubjectID)
		next.ServeHTTP(w, r)
	})
}

// log prefers the request-scoped logger and falls back to the gate's own.
func (g *AuthGate) log(ctx context.Context) *zerolog.Logger {
	if zerolog.Ctx(ctx).GetLevel() == zerolog.Disabled {
		return &g.logger
	}
	return logger.FromContext(ctx)
}
