package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/shopgate/api-gateway/internal/token"
	"github.com/fjod/shopgate/pkg/envelope"
)

type mockVerifier struct {
	mu         sync.RWMutex
	identities map[string]token.Identity
	expiries   map[string]time.Time
	calls      int
}

func newMockVerifier() *mockVerifier {
	return &mockVerifier{identities: make(map[string]token.Identity), expiries: make(map[string]time.Time)}
}

func (m *mockVerifier) setExpiry(tok string, exp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expiries[tok] = exp
}

func (m *mockVerifier) add(tok, subject string, exp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.identities[tok] = token.Identity{SubjectID: subject, ExpiresAt: exp}
}

func (m *mockVerifier) Verify(tok string) (token.Identity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	id, ok := m.identities[tok]
	if !ok {
		return token.Identity{}, errors.New("signature invalid")
	}
	return id, nil
}

func (m *mockVerifier) ExpiryOf(tok string) (time.Time, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if exp, ok := m.expiries[tok]; ok {
		return exp, true
	}
	id, ok := m.identities[tok]
	return id.ExpiresAt, ok
}

func (m *mockVerifier) callCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls
}

type mockRevocations struct {
	mu      sync.RWMutex
	revoked map[string]time.Time
}

func newMockRevocations() *mockRevocations {
	return &mockRevocations{revoked: make(map[string]time.Time)}
}

func (m *mockRevocations) Revoke(tok string, exp time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tok] = exp
}

func (m *mockRevocations) IsRevoked(tok string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.revoked[tok]
	return ok
}

// captured records what the downstream handler received.
type captured struct {
	called bool
	header http.Header
	id     token.Identity
	hasID  bool
}

func (c *captured) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.header = r.Header.Clone()
		c.id, c.hasID = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) envelope.Response {
	t.Helper()
	var resp envelope.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestRequire_PublicRoutePassesThroughWithoutCredential(t *testing.T) {
	gate := NewAuthGate(newMockVerifier(), newMockRevocations(), zerolog.Nop())
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/api/search/products", nil)
	req.Header.Set(HeaderUserID, "999")
	rec := httptest.NewRecorder()
	gate.Require(false)(got.handler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, got.called)
	assert.Empty(t, got.header.Get(HeaderUserID), "spoofed identity must be dropped")
	assert.Equal(t, "false", got.header.Get(HeaderAuthNeeded))
	assert.False(t, got.hasID)
}

func TestRequire_MissingCredential(t *testing.T) {
	gate := NewAuthGate(newMockVerifier(), newMockRevocations(), zerolog.Nop())
	var got captured

	rec := httptest.NewRecorder()
	gate.Require(true)(got.handler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/cart", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, got.called)
	resp := decodeEnvelope(t, rec)
	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, envelope.CodeUnauthenticated, resp.Error.Code)
}

func TestRequire_RevokedTokenIsRejectedBeforeVerification(t *testing.T) {
	verifier := newMockVerifier()
	verifier.add("tok", "42", time.Now().Add(time.Hour))
	revocations := newMockRevocations()
	revocations.Revoke("tok", time.Now().Add(time.Hour))
	gate := NewAuthGate(verifier, revocations, zerolog.Nop())
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	gate.Require(true)(got.handler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, got.called)
	assert.Zero(t, verifier.callCount())
}

func TestRequire_InvalidTokenGetsGenericMessage(t *testing.T) {
	gate := NewAuthGate(newMockVerifier(), newMockRevocations(), zerolog.Nop())
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	gate.Require(true)(got.handler()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeEnvelope(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "authentication required", resp.Error.Message)
	assert.NotContains(t, rec.Body.String(), "signature")
}

func TestRequire_ValidBearerToken(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	verifier := newMockVerifier()
	verifier.add("good", "42", exp)
	gate := NewAuthGate(verifier, newMockRevocations(), zerolog.Nop())
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(HeaderUserID, "7")
	req.AddCookie(&http.Cookie{Name: "theme", Value: "dark"})
	rec := httptest.NewRecorder()
	gate.Require(true)(got.handler()).ServeHTTP(rec, req)

	require.True(t, got.called)
	assert.Equal(t, "42", got.header.Get(HeaderUserID))
	assert.Equal(t, "true", got.header.Get(HeaderAuthNeeded))
	assert.Empty(t, got.header.Get("Authorization"))
	assert.Equal(t, "theme=dark", got.header.Get("Cookie"))
	require.True(t, got.hasID)
	assert.Equal(t, token.Identity{SubjectID: "42", ExpiresAt: exp}, got.id)

	// the caller's request is left untouched
	assert.Equal(t, "Bearer good", req.Header.Get("Authorization"))
}

func TestRequire_CookieCredentialIsStripped(t *testing.T) {
	verifier := newMockVerifier()
	verifier.add("from-cookie", "5", time.Now().Add(time.Hour))
	gate := NewAuthGate(verifier, newMockRevocations(), zerolog.Nop())
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/api/member/profile", nil)
	req.AddCookie(&http.Cookie{Name: "token", Value: "from-cookie"})
	req.AddCookie(&http.Cookie{Name: "lang", Value: "en"})
	rec := httptest.NewRecorder()
	gate.Require(true)(got.handler()).ServeHTTP(rec, req)

	require.True(t, got.called)
	assert.Equal(t, "5", got.header.Get(HeaderUserID))
	assert.Equal(t, "lang=en", got.header.Get("Cookie"))
}

func TestRevokeOnLogout_RecordsValidToken(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	verifier := newMockVerifier()
	verifier.add("tok", "42", exp)
	revocations := newMockRevocations()
	gate := NewAuthGate(verifier, revocations, zerolog.Nop())
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/api/member/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	rec := httptest.NewRecorder()
	gate.RevokeOnLogout(got.handler()).ServeHTTP(rec, req)

	require.True(t, got.called)
	assert.True(t, revocations.IsRevoked("tok"))
	assert.Equal(t, exp, revocations.revoked["tok"])
	assert.Equal(t, "42", got.header.Get(HeaderUserID))
	assert.Empty(t, got.header.Get("Authorization"))
}

func TestRevokeOnLogout_InvalidTokenStillForwards(t *testing.T) {
	revocations := newMockRevocations()
	gate := NewAuthGate(newMockVerifier(), revocations, zerolog.Nop())
	var got captured

	req := httptest.NewRequest(http.MethodGet, "/api/member/logout", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()
	gate.RevokeOnLogout(got.handler()).ServeHTTP(rec, req)

	assert.True(t, got.called)
	assert.False(t, revocations.IsRevoked("forged"))
	assert.Empty(t, got.header.Get(HeaderUserID))
	assert.Empty(t, got.header.Get("Authorization"))
}

func TestRevokeOnLogout_UsesTokenExpiry(t *testing.T) {
	tokenExp := time.Now().Add(3 * time.Hour).Truncate(time.Second)
	verifier := newMockVerifier()
	verifier.add("tok", "42", time.Now().Add(time.Hour))
	verifier.setExpiry("tok", tokenExp)
	revocations := newMockRevocations()
	gate := NewAuthGate(verifier, revocations, zerolog.Nop())
	var got captured

	req := httptest.NewRequest(http.MethodPost, "/api/member/logout", nil)
	req.Header.Set("Authorization", "Bearer tok")
	gate.RevokeOnLogout(got.handler()).ServeHTTP(httptest.NewRecorder(), req)

	assert.Equal(t, tokenExp, revocations.revoked["tok"])
}

func TestRevokeOnLogout_NeverForwardsCredential(t *testing.T) {
	tests := []struct {
		name    string
		revoked bool
		valid   bool
	}{
		{"already revoked", true, true},
		{"invalid", false, false},
		{"valid", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			verifier := newMockVerifier()
			if tt.valid {
				verifier.add("tok", "42", time.Now().Add(time.Hour))
			}
			revocations := newMockRevocations()
			if tt.revoked {
				revocations.Revoke("tok", time.Now().Add(time.Hour))
			}
			gate := NewAuthGate(verifier, revocations, zerolog.Nop())

			for _, withCookie := range []bool{false, true} {
				var got captured
				req := httptest.NewRequest(http.MethodGet, "/api/member/logout", nil)
				if withCookie {
					req.AddCookie(&http.Cookie{Name: "token", Value: "tok"})
					req.AddCookie(&http.Cookie{Name: "lang", Value: "en"})
				} else {
					req.Header.Set("Authorization", "Bearer tok")
				}
				gate.RevokeOnLogout(got.handler()).ServeHTTP(httptest.NewRecorder(), req)

				require.True(t, got.called)
				assert.Empty(t, got.header.Get("Authorization"))
				assert.NotContains(t, got.header.Get("Cookie"), "token=")
				if withCookie {
					assert.Equal(t, "lang=en", got.header.Get("Cookie"))
				}
				if tt.revoked {
					assert.Empty(t, got.header.Get(HeaderUserID))
				}
			}
		})
	}
}

func TestExtractCredential_BearerWinsOverCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer header-token")
	req.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token"})

	tok, ok := ExtractCredential(req)
	assert.True(t, ok)
	assert.Equal(t, "header-token", tok)
}

func TestExtractCredential_NonBearerFallsBackToCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	req.AddCookie(&http.Cookie{Name: "token", Value: "cookie-token"})

	tok, ok := ExtractCredential(req)
	assert.True(t, ok)
	assert.Equal(t, "cookie-token", tok)
}

func TestExtractCredential_None(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer ")

	_, ok := ExtractCredential(req)
	assert.False(t, ok)
}
