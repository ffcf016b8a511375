package http

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fjod/shopgate/api-gateway/internal/revocation"
	"github.com/fjod/shopgate/api-gateway/internal/token"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// upstream records the last request it served.
type upstream struct {
	mu      sync.RWMutex
	last    *http.Request
	handler http.HandlerFunc
	server  *httptest.Server
}

func newUpstream(t *testing.T, handler http.HandlerFunc) *upstream {
	u := &upstream{handler: handler}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		u.last = r.Clone(r.Context())
		u.mu.Unlock()
		u.handler(w, r)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) url(t *testing.T) *url.URL {
	parsed, err := url.Parse(u.server.URL)
	require.NoError(t, err)
	return parsed
}

func (u *upstream) lastRequest() *http.Request {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.last
}

func memberHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch r.URL.Path {
	case "/api/member/login":
		_, _ = io.WriteString(w, `{"success":true,"message":"Login successful","user_id":"42"}`)
	case "/api/member/logout":
		_, _ = io.WriteString(w, `{"success":true}`)
	default:
		_, _ = io.WriteString(w, `{"success":true,"path":"`+r.URL.Path+`"}`)
	}
}

func okHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = io.WriteString(w, `{"success":true}`)
}

type gateway struct {
	handler  http.Handler
	codec    *token.Codec
	registry *revocation.Registry
	member   *upstream
	cart     *upstream
	search   *upstream
}

func newGateway(t *testing.T) *gateway {
	codec, err := token.NewCodec(testSecret, time.Hour)
	require.NoError(t, err)
	registry := revocation.NewRegistry()
	t.Cleanup(registry.Close)

	g := &gateway{
		codec:    codec,
		registry: registry,
		member:   newUpstream(t, memberHandler),
		cart:     newUpstream(t, okHandler),
		search:   newUpstream(t, okHandler),
	}
	g.handler = NewRouter(RouterConfig{
		Codec:       codec,
		Revocations: registry,
		Upstreams: Upstreams{
			Member: g.member.url(t),
			Cart:   g.cart.url(t),
			Search: g.search.url(t),
		},
		Logger:             zerolog.Nop(),
		RequestTimeout:     5 * time.Second,
		MaxRequestBodySize: 1 << 20,
	})
	return g
}

func (g *gateway) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	g.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouter_LoginThenLogout(t *testing.T) {
	g := newGateway(t)

	rec := g.do(httptest.NewRequest(http.MethodPost, "/api/member/login", strings.NewReader(`{"email":"a@b.c","password":"x"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	var login map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &login))
	tok, ok := login["token"].(string)
	require.True(t, ok, "login response must carry a token: %s", rec.Body.String())
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "token="+tok)

	id, err := g.codec.Verify(tok)
	require.NoError(t, err)
	assert.Equal(t, "42", id.SubjectID)

	// the token opens authenticated routes
	cartReq := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	cartReq.Header.Set("Authorization", "Bearer "+tok)
	require.Equal(t, http.StatusOK, g.do(cartReq).Code)
	assert.Equal(t, "42", g.cart.lastRequest().Header.Get(HeaderUserID))
	assert.Empty(t, g.cart.lastRequest().Header.Get("Authorization"))

	logoutReq := httptest.NewRequest(http.MethodGet, "/api/member/logout", nil)
	logoutReq.AddCookie(&http.Cookie{Name: "token", Value: tok})
	rec = g.do(logoutReq)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, g.registry.IsRevoked(tok))
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
	assert.JSONEq(t, `{"message":"Logout successful","success":true}`, rec.Body.String())
	assert.Equal(t, "42", g.member.lastRequest().Header.Get(HeaderUserID))

	// and is dead afterwards
	cartReq = httptest.NewRequest(http.MethodGet, "/api/cart/items", nil)
	cartReq.Header.Set("Authorization", "Bearer "+tok)
	assert.Equal(t, http.StatusUnauthorized, g.do(cartReq).Code)
}

func TestRouter_PublicRouteWithoutCredential(t *testing.T) {
	g := newGateway(t)

	req := httptest.NewRequest(http.MethodGet, "/api/search/get/detailById?skuId=SKU1", nil)
	req.Header.Set(HeaderUserID, "1")
	rec := g.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	last := g.search.lastRequest()
	require.NotNil(t, last)
	assert.Equal(t, "/api/search/get/detailById", last.URL.Path)
	assert.Equal(t, "SKU1", last.URL.Query().Get("skuId"))
	assert.Empty(t, last.Header.Get(HeaderUserID))
	assert.Equal(t, "false", last.Header.Get(HeaderAuthNeeded))
}

func TestRouter_RegisterIsPublic(t *testing.T) {
	g := newGateway(t)

	rec := g.do(httptest.NewRequest(http.MethodPost, "/api/member/register", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_ProtectedRouteWithoutCredential(t *testing.T) {
	g := newGateway(t)

	for _, path := range []string{"/api/cart", "/api/cart/items/SKU1", "/api/member/profile", "/api/member/status/1"} {
		rec := g.do(httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
	assert.Nil(t, g.cart.lastRequest())
}

func TestRouter_LogoutSucceedsWhenMemberServiceIsDown(t *testing.T) {
	g := newGateway(t)
	tok, err := g.codec.Issue("42")
	require.NoError(t, err)
	g.member.server.Close()

	req := httptest.NewRequest(http.MethodGet, "/api/member/logout", nil)
	req.Header.Set("Authorization", "Bearer "+tok)
	rec := g.do(req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Logout successful","success":true}`, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Set-Cookie"), "Max-Age=0")
	assert.True(t, g.registry.IsRevoked(tok))
}

func TestRouter_LoginPassesUpstreamFailureThrough(t *testing.T) {
	g := newGateway(t)
	g.member.server.Close()

	rec := g.do(httptest.NewRequest(http.MethodPost, "/api/member/login", strings.NewReader(`{}`)))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Empty(t, rec.Header().Get("Set-Cookie"))
	assert.Contains(t, rec.Body.String(), "UPSTREAM_UNAVAILABLE")
}

func TestRouter_HealthAndUnknownRoute(t *testing.T) {
	g := newGateway(t)

	rec := g.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)

	rec = g.do(httptest.NewRequest(http.MethodGet, "/api/orders", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestRouteTable_AuthFlags(t *testing.T) {
	flags := map[string]bool{}
	for _, rt := range RouteTable() {
		flags[rt.Pattern] = rt.AuthRequired
	}

	assert.False(t, flags["/api/member/login"])
	assert.False(t, flags["/api/member/logout"])
	assert.False(t, flags["/api/member/register"])
	assert.False(t, flags["/api/search"])
	assert.True(t, flags["/api/member"])
	assert.True(t, flags["/api/cart"])
}
