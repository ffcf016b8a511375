package http

import (
	"net/http"
	"net/url"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fjod/shopgate/api-gateway/internal/token"
	"github.com/fjod/shopgate/pkg/envelope"
	"github.com/fjod/shopgate/pkg/logger"
)

type session int

const (
	sessionNone session = iota
	sessionLogin
	sessionLogout
)

// Route is one entry of the gateway route table. Pattern matches both the
// path itself and everything below it.
type Route struct {
	Pattern      string
	Upstream     string
	AuthRequired bool
	session      session
}

type Upstreams struct {
	Member *url.URL
	Cart   *url.URL
	Search *url.URL
}

func (u Upstreams) byName(name string) *url.URL {
	switch name {
	case "member-service":
		return u.Member
	case "cart-service":
		return u.Cart
	case "search-service":
		return u.Search
	}
	return nil
}

// RouteTable lists every path the gateway exposes. Anything not listed is
// answered with 404 by the gateway itself.
func RouteTable() []Route {
	return []Route{
		{Pattern: "/api/member/login", Upstream: "member-service", session: sessionLogin},
		{Pattern: "/api/member/logout", Upstream: "member-service", session: sessionLogout},
		{Pattern: "/api/member/register", Upstream: "member-service"},
		{Pattern: "/api/member", Upstream: "member-service", AuthRequired: true},
		{Pattern: "/api/cart", Upstream: "cart-service", AuthRequired: true},
		{Pattern: "/api/search", Upstream: "search-service"},
	}
}

type Signer interface {
	Verifier
	Issuer
}

type RouterConfig struct {
	Codec              Signer
	Revocations        Revocations
	Upstreams          Upstreams
	Transport          http.RoundTripper
	Logger             zerolog.Logger
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Transport == nil {
		cfg.Transport = http.DefaultTransport
	}

	gate := NewAuthGate(cfg.Codec, cfg.Revocations, cfg.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(cfg.Logger))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		envelope.WriteError(w, http.StatusNotFound, envelope.CodeNotFound, "route not found")
	})
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		envelope.Write(w, envelope.OK(map[string]string{"status": "ok"}, "ok"))
	})

	for _, rt := range RouteTable() {
		target := cfg.Upstreams.byName(rt.Upstream)
		if target == nil {
			cfg.Logger.Warn().Str("upstream", rt.Upstream).Str("pattern", rt.Pattern).Msg("no upstream configured, route skipped")
			continue
		}

		var pipeline Pipeline
		middlewares := chi.Middlewares{gate.Require(rt.AuthRequired)}
		switch rt.session {
		case sessionLogin:
			pipeline = Pipeline{LoginStage(cfg.Codec, cfg.Logger)}
		case sessionLogout:
			pipeline = Pipeline{LogoutStage()}
			middlewares = append(middlewares, gate.RevokeOnLogout)
		}

		handler := middlewares.Handler(newProxy(rt.Upstream, target, cfg.Transport, pipeline, cfg.Logger))
		r.Handle(rt.Pattern, handler)
		r.Handle(rt.Pattern+"/*", handler)
	}

	return r
}

var _ Signer = (*token.Codec)(nil)
