package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fjod/shopgate/pkg/envelope"
	"github.com/fjod/shopgate/pkg/logger"
)

func NewRouter(cartHandler *CartHandler, l zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(logger.Middleware(l))
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(1 << 20))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		envelope.Write(w, envelope.OK(map[string]string{"status": "ok"}, "ok"))
	})
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		envelope.WriteError(w, http.StatusNotFound, envelope.CodeNotFound, "route not found")
	})

	cartHandler.Register(r)
	return r
}
