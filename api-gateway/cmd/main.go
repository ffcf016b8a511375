package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/shopgate/api-gateway/internal/config"
	h "github.com/fjod/shopgate/api-gateway/internal/http"
	"github.com/fjod/shopgate/api-gateway/internal/revocation"
	"github.com/fjod/shopgate/api-gateway/internal/token"
	"github.com/fjod/shopgate/pkg/logger"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "api-gateway",
		Short: "Authenticating gateway in front of the member, cart and search services",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	rootCmd.Flags().StringVar(&configFile, "config", "", "optional config file (yaml, json, toml)")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	l := logger.New(cfg.LogLevel, cfg.LogPretty)

	codec, err := token.NewCodec(cfg.JWTSecret, cfg.JWTExpiration)
	if err != nil {
		return fmt.Errorf("failed to create token codec: %w", err)
	}

	registry := revocation.NewRegistry(
		revocation.WithSweepInterval(cfg.RevocationSweepInterval),
		revocation.WithLogger(l),
	)
	defer registry.Close()

	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	go registry.Run(sweepCtx)

	upstreams, err := parseUpstreams(cfg)
	if err != nil {
		return err
	}

	router := h.NewRouter(h.RouterConfig{
		Codec:              codec,
		Revocations:        registry,
		Upstreams:          upstreams,
		Transport:          otelhttp.NewTransport(http.DefaultTransport),
		Logger:             l,
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "api-gateway"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("port", cfg.HTTPPort).Msg("API gateway starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	l.Info().Msg("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	l.Info().Int("revoked_sessions_dropped", registry.Len()).Msg("server exited")
	return nil
}

func parseUpstreams(cfg *config.Config) (h.Upstreams, error) {
	var u h.Upstreams
	for _, target := range []struct {
		dst **url.URL
		raw string
	}{
		{&u.Member, cfg.MemberServiceURL},
		{&u.Cart, cfg.CartServiceURL},
		{&u.Search, cfg.SearchServiceURL},
	} {
		parsed, err := url.Parse(target.raw)
		if err != nil {
			return h.Upstreams{}, fmt.Errorf("invalid upstream url %q: %w", target.raw, err)
		}
		*target.dst = parsed
	}
	return u, nil
}
