package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fjod/shopgate/member-service/internal/config"
	h "github.com/fjod/shopgate/member-service/internal/http"
	"github.com/fjod/shopgate/member-service/internal/repository"
	"github.com/fjod/shopgate/member-service/internal/service"
	"github.com/fjod/shopgate/pkg/logger"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "member-service",
		Short: "Member registration, login and status lookups",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "optional config file (yaml, json, toml)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "set-status <memberId> <ACTIVE|INACTIVE|SUSPENDED>",
		Short: "Change a member's status",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid member id %q", args[0])
			}
			cfg, err := config.Load(configFile)
			if err != nil {
				return err
			}
			return setStatus(cmd.Context(), cfg, id, args[1])
		},
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openService(cfg *config.Config, l zerolog.Logger) (*service.MemberService, *repository.Repository, error) {
	repo, err := repository.NewRepository(cfg.Credentials())
	if err != nil {
		return nil, nil, err
	}
	if err := repo.RunMigrations(); err != nil {
		repo.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return service.NewMemberService(repo, cfg.BcryptCost, l), repo, nil
}

func setStatus(ctx context.Context, cfg *config.Config, id int64, status string) error {
	svc, repo, err := openService(cfg, logger.New(cfg.LogLevel, cfg.LogPretty))
	if err != nil {
		return err
	}
	defer repo.Close()
	return svc.SetStatus(ctx, id, status)
}

func run(ctx context.Context, cfg *config.Config) error {
	l := logger.New(cfg.LogLevel, cfg.LogPretty)
	svc, repo, err := openService(cfg, l)
	if err != nil {
		return err
	}
	defer repo.Close()

	router := h.NewRouter(h.NewMemberHandler(svc, l), l)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "member-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("port", cfg.HTTPPort).Msg("member service listening")
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	l.Info().Msg("member service stopped")
	return nil
}
