package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	c "github.com/fjod/shopgate/cart-service/internal/cache"
	"github.com/fjod/shopgate/cart-service/internal/catalog"
	"github.com/fjod/shopgate/cart-service/internal/config"
	h "github.com/fjod/shopgate/cart-service/internal/http"
	"github.com/fjod/shopgate/cart-service/internal/member"
	"github.com/fjod/shopgate/cart-service/internal/poller"
	"github.com/fjod/shopgate/cart-service/internal/repository"
	s "github.com/fjod/shopgate/cart-service/internal/service"
	"github.com/fjod/shopgate/pkg/logger"
)

func main() {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "cart-service",
		Short: "Member shopping carts kept in step with the product catalog",
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

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := mongoDB.Client().Disconnect(disconnectCtx); err != nil {
			l.Warn().Err(err).Msg("mongo disconnect error")
		}
	}()

	repo := repository.NewMongoRepository(mongoDB)
	if err := repo.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	l.Info().Str("database", cfg.MongoDBName).Msg("connected to MongoDB")

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	l.Info().Str("addr", cfg.RedisAddr).Msg("redis ping succeeded")

	client := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   cfg.ClientTimeout,
	}
	products := catalog.NewHTTPClient(cfg.SearchServiceURL, client, l)
	members := member.NewGate(cfg.MemberServiceURL, client, l)

	service := s.NewCartService(repo, c.NewRedisCache(redisClient), products, l)
	router := h.NewRouter(h.NewCartHandler(service, members, cfg.RequestTimeout, l), l)

	if brokers := cfg.Brokers(); len(brokers) > 0 {
		p := poller.NewPoller(service, l, brokers...)
		defer p.Close()
		go p.Run(ctx)
		l.Info().Strs("brokers", brokers).Str("topic", poller.Topic).Msg("checkout consumer started")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      otelhttp.NewHandler(router, "cart-service"),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		l.Info().Str("port", cfg.HTTPPort).Msg("cart service listening")
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

	l.Info().Msg("shutting down cart service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	l.Info().Msg("cart service stopped")
	return nil
}
