package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/iudanet/packsync/internal/config"
	"github.com/iudanet/packsync/internal/server"
	"github.com/iudanet/packsync/internal/server/hub"
	"github.com/iudanet/packsync/internal/server/jwt"
	"github.com/iudanet/packsync/internal/server/middleware"
	"github.com/iudanet/packsync/internal/server/storage/sqlite"
)

// NewServeCommand creates the serve command.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the realtime hub",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runServe(cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	return cmd
}

func runServe(cmd *cobra.Command, cfg *config.ServerConfig) error {
	ctx := cmd.Context()
	logger := config.NewLogger(cmd.ErrOrStderr(), cfg.LogLevel)

	store, err := sqlite.New(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	h := hub.New(store, store, hub.NewMetrics(reg), logger, hub.Options{
		SendBuffer:     cfg.Hub.SendBuffer,
		WriteWait:      cfg.Hub.WriteWait,
		PongWait:       cfg.Hub.PongWait,
		PingPeriod:     cfg.Hub.PingPeriod,
		MaxMessageSize: cfg.Hub.MaxMessageSize,
	})

	var limiter *middleware.RateLimiter
	if cfg.RateLimit.Rate > 0 {
		limiter = middleware.NewRateLimiter(cfg.RateLimit.Rate, cfg.RateLimit.Window, logger)
		go limiter.Run(ctx)
	}

	srv := &http.Server{
		Addr: cfg.Addr,
		Handler: server.NewRouter(server.RouterDeps{
			Logger:         logger,
			Storage:        store,
			DB:             store.DB(),
			Hub:            h,
			Tokens:         jwt.NewService(cfg.JWTSecret, cfg.TokenTTL),
			Gatherer:       reg,
			ConnectLimiter: limiter,
			AllowedOrigins: cfg.AllowedOrigins,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Hub listening", "addr", cfg.Addr, "db", cfg.DBPath)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down hub")
	// Shutdown не ждет hijacked websocket-соединений: закрываем их сами с 1012
	h.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return nil
}
