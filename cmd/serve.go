package cmd

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/Origin-Inc/e-invoicing-backend/config"
	"github.com/Origin-Inc/e-invoicing-backend/handlers"
	"github.com/Origin-Inc/e-invoicing-backend/logger"
	"github.com/Origin-Inc/e-invoicing-backend/middleware"
	"github.com/Origin-Inc/e-invoicing-backend/services"
	"github.com/Origin-Inc/e-invoicing-backend/storage"
	"github.com/Origin-Inc/e-invoicing-backend/store"
	"github.com/Origin-Inc/e-invoicing-backend/utils"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Bool("migrate", true, "Run database migrations before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := bootstrap()
	if err != nil {
		return err
	}
	log := logger.WithComponent("serve")
	ctx := cmd.Context()

	db, err := config.InitDB(cfg)
	if err != nil {
		return err
	}
	if migrate, _ := cmd.Flags().GetBool("migrate"); migrate {
		if err := config.Migrate(db); err != nil {
			return err
		}
	}
	records := store.NewGormStore(db)

	var files services.FileStore
	var storagePing handlers.PingFunc
	if cfg.StorageEnabled() {
		s3, err := storage.NewS3Storage(ctx, cfg.Storage())
		if err != nil {
			return err
		}
		files = s3
		storagePing = s3.Ping
	} else {
		log.Warn().Msg("Object storage not configured, PDF and attachment endpoints disabled")
	}

	var verifier utils.PaymentVerifier
	if cfg.StellarVerifyPayments {
		verifier = utils.NewStellarVerifier(cfg.HorizonURL)
		log.Info().Str("horizon_url", cfg.HorizonURL).Msg("Stellar payment verification enabled")
	}

	var limiter middleware.RateLimiter
	var cachePing handlers.PingFunc
	rdb, err := config.InitRedis(ctx, cfg)
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("Redis unavailable, rate limiting disabled")
	case rdb != nil:
		defer rdb.Close()
		limiter = middleware.NewRedisRateLimiter(rdb, cfg.RateLimit())
		cachePing = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	gin.SetMode(gin.ReleaseMode)
	router := handlers.NewRouter(handlers.RouterDeps{
		Ledger:  services.NewLedgerService(records, files, verifier),
		Health:  handlers.NewHealthHandler(records.Ping, storagePing, cachePing),
		Limiter: limiter,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           middleware.NewCORS(cfg.Origins())(router),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Msg("Starting e-invoicing API server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info().Str("signal", sig.String()).Msg("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}
	log.Info().Msg("Server stopped")
	return nil
}
