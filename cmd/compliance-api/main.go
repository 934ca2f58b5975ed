// Command compliance-api serves the WhatsApp Business compliance engine over
// HTTP: consent, the 24-hour window, content rules, quality score, send
// limits and the audit trail.
//
//	@title			WhatsApp compliance API
//	@version		1.0
//	@description	Consent, 24-hour window, content, quality and send-limit checks for WhatsApp Business messaging.
//	@BasePath		/api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/wa-compliance/internal/config"
	httpapi "github.com/tbourn/wa-compliance/internal/http"
	"github.com/tbourn/wa-compliance/internal/observability"
	"github.com/tbourn/wa-compliance/internal/policy"
	"github.com/tbourn/wa-compliance/internal/repo"
	"github.com/tbourn/wa-compliance/internal/sysutil"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 15 * time.Second

func main() {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}
	sysutil.ConfigureLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty, cfg.OTEL.ServiceName)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pol, err := policy.Load(cfg.PolicyPath)
	switch {
	case errors.Is(err, policy.ErrPolicyMissing):
		log.Warn().Err(err).Msg("policy file missing; using conservative defaults")
	case err != nil:
		log.Fatal().Err(err).Str("path", cfg.PolicyPath).Msg("invalid compliance policy")
	}

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, observability.Deployment{
		Version:      version,
		Environment:  sysutil.FirstNonEmpty(os.Getenv("DEPLOY_ENV"), cfg.GinMode),
		DBDriver:     cfg.DB.Driver,
		PolicySource: sysutil.FirstNonEmpty(cfg.PolicyPath, "default"),
	})
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.Open(cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DB.Driver).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}
	if n, err := repo.PurgeExpiredIdempotency(ctx, db, time.Now().UTC()); err != nil {
		log.Warn().Err(err).Msg("purge expired idempotency keys")
	} else if n > 0 {
		log.Info().Int64("purged", n).Msg("expired idempotency keys removed")
	}

	svc, err := httpapi.NewServices(db, pol, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("build services")
	}
	r := gin.New()
	httpapi.RegisterRoutes(r, db, svc, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("base_path", cfg.APIBasePath).
			Str("db_driver", cfg.DB.Driver).
			Str("version", version).
			Msg("compliance api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			log.Error().Err(err).Msg("server failed")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}
