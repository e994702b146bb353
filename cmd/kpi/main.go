/**
 * @description
 * Analytics worker entrypoint. Schedules the daily KPI run on a cron spec
 * and also fires one run shortly after startup so a fresh deployment does not
 * wait a day for its first numbers.
 *
 * @dependencies
 * - github.com/robfig/cron/v3
 * - internal/config, internal/db, internal/kpi, internal/ledger,
 *   internal/vaultapi
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/halcyon-vaults/backend/internal/config"
	"github.com/halcyon-vaults/backend/internal/db"
	"github.com/halcyon-vaults/backend/internal/kpi"
	"github.com/halcyon-vaults/backend/internal/ledger"
	"github.com/halcyon-vaults/backend/internal/logger"
	"github.com/halcyon-vaults/backend/internal/vaultapi"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration: %v", err)
	}

	database, err := db.ConnectPostgres(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to PostgreSQL: %v", err)
	}
	if err := db.Migrate(database); err != nil {
		logger.Fatal("Failed to migrate schema: %v", err)
	}

	redisClient, err := db.ConnectRedis(cfg)
	if err != nil {
		logger.Fatal("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := ledger.NewStore(database)
	nav := vaultapi.NewClient(redisClient, cfg.Kpi.NavCacheTTL)
	service := kpi.NewService(store, nav, cfg.Kpi.RiskFreeRate)

	runOnce := func() {
		if err := service.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("❌ Analytics run failed: %v", err)
		}
	}

	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.Kpi.CronSpec, runOnce); err != nil {
		logger.Fatal("Invalid KPI_CRON spec %q: %v", cfg.Kpi.CronSpec, err)
	}
	scheduler.Start()
	defer scheduler.Stop()

	logger.Info("🚀 Analytics worker started (cron %q)", cfg.Kpi.CronSpec)

	// First run after a short grace period so ingestion can connect first.
	select {
	case <-ctx.Done():
	case <-time.After(cfg.Kpi.StartupDelay):
		runOnce()
		<-ctx.Done()
	}

	logger.Info("👋 Analytics worker shut down")
}
