/**
 * @description
 * One-shot analytics run for operators: executes a single KPI pass and
 * exits. Useful after backfills or when verifying a fix without waiting for
 * the cron schedule. Redis is optional here; without it the NAV client just
 * hits every vault endpoint directly.
 *
 * @dependencies
 * - internal/config, internal/db, internal/kpi, internal/ledger,
 *   internal/vaultapi
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/halcyon-vaults/backend/internal/config"
	"github.com/halcyon-vaults/backend/internal/db"
	"github.com/halcyon-vaults/backend/internal/kpi"
	"github.com/halcyon-vaults/backend/internal/ledger"
	"github.com/halcyon-vaults/backend/internal/logger"
	"github.com/halcyon-vaults/backend/internal/vaultapi"
	"github.com/redis/go-redis/v9"
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

	var redisClient *redis.Client
	if client, err := db.ConnectRedis(cfg); err != nil {
		logger.Error("⚠️ Redis unavailable, running without NAV cache: %v", err)
	} else {
		redisClient = client
		defer redisClient.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := ledger.NewStore(database)
	nav := vaultapi.NewClient(redisClient, cfg.Kpi.NavCacheTTL)
	service := kpi.NewService(store, nav, cfg.Kpi.RiskFreeRate)

	if err := service.Run(ctx); err != nil {
		logger.Fatal("Analytics run failed: %v", err)
	}
}
