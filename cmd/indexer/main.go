/**
 * @description
 * Ingestion service entrypoint. Connects to Postgres, loads the live vaults,
 * and runs one supervised ingestion task per vault until SIGINT/SIGTERM.
 *
 * @dependencies
 * - internal/chain, internal/config, internal/db, internal/indexer,
 *   internal/ledger
 */

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/ethereum/go-ethereum/common"

	"github.com/halcyon-vaults/backend/internal/chain"
	"github.com/halcyon-vaults/backend/internal/config"
	"github.com/halcyon-vaults/backend/internal/db"
	"github.com/halcyon-vaults/backend/internal/indexer"
	"github.com/halcyon-vaults/backend/internal/ledger"
	"github.com/halcyon-vaults/backend/internal/logger"
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

	client, err := chain.NewFallbackClient(cfg.Chain.RPCURLs)
	if err != nil {
		logger.Fatal("Failed to build chain client: %v", err)
	}
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store := ledger.NewStore(database)
	vaults, err := store.LiveVaults(ctx)
	if err != nil {
		logger.Fatal("Failed to load vaults: %v", err)
	}
	if len(vaults) == 0 {
		logger.Fatal("No live vaults configured; seed the vaults table first")
	}

	tasks := make([]indexer.SupervisedTask, 0, len(vaults))
	for _, vault := range vaults {
		source := &indexer.StreamSource{
			Client:       client,
			Vault:        common.HexToAddress(vault.ContractAddress),
			ChunkSize:    cfg.Indexer.LogChunkSize,
			PollInterval: cfg.Indexer.PollInterval,
		}
		tasks = append(tasks, indexer.NewTask(vault, store, client, source))
	}

	supervisor := indexer.NewSupervisor(cfg.Supervisor, tasks...)

	logger.Info("🚀 Ingestion service starting for %d vaults on %s", len(vaults), cfg.Chain.Name)
	if err := supervisor.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("Supervisor stopped: %v", err)
	}

	logger.Info("👋 Ingestion service shut down")
}
