/**
 * @description
 * Batch analytics service: the daily KPI run. For every live vault it fetches
 * the current share price from the vault's NAV endpoint, snapshots each open
 * position's portfolio value into the append-only history, then recomputes
 * and appends that user's KPI record. Failures are isolated per user and per
 * vault: one bad position or one unreachable NAV endpoint never aborts the
 * rest of the run.
 *
 * @dependencies
 * - github.com/shopspring/decimal
 * - internal/ledger, internal/models
 */

package kpi

import (
	"context"
	"time"

	"github.com/halcyon-vaults/backend/internal/logger"
	"github.com/halcyon-vaults/backend/internal/models"
	"github.com/shopspring/decimal"
)

// Store is everything the batch run needs from the ledger.
type Store interface {
	LiveVaults(ctx context.Context) ([]models.Vault, error)
	ActivePositionsByVault(ctx context.Context, vaultID string) ([]models.Position, error)
	ConfirmedTransactionsChronological(ctx context.Context, userAddress, vaultID string) ([]models.Transaction, error)
	InsertPortfolioSnapshot(ctx context.Context, snapshot *models.PortfolioHistory) error
	PortfolioHistorySeries(ctx context.Context, userAddress, vaultID string) ([]models.PortfolioHistory, error)
	CreateKpi(ctx context.Context, kpi *models.Kpi) error
}

// NavProvider resolves the current share price for a vault.
type NavProvider interface {
	LatestSharePrice(ctx context.Context, vault models.Vault) (decimal.Decimal, error)
}

// Service runs the batch analytics pass.
type Service struct {
	store        Store
	nav          NavProvider
	riskFreeRate float64
}

func NewService(store Store, nav NavProvider, riskFreeRate float64) *Service {
	return &Service{
		store:        store,
		nav:          nav,
		riskFreeRate: riskFreeRate,
	}
}

// Run executes one full analytics pass over all live vaults.
func (s *Service) Run(ctx context.Context) error {
	started := time.Now()
	logger.Info("[Kpi] 📊 Starting analytics run")

	vaults, err := s.store.LiveVaults(ctx)
	if err != nil {
		return err
	}

	processed, failed := 0, 0
	for _, vault := range vaults {
		if err := ctx.Err(); err != nil {
			return err
		}

		sharePrice, err := s.nav.LatestSharePrice(ctx, vault)
		if err != nil {
			logger.Error("[Kpi] ⚠️ Skipping vault %s, NAV fetch failed: %v", vault.ID, err)
			failed++
			continue
		}

		positions, err := s.store.ActivePositionsByVault(ctx, vault.ID)
		if err != nil {
			logger.Error("[Kpi] ⚠️ Skipping vault %s, position listing failed: %v", vault.ID, err)
			failed++
			continue
		}

		for _, pos := range positions {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.processPosition(ctx, vault, pos, sharePrice); err != nil {
				logger.Error("[Kpi] ⚠️ KPI failed for %s in vault %s: %v", pos.UserAddress, vault.ID, err)
				failed++
				continue
			}
			processed++
		}
	}

	logger.Info("[Kpi] ✅ Analytics run done in %s: %d positions processed, %d failures",
		time.Since(started).Round(time.Millisecond), processed, failed)
	return nil
}

func (s *Service) processPosition(ctx context.Context, vault models.Vault, pos models.Position, sharePrice decimal.Decimal) error {
	now := time.Now().UTC()

	snapshot := &models.PortfolioHistory{
		UserAddress:    pos.UserAddress,
		VaultID:        vault.ID,
		PortfolioValue: pos.ShareBalance.Mul(sharePrice),
		ShareBalance:   pos.ShareBalance,
		SharePrice:     sharePrice,
		CalculatedAt:   now,
	}
	if err := s.store.InsertPortfolioSnapshot(ctx, snapshot); err != nil {
		return err
	}

	txs, err := s.store.ConfirmedTransactionsChronological(ctx, pos.UserAddress, vault.ID)
	if err != nil {
		return err
	}

	// Series includes the snapshot just written, so risk metrics always see
	// the latest observation.
	series, err := s.store.PortfolioHistorySeries(ctx, pos.UserAddress, vault.ID)
	if err != nil {
		return err
	}

	record, err := ComputeUserKpis(pos.UserAddress, vault.ID, txs, series, pos.ShareBalance, sharePrice, s.riskFreeRate, now)
	if err != nil {
		return err
	}

	return s.store.CreateKpi(ctx, record)
}
