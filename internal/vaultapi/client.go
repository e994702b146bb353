/**
 * @description
 * NAV client for per-vault API endpoints. Fetches the latest share price from
 * GET {vault.api_endpoint}/nav/latest and caches it in Redis with a short TTL
 * so a run over many positions in the same vault hits the endpoint once.
 *
 * @dependencies
 * - github.com/redis/go-redis/v9
 * - github.com/shopspring/decimal
 * - internal/models
 */

package vaultapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/halcyon-vaults/backend/internal/logger"
	"github.com/halcyon-vaults/backend/internal/models"
)

const requestTimeout = 5 * time.Second

type navResponse struct {
	SharePrice string `json:"share_price"`
}

// Client fetches vault share prices with a Redis-backed TTL cache.
type Client struct {
	http  *http.Client
	redis *redis.Client
	ttl   time.Duration
}

// NewClient builds the NAV client. A nil redis client disables caching.
func NewClient(redisClient *redis.Client, ttl time.Duration) *Client {
	return &Client{
		http:  &http.Client{Timeout: requestTimeout},
		redis: redisClient,
		ttl:   ttl,
	}
}

func cacheKey(vaultID string) string {
	return "nav:share_price:" + vaultID
}

// LatestSharePrice returns the vault's current share price. Cached values are
// served until the TTL expires; cache failures degrade to a direct fetch.
func (c *Client) LatestSharePrice(ctx context.Context, vault models.Vault) (decimal.Decimal, error) {
	if c.redis != nil {
		cached, err := c.redis.Get(ctx, cacheKey(vault.ID)).Result()
		if err == nil {
			price, parseErr := decimal.NewFromString(cached)
			if parseErr == nil {
				return price, nil
			}
			logger.Error("[VaultAPI] ⚠️ Corrupt cached share price for %s, refetching: %v", vault.ID, parseErr)
		} else if err != redis.Nil {
			logger.Error("[VaultAPI] ⚠️ Redis read failed for %s, falling through: %v", vault.ID, err)
		}
	}

	price, err := c.fetchSharePrice(ctx, vault)
	if err != nil {
		return decimal.Zero, err
	}

	if c.redis != nil {
		if err := c.redis.Set(ctx, cacheKey(vault.ID), price.String(), c.ttl).Err(); err != nil {
			logger.Error("[VaultAPI] ⚠️ Redis write failed for %s: %v", vault.ID, err)
		}
	}

	return price, nil
}

func (c *Client) fetchSharePrice(ctx context.Context, vault models.Vault) (decimal.Decimal, error) {
	if vault.APIEndpoint == "" {
		return decimal.Zero, fmt.Errorf("vault %s has no API endpoint configured", vault.ID)
	}

	url := strings.TrimRight(vault.APIEndpoint, "/") + "/nav/latest"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to build NAV request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("NAV request to %s failed: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("NAV endpoint %s returned status %d", url, resp.StatusCode)
	}

	var body navResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode NAV response from %s: %w", url, err)
	}

	price, err := decimal.NewFromString(body.SharePrice)
	if err != nil {
		return decimal.Zero, fmt.Errorf("NAV endpoint %s returned unparseable share price %q: %w", url, body.SharePrice, err)
	}
	if !price.IsPositive() {
		return decimal.Zero, fmt.Errorf("NAV endpoint %s returned non-positive share price %s", url, price)
	}

	return price, nil
}
