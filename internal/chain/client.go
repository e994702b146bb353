/**
 * @description
 * Chain-state reader over a priority-ordered pool of RPC endpoints.
 * Every call walks the configured endpoints and returns the first healthy
 * answer; a single failing upstream never takes ingestion down.
 * Also resolves the underlying asset's decimals for a vault at a given block,
 * used to scale raw on-chain integer amounts into decimal units.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum
 */

package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/halcyon-vaults/backend/internal/logger"
)

// Minimal ABIs for the two view calls the reader issues: the vault's
// underlying asset address (ERC-4626 asset()) and that asset's decimals.
const erc4626AssetABI = `[{"inputs":[],"name":"asset","outputs":[{"name":"","type":"address"}],"stateMutability":"view","type":"function"}]`
const erc20DecimalsABI = `[{"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"}]`

var (
	assetABI    abi.ABI
	decimalsABI abi.ABI
)

func init() {
	var err error
	assetABI, err = abi.JSON(strings.NewReader(erc4626AssetABI))
	if err != nil {
		panic(fmt.Sprintf("invalid asset ABI: %v", err))
	}
	decimalsABI, err = abi.JSON(strings.NewReader(erc20DecimalsABI))
	if err != nil {
		panic(fmt.Sprintf("invalid decimals ABI: %v", err))
	}
}

// FallbackClient wraps several RPC endpoints tried in priority order.
type FallbackClient struct {
	endpoints []string

	mu      sync.Mutex
	clients map[string]*ethclient.Client

	decimalsMu sync.Mutex
	decimals   map[common.Address]uint8
}

// NewFallbackClient builds a client over the given endpoints. Connections are
// dialed lazily on first use so a cold standby endpoint costs nothing.
func NewFallbackClient(endpoints []string) (*FallbackClient, error) {
	if len(endpoints) == 0 {
		return nil, fmt.Errorf("at least one RPC endpoint is required")
	}
	return &FallbackClient{
		endpoints: endpoints,
		clients:   make(map[string]*ethclient.Client),
		decimals:  make(map[common.Address]uint8),
	}, nil
}

func (c *FallbackClient) clientFor(endpoint string) (*ethclient.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[endpoint]; ok {
		return client, nil
	}
	client, err := ethclient.Dial(endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", endpoint, err)
	}
	c.clients[endpoint] = client
	return client, nil
}

// do runs fn against each endpoint in priority order until one succeeds.
func (c *FallbackClient) do(ctx context.Context, fn func(*ethclient.Client) error) error {
	var lastErr error
	for _, endpoint := range c.endpoints {
		if err := ctx.Err(); err != nil {
			return err
		}
		client, err := c.clientFor(endpoint)
		if err != nil {
			lastErr = err
			continue
		}
		if err := fn(client); err != nil {
			logger.Error("[Chain] ⚠️ RPC call failed on %s, trying next endpoint: %v", endpoint, err)
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("all RPC endpoints failed: %w", lastErr)
}

// BlockNumber returns the current chain tip.
func (c *FallbackClient) BlockNumber(ctx context.Context) (uint64, error) {
	var tip uint64
	err := c.do(ctx, func(client *ethclient.Client) error {
		n, err := client.BlockNumber(ctx)
		if err != nil {
			return err
		}
		tip = n
		return nil
	})
	return tip, err
}

// HeaderByNumber returns the header for the given block.
func (c *FallbackClient) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	var header *types.Header
	err := c.do(ctx, func(client *ethclient.Client) error {
		h, err := client.HeaderByNumber(ctx, number)
		if err != nil {
			return err
		}
		header = h
		return nil
	})
	return header, err
}

// FilterLogs runs an eth_getLogs query.
func (c *FallbackClient) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	var logs []types.Log
	err := c.do(ctx, func(client *ethclient.Client) error {
		l, err := client.FilterLogs(ctx, query)
		if err != nil {
			return err
		}
		logs = l
		return nil
	})
	return logs, err
}

// CallContract executes a read-only contract call at the given block.
func (c *FallbackClient) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	var result []byte
	err := c.do(ctx, func(client *ethclient.Client) error {
		r, err := client.CallContract(ctx, msg, blockNumber)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

// UnderlyingAssetDecimals resolves the decimals of a vault's underlying asset
// at the given block: vault.asset() then asset.decimals(). Results are cached
// per vault; token decimals are immutable in practice.
func (c *FallbackClient) UnderlyingAssetDecimals(ctx context.Context, vault common.Address, blockNumber uint64) (uint8, error) {
	c.decimalsMu.Lock()
	if cached, ok := c.decimals[vault]; ok {
		c.decimalsMu.Unlock()
		return cached, nil
	}
	c.decimalsMu.Unlock()

	block := new(big.Int).SetUint64(blockNumber)

	assetCall, err := assetABI.Pack("asset")
	if err != nil {
		return 0, fmt.Errorf("failed to pack asset call: %w", err)
	}
	assetRaw, err := c.CallContract(ctx, ethereum.CallMsg{To: &vault, Data: assetCall}, block)
	if err != nil {
		return 0, fmt.Errorf("failed to read vault asset: %w", err)
	}
	assetOut, err := assetABI.Unpack("asset", assetRaw)
	if err != nil || len(assetOut) == 0 {
		return 0, fmt.Errorf("failed to unpack vault asset result: %w", err)
	}
	assetAddr, ok := assetOut[0].(common.Address)
	if !ok {
		return 0, fmt.Errorf("unexpected asset() return type %T", assetOut[0])
	}

	decimalsCall, err := decimalsABI.Pack("decimals")
	if err != nil {
		return 0, fmt.Errorf("failed to pack decimals call: %w", err)
	}
	decimalsRaw, err := c.CallContract(ctx, ethereum.CallMsg{To: &assetAddr, Data: decimalsCall}, block)
	if err != nil {
		return 0, fmt.Errorf("failed to read asset decimals: %w", err)
	}
	decimalsOut, err := decimalsABI.Unpack("decimals", decimalsRaw)
	if err != nil || len(decimalsOut) == 0 {
		return 0, fmt.Errorf("failed to unpack decimals result: %w", err)
	}
	decimals, ok := decimalsOut[0].(uint8)
	if !ok {
		return 0, fmt.Errorf("unexpected decimals() return type %T", decimalsOut[0])
	}

	c.decimalsMu.Lock()
	c.decimals[vault] = decimals
	c.decimalsMu.Unlock()

	return decimals, nil
}

// Close releases all dialed connections.
func (c *FallbackClient) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, client := range c.clients {
		client.Close()
	}
	c.clients = make(map[string]*ethclient.Client)
}
