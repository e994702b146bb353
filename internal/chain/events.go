/**
 * @description
 * Vault event ABI and typed decoding. The vault contracts emit five events
 * the ledger cares about: Deposit, RedeemRequested, RedeemClaimed, Report,
 * and BringLiquidity. Report and BringLiquidity are informational only and
 * produce no ledger mutation.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum/accounts/abi
 * - github.com/ethereum/go-ethereum/core/types
 */

package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const vaultEventsABI = `[
  {"anonymous":false,"inputs":[
    {"indexed":true,"name":"sender","type":"address"},
    {"indexed":true,"name":"owner","type":"address"},
    {"indexed":false,"name":"assets","type":"uint256"},
    {"indexed":false,"name":"shares","type":"uint256"}],
   "name":"Deposit","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"name":"owner","type":"address"},
    {"indexed":true,"name":"receiver","type":"address"},
    {"indexed":false,"name":"id","type":"uint256"},
    {"indexed":false,"name":"shares","type":"uint256"},
    {"indexed":false,"name":"assets","type":"uint256"},
    {"indexed":false,"name":"epoch","type":"uint256"}],
   "name":"RedeemRequested","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":true,"name":"receiver","type":"address"},
    {"indexed":false,"name":"id","type":"uint256"},
    {"indexed":false,"name":"requestNominal","type":"uint256"},
    {"indexed":false,"name":"assets","type":"uint256"}],
   "name":"RedeemClaimed","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":false,"name":"totalAssets","type":"uint256"},
    {"indexed":false,"name":"totalSupply","type":"uint256"},
    {"indexed":false,"name":"epoch","type":"uint256"}],
   "name":"Report","type":"event"},
  {"anonymous":false,"inputs":[
    {"indexed":false,"name":"amount","type":"uint256"},
    {"indexed":false,"name":"epoch","type":"uint256"}],
   "name":"BringLiquidity","type":"event"}
]`

var vaultABI abi.ABI

func init() {
	var err error
	vaultABI, err = abi.JSON(strings.NewReader(vaultEventsABI))
	if err != nil {
		panic(fmt.Sprintf("invalid vault events ABI: %v", err))
	}
}

// VaultEvent is one decoded vault contract event.
type VaultEvent interface {
	EventName() string
}

// DepositEvent: assets moved in, shares minted to owner.
type DepositEvent struct {
	Sender common.Address
	Owner  common.Address
	Assets *big.Int
	Shares *big.Int
}

func (DepositEvent) EventName() string { return "Deposit" }

// RedeemRequestedEvent: owner asked to redeem shares; settlement happens in a
// later epoch, claimed by receiver.
type RedeemRequestedEvent struct {
	Owner    common.Address
	Receiver common.Address
	ID       *big.Int
	Shares   *big.Int
	Assets   *big.Int
	Epoch    *big.Int
}

func (RedeemRequestedEvent) EventName() string { return "RedeemRequested" }

// RedeemClaimedEvent: a previously requested redemption settled.
// RequestNominal is the share amount of the original request.
type RedeemClaimedEvent struct {
	Receiver       common.Address
	ID             *big.Int
	RequestNominal *big.Int
	Assets         *big.Int
}

func (RedeemClaimedEvent) EventName() string { return "RedeemClaimed" }

// ReportEvent: periodic AUM report. No ledger mutation.
type ReportEvent struct {
	TotalAssets *big.Int
	TotalSupply *big.Int
	Epoch       *big.Int
}

func (ReportEvent) EventName() string { return "Report" }

// BringLiquidityEvent: internal vault rebalancing. No ledger mutation.
type BringLiquidityEvent struct {
	Amount *big.Int
	Epoch  *big.Int
}

func (BringLiquidityEvent) EventName() string { return "BringLiquidity" }

// VaultEventTopics returns the topic0 hashes of every vault event, used to
// restrict eth_getLogs queries to the logs the ledger consumes.
func VaultEventTopics() []common.Hash {
	return []common.Hash{
		vaultABI.Events["Deposit"].ID,
		vaultABI.Events["RedeemRequested"].ID,
		vaultABI.Events["RedeemClaimed"].ID,
		vaultABI.Events["Report"].ID,
		vaultABI.Events["BringLiquidity"].ID,
	}
}

// ParseVaultLog decodes a raw log into one of the typed vault events.
// Unknown topics are an error; callers pre-filter queries with
// VaultEventTopics so an unknown topic means a decoding bug, not noise.
func ParseVaultLog(log types.Log) (VaultEvent, error) {
	if len(log.Topics) == 0 {
		return nil, fmt.Errorf("log has no topics")
	}

	switch log.Topics[0] {
	case vaultABI.Events["Deposit"].ID:
		if len(log.Topics) < 3 {
			return nil, fmt.Errorf("Deposit log missing indexed topics")
		}
		out, err := vaultABI.Unpack("Deposit", log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack Deposit: %w", err)
		}
		return DepositEvent{
			Sender: common.BytesToAddress(log.Topics[1].Bytes()),
			Owner:  common.BytesToAddress(log.Topics[2].Bytes()),
			Assets: out[0].(*big.Int),
			Shares: out[1].(*big.Int),
		}, nil

	case vaultABI.Events["RedeemRequested"].ID:
		if len(log.Topics) < 3 {
			return nil, fmt.Errorf("RedeemRequested log missing indexed topics")
		}
		out, err := vaultABI.Unpack("RedeemRequested", log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack RedeemRequested: %w", err)
		}
		return RedeemRequestedEvent{
			Owner:    common.BytesToAddress(log.Topics[1].Bytes()),
			Receiver: common.BytesToAddress(log.Topics[2].Bytes()),
			ID:       out[0].(*big.Int),
			Shares:   out[1].(*big.Int),
			Assets:   out[2].(*big.Int),
			Epoch:    out[3].(*big.Int),
		}, nil

	case vaultABI.Events["RedeemClaimed"].ID:
		if len(log.Topics) < 2 {
			return nil, fmt.Errorf("RedeemClaimed log missing indexed topics")
		}
		out, err := vaultABI.Unpack("RedeemClaimed", log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack RedeemClaimed: %w", err)
		}
		return RedeemClaimedEvent{
			Receiver:       common.BytesToAddress(log.Topics[1].Bytes()),
			ID:             out[0].(*big.Int),
			RequestNominal: out[1].(*big.Int),
			Assets:         out[2].(*big.Int),
		}, nil

	case vaultABI.Events["Report"].ID:
		out, err := vaultABI.Unpack("Report", log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack Report: %w", err)
		}
		return ReportEvent{
			TotalAssets: out[0].(*big.Int),
			TotalSupply: out[1].(*big.Int),
			Epoch:       out[2].(*big.Int),
		}, nil

	case vaultABI.Events["BringLiquidity"].ID:
		out, err := vaultABI.Unpack("BringLiquidity", log.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to unpack BringLiquidity: %w", err)
		}
		return BringLiquidityEvent{
			Amount: out[0].(*big.Int),
			Epoch:  out[1].(*big.Int),
		}, nil

	default:
		return nil, fmt.Errorf("unknown vault event topic: %s", log.Topics[0].Hex())
	}
}
