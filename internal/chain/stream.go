/**
 * @description
 * Per-vault ordered event stream. Polls eth_getLogs in chunked block ranges
 * from the resume block to the chain tip, emits each decoded event tagged
 * with block/timestamp/tx hash, announces Synced once the tip is reached,
 * then keeps tailing new blocks. Events for one vault are delivered strictly
 * in (block, log index) order over an unbuffered channel, so the consumer
 * fully processes event N before N+1 is produced.
 *
 * @dependencies
 * - github.com/ethereum/go-ethereum
 */

package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// EventMetadata tags a decoded event with its on-chain position.
type EventMetadata struct {
	BlockNumber uint64
	Timestamp   time.Time
	TxHash      string
	LogIndex    uint
}

// StreamOutput is one item on the stream channel: an event, the Synced
// marker, or a terminal error (the channel closes after an error).
type StreamOutput struct {
	Event  VaultEvent
	Meta   EventMetadata
	Synced bool
	Err    error
}

// Stream produces the ordered event feed for a single vault contract.
type Stream struct {
	client       *FallbackClient
	vault        common.Address
	fromBlock    uint64
	chunkSize    uint64
	pollInterval time.Duration
}

func NewStream(client *FallbackClient, vault common.Address, fromBlock uint64, chunkSize uint64, pollInterval time.Duration) *Stream {
	if chunkSize == 0 {
		chunkSize = 5000
	}
	if pollInterval <= 0 {
		pollInterval = 12 * time.Second
	}
	return &Stream{
		client:       client,
		vault:        vault,
		fromBlock:    fromBlock,
		chunkSize:    chunkSize,
		pollInterval: pollInterval,
	}
}

// Run starts the polling loop. The returned channel is unbuffered and closes
// when the context is cancelled or a terminal error was emitted.
func (s *Stream) Run(ctx context.Context) <-chan StreamOutput {
	out := make(chan StreamOutput)

	go func() {
		defer close(out)

		next := s.fromBlock
		announcedSynced := false

		// One header fetch per distinct block; logs in the same block share it.
		var cachedHeaderBlock uint64
		var cachedHeaderTime time.Time

		for {
			tip, err := s.client.BlockNumber(ctx)
			if err != nil {
				s.emitError(ctx, out, fmt.Errorf("failed to read chain tip: %w", err))
				return
			}

			if next > tip {
				if !announcedSynced {
					if !s.emit(ctx, out, StreamOutput{Synced: true}) {
						return
					}
					announcedSynced = true
				}
				select {
				case <-ctx.Done():
					return
				case <-time.After(s.pollInterval):
				}
				continue
			}

			for next <= tip {
				to := next + s.chunkSize - 1
				if to > tip {
					to = tip
				}

				logs, err := s.client.FilterLogs(ctx, ethereum.FilterQuery{
					FromBlock: new(big.Int).SetUint64(next),
					ToBlock:   new(big.Int).SetUint64(to),
					Addresses: []common.Address{s.vault},
					Topics:    [][]common.Hash{VaultEventTopics()},
				})
				if err != nil {
					s.emitError(ctx, out, fmt.Errorf("failed to fetch logs [%d, %d]: %w", next, to, err))
					return
				}

				sort.Slice(logs, func(i, j int) bool {
					if logs[i].BlockNumber != logs[j].BlockNumber {
						return logs[i].BlockNumber < logs[j].BlockNumber
					}
					return logs[i].Index < logs[j].Index
				})

				for _, l := range logs {
					if l.Removed {
						continue
					}

					event, err := ParseVaultLog(l)
					if err != nil {
						s.emitError(ctx, out, fmt.Errorf("failed to decode log at block %d: %w", l.BlockNumber, err))
						return
					}

					if cachedHeaderBlock != l.BlockNumber || cachedHeaderTime.IsZero() {
						header, err := s.client.HeaderByNumber(ctx, new(big.Int).SetUint64(l.BlockNumber))
						if err != nil {
							s.emitError(ctx, out, fmt.Errorf("failed to read header for block %d: %w", l.BlockNumber, err))
							return
						}
						cachedHeaderBlock = l.BlockNumber
						cachedHeaderTime = time.Unix(int64(header.Time), 0).UTC()
					}

					item := StreamOutput{
						Event: event,
						Meta: EventMetadata{
							BlockNumber: l.BlockNumber,
							Timestamp:   cachedHeaderTime,
							TxHash:      txHashHex(l),
							LogIndex:    l.Index,
						},
					}
					if !s.emit(ctx, out, item) {
						return
					}
				}

				next = to + 1
			}
		}
	}()

	return out
}

func (s *Stream) emit(ctx context.Context, out chan<- StreamOutput, item StreamOutput) bool {
	select {
	case <-ctx.Done():
		return false
	case out <- item:
		return true
	}
}

func (s *Stream) emitError(ctx context.Context, out chan<- StreamOutput, err error) {
	s.emit(ctx, out, StreamOutput{Err: err})
}

func txHashHex(l types.Log) string {
	return l.TxHash.Hex()
}
