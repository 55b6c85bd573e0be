package blockfetcher

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/spacesprotocol/spaced-go/logger"
	"github.com/spacesprotocol/spaced-go/rpcnode"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"golang.org/x/sync/errgroup"
)

const (
	// SubSystem is used by the logger package
	SubSystem = "BlockFetcher"

	// ChannelCapacity bounds the consumer channel; a slow consumer stalls emission and,
	// transitively, height enqueueing.
	ChannelCapacity = 12

	// MaxConcurrency caps the per-batch worker pool.
	MaxConcurrency = 8

	tipPollInterval = time.Second
	idleSleep       = time.Millisecond
)

// Fetcher walks the chain tip of a remote node, fetches blocks in parallel, and emits them on
// its consumer channel in strict height order with parent-hash continuity. It is single-producer:
// each Start invalidates the previous generation by bumping an atomic counter that every worker
// and supervisor re-reads at each step.
type Fetcher struct {
	client *rpcnode.Client

	generation atomic.Uint64
	events     chan BlockEvent
}

// NewFetcher creates a fetcher and its consumer channel.
func NewFetcher(client *rpcnode.Client) (*Fetcher, <-chan BlockEvent) {
	f := &Fetcher{
		client: client,
		events: make(chan BlockEvent, ChannelCapacity),
	}
	return f, f.events
}

// Stop invalidates the current generation without restarting. Outstanding workers observe the
// change at their next step and exit; abandoned responses are dropped.
func (f *Fetcher) Stop() {
	f.generation.Add(1)
}

// Start begins fetching from the block after startBlock. Any prior supervisor and its workers
// observe the generation change and exit.
func (f *Fetcher) Start(ctx context.Context, startBlock BlockId) {
	job := f.generation.Add(1)

	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	go func() {
		lastCheck := time.Now().Add(-2 * tipPollInterval)

		for {
			if f.generation.Load() != job {
				logger.Info(ctx, "Shutting down block fetcher")
				return
			}
			if time.Since(lastCheck) < tipPollInterval {
				time.Sleep(idleSleep)
				continue
			}
			lastCheck = time.Now()

			tip, err := f.client.BlockCount(ctx)
			if err != nil {
				f.events <- BlockEvent{Err: err}
				return
			}

			if tip <= startBlock.Height {
				continue
			}

			concurrency := int(tip - startBlock.Height)
			if concurrency > MaxConcurrency {
				concurrency = MaxConcurrency
			}

			newTip, err := f.runWorkers(ctx, job, startBlock, tip, concurrency)
			if err != nil {
				f.events <- BlockEvent{Err: err}
				f.generation.Add(1)
				return
			}
			startBlock = newTip
		}
	}()
}

type workerResult struct {
	height uint32
	id     BlockId
	block  *wire.MsgBlock
	err    error
}

// runWorkers fetches heights startBlock.Height+1 .. endHeight with a fixed-size pool, buffering
// out-of-order completions and emitting in height order. It returns the last emitted block so the
// supervisor can advance, or the first error: ErrBlockMismatch on a parent-hash discontinuity,
// ErrChannelClosed on generation invalidation, or the underlying RPC failure.
func (f *Fetcher) runWorkers(ctx context.Context, job uint64, startBlock BlockId,
	endHeight uint32, concurrency int) (BlockId, error) {

	defer logger.Elapsed(ctx, time.Now(), "Fetched blocks %d to %d", startBlock.Height+1,
		endHeight)

	pool := &errgroup.Group{}
	pool.SetLimit(concurrency)
	defer pool.Wait()

	done := make(chan struct{})
	defer close(done)
	results := make(chan workerResult, 1)

	queuedHeight := startBlock.Height + 1
	previousHash := startBlock.Hash
	nextEmitHeight := queuedHeight
	inFlight := 0
	pending := make(map[uint32]workerResult)

	for queuedHeight <= endHeight || inFlight > 0 || len(pending) > 0 {
		if f.generation.Load() != job {
			return BlockId{}, ErrChannelClosed
		}

		for inFlight < concurrency && queuedHeight <= endHeight {
			height := queuedHeight
			started := pool.TryGo(func() error {
				f.fetchHeight(ctx, job, height, results, done)
				return nil
			})
			if !started {
				break
			}
			inFlight++
			queuedHeight++
		}

		select {
		case result := <-results:
			inFlight--
			if f.generation.Load() != job {
				return BlockId{}, ErrChannelClosed
			}
			if result.err != nil {
				return BlockId{}, result.err
			}
			pending[result.height] = result

			for {
				next, exists := pending[nextEmitHeight]
				if !exists {
					break
				}
				delete(pending, nextEmitHeight)

				if f.generation.Load() != job {
					return BlockId{}, ErrChannelClosed
				}
				if next.block.Header.PrevBlock != previousHash {
					blockMismatches.Inc()
					return BlockId{}, ErrBlockMismatch
				}

				f.events <- BlockEvent{ID: next.id, Block: next.block}
				blocksEmitted.Inc()

				previousHash = next.id.Hash
				nextEmitHeight++
			}

		case <-time.After(idleSleep):
		}
	}

	return BlockId{Height: nextEmitHeight - 1, Hash: previousHash}, nil
}

// fetchHeight resolves a height to its hash and block, posting the result unless the generation
// was invalidated or the supervisor already returned.
func (f *Fetcher) fetchHeight(ctx context.Context, job uint64, height uint32,
	results chan<- workerResult, done <-chan struct{}) {

	if f.generation.Load() != job {
		return
	}

	result := workerResult{height: height}

	hashStr, err := f.client.BlockHash(ctx, height)
	if err != nil {
		result.err = err
	} else {
		hash, err := chainhash.NewHashFromStr(hashStr)
		if err != nil {
			result.err = err
		} else if f.generation.Load() == job {
			block, err := f.client.Block(ctx, hashStr)
			if err != nil {
				result.err = err
			} else {
				result.id = BlockId{Height: height, Hash: *hash}
				result.block = block
			}
		} else {
			return
		}
	}

	select {
	case results <- result:
	case <-done:
	}
}
