package walletactor

import (
	"context"
	"time"

	"github.com/spacesprotocol/spaced-go/blockfetcher"
	"github.com/spacesprotocol/spaced-go/logger"
	"github.com/spacesprotocol/spaced-go/rpcnode"
	"github.com/spacesprotocol/spaced-go/spaces"
	"github.com/spacesprotocol/spaced-go/threads"
	"github.com/spacesprotocol/spaced-go/txbatch"
	"github.com/spacesprotocol/spaced-go/wallet"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
)

const (
	// SubSystem is used by the logger package
	SubSystem = "WalletActor"

	// CheckpointWindow is how far behind the tip a restore checkpoint must be to survive the
	// reorg that triggered the restore. Deeper reorgs surface as repeated mismatches until a
	// checkpoint survives.
	CheckpointWindow = 12

	// commitInterval is how often block application flushes wallet storage, in blocks.
	commitInterval = 12

	idleSleep      = 10 * time.Millisecond
	commandBacklog = 10
)

// Config carries everything a wallet's sync actor owns.
type Config struct {
	Params   *chaincfg.Params
	Client   *rpcnode.Client
	Wallet   wallet.Wallet
	Snapshot spaces.Snapshot
	Mempool  spaces.Mempool
	Engine   txbatch.Engine
}

// Actor is the per-wallet synchronization loop: it multiplexes command requests, block events
// and shutdown on a dedicated thread, applying blocks to the wallet and dispatching commands to
// the balance/listing handlers or the batch builder.
type Actor struct {
	config   Config
	batcher  *txbatch.Batcher
	commands chan Command

	walletTip blockfetcher.BlockId
}

func NewActor(config Config) *Actor {
	return &Actor{
		config: config,
		batcher: &txbatch.Batcher{
			Params:   config.Params,
			Client:   config.Client,
			Snapshot: config.Snapshot,
			Mempool:  config.Mempool,
			Engine:   config.Engine,
		},
		commands: make(chan Command, commandBacklog),
	}
}

// Handle returns the request/reply surface for this actor.
func (a *Actor) Handle() *Handle {
	return &Handle{commands: a.commands}
}

// Start runs the actor on its own thread. The returned thread's Stop is the shutdown signal.
func (a *Actor) Start(ctx context.Context) *threads.Thread {
	thread := threads.NewStopThread("WalletSync-"+a.config.Wallet.Name(), a.Run)
	thread.Start(ctx)
	return thread
}

// Run is the actor main loop, shaped for threads.NewStopThread. Each iteration polls, in order:
// the stop flag, the command channel, then the block event channel; block handling skips the
// idle sleep so application proceeds promptly between commands.
func (a *Actor) Run(ctx context.Context, stop *threads.AtomicFlag) error {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	fetcher, events := blockfetcher.NewFetcher(a.config.Client)
	a.walletTip = a.config.Wallet.Tip()
	fetcher.Start(ctx, a.walletTip)

	for {
		if stop.IsSet() {
			fetcher.Stop()
			logger.Info(ctx, "Shutting down wallet sync")
			return a.config.Wallet.Commit(ctx)
		}

		select {
		case cmd := <-a.commands:
			if done := a.handleCommand(ctx, cmd); done {
				fetcher.Stop()
				return a.config.Wallet.Commit(ctx)
			}
		default:
		}

		select {
		case event := <-events:
			if err := a.handleBlockEvent(ctx, fetcher, event); err != nil {
				fetcher.Stop()
				return err
			}
			continue
		default:
		}

		time.Sleep(idleSleep)
	}
}

// handleBlockEvent applies a block or recovers from a fetch error. A wallet commit failure and
// any non-mismatch fetch error are terminal for the actor.
func (a *Actor) handleBlockEvent(ctx context.Context, fetcher *blockfetcher.Fetcher,
	event blockfetcher.BlockEvent) error {

	if event.Err == nil {
		if err := a.config.Wallet.ApplyBlock(ctx, event.ID, event.Block, a.walletTip); err != nil {
			return errors.Wrap(err, "apply block")
		}
		a.walletTip = event.ID

		if event.ID.Height%commitInterval == 0 {
			if err := a.config.Wallet.Commit(ctx); err != nil {
				return errors.Wrap(err, "commit")
			}
		}
		return nil
	}

	if errors.Cause(event.Err) != blockfetcher.ErrBlockMismatch {
		return event.Err
	}

	restore, exists := a.restorePoint()
	if !exists {
		return errors.New("no checkpoint to restore to")
	}

	if err := a.config.Wallet.RestoreTo(restore); err != nil {
		return errors.Wrap(err, "restore")
	}
	a.walletTip = restore

	logger.Info(ctx, "Restore wallet `%s` to block=%s height=%d", a.config.Wallet.Name(),
		a.walletTip.Hash, a.walletTip.Height)

	fetcher.Start(ctx, a.walletTip)
	return nil
}

// restorePoint scans the persisted checkpoints, newest first, for the most recent one far
// enough behind the tip to absorb the reorg; if none qualifies, the oldest checkpoint is used.
func (a *Actor) restorePoint() (blockfetcher.BlockId, bool) {
	checkpoints := a.config.Wallet.Checkpoints()
	if len(checkpoints) == 0 {
		return blockfetcher.BlockId{}, false
	}

	for _, checkpoint := range checkpoints {
		if checkpoint.Height < a.walletTip.Height &&
			a.walletTip.Height-checkpoint.Height >= CheckpointWindow {
			return checkpoint, true
		}
	}

	return checkpoints[len(checkpoints)-1], true
}
