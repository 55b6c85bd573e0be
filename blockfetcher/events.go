package blockfetcher

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkg/errors"
)

var (
	// ErrBlockMismatch is emitted when a fetched block's parent hash does not extend the chain
	// emitted so far. It is terminal for the current fetch generation; the consumer must restart
	// the fetcher from an earlier checkpoint.
	ErrBlockMismatch = errors.New("block mismatch detected")

	// ErrChannelClosed is returned when a fetch generation is invalidated while a batch is in
	// flight.
	ErrChannelClosed = errors.New("channel closed")
)

// BlockId identifies a point on the canonical chain the remote node currently serves. Ordered by
// height.
type BlockId struct {
	Height uint32
	Hash   chainhash.Hash
}

func (id BlockId) String() string {
	return fmt.Sprintf("%d:%s", id.Height, id.Hash)
}

// BlockEvent is one item on the fetcher's consumer channel: either a block in strict height
// order, or a terminal error for the current generation.
type BlockEvent struct {
	ID    BlockId
	Block *wire.MsgBlock

	// Err is non-nil for error events; ID and Block are then zero.
	Err error
}
