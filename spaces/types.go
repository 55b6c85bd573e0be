package spaces

import (
	"context"

	"github.com/btcsuite/btcd/wire"
)

// Space is the auction/name metadata bound to an output.
type Space struct {
	Name SName `json:"name"`

	// ClaimHeight is the block height at which the winning bidder may register the space. Nil
	// while the space is in pre-auction.
	ClaimHeight *uint32 `json:"claim_height,omitempty"`

	// Owned is true once the auction has settled and the space is registered to its script.
	Owned bool `json:"owned"`
}

// Spaceout is an on-chain output tracked by the state database. Space is nil for outputs that
// carry plain coin value on the spaces keychain.
type Spaceout struct {
	Value        int64  `json:"value"`
	ScriptPubKey []byte `json:"script_pubkey"`
	Space        *Space `json:"space,omitempty"`
}

// FullSpaceOut pairs a spaceout with its location.
type FullSpaceOut struct {
	Outpoint wire.OutPoint `json:"outpoint"`
	Spaceout Spaceout      `json:"spaceout"`
}

// Snapshot is a read/write handle over the auction/name state database. Handles are cloneable;
// each consumer mutates through its own handle and durability comes from explicit commits
// elsewhere.
type Snapshot interface {
	// GetSpaceInfo looks a space up by its hash. Returns nil when the space is unknown.
	GetSpaceInfo(ctx context.Context, hash SpaceHash) (*FullSpaceOut, error)

	// GetSpaceout returns the spaceout at an outpoint, or nil if the state database does not
	// track it.
	GetSpaceout(ctx context.Context, outpoint wire.OutPoint) (*Spaceout, error)
}

// MempoolOpen describes an unconfirmed "open" observed for a name.
type MempoolOpen struct {
	Txid string
	Seen uint64 // unix seconds
}

// Mempool is the view of unconfirmed spaces transactions the builder consults before composing
// an open.
type Mempool interface {
	// GetOpen returns the unconfirmed open for name, or nil if none is tracked.
	GetOpen(name string) *MempoolOpen
}
