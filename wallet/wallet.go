// Package wallet defines the surface of the two-keychain spaces wallet engine the sync actor and
// batch builder drive. The engine itself (descriptors, signing, persistence of transaction data)
// lives outside this module; everything here is the interface the core consumes plus checkpoint
// persistence.
package wallet

import (
	"context"

	"github.com/spacesprotocol/spaced-go/blockfetcher"
	"github.com/spacesprotocol/spaced-go/spaces"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// KeychainKind selects one of the wallet's two keychains.
type KeychainKind int

const (
	// KeychainCoins holds plain coin outputs.
	KeychainCoins KeychainKind = iota

	// KeychainSpaces holds space-bound outputs. Outputs on this keychain are either locked
	// (carrying a space) or plain coin value, a distinction only the state snapshot can make.
	KeychainSpaces
)

func (k KeychainKind) String() string {
	if k == KeychainSpaces {
		return "spaces"
	}
	return "coins"
}

// LocalOutput is one tracked output on a keychain.
type LocalOutput struct {
	Outpoint  wire.OutPoint  `json:"outpoint"`
	Value     btcutil.Amount `json:"value"`
	PkScript  []byte         `json:"script_pubkey"`
	Keychain  KeychainKind   `json:"keychain"`
	Confirmed bool           `json:"confirmed"`
	Spent     bool           `json:"spent"`
}

// Balance is one keychain's balance as the engine tracks it.
type Balance struct {
	Confirmed        btcutil.Amount
	Immature         btcutil.Amount
	TrustedPending   btcutil.Amount
	UntrustedPending btcutil.Amount
}

// Info describes a loaded wallet.
type Info struct {
	Name         string               `json:"name"`
	Network      string               `json:"network"`
	Fingerprints []string             `json:"fingerprints"`
	Tip          blockfetcher.BlockId `json:"tip"`
}

// DoubleOutput is a connected pair of outputs pre-split for auction participation: the spend
// carries the bid funds and the auction output carries the claim.
type DoubleOutput struct {
	Spend   LocalOutput `json:"spend"`
	Auction LocalOutput `json:"auction"`
}

// Confirmation records where a broadcast transaction was last observed.
type Confirmation struct {
	// LastSeen is the unix time the mempool last reported the transaction; zero if Confirmed.
	LastSeen uint64

	// Confirmed is set when the transaction left the mempool by confirming.
	Confirmed bool
}

// Wallet is the engine surface the sync actor and batch builder drive.
type Wallet interface {
	Name() string
	Info() Info

	// Tip returns the local chain tip.
	Tip() blockfetcher.BlockId

	// Checkpoints returns the persisted rewind points, newest first.
	Checkpoints() []blockfetcher.BlockId

	// ApplyBlock applies a block to the coins keychain with connectedTo as the connection
	// point, advancing the local chain.
	ApplyBlock(ctx context.Context, id blockfetcher.BlockId, block *wire.MsgBlock,
		connectedTo blockfetcher.BlockId) error

	// RestoreTo rewinds the local chain to a previously persisted checkpoint.
	RestoreTo(checkpoint blockfetcher.BlockId) error

	// Commit flushes wallet storage.
	Commit(ctx context.Context) error

	NextUnusedCoinAddress() (btcutil.Address, error)
	NextUnusedSpaceAddress() (*spaces.SpaceAddress, error)

	// ListOutputs returns all tracked outputs of a keychain, spent ones included.
	ListOutputs(kind KeychainKind) []LocalOutput

	BalanceOf(kind KeychainKind) Balance

	// IsMine reports whether the spaces keychain controls the script.
	IsMine(pkScript []byte) bool

	ListAuctionOutputs() ([]DoubleOutput, error)

	// MaxSatisfactionWeight returns the maximum witness weight, in vbytes, needed to satisfy
	// the keychain's descriptor.
	MaxSatisfactionWeight(kind KeychainKind) int

	// BuildFeeBump builds and signs an RBF replacement for txid on the coins keychain at the
	// given rate in sat/vB.
	BuildFeeBump(ctx context.Context, txid chainhash.Hash, feeRate float64) (*wire.MsgTx, error)

	// InsertTx records a broadcast transaction.
	InsertTx(ctx context.Context, tx *wire.MsgTx, confirmation Confirmation) error
}
