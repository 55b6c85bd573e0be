package txbatch

import (
	"context"

	"github.com/spacesprotocol/spaced-go/spaces"
	"github.com/spacesprotocol/spaced-go/wallet"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/wire"
)

// SequenceRBF is the input sequence used for replaceable spends.
const SequenceRBF = wire.MaxTxInSequenceNum - 2

// PlanEntry is one validated operation handed to the transaction engine, in intent order.
type PlanEntry interface {
	isPlanEntry()
}

// CoinTransfer sends plain coin value.
type CoinTransfer struct {
	Amount    btcutil.Amount
	Recipient btcutil.Address
}

// SpaceTransfer moves a space to a new script.
type SpaceTransfer struct {
	Space     *spaces.FullSpaceOut
	Recipient btcutil.Address
}

// OpenPlan starts an auction.
type OpenPlan struct {
	Name   string
	Amount btcutil.Amount
}

// BidPlan bids on the current spaceout of an auction.
type BidPlan struct {
	Space  *spaces.FullSpaceOut
	Amount btcutil.Amount
}

// RegisterPlan claims a won auction to a space address.
type RegisterPlan struct {
	Space     *spaces.FullSpaceOut
	Recipient *spaces.SpaceAddress
}

// ExecutePlan bundles per-context space transfers with the user-supplied script payload.
type ExecutePlan struct {
	Transfers []SpaceTransfer
	Script    []byte
}

func (CoinTransfer) isPlanEntry()  {}
func (SpaceTransfer) isPlanEntry() {}
func (OpenPlan) isPlanEntry()      {}
func (BidPlan) isPlanEntry()       {}
func (RegisterPlan) isPlanEntry()  {}
func (ExecutePlan) isPlanEntry()   {}

// BuildParams is everything the engine needs beyond the wallet itself.
type BuildParams struct {
	FeeRate        float64 // sat/vB
	AuctionOutputs int
	Force          bool
	Dust           int64

	// MedianTime is the node's mediantime, the locktime basis.
	MedianTime uint64

	Plan []PlanEntry
}

// TaggedTransaction is one transaction yielded by the engine with the tags of the intents it
// realizes.
type TaggedTransaction struct {
	Tx   *wire.MsgTx
	Tags []Tag
}

// TxIterator yields transactions one at a time; some intents produce multiple chained
// transactions. Next returns (nil, nil) when the plan is exhausted.
type TxIterator interface {
	Next() (*TaggedTransaction, error)
}

// Engine is the transaction construction half of the wallet engine: it turns a validated plan
// into signed transactions. Construction and signing live outside this module.
type Engine interface {
	BuildIter(ctx context.Context, params BuildParams, w wallet.Wallet,
		selection CoinSelection) (TxIterator, error)
}

// WeightedUTXO is a foreign input candidate with a known satisfaction cost.
type WeightedUTXO struct {
	Outpoint           wire.OutPoint
	Value              btcutil.Amount
	PkScript           []byte
	Sequence           uint32
	SatisfactionWeight int
}

// CoinSelection is the set of confirmed coin-value outputs on the spaces keychain the engine may
// spend as plain coins, alongside whatever the coins keychain provides.
type CoinSelection struct {
	Foreign []WeightedUTXO
}

// SpacesAwareSelection builds a coin selection from the wallet's spaces keychain: confirmed,
// unspent outputs the state snapshot does NOT track as spaces are spendable for their coin
// value, with RBF-enabled sequences and the keychain descriptor's maximum satisfaction weight.
func SpacesAwareSelection(ctx context.Context, w wallet.Wallet,
	snapshot spaces.Snapshot) (CoinSelection, error) {

	weight := w.MaxSatisfactionWeight(wallet.KeychainSpaces)

	var selection CoinSelection
	for _, output := range w.ListOutputs(wallet.KeychainSpaces) {
		if output.Spent || !output.Confirmed {
			continue
		}

		spaceout, err := snapshot.GetSpaceout(ctx, output.Outpoint)
		if err != nil {
			return CoinSelection{}, err
		}
		if spaceout != nil {
			continue // locked space output
		}

		selection.Foreign = append(selection.Foreign, WeightedUTXO{
			Outpoint:           output.Outpoint,
			Value:              output.Value,
			PkScript:           output.PkScript,
			Sequence:           SequenceRBF,
			SatisfactionWeight: weight,
		})
	}

	return selection, nil
}
