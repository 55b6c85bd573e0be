package txbatch

import (
	"github.com/btcsuite/btcd/btcutil"
)

// Tag classifies a yielded transaction by the intent that produced it.
type Tag string

const (
	TagCoinTransfer Tag = "coin-transfer"
	TagTransfer     Tag = "transfer"
	TagOpen         Tag = "open"
	TagBid          Tag = "bid"
	TagRegister     Tag = "register"
	TagExecute      Tag = "execute"
	TagFeeBump      Tag = "fee-bump"
	TagAuctionSplit Tag = "auction-split"
)

// Request is one multi-intent batch.
type Request struct {
	// FeeRate is in sat/vB; zero means ask the node's estimator.
	FeeRate float64 `json:"fee_rate,omitempty"`

	// AuctionOutputs pre-splits that many auction outputs before the intents run.
	AuctionOutputs int `json:"auction_outputs,omitempty"`

	// Force skips existence and claim-phase guards.
	Force bool `json:"force"`

	// DustLimit is passed through to the transaction engine.
	DustLimit int64 `json:"dust,omitempty"`

	Intents []Intent `json:"-"`
}

// Intent is one entry in a batch, applied in order.
type Intent interface {
	isIntent()
}

// SendCoins transfers plain coin value to any recipient form.
type SendCoins struct {
	Amount btcutil.Amount
	To     string
}

// Transfer moves the named spaces to a space-address recipient.
type Transfer struct {
	Spaces []string
	To     string
}

// Open starts an auction for a new name.
type Open struct {
	Name   string
	Amount btcutil.Amount
}

// Bid places a bid on an existing space's auction.
type Bid struct {
	Name   string
	Amount btcutil.Amount
}

// Register claims a won auction. To is an optional explicit space address; when empty the next
// unused space address is used.
type Register struct {
	Name string
	To   string
}

// ExecuteScript runs a space script against every context space.
type ExecuteScript struct {
	Context     []string
	SpaceScript []byte
}

func (SendCoins) isIntent()     {}
func (Transfer) isIntent()      {}
func (Open) isIntent()          {}
func (Bid) isIntent()           {}
func (Register) isIntent()      {}
func (ExecuteScript) isIntent() {}

// TxResponse is the per-transaction result of a batch, in yield order. Error is attached to the
// first failing transaction only and terminates the batch.
type TxResponse struct {
	Txid  string            `json:"txid"`
	Tags  []Tag             `json:"tags"`
	Error map[string]string `json:"error,omitempty"`
}

// Response is the full ordered result set. Raw carries the hex bundle of every yielded
// transaction when any error occurred, so a client can retry out-of-band.
type Response struct {
	Sent []TxResponse `json:"sent"`
	Raw  []string     `json:"raw,omitempty"`
}
