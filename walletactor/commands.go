package walletactor

import (
	"context"

	"github.com/spacesprotocol/spaced-go/spaces"
	"github.com/spacesprotocol/spaced-go/txbatch"
	"github.com/spacesprotocol/spaced-go/wallet"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
)

// AddressKind selects which keychain a new address is drawn from.
type AddressKind int

const (
	AddressCoin AddressKind = iota
	AddressSpace
)

// Response is the one-shot reply to a command: the requested value or an error.
type Response struct {
	Value interface{}
	Err   error
}

// Command is a request to a wallet's sync actor. Each command that produces a value carries a
// buffered one-shot reply channel; a requestor that stops listening is silently ignored.
type Command interface {
	isCommand()
}

type GetInfo struct{ Resp chan Response }

type BatchTx struct {
	Request txbatch.Request
	Resp    chan Response
}

type GetNewAddress struct {
	Kind AddressKind
	Resp chan Response
}

type BumpFee struct {
	Txid    chainhash.Hash
	FeeRate float64 // sat/vB
	Resp    chan Response
}

type ListSpaces struct{ Resp chan Response }
type ListAuctionOutputs struct{ Resp chan Response }
type ListUnspent struct{ Resp chan Response }
type GetBalance struct{ Resp chan Response }

// UnloadWallet asks the actor to terminate; it carries no reply.
type UnloadWallet struct{}

func (GetInfo) isCommand()            {}
func (BatchTx) isCommand()            {}
func (GetNewAddress) isCommand()      {}
func (BumpFee) isCommand()            {}
func (ListSpaces) isCommand()         {}
func (ListAuctionOutputs) isCommand() {}
func (ListUnspent) isCommand()        {}
func (GetBalance) isCommand()         {}
func (UnloadWallet) isCommand()       {}

// respond delivers a reply without blocking; a full or abandoned channel means the requestor
// cancelled.
func respond(ch chan Response, value interface{}, err error) {
	if ch == nil {
		return
	}
	select {
	case ch <- Response{Value: value, Err: err}:
	default:
	}
}

// Handle is the client side of an actor: it wraps the command channel behind typed
// request/reply calls.
type Handle struct {
	commands chan<- Command
}

func (h *Handle) send(ctx context.Context, cmd Command, resp chan Response) (interface{}, error) {
	select {
	case h.commands <- cmd:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-resp:
		return r.Value, r.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) GetInfo(ctx context.Context) (wallet.Info, error) {
	resp := make(chan Response, 1)
	value, err := h.send(ctx, GetInfo{Resp: resp}, resp)
	if err != nil {
		return wallet.Info{}, err
	}
	return value.(wallet.Info), nil
}

func (h *Handle) BatchTx(ctx context.Context, request txbatch.Request) (*txbatch.Response, error) {
	resp := make(chan Response, 1)
	value, err := h.send(ctx, BatchTx{Request: request, Resp: resp}, resp)
	if err != nil {
		return nil, err
	}
	return value.(*txbatch.Response), nil
}

func (h *Handle) GetNewAddress(ctx context.Context, kind AddressKind) (string, error) {
	resp := make(chan Response, 1)
	value, err := h.send(ctx, GetNewAddress{Kind: kind, Resp: resp}, resp)
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

func (h *Handle) BumpFee(ctx context.Context, txid chainhash.Hash,
	feeRate float64) ([]txbatch.TxResponse, error) {
	resp := make(chan Response, 1)
	value, err := h.send(ctx, BumpFee{Txid: txid, FeeRate: feeRate, Resp: resp}, resp)
	if err != nil {
		return nil, err
	}
	return value.([]txbatch.TxResponse), nil
}

func (h *Handle) ListSpaces(ctx context.Context) ([]spaces.FullSpaceOut, error) {
	resp := make(chan Response, 1)
	value, err := h.send(ctx, ListSpaces{Resp: resp}, resp)
	if err != nil {
		return nil, err
	}
	return value.([]spaces.FullSpaceOut), nil
}

func (h *Handle) ListAuctionOutputs(ctx context.Context) ([]wallet.DoubleOutput, error) {
	resp := make(chan Response, 1)
	value, err := h.send(ctx, ListAuctionOutputs{Resp: resp}, resp)
	if err != nil {
		return nil, err
	}
	return value.([]wallet.DoubleOutput), nil
}

func (h *Handle) ListUnspent(ctx context.Context) ([]wallet.LocalOutput, error) {
	resp := make(chan Response, 1)
	value, err := h.send(ctx, ListUnspent{Resp: resp}, resp)
	if err != nil {
		return nil, err
	}
	return value.([]wallet.LocalOutput), nil
}

func (h *Handle) GetBalance(ctx context.Context) (JointBalance, error) {
	resp := make(chan Response, 1)
	value, err := h.send(ctx, GetBalance{Resp: resp}, resp)
	if err != nil {
		return JointBalance{}, err
	}
	return value.(JointBalance), nil
}

func (h *Handle) UnloadWallet(ctx context.Context) error {
	select {
	case h.commands <- UnloadWallet{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
