package txbatch

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/spacesprotocol/spaced-go/feeheuristics"
	"github.com/spacesprotocol/spaced-go/logger"
	"github.com/spacesprotocol/spaced-go/resolver"
	"github.com/spacesprotocol/spaced-go/rpcnode"
	"github.com/spacesprotocol/spaced-go/spaces"
	"github.com/spacesprotocol/spaced-go/wallet"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
)

const (
	// SubSystem is used by the logger package
	SubSystem = "TxBatch"
)

// Batcher composes multi-intent batches, broadcasts them sequentially, and interprets
// mempool/replacement errors into actionable diagnostics.
type Batcher struct {
	Params   *chaincfg.Params
	Client   *rpcnode.Client
	Snapshot spaces.Snapshot
	Mempool  spaces.Mempool
	Engine   Engine
}

// Execute validates req's intents against wallet and state, builds the transaction plan, then
// broadcasts yielded transactions in order, stopping at the first failure. Intent-level
// validation failures return an error identifying the offending intent; broadcast failures are
// attached to the failing transaction's result instead.
func (b *Batcher) Execute(ctx context.Context, w wallet.Wallet, selection CoinSelection,
	req Request) (*Response, error) {

	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	feeRate := req.FeeRate
	if feeRate == 0 {
		estimated, err := b.Client.EstimateFeeRate(ctx, 0)
		if err != nil {
			return nil, err
		}
		feeRate = estimated
	}
	logger.Info(ctx, "Using fee rate: %v sat/vB", feeRate)

	plan, err := b.buildPlan(ctx, w, req)
	if err != nil {
		return nil, err
	}

	chainInfo, err := b.Client.GetChainInfo(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "median time")
	}

	iter, err := b.Engine.BuildIter(ctx, BuildParams{
		FeeRate:        feeRate,
		AuctionOutputs: req.AuctionOutputs,
		Force:          req.Force,
		Dust:           req.DustLimit,
		MedianTime:     chainInfo.MedianTime,
		Plan:           plan,
	}, w, selection)
	if err != nil {
		return nil, err
	}

	return b.broadcastAll(ctx, w, iter)
}

// buildPlan validates every intent, in order, against wallet ownership and state.
func (b *Batcher) buildPlan(ctx context.Context, w wallet.Wallet,
	req Request) ([]PlanEntry, error) {

	var plan []PlanEntry

	for _, intent := range req.Intents {
		switch params := intent.(type) {
		case SendCoins:
			recipient, err := resolver.Resolve(ctx, b.Params, b.Snapshot, params.To, false)
			if err != nil {
				return nil, err
			}
			if recipient == nil {
				return nil, errors.Errorf("sendcoins: could not resolve '%s'", params.To)
			}
			plan = append(plan, CoinTransfer{Amount: params.Amount, Recipient: recipient})

		case Transfer:
			names := make([]spaces.SName, 0, len(params.Spaces))
			for _, space := range params.Spaces {
				name, err := spaces.ParseSName(space)
				if err != nil {
					continue
				}
				names = append(names, name)
			}
			if len(names) != len(params.Spaces) {
				return nil, errors.New("sendspaces: some names were malformed")
			}

			recipient, err := resolver.Resolve(ctx, b.Params, b.Snapshot, params.To, true)
			if err != nil {
				return nil, err
			}
			if recipient == nil {
				return nil, errors.Errorf("sendspaces: could not resolve '%s'", params.To)
			}

			for _, name := range names {
				full, err := b.ownedSpace(ctx, w, name)
				if err != nil {
					return nil, errors.Errorf("sendspaces: you don't own `%s`", name)
				}
				plan = append(plan, SpaceTransfer{Space: full, Recipient: recipient})
			}

		case Open:
			name, err := spaces.ParseSName(params.Name)
			if err != nil {
				return nil, errors.Wrapf(err, "open '%s'", params.Name)
			}

			if !req.Force {
				existing, err := b.Snapshot.GetSpaceInfo(ctx, spaces.HashName(name))
				if err != nil {
					return nil, errors.Wrap(err, "space lookup")
				}
				if existing != nil {
					return nil, errors.Errorf("open '%s': space already exists", params.Name)
				}

				if pending := b.Mempool.GetOpen(name.String()); pending != nil {
					return nil, errors.Errorf(
						"an existing open for `%s` in mempool: tx: #%s seen at: %d",
						params.Name, pending.Txid, pending.Seen)
				}
			}

			plan = append(plan, OpenPlan{Name: name.String(), Amount: params.Amount})

		case Bid:
			name, err := spaces.ParseSName(params.Name)
			if err != nil {
				return nil, errors.Wrapf(err, "bid '%s'", params.Name)
			}

			full, err := b.Snapshot.GetSpaceInfo(ctx, spaces.HashName(name))
			if err != nil {
				return nil, errors.Wrap(err, "space lookup")
			}
			if full == nil {
				return nil, errors.Errorf("bid '%s': space does not exist", params.Name)
			}
			plan = append(plan, BidPlan{Space: full, Amount: params.Amount})

		case Register:
			entry, err := b.planRegister(ctx, w, req.Force, params)
			if err != nil {
				return nil, err
			}
			plan = append(plan, entry)

		case ExecuteScript:
			var transfers []SpaceTransfer
			for _, space := range params.Context {
				name, err := spaces.ParseSName(space)
				if err != nil {
					return nil, errors.Wrapf(err, "execute on '%s'", space)
				}

				full, err := b.Snapshot.GetSpaceInfo(ctx, spaces.HashName(name))
				if err != nil {
					return nil, errors.Wrap(err, "space lookup")
				}
				if full == nil {
					return nil, errors.Errorf("execute on '%s': space does not exist", space)
				}
				if !w.IsMine(full.Spaceout.ScriptPubKey) {
					return nil, errors.Errorf("execute on '%s': you don't own this space", space)
				}

				address, err := w.NextUnusedSpaceAddress()
				if err != nil {
					return nil, errors.Wrap(err, "space address")
				}
				recipient, err := spaceAddressToAddress(address, b.Params)
				if err != nil {
					return nil, err
				}
				transfers = append(transfers, SpaceTransfer{Space: full, Recipient: recipient})
			}
			plan = append(plan, ExecutePlan{Transfers: transfers, Script: params.SpaceScript})

		default:
			return nil, errors.Errorf("unsupported intent %T", intent)
		}
	}

	return plan, nil
}

func (b *Batcher) planRegister(ctx context.Context, w wallet.Wallet, force bool,
	params Register) (PlanEntry, error) {

	name, err := spaces.ParseSName(params.Name)
	if err != nil {
		return nil, errors.Wrapf(err, "register '%s'", params.Name)
	}

	full, err := b.Snapshot.GetSpaceInfo(ctx, spaces.HashName(name))
	if err != nil {
		return nil, errors.Wrap(err, "space lookup")
	}
	if full == nil {
		return nil, errors.Errorf("register '%s': space does not exist", params.Name)
	}
	if !w.IsMine(full.Spaceout.ScriptPubKey) {
		return nil, errors.Errorf("register '%s': you don't own this space", params.Name)
	}

	if !force {
		if full.Spaceout.Space == nil || full.Spaceout.Space.ClaimHeight == nil {
			return nil, errors.Errorf("register '%s': cannot register a space in pre-auctions",
				params.Name)
		}

		claimHeight := *full.Spaceout.Space.ClaimHeight
		if claimHeight > w.Tip().Height {
			return nil, errors.Errorf("register '%s': cannot register until claim height %d",
				params.Name, claimHeight)
		}
	}

	var address *spaces.SpaceAddress
	if params.To == "" {
		if address, err = w.NextUnusedSpaceAddress(); err != nil {
			return nil, errors.Wrap(err, "space address")
		}
	} else {
		if address, err = spaces.ParseSpaceAddress(params.To, b.Params); err != nil {
			return nil, errors.Errorf(
				"transfer '%s': recipient must be a valid space address", params.Name)
		}
	}

	return RegisterPlan{Space: full, Recipient: address}, nil
}

// ownedSpace looks a name up and verifies the wallet owns its script.
func (b *Batcher) ownedSpace(ctx context.Context, w wallet.Wallet,
	name spaces.SName) (*spaces.FullSpaceOut, error) {

	full, err := b.Snapshot.GetSpaceInfo(ctx, spaces.HashName(name))
	if err != nil {
		return nil, err
	}
	if full == nil || full.Spaceout.Space == nil || !full.Spaceout.Space.Owned ||
		!w.IsMine(full.Spaceout.ScriptPubKey) {
		return nil, errors.New("not owned")
	}

	return full, nil
}

// broadcastAll yields transactions in order, broadcasting each and stopping at the first
// failure. Every yielded transaction appears in the result set; the raw hex bundle is attached
// when any error occurred.
func (b *Batcher) broadcastAll(ctx context.Context, w wallet.Wallet,
	iter TxIterator) (*Response, error) {

	var results []TxResponse
	var rawSet []string
	hasErrors := false

	for {
		tagged, err := iter.Next()
		if err != nil {
			return nil, err
		}
		if tagged == nil {
			break
		}

		isBid := false
		for _, tag := range tagged.Tags {
			if tag == TagBid {
				isBid = true
			}
		}

		results = append(results, TxResponse{
			Txid: tagged.Tx.TxHash().String(),
			Tags: tagged.Tags,
		})

		var buf bytes.Buffer
		if err := tagged.Tx.Serialize(&buf); err != nil {
			return nil, errors.Wrap(err, "serialize")
		}
		rawHex := hex.EncodeToString(buf.Bytes())
		rawSet = append(rawSet, rawHex)

		confirmation, err := b.Client.BroadcastTx(ctx, rawHex)
		if err != nil {
			hasErrors = true
			results[len(results)-1].Error = broadcastErrorData(err, isBid)
			break
		}

		if err := w.InsertTx(ctx, tagged.Tx, wallet.Confirmation{
			LastSeen:  confirmation.LastSeen,
			Confirmed: confirmation.Confirmed,
		}); err != nil {
			return nil, errors.Wrap(err, "insert tx")
		}
		if err := w.Commit(ctx); err != nil {
			return nil, errors.Wrap(err, "commit")
		}
	}

	response := &Response{Sent: results}
	if hasErrors {
		response.Raw = rawSet
	}
	return response, nil
}

// broadcastErrorData shapes a broadcast failure into the diagnostic map attached to the failing
// transaction. Bid failures additionally carry a hint derived from the replacement/feerate
// heuristics.
func broadcastErrorData(err error, isBid bool) map[string]string {
	data := make(map[string]string)

	rpcErr, isRPC := errors.Cause(err).(*rpcnode.RpcError)
	if !isRPC {
		data["message"] = err.Error()
		return data
	}

	if isBid {
		if strings.Contains(rpcErr.Message, "replacement-adds-unconfirmed") {
			data["hint"] = "If you don't have confirmed auction outputs, you cannot " +
				"replace bids in the mempool."
		}

		if rate, ok := feeheuristics.FeeRateFromMessage(rpcErr.Message); ok {
			data["hint"] = fmt.Sprintf(
				"A competing bid in the mempool; replace with a feerate > %d sat/vB.", rate)
		}
	}

	data["rpc_code"] = fmt.Sprintf("%d", rpcErr.Code)
	data["message"] = rpcErr.Message
	return data
}

func spaceAddressToAddress(address *spaces.SpaceAddress,
	params *chaincfg.Params) (btcutil.Address, error) {

	program, err := address.WitnessProgram()
	if err != nil {
		return nil, err
	}
	return btcutil.NewAddressTaproot(program[:], params)
}
