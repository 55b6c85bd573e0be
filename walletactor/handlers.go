package walletactor

import (
	"bytes"
	"context"
	"encoding/hex"

	"github.com/spacesprotocol/spaced-go/logger"
	"github.com/spacesprotocol/spaced-go/spaces"
	"github.com/spacesprotocol/spaced-go/txbatch"
	"github.com/spacesprotocol/spaced-go/wallet"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkg/errors"
)

// ConfirmedBalance sums confirmed value across both keychains.
type ConfirmedBalance struct {
	Total     btcutil.Amount `json:"total"`
	Spendable btcutil.Amount `json:"spendable"`
	Immature  btcutil.Amount `json:"immature"`
	Locked    btcutil.Amount `json:"locked"`
}

// UnconfirmedBalance sums pending value across both keychains.
type UnconfirmedBalance struct {
	Total  btcutil.Amount `json:"total"`
	Locked btcutil.Amount `json:"locked"`
}

// JointBalance is the wallet balance over both keychains. Only coin-value outputs from the
// spaces keychain count as spendable; value locked in spaces is reported separately.
type JointBalance struct {
	Confirmed   ConfirmedBalance   `json:"confirmed"`
	Unconfirmed UnconfirmedBalance `json:"unconfirmed"`
}

// handleCommand dispatches one command and replies on its one-shot channel. The returned bool
// requests actor termination.
func (a *Actor) handleCommand(ctx context.Context, cmd Command) bool {
	switch c := cmd.(type) {
	case GetInfo:
		respond(c.Resp, a.config.Wallet.Info(), nil)

	case GetNewAddress:
		address, err := a.newAddress(c.Kind)
		respond(c.Resp, address, err)

	case ListUnspent:
		outputs, err := a.listUnspent(ctx)
		respond(c.Resp, outputs, err)

	case ListSpaces:
		spaceouts, _, err := a.spaceOutputs(ctx)
		if err != nil {
			respond(c.Resp, nil, err)
			break
		}
		owned := make([]spaces.FullSpaceOut, 0, len(spaceouts))
		for _, spaceout := range spaceouts {
			if spaceout.Spaceout.Space != nil {
				owned = append(owned, spaceout)
			}
		}
		respond(c.Resp, owned, nil)

	case ListAuctionOutputs:
		outputs, err := a.config.Wallet.ListAuctionOutputs()
		respond(c.Resp, outputs, err)

	case GetBalance:
		balance, err := a.jointBalance(ctx)
		respond(c.Resp, balance, err)

	case BumpFee:
		responses, err := a.handleFeeBump(ctx, c.Txid, c.FeeRate)
		respond(c.Resp, responses, err)

	case BatchTx:
		response, err := a.handleBatchTx(ctx, c.Request)
		respond(c.Resp, response, err)

	case UnloadWallet:
		logger.Info(ctx, "Unloading wallet '%s' ...", a.config.Wallet.Name())
		return true
	}

	return false
}

func (a *Actor) newAddress(kind AddressKind) (string, error) {
	if kind == AddressSpace {
		address, err := a.config.Wallet.NextUnusedSpaceAddress()
		if err != nil {
			return "", err
		}
		return address.String(), nil
	}

	address, err := a.config.Wallet.NextUnusedCoinAddress()
	if err != nil {
		return "", err
	}
	return address.EncodeAddress(), nil
}

// spaceOutputs classifies the spaces keychain's unspent outputs against the state snapshot:
// outputs the snapshot tracks are space-locked, the rest carry plain coin value.
func (a *Actor) spaceOutputs(ctx context.Context) ([]spaces.FullSpaceOut,
	[]wallet.LocalOutput, error) {

	var spaceouts []spaces.FullSpaceOut
	var coinouts []wallet.LocalOutput

	for _, output := range a.config.Wallet.ListOutputs(wallet.KeychainSpaces) {
		if output.Spent {
			continue
		}

		spaceout, err := a.config.Snapshot.GetSpaceout(ctx, output.Outpoint)
		if err != nil {
			return nil, nil, errors.Wrap(err, "spaceout lookup")
		}

		if spaceout == nil {
			coinouts = append(coinouts, output)
			continue
		}
		spaceouts = append(spaceouts, spaces.FullSpaceOut{
			Outpoint: output.Outpoint,
			Spaceout: *spaceout,
		})
	}

	return spaceouts, coinouts, nil
}

// listUnspent is the union of the spaces keychain's coin-value outputs and the coins keychain's
// unspents.
func (a *Actor) listUnspent(ctx context.Context) ([]wallet.LocalOutput, error) {
	_, coinouts, err := a.spaceOutputs(ctx)
	if err != nil {
		return nil, err
	}

	all := coinouts
	for _, output := range a.config.Wallet.ListOutputs(wallet.KeychainCoins) {
		if output.Spent {
			continue
		}
		all = append(all, output)
	}

	return all, nil
}

func (a *Actor) jointBalance(ctx context.Context) (JointBalance, error) {
	_, coinouts, err := a.spaceOutputs(ctx)
	if err != nil {
		return JointBalance{}, err
	}

	var spacesConfirmed, spacesPending btcutil.Amount
	for _, output := range coinouts {
		if output.Confirmed {
			spacesConfirmed += output.Value
		} else {
			spacesPending += output.Value
		}
	}

	spacesBalance := a.config.Wallet.BalanceOf(wallet.KeychainSpaces)
	coins := a.config.Wallet.BalanceOf(wallet.KeychainCoins)

	return JointBalance{
		Confirmed: ConfirmedBalance{
			Total:     spacesConfirmed + spacesBalance.Immature + coins.Confirmed + coins.Immature,
			Spendable: spacesConfirmed + coins.Confirmed,
			Immature:  spacesBalance.Immature + coins.Immature,
			Locked:    spacesBalance.Confirmed - spacesConfirmed,
		},
		Unconfirmed: UnconfirmedBalance{
			Total:  spacesPending + coins.TrustedPending + coins.UntrustedPending,
			Locked: spacesBalance.TrustedPending + spacesBalance.UntrustedPending - spacesPending,
		},
	}, nil
}

// handleFeeBump builds, signs and broadcasts an RBF replacement on the coins keychain, then
// records and commits it.
func (a *Actor) handleFeeBump(ctx context.Context, txid chainhash.Hash,
	feeRate float64) ([]txbatch.TxResponse, error) {

	tx, err := a.config.Wallet.BuildFeeBump(ctx, txid, feeRate)
	if err != nil {
		return nil, errors.Wrap(err, "build fee bump")
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, errors.Wrap(err, "serialize")
	}

	confirmation, err := a.config.Client.BroadcastTx(ctx, hex.EncodeToString(buf.Bytes()))
	if err != nil {
		return nil, errors.Wrap(err, "broadcast")
	}

	if err := a.config.Wallet.InsertTx(ctx, tx, wallet.Confirmation{
		LastSeen:  confirmation.LastSeen,
		Confirmed: confirmation.Confirmed,
	}); err != nil {
		return nil, errors.Wrap(err, "insert tx")
	}
	if err := a.config.Wallet.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit")
	}

	return []txbatch.TxResponse{{
		Txid: tx.TxHash().String(),
		Tags: []txbatch.Tag{txbatch.TagFeeBump},
	}}, nil
}

func (a *Actor) handleBatchTx(ctx context.Context, request txbatch.Request) (*txbatch.Response,
	error) {

	selection, err := txbatch.SpacesAwareSelection(ctx, a.config.Wallet, a.config.Snapshot)
	if err != nil {
		return nil, errors.Wrap(err, "coin selection")
	}

	return a.batcher.Execute(ctx, a.config.Wallet, selection, request)
}
