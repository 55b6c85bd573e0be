// Package resolver turns recipient strings into bitcoin addresses: raw addresses pass through,
// space addresses surface their bound script, and space names are looked up in the auction/name
// state.
package resolver

import (
	"context"

	"github.com/spacesprotocol/spaced-go/spaces"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/pkg/errors"
)

var (
	// ErrSpaceAddressRequired is returned when a plain bitcoin address parses but the caller
	// demanded a space address. The rejection happens before space-address or space-name parsing
	// is attempted.
	ErrSpaceAddressRequired = errors.New("recipient must be a space address")

	// ErrMalformedRecipient is returned for input that is not an address, a space address, or a
	// valid space name.
	ErrMalformedRecipient = errors.New("recipient must be a valid space name or an address")

	// ErrWrongNetwork is returned for a well-formed address that is not usable on the configured
	// network.
	ErrWrongNetwork = errors.New("address is not valid for the configured network")
)

// Resolve resolves a recipient string, first match wins: raw bitcoin address, space address,
// then space name. A nil address with a nil error means the name parsed but is unknown to the
// state snapshot; the caller converts that to a helpful message per intent.
func Resolve(ctx context.Context, params *chaincfg.Params, snapshot spaces.Snapshot, to string,
	requireSpaceAddress bool) (btcutil.Address, error) {

	if address, err := btcutil.DecodeAddress(to, params); err == nil {
		if requireSpaceAddress {
			return nil, ErrSpaceAddressRequired
		}
		if !address.IsForNet(params) {
			return nil, ErrWrongNetwork
		}
		return address, nil
	}

	if spaceAddress, err := spaces.ParseSpaceAddress(to, params); err == nil {
		return addressFromScript(spaceAddress.ScriptPubKey, params)
	}

	name, err := spaces.ParseSName(to)
	if err != nil {
		return nil, ErrMalformedRecipient
	}

	info, err := snapshot.GetSpaceInfo(ctx, spaces.HashName(name))
	if err != nil {
		return nil, errors.Wrap(err, "space lookup")
	}
	if info == nil {
		return nil, nil
	}

	return addressFromScript(info.Spaceout.ScriptPubKey, params)
}

func addressFromScript(script []byte, params *chaincfg.Params) (btcutil.Address, error) {
	_, addresses, _, err := txscript.ExtractPkScriptAddrs(script, params)
	if err != nil || len(addresses) == 0 {
		return nil, errors.New("space script does not encode an address")
	}
	return addresses[0], nil
}
