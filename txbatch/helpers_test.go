package txbatch

import (
	"testing"

	"github.com/spacesprotocol/spaced-go/blockfetcher"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
)

func tipAt(height uint32) blockfetcher.BlockId {
	return blockfetcher.BlockId{Height: height}
}

func coinAddress(t *testing.T) string {
	t.Helper()

	var keyHash [20]byte
	keyHash[0] = 0x99
	address, err := btcutil.NewAddressWitnessPubKeyHash(keyHash[:],
		&chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return address.EncodeAddress()
}
