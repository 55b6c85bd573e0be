package resolver

import (
	"context"
	"testing"

	"github.com/spacesprotocol/spaced-go/spaces"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
)

// mapSnapshot is an in-memory state snapshot keyed by space hash.
type mapSnapshot struct {
	infos map[spaces.SpaceHash]*spaces.FullSpaceOut
}

func (s *mapSnapshot) GetSpaceInfo(ctx context.Context,
	hash spaces.SpaceHash) (*spaces.FullSpaceOut, error) {
	return s.infos[hash], nil
}

func (s *mapSnapshot) GetSpaceout(ctx context.Context,
	outpoint wire.OutPoint) (*spaces.Spaceout, error) {
	return nil, nil
}

func snapshotWith(t *testing.T, name string, script []byte) *mapSnapshot {
	t.Helper()

	sname, err := spaces.ParseSName(name)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	return &mapSnapshot{infos: map[spaces.SpaceHash]*spaces.FullSpaceOut{
		spaces.HashName(sname): {
			Spaceout: spaces.Spaceout{Value: 1000, ScriptPubKey: script},
		},
	}}
}

func spaceScript(seed byte) []byte {
	script := make([]byte, 34)
	script[0] = 0x51
	script[1] = 0x20
	for i := 2; i < len(script); i++ {
		script[i] = seed
	}
	return script
}

func TestResolve_RawAddressRoundTrip(t *testing.T) {
	params := &chaincfg.RegressionNetParams

	var keyHash [20]byte
	original, err := btcutil.NewAddressWitnessPubKeyHash(keyHash[:], params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := Resolve(context.Background(), params, &mapSnapshot{},
		original.EncodeAddress(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.EncodeAddress() != original.EncodeAddress() {
		t.Fatalf("expected %s, got %s", original.EncodeAddress(), resolved.EncodeAddress())
	}
}

func TestResolve_RawAddressRejectedWhenSpaceRequired(t *testing.T) {
	params := &chaincfg.RegressionNetParams

	var keyHash [20]byte
	address, err := btcutil.NewAddressWitnessPubKeyHash(keyHash[:], params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := Resolve(context.Background(), params, &mapSnapshot{},
		address.EncodeAddress(), true); err != ErrSpaceAddressRequired {
		t.Fatalf("expected ErrSpaceAddressRequired, got %v", err)
	}
}

func TestResolve_SpaceAddress(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	script := spaceScript(0xab)

	spaceAddress, err := spaces.SpaceAddressFromScript(script, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	resolved, err := Resolve(context.Background(), params, &mapSnapshot{},
		spaceAddress.String(), true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved == nil {
		t.Fatal("expected an address")
	}
}

func TestResolve_KnownSpaceName(t *testing.T) {
	params := &chaincfg.RegressionNetParams
	script := spaceScript(0x17)
	snapshot := snapshotWith(t, "@example", script)

	resolved, err := Resolve(context.Background(), params, snapshot, "@example", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved == nil {
		t.Fatal("expected the space's script-derived address")
	}

	// The derived address must encode the same script the space is bound to.
	direct, err := Resolve(context.Background(), params, snapshot, resolved.EncodeAddress(), false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if direct.EncodeAddress() != resolved.EncodeAddress() {
		t.Fatal("script-derived address did not round trip")
	}
}

func TestResolve_UnknownSpaceNameIsNone(t *testing.T) {
	resolved, err := Resolve(context.Background(), &chaincfg.RegressionNetParams,
		&mapSnapshot{}, "@unknown", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved != nil {
		t.Fatalf("expected no address for an unknown space, got %v", resolved)
	}
}

func TestResolve_MalformedInput(t *testing.T) {
	if _, err := Resolve(context.Background(), &chaincfg.RegressionNetParams,
		&mapSnapshot{}, "NOT a recipient!", false); err != ErrMalformedRecipient {
		t.Fatalf("expected ErrMalformedRecipient, got %v", err)
	}
}
