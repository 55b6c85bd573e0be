package spaces

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/schnorr"
	"github.com/btcsuite/btcd/chaincfg"
)

func TestParseSName(t *testing.T) {
	tests := []struct {
		input string
		want  string
		err   error
	}{
		{input: "@bitcoin", want: "@bitcoin"},
		{input: "bitcoin", want: "@bitcoin"},
		{input: "@name-with-hyphens2", want: "@name-with-hyphens2"},
		{input: "@", err: ErrNameEmpty},
		{input: "", err: ErrNameEmpty},
		{input: "@-leading", err: ErrNameInvalid},
		{input: "@trailing-", err: ErrNameInvalid},
		{input: "@UPPER", err: ErrNameInvalid},
		{input: "@with space", err: ErrNameInvalid},
		{input: "@" + string(make([]byte, 63)), err: ErrNameTooLong},
	}

	for _, tt := range tests {
		name, err := ParseSName(tt.input)
		if err != tt.err {
			t.Errorf("ParseSName(%q) error = %v, want %v", tt.input, err, tt.err)
			continue
		}
		if err == nil && name.String() != tt.want {
			t.Errorf("ParseSName(%q) = %s, want %s", tt.input, name, tt.want)
		}
	}
}

func TestHashName_CanonicalEncoding(t *testing.T) {
	withAt, err := ParseSName("@example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	withoutAt, err := ParseSName("example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if HashName(withAt) != HashName(withoutAt) {
		t.Fatal("hash must not depend on the optional '@' prefix")
	}

	encoded := withAt.ToBytes()
	if encoded[0] != 7 || string(encoded[1:]) != "example" {
		t.Fatalf("unexpected canonical encoding: %v", encoded)
	}
}

func TestSpaceAddress_RoundTrip(t *testing.T) {
	var program [32]byte
	for i := range program {
		program[i] = byte(i)
	}

	addr, err := NewSpaceAddress(program, &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	encoded := addr.String()
	if encoded == "" {
		t.Fatal("expected a non-empty encoding")
	}

	decoded, err := ParseSpaceAddress(encoded, &chaincfg.RegressionNetParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %x != %x", decoded.ScriptPubKey, addr.ScriptPubKey)
	}
}

// TestSpaceAddress_FromKey encodes an address the way a wallet would: from a schnorr public
// key's 32-byte x-only serialization.
func TestSpaceAddress_FromKey(t *testing.T) {
	key, err := btcec.NewPrivateKey()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var program [32]byte
	copy(program[:], schnorr.SerializePubKey(key.PubKey()))

	addr, err := NewSpaceAddress(program, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decoded, err := ParseSpaceAddress(addr.String(), &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	decodedProgram, err := decoded.WitnessProgram()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if decodedProgram != program {
		t.Fatal("decoded program does not match the key")
	}
}

func TestParseSpaceAddress_RejectsWrongNetwork(t *testing.T) {
	var program [32]byte
	addr, err := NewSpaceAddress(program, &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := ParseSpaceAddress(addr.String(), &chaincfg.RegressionNetParams); err == nil {
		t.Fatal("expected a mainnet space address to fail parsing on regtest")
	}
}

func TestParseSpaceAddress_RejectsPlainBech32(t *testing.T) {
	// A plain segwit address has the wrong human readable part.
	if _, err := ParseSpaceAddress("bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4",
		&chaincfg.MainNetParams); err == nil {
		t.Fatal("expected a plain bitcoin address to be rejected")
	}
}
