package spaces

import (
	"bytes"

	"github.com/btcsuite/btcd/btcutil/bech32"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/pkg/errors"
)

var (
	ErrNotSpaceAddress    = errors.New("not a space address")
	ErrUnsupportedNetwork = errors.New("unsupported network")
)

// SpaceAddress is the script-carrying address form specific to spaces: a bech32m encoding of a
// version-1 witness program under a spaces-specific human readable part, so it can never be
// confused with a plain bitcoin address.
type SpaceAddress struct {
	// ScriptPubKey is the full output script the address binds to
	// (OP_1 followed by a 32-byte push).
	ScriptPubKey []byte

	hrp string
}

// spaceHRP returns the spaces human readable part for the configured network.
func spaceHRP(params *chaincfg.Params) (string, error) {
	switch params.Net {
	case chaincfg.MainNetParams.Net:
		return "sp", nil
	case chaincfg.TestNet3Params.Net, chaincfg.SigNetParams.Net:
		return "tsp", nil
	case chaincfg.RegressionNetParams.Net:
		return "sprt", nil
	}
	return "", ErrUnsupportedNetwork
}

// NewSpaceAddress builds the address for a version-1 witness program.
func NewSpaceAddress(program [32]byte, params *chaincfg.Params) (*SpaceAddress, error) {
	hrp, err := spaceHRP(params)
	if err != nil {
		return nil, err
	}

	script := make([]byte, 0, 34)
	script = append(script, 0x51, 0x20) // OP_1, push 32
	script = append(script, program[:]...)

	return &SpaceAddress{ScriptPubKey: script, hrp: hrp}, nil
}

// SpaceAddressFromScript builds the address form of an existing spaces script. The script must be
// a version-1 witness output.
func SpaceAddressFromScript(script []byte, params *chaincfg.Params) (*SpaceAddress, error) {
	program, err := witnessProgram(script)
	if err != nil {
		return nil, err
	}
	return NewSpaceAddress(program, params)
}

// ParseSpaceAddress decodes a space address and verifies it belongs to the configured network.
func ParseSpaceAddress(s string, params *chaincfg.Params) (*SpaceAddress, error) {
	hrp, err := spaceHRP(params)
	if err != nil {
		return nil, err
	}

	decodedHRP, data, version, err := bech32.DecodeGeneric(s)
	if err != nil {
		return nil, errors.Wrap(ErrNotSpaceAddress, err.Error())
	}
	if decodedHRP != hrp || version != bech32.VersionM {
		return nil, ErrNotSpaceAddress
	}
	if len(data) == 0 || data[0] != 1 {
		return nil, ErrNotSpaceAddress
	}

	program, err := bech32.ConvertBits(data[1:], 5, 8, false)
	if err != nil || len(program) != 32 {
		return nil, ErrNotSpaceAddress
	}

	var fixed [32]byte
	copy(fixed[:], program)
	return NewSpaceAddress(fixed, params)
}

func (a *SpaceAddress) String() string {
	program, err := witnessProgram(a.ScriptPubKey)
	if err != nil {
		return ""
	}

	converted, err := bech32.ConvertBits(program[:], 8, 5, true)
	if err != nil {
		return ""
	}

	encoded, err := bech32.EncodeM(a.hrp, append([]byte{1}, converted...))
	if err != nil {
		return ""
	}
	return encoded
}

// WitnessProgram returns the 32-byte program embedded in the address script.
func (a *SpaceAddress) WitnessProgram() ([32]byte, error) {
	return witnessProgram(a.ScriptPubKey)
}

func witnessProgram(script []byte) ([32]byte, error) {
	var program [32]byte
	if len(script) != 34 || script[0] != 0x51 || script[1] != 0x20 {
		return program, errors.New("script is not a version 1 witness output")
	}
	copy(program[:], script[2:])
	return program, nil
}

// IsSpaceScript reports whether script has the shape a space can be bound to.
func IsSpaceScript(script []byte) bool {
	_, err := witnessProgram(script)
	return err == nil
}

// Equal reports whether two addresses bind the same script.
func (a *SpaceAddress) Equal(other *SpaceAddress) bool {
	return other != nil && bytes.Equal(a.ScriptPubKey, other.ScriptPubKey)
}
