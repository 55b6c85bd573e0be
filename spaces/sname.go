package spaces

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

const maxLabelLength = 62

var (
	ErrNameTooLong = errors.New("space name exceeds maximum label length")
	ErrNameEmpty   = errors.New("space name is empty")
	ErrNameInvalid = errors.New("space name contains invalid characters")
)

// SName is a validated space name. The canonical text form carries a leading '@'; the canonical
// byte encoding, which space hashes are computed over, is a single length-prefixed lowercase
// label.
type SName struct {
	label string
}

// ParseSName validates a space name. The leading '@' is optional on input. Labels are lowercase
// alphanumeric with interior hyphens, at most 62 bytes.
func ParseSName(s string) (SName, error) {
	label := strings.TrimPrefix(s, "@")

	if len(label) == 0 {
		return SName{}, ErrNameEmpty
	}
	if len(label) > maxLabelLength {
		return SName{}, ErrNameTooLong
	}
	if label[0] == '-' || label[len(label)-1] == '-' {
		return SName{}, ErrNameInvalid
	}

	for i := 0; i < len(label); i++ {
		c := label[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '-' {
			continue
		}
		return SName{}, ErrNameInvalid
	}

	return SName{label: label}, nil
}

func (n SName) String() string {
	return "@" + n.label
}

// ToBytes returns the canonical byte encoding: one length byte followed by the label.
func (n SName) ToBytes() []byte {
	result := make([]byte, 0, len(n.label)+1)
	result = append(result, byte(len(n.label)))
	return append(result, n.label...)
}

// SpaceHash is the SHA-256 of a name's canonical byte encoding; the key into auction/name state.
type SpaceHash [32]byte

func HashName(n SName) SpaceHash {
	return SpaceHash(sha256.Sum256(n.ToBytes()))
}

func (h SpaceHash) String() string {
	return hex.EncodeToString(h[:])
}
