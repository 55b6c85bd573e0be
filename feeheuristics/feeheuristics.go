package feeheuristics

import (
	"strconv"
	"strings"
)

// replacementPhrase is the exact bitcoind wording for a rejected RBF replacement. Example:
//
//	insufficient fee, rejecting replacement 96bb0d5f...a4d1eba0;
//	new feerate 0.01000000 BTC/kvB <= old feerate 0.02000000 BTC/kvB
const replacementPhrase = "insufficient fee, rejecting replacement"

// FeeRateFromMessage extracts the competing transaction's fee rate, in sat/vB, from a
// sendrawtransaction replacement rejection. It tokenizes the message the same way bitcoind
// phrases it: second semicolon segment, right-hand side of "<=", third whitespace token as a
// BTC/kvB float, scaled by 100,000 and truncated. ok is false for any message that doesn't
// match that shape.
func FeeRateFromMessage(message string) (satPerVB uint64, ok bool) {
	if !strings.Contains(message, replacementPhrase) {
		return 0, false
	}

	parts := strings.Split(message, ";")
	if len(parts) < 2 {
		return 0, false
	}

	rates := strings.Split(strings.TrimSpace(parts[1]), "<=")
	if len(rates) < 2 {
		return 0, false
	}

	tokens := strings.Fields(rates[1])
	if len(tokens) < 3 {
		return 0, false
	}

	value, err := strconv.ParseFloat(tokens[2], 64)
	if err != nil {
		return 0, false
	}

	return uint64(value * 100000), true
}
