package feeheuristics

import "testing"

func TestFeeRateFromMessage(t *testing.T) {
	tests := []struct {
		name    string
		message string
		rate    uint64
		ok      bool
	}{
		{
			name: "competing bid",
			message: "insufficient fee, rejecting replacement " +
				"96bb0d5fa00a35e888ff8afb5b41903955b8f34b5b2de01d874ae579a4d1eba0; " +
				"new feerate 0.01000000 BTC/kvB <= old feerate 0.02000000 BTC/kvB",
			rate: 2000,
			ok:   true,
		},
		{
			name: "low rate",
			message: "insufficient fee, rejecting replacement " +
				"96bb0d5fa00a35e888ff8afb5b41903955b8f34b5b2de01d874ae579a4d1eba0; " +
				"new feerate 0.00010000 BTC/kvB <= old feerate 0.00010000 BTC/kvB",
			rate: 10,
			ok:   true,
		},
		{
			name:    "unrelated message",
			message: "txn-mempool-conflict",
			ok:      false,
		},
		{
			name:    "phrase without fee segment",
			message: "insufficient fee, rejecting replacement deadbeef",
			ok:      false,
		},
		{
			name: "malformed fee token",
			message: "insufficient fee, rejecting replacement deadbeef; " +
				"new feerate 0.01 BTC/kvB <= old feerate garbage BTC/kvB",
			ok: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := FeeRateFromMessage(tt.message)
			if ok != tt.ok {
				t.Fatalf("expected ok=%v, got %v", tt.ok, ok)
			}
			if rate != tt.rate {
				t.Fatalf("expected rate %d, got %d", tt.rate, rate)
			}
		})
	}
}
