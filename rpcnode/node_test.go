package rpcnode

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/btcsuite/btcd/wire"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(Config{
		URL:            server.URL,
		RetryBaseDelay: 1, // keep tests fast; doubling still exercises the backoff curve
	}, server.Client())
}

func jsonEnvelope(id, result string) string {
	return fmt.Sprintf(`{"result":%s,"error":null,"id":"%s"}`, result, id)
}

// TestBlockCount_TemporaryRetrySucceeds covers the retry contract: k < 5 temporary failures
// followed by success returns the success, having retried exactly k times.
func TestBlockCount_TemporaryRetrySucceeds(t *testing.T) {
	var calls int32

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, jsonEnvelope("1", "100"))
	})

	height, err := client.BlockCount(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if height != 100 {
		t.Fatalf("expected height 100, got %d", height)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts (2 failures + success), got %d", calls)
	}
}

// TestBlockCount_ExhaustsRetries covers the k=5 case: five straight temporary failures return the
// last error.
func TestBlockCount_ExhaustsRetries(t *testing.T) {
	var calls int32

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.BlockCount(context.Background())
	if err == nil {
		t.Fatal("expected an error after exhausting retries")
	}
	if !IsTemporary(err) {
		t.Fatalf("expected the surfaced error to still classify as temporary, got %v", err)
	}
	if calls != 5 {
		t.Fatalf("expected exactly 5 attempts, got %d", calls)
	}
}

// TestBlockCount_NonTemporaryAbortsImmediately covers the other half of the retry contract: a
// non-temporary RPC error is surfaced without consuming the retry budget.
func TestBlockCount_NonTemporaryAbortsImmediately(t *testing.T) {
	var calls int32

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		fmt.Fprint(w, `{"result":null,"error":{"code":-1,"message":"boom"},"id":"1"}`)
	})

	_, err := client.BlockCount(context.Background())
	if err == nil {
		t.Fatal("expected an error")
	}
	if IsTemporary(err) {
		t.Fatalf("error should not classify as temporary: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", calls)
	}
}

// TestBlockCount_WarmupRetry mirrors a node still warming up: two -28 ("loading block index")
// responses followed by success.
func TestBlockCount_WarmupRetry(t *testing.T) {
	var calls int32

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n <= 2 {
			fmt.Fprint(w, `{"result":null,"error":{"code":-28,"message":"Loading block index"},"id":"1"}`)
			return
		}
		fmt.Fprint(w, jsonEnvelope("1", "50"))
	})

	start := time.Now()
	height, err := client.BlockCount(context.Background())
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if height != 50 {
		t.Fatalf("expected height 50, got %d", height)
	}
	if calls != 3 {
		t.Fatalf("expected 2 retries before success, got %d calls", calls)
	}
	if elapsed <= 0 {
		t.Fatalf("expected nonzero elapsed time from the retry backoff, got %v", elapsed)
	}
}

func sampleBlockHex(t *testing.T) string {
	t.Helper()

	block := wire.MsgBlock{Header: wire.BlockHeader{Version: 1}}

	var buf bytes.Buffer
	if err := block.Serialize(&buf); err != nil {
		t.Fatalf("failed to serialize sample block: %v", err)
	}

	return hex.EncodeToString(buf.Bytes())
}

// TestBlock_FastPath exercises the literal envelope match.
func TestBlock_FastPath(t *testing.T) {
	blockHex := sampleBlockHex(t)

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"result":"%s","error":null,"id":"1"}`+"\n", blockHex)
	})

	block, err := client.Block(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.Header.Version != 1 {
		t.Fatalf("expected version 1, got %d", block.Header.Version)
	}
}

// TestBlock_FastPath_NoTrailingNewline covers servers that omit the trailing newline; they must
// still hit the fast path.
func TestBlock_FastPath_NoTrailingNewline(t *testing.T) {
	blockHex := sampleBlockHex(t)

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"result":"%s","error":null,"id":"1"}`, blockHex)
	})

	block, err := client.Block(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.Header.Version != 1 {
		t.Fatalf("expected version 1, got %d", block.Header.Version)
	}
}

// TestBlock_FallbackOnWhitespaceVariation covers the mandatory full-decode fallback: a response
// whose envelope doesn't match the fast path's exact literal shape (here, extra whitespace) must
// still decode correctly.
func TestBlock_FallbackOnWhitespaceVariation(t *testing.T) {
	blockHex := sampleBlockHex(t)

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{ "result": "%s", "error": null, "id": "1" }`, blockHex)
	})

	block, err := client.Block(context.Background(), "deadbeef")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if block.Header.Version != 1 {
		t.Fatalf("expected version 1, got %d", block.Header.Version)
	}
}

func TestFastPathBlockHex_RejectsMismatchedID(t *testing.T) {
	body := []byte(`{"result":"aabb","error":null,"id":"2"}`)
	if _, ok := FastPathBlockHex(body, "1"); ok {
		t.Fatal("expected fast path to reject a response for a different request id")
	}
}

func requestMethod(t *testing.T, r *http.Request) string {
	t.Helper()

	var body struct {
		Method string `json:"method"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	return body.Method
}

// TestBroadcastTx_PollsUntilTimeObserved covers the broadcast contract: sendrawtransaction
// succeeds, then getmempoolentry is polled until a response carries a "time" field.
func TestBroadcastTx_PollsUntilTimeObserved(t *testing.T) {
	var pollCount int32

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch requestMethod(t, r) {
		case "sendrawtransaction":
			fmt.Fprint(w, jsonEnvelope("1", `"deadbeefcafe"`))
		case "getmempoolentry":
			n := atomic.AddInt32(&pollCount, 1)
			if n < 3 {
				fmt.Fprint(w, jsonEnvelope("1", `{"vsize":100}`))
				return
			}
			fmt.Fprint(w, jsonEnvelope("1", `{"vsize":100,"time":1700000000}`))
		}
	})

	result, err := client.BroadcastTx(context.Background(), "0100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Txid != "deadbeefcafe" {
		t.Fatalf("unexpected txid: %s", result.Txid)
	}
	if result.LastSeen != 1700000000 {
		t.Fatalf("unexpected LastSeen: %d", result.LastSeen)
	}
	if pollCount != 3 {
		t.Fatalf("expected 3 polls, got %d", pollCount)
	}
}

// TestBroadcastTx_ShortCircuitsOnAlreadyConfirmed covers the already-mined case: once
// getmempoolentry reports code -5, the transaction is treated as confirmed rather than retried
// for the remainder of the polling budget.
func TestBroadcastTx_ShortCircuitsOnAlreadyConfirmed(t *testing.T) {
	var pollCount int32

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch requestMethod(t, r) {
		case "sendrawtransaction":
			fmt.Fprint(w, jsonEnvelope("1", `"deadbeefcafe"`))
		case "getmempoolentry":
			atomic.AddInt32(&pollCount, 1)
			fmt.Fprint(w, `{"result":null,"error":{"code":-5,"message":"No such mempool or blockchain transaction"},"id":"1"}`)
		}
	})

	result, err := client.BroadcastTx(context.Background(), "0100")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Confirmed {
		t.Fatal("expected Confirmed to be true")
	}
	if pollCount != 1 {
		t.Fatalf("expected exactly 1 poll before short-circuiting, got %d", pollCount)
	}
}

func TestBroadcastTx_NoTimeWithinBudget(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch requestMethod(t, r) {
		case "sendrawtransaction":
			fmt.Fprint(w, jsonEnvelope("1", `"deadbeefcafe"`))
		case "getmempoolentry":
			fmt.Fprint(w, jsonEnvelope("1", `{"vsize":100}`))
		}
	})

	_, err := client.BroadcastTx(context.Background(), "0100")
	if err == nil {
		t.Fatal("expected an error when no mempool entry ever carries a time field")
	}
}

func TestEstimateFeeRate(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jsonEnvelope("1", `{"feerate":0.00010000}`))
	})

	rate, err := client.EstimateFeeRate(context.Background(), 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rate != 10 {
		t.Fatalf("expected 10 sat/vB, got %v", rate)
	}
}

func TestEstimateFeeRate_FallsBackWithoutFeerate(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jsonEnvelope("1", `{"errors":["insufficient data"]}`))
	})

	if _, err := client.EstimateFeeRate(context.Background(), 0); err != ErrNoFeeEstimate {
		t.Fatalf("expected ErrNoFeeEstimate, got %v", err)
	}

	rate, err := client.EstimateFeeRate(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error with fallback: %v", err)
	}
	if rate != 5 {
		t.Fatalf("expected fallback rate 5, got %v", rate)
	}
}

func TestNewClient_BasicAuthHeader(t *testing.T) {
	var gotAuth string

	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, jsonEnvelope("1", "1"))
	})

	client.config.AuthMode = AuthBasic
	client.config.Username = "user"
	client.config.Password = "pass"
	refreshed := NewClient(client.config, client.http)

	if _, err := refreshed.BlockCount(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotAuth == "" {
		t.Fatal("expected an Authorization header to be sent")
	}
}
