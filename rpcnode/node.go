package rpcnode

/**
 * RPC Node Kit
 *
 * What is my purpose?
 * - You connect to a remote bitcoin node over JSON-RPC
 * - You make retried, auth'd calls for me
 * - You fast-path the block payload out of getblock responses
 */

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/spacesprotocol/spaced-go/logger"

	"github.com/btcsuite/btcd/wire"
	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
)

const (
	// SubSystem is used by the logger package
	SubSystem = "RPCNode"

	broadcastPollAttempts = 10
	broadcastPollInterval = 100 * time.Millisecond
)

// HTTPDoer is the subset of *http.Client the Client needs; satisfied by http.Client itself and by
// test doubles.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a JSON-RPC client for a bitcoin full node, implementing the send-with-retry and
// getblock fast-path contracts of the RPC component.
type Client struct {
	config  Config
	http    HTTPDoer
	auth    string // pre-computed Authorization header value, empty if AuthNone
	breaker *gobreaker.CircuitBreaker

	nextID uint64
}

// NewClient constructs a Client against the given config, resolving its auth header once. The
// transport is wrapped in a circuit breaker so a node that is hard down stops costing every
// caller the full retry budget.
func NewClient(config Config, httpClient HTTPDoer) *Client {
	config.applyDefaults()

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	c := &Client{
		config: config,
		http:   httpClient,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "bitcoin-rpc",
			Timeout: 10 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures > 2*uint32(config.MaxRetries+1)
			},
		}),
	}

	switch config.AuthMode {
	case AuthBasic:
		token := base64.StdEncoding.EncodeToString([]byte(config.Username + ":" + config.Password))
		c.auth = "Basic " + token
	case AuthCookie:
		token := base64.StdEncoding.EncodeToString([]byte(config.CookieToken))
		c.auth = "Basic " + token
	}

	return c
}

// rawSend performs one HTTP round trip for req, returning the response body unparsed. Transport
// failures and non-2xx statuses are classified so IsTemporary can drive the retry loop; RPC-level
// errors embedded in a 200 response body are left for the caller to decode.
func (c *Client) rawSend(ctx context.Context, req Request) ([]byte, error) {
	body, err := json.Marshal(envelope{
		Jsonrpc: "2.0",
		ID:      req.ID,
		Method:  req.Method,
		Params:  req.Params,
	})
	if err != nil {
		return nil, errors.Wrap(err, "marshal request")
	}

	start := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.URL,
			bytes.NewReader(body))
		if err != nil {
			return nil, errors.Wrap(err, "build request")
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.auth != "" {
			httpReq.Header.Set("Authorization", c.auth)
		}

		resp, err := c.http.Do(httpReq)
		if err != nil {
			return nil, &TransportError{Cause: err}
		}
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &TransportError{Cause: err}
		}

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &HTTPStatusError{Status: resp.StatusCode}
		}

		return raw, nil
	})
	requestDuration.WithLabelValues(req.Method).Observe(time.Since(start).Seconds())

	if err != nil {
		// An open breaker is a transient condition like any other connectivity failure.
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return nil, &TransportError{Cause: err}
		}
		return nil, err
	}

	return result.([]byte), nil
}

// Send performs a single HTTP round trip for req with no retry, decoding the JSON-RPC envelope and
// returning the result field's raw bytes (or the RPC error, if any).
func (c *Client) Send(ctx context.Context, req Request) ([]byte, error) {
	raw, err := c.rawSend(ctx, req)
	if err != nil {
		return nil, err
	}

	return decodeEnvelope(raw)
}

func decodeEnvelope(raw []byte) ([]byte, error) {
	var parsed response
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, errors.Wrap(err, "decode response envelope")
	}

	if parsed.Error != nil {
		return nil, parsed.Error
	}

	return []byte(parsed.Result), nil
}

// withRetry implements the retry contract: up to MaxRetries+1 total attempts with exponential
// backoff starting at RetryBaseDelay and doubling each attempt, retrying only temporary errors.
// The final attempt's error is surfaced as-is so callers can still classify it with
// IsTemporary/errors.Cause.
func (c *Client) withRetry(ctx context.Context, method string, attempt func() ([]byte, error)) ([]byte, error) {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = time.Duration(c.config.RetryBaseDelay) * time.Millisecond
	policy.Multiplier = 2
	policy.RandomizationFactor = 0
	policy.MaxInterval = time.Minute
	policy.MaxElapsedTime = 0

	attempts := c.config.MaxRetries + 1
	tries := 0

	var result []byte
	operation := func() error {
		tries++

		r, err := attempt()
		if err == nil {
			result = r
			return nil
		}

		if !IsTemporary(err) {
			return backoff.Permanent(err)
		}

		retriesTotal.WithLabelValues(method).Inc()
		logger.Warn(ctx, "RPCRetry %s attempt %d/%d : %s", method, tries, attempts, err)
		return err
	}

	wrapped := backoff.WithContext(backoff.WithMaxRetries(policy,
		uint64(c.config.MaxRetries)), ctx)
	if err := backoff.Retry(operation, wrapped); err != nil {
		return nil, err
	}

	return result, nil
}

// SendWithRetry retries a full request/response round trip per the contract above.
func (c *Client) SendWithRetry(ctx context.Context, req Request) ([]byte, error) {
	return c.withRetry(ctx, req.Method, func() ([]byte, error) {
		return c.Send(ctx, req)
	})
}

// BlockCount returns the remote node's current best block height, built from the GetBlockCount
// request envelope and sent with retry.
func (c *Client) BlockCount(ctx context.Context) (uint32, error) {
	raw, err := c.SendWithRetry(ctx, c.GetBlockCount())
	if err != nil {
		return 0, err
	}

	var height uint32
	if err := json.Unmarshal(raw, &height); err != nil {
		return 0, errors.Wrap(err, "decode getblockcount")
	}

	return height, nil
}

// BlockHash returns the block hash at the given height, as a hex string.
func (c *Client) BlockHash(ctx context.Context, height uint32) (string, error) {
	raw, err := c.SendWithRetry(ctx, c.GetBlockHash(height))
	if err != nil {
		return "", err
	}

	var hash string
	if err := json.Unmarshal(raw, &hash); err != nil {
		return "", errors.Wrap(err, "decode getblockhash")
	}

	return hash, nil
}

// fastPathPrefix is the literal envelope opener the fast path matches against.
const fastPathPrefix = `{"result":"`

// fastPathSuffixes returns the exact tail the fast path matches, with and without a trailing
// newline -- not every server appends one, so both are accepted.
func fastPathSuffixes(id string) []string {
	tail := `","error":null,"id":"` + id + `"}`
	return []string{tail + "\n", tail}
}

// FastPathBlockHex implements the literal envelope match against a raw HTTP
// response body: if body begins with `{"result":"` and ends with `","error":null,"id":"<id>"}`
// (with or without a trailing newline), the middle slice is the hex payload. ok is false if the
// envelope doesn't match and the caller should fall back to a full JSON decode.
func FastPathBlockHex(body []byte, id string) (hexStr string, ok bool) {
	s := string(body)
	if !strings.HasPrefix(s, fastPathPrefix) {
		return "", false
	}

	for _, suffix := range fastPathSuffixes(id) {
		if strings.HasSuffix(s, suffix) {
			return s[len(fastPathPrefix) : len(s)-len(suffix)], true
		}
	}

	return "", false
}

// Block fetches the raw block at hash and decodes it with the consensus wire codec. It first
// attempts the fast path against the raw HTTP body; on any mismatch it falls back to a full
// JSON decode of the envelope. Both paths then require the hex length to be even before
// decoding to bytes and into the block.
func (c *Client) Block(ctx context.Context, hash string) (*wire.MsgBlock, error) {
	req := c.GetBlockRequest(hash)

	raw, err := c.withRetry(ctx, req.Method, func() ([]byte, error) {
		body, err := c.rawSend(ctx, req)
		if err != nil {
			return nil, err
		}

		if hexStr, ok := FastPathBlockHex(body, req.ID); ok {
			return []byte(hexStr), nil
		}

		result, err := decodeEnvelope(body)
		if err != nil {
			return nil, err
		}

		var hexStr string
		if err := json.Unmarshal(result, &hexStr); err != nil {
			return nil, errors.Wrap(err, "decode getblock result")
		}

		return []byte(hexStr), nil
	})
	if err != nil {
		return nil, err
	}

	return decodeBlockHex(string(raw))
}

func decodeBlockHex(hexStr string) (*wire.MsgBlock, error) {
	if len(hexStr)%2 != 0 {
		return nil, errors.New("block hex has odd length")
	}

	raw, err := hex.DecodeString(hexStr)
	if err != nil {
		return nil, errors.Wrap(err, "decode block hex")
	}

	block := &wire.MsgBlock{}
	if err := block.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, errors.Wrap(err, "deserialize block")
	}

	return block, nil
}

// ChainInfo is the subset of getblockchaininfo this core relies on.
type ChainInfo struct {
	MedianTime uint64 `json:"mediantime"`
}

// GetChainInfo returns the node's current chain info.
func (c *Client) GetChainInfo(ctx context.Context) (*ChainInfo, error) {
	raw, err := c.SendWithRetry(ctx, c.GetBlockChainInfo())
	if err != nil {
		return nil, err
	}

	info := &ChainInfo{}
	if err := json.Unmarshal(raw, info); err != nil {
		return nil, errors.Wrap(err, "decode getblockchaininfo")
	}

	return info, nil
}

// mempoolEntry is the subset of getmempoolentry this core relies on; hasTime distinguishes a
// present-but-zero time from an absent field; only a present time counts as seen.
type mempoolEntry struct {
	Time    uint64
	hasTime bool
}

func (c *Client) getMempoolEntry(ctx context.Context, txid string) (*mempoolEntry, error) {
	raw, err := c.SendWithRetry(ctx, c.GetMempoolEntry(txid))
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "decode getmempoolentry")
	}

	entry := &mempoolEntry{}
	if timeRaw, ok := fields["time"]; ok {
		if err := json.Unmarshal(timeRaw, &entry.Time); err != nil {
			return nil, errors.Wrap(err, "decode getmempoolentry time")
		}
		entry.hasTime = true
	}

	return entry, nil
}

// BroadcastResult is the outcome of a successful BroadcastTx. Confirmed is set when the
// transaction left the mempool (by confirming) before any poll observed a mempool "time" field.
type BroadcastResult struct {
	Txid      string
	LastSeen  uint64 // unix seconds, from the mempool entry's "time" field; zero if Confirmed
	Confirmed bool
}

// BroadcastTx submits via sendrawtransaction, then polls getmempoolentry up to 10 times at
// 100ms intervals until a response carrying a numeric "time" field appears. If the budget is
// exhausted, the last error observed is returned. If getmempoolentry itself fails with code -5
// ("no such mempool or blockchain transaction"), the transaction most likely confirmed before
// any poll completed, so the broadcaster short-circuits to a Confirmed result instead of
// continuing to poll.
func (c *Client) BroadcastTx(ctx context.Context, rawTxHex string) (*BroadcastResult, error) {
	ctx = logger.ContextWithLogSubSystem(ctx, SubSystem)

	raw, err := c.SendWithRetry(ctx, c.SendRawTransactionRequest(rawTxHex))
	if err != nil {
		return nil, err
	}

	var txid string
	if err := json.Unmarshal(raw, &txid); err != nil {
		return nil, errors.Wrap(err, "decode sendrawtransaction result")
	}

	var lastErr error = ErrNoResult
	for attempt := 0; attempt < broadcastPollAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(broadcastPollInterval):
			}
		}

		entry, err := c.getMempoolEntry(ctx, txid)
		if err != nil {
			if rpcErr, ok := errors.Cause(err).(*RpcError); ok && rpcErr.Code == rpcCodeNoSuchMempoolEntry {
				return &BroadcastResult{Txid: txid, Confirmed: true}, nil
			}
			lastErr = err
			continue
		}

		if entry.hasTime {
			return &BroadcastResult{Txid: txid, LastSeen: entry.Time}, nil
		}

		lastErr = ErrNoResult
	}

	logger.Error(ctx, "RPCCallAborted BroadcastTx %s : %s", txid, lastErr)
	return nil, lastErr
}

// EstimateFeeRate calls estimatesmartfee(6, "unset") and converts the BTC/kvB feerate field into
// sat/vB, ceilinged. If the node has no opinion, fallback (if > 0) is returned instead; otherwise
// ErrNoFeeEstimate is returned.
func (c *Client) EstimateFeeRate(ctx context.Context, fallback float64) (float64, error) {
	raw, err := c.SendWithRetry(ctx, c.EstimateSmartFee())
	if err != nil {
		return 0, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return 0, errors.Wrap(err, "decode estimatesmartfee")
	}

	feeRateRaw, ok := fields["feerate"]
	if !ok {
		if fallback > 0 {
			return fallback, nil
		}
		return 0, ErrNoFeeEstimate
	}

	var btcPerKvB float64
	if err := json.Unmarshal(feeRateRaw, &btcPerKvB); err != nil {
		return 0, errors.Wrap(err, "decode estimatesmartfee feerate")
	}

	return ceilFloat(btcPerKvB * 100000), nil
}

func ceilFloat(v float64) float64 {
	i := float64(int64(v))
	if v > i {
		return i + 1
	}
	return i
}
