package rpcnode

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNoResult is returned by BroadcastTx when the mempool never showed the transaction's
	// "time" field within the polling budget.
	ErrNoResult = errors.New("No mempool entry observed within polling budget")

	// ErrNoFeeEstimate is returned by EstimateFeeRate when the node has no feerate opinion and
	// no fallback was supplied.
	ErrNoFeeEstimate = errors.New("could not estimate fee rate")
)

// RpcError represents a JSON-RPC error object returned by the remote node.
type RpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RpcError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Message)
}

// Temporary RPC codes, per the node's startup/connectivity states.
const (
	rpcCodeWarmingUp         = -28
	rpcCodeInInitialDownload = -10
	rpcCodeNotConnected      = -9
)

// rpcCodeNoSuchMempoolEntry is returned by getmempoolentry once a transaction has left the
// mempool. After a successful sendrawtransaction this almost always means the transaction
// confirmed before any poll observed it, rather than that it was evicted.
const rpcCodeNoSuchMempoolEntry = -5

// HTTPStatusError is returned when the transport succeeded but the server responded with a
// non-2xx status.
type HTTPStatusError struct {
	Status int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("http status %d", e.Status)
}

// TransportError wraps a lower-level network failure (timeout, connection refused, DNS, ...).
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport: %s", e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// IsTemporary reports whether err should be retried by SendWithRetry, per the classification in
// the data model: a transport timeout/connect failure, an HTTP status in the 408/429/5xx set
// commonly used for overload/maintenance, or one of the three RPC codes a node emits while still
// catching up.
func IsTemporary(err error) bool {
	cause := errors.Cause(err)

	switch e := cause.(type) {
	case *RpcError:
		switch e.Code {
		case rpcCodeWarmingUp, rpcCodeInInitialDownload, rpcCodeNotConnected:
			return true
		}
		return false
	case *HTTPStatusError:
		switch e.Status {
		case 408, 429, 500, 502, 503, 504:
			return true
		}
		return false
	case *TransportError:
		return true
	}

	return false
}

// ConvertError wraps a temporary error with more specific messaging; non-temporary errors are
// returned unmodified so callers can still use errors.Cause to reach the classified type.
func ConvertError(err error) error {
	if err == nil {
		return nil
	}

	if IsTemporary(err) {
		return errors.Wrap(err, "temporary rpc failure")
	}

	return err
}
