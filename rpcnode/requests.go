package rpcnode

import (
	"encoding/json"
	"strconv"
	"sync/atomic"
)

// Request is a prepared JSON-RPC call: method and params are fixed, but it has not yet been sent.
// id is assigned from the client's process-local monotonic counter and serialized as a decimal
// string, matching the envelope the remote node expects.
type Request struct {
	ID     string
	Method string
	Params []interface{}
}

// envelope is the wire shape of a JSON-RPC request body.
type envelope struct {
	Jsonrpc string        `json:"jsonrpc"`
	ID      string        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// response is the wire shape of a JSON-RPC response body.
type response struct {
	Result json.RawMessage `json:"result"`
	Error  *RpcError       `json:"error"`
	ID     string          `json:"id"`
}

func (c *Client) newRequest(method string, params ...interface{}) Request {
	id := atomic.AddUint64(&c.nextID, 1)
	if params == nil {
		params = []interface{}{}
	}
	return Request{
		ID:     strconv.FormatUint(id, 10),
		Method: method,
		Params: params,
	}
}

// GetBlockCount prepares a "getblockcount" request.
func (c *Client) GetBlockCount() Request {
	return c.newRequest("getblockcount")
}

// GetBlockHash prepares a "getblockhash" request for the given height.
func (c *Client) GetBlockHash(height uint32) Request {
	return c.newRequest("getblockhash", height)
}

// GetBlockRequest prepares a "getblock" request at verbosity 0 (raw hex).
func (c *Client) GetBlockRequest(hash string) Request {
	return c.newRequest("getblock", hash, 0)
}

// GetBlockChainInfo prepares a "getblockchaininfo" request.
func (c *Client) GetBlockChainInfo() Request {
	return c.newRequest("getblockchaininfo")
}

// GetMempoolEntry prepares a "getmempoolentry" request.
func (c *Client) GetMempoolEntry(txid string) Request {
	return c.newRequest("getmempoolentry", txid)
}

// SendRawTransactionRequest prepares a "sendrawtransaction" request with the default max fee
// rate (unlimited, 0) and the standard 21,000,000 BTC max burn guard.
func (c *Client) SendRawTransactionRequest(hex string) Request {
	return c.newRequest("sendrawtransaction", hex, 0, 21000000)
}

// EstimateSmartFee prepares an "estimatesmartfee" request targeting confirmation within 6
// blocks using the "unset" estimate mode.
func (c *Client) EstimateSmartFee() Request {
	return c.newRequest("estimatesmartfee", 6, "unset")
}
