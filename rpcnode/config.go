package rpcnode

import "fmt"

// AuthMode selects how the client authenticates to the remote JSON-RPC endpoint.
type AuthMode int

const (
	AuthNone AuthMode = iota
	AuthBasic
	AuthCookie
)

// Config defines the connection and retry parameters for a Client.
type Config struct {
	URL     string
	Network string // mainnet, testnet, regtest, signet, or a custom name

	AuthMode AuthMode
	Username string
	Password string

	// CookieToken is a preformed "user:password" token read from the node's cookie file. Used
	// only when AuthMode is AuthCookie.
	CookieToken string

	// MaxRetries bounds the number of retry attempts made by SendWithRetry beyond the initial
	// attempt, for 5 total attempts by default.
	MaxRetries int

	// RetryBaseDelay is the initial backoff delay; it doubles on each subsequent attempt.
	RetryBaseDelay int // milliseconds
}

// String returns a custom string representation so credentials never leak into logs.
func (c Config) String() string {
	return fmt.Sprintf("{URL:%v Network:%v AuthMode:%v Username:%v Password:%v MaxRetries:%d RetryBaseDelay:%d ms}",
		c.URL, c.Network, c.AuthMode, c.Username, "****", c.MaxRetries, c.RetryBaseDelay)
}

func (c *Config) applyDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 4
	}
	if c.RetryBaseDelay == 0 {
		c.RetryBaseDelay = 20
	}
}
