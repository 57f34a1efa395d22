package chain

import "errors"

// TokenInfo describes one pool token. Decimals falls back to 18 when the
// ERC-20 metadata call fails.
type TokenInfo struct {
	Address  string `json:"address"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
}

// PoolInfo lists the pool tokens. Fallback is set when the data came from
// configured token addresses instead of the pool contract.
type PoolInfo struct {
	Tokens   []TokenInfo `json:"tokens"`
	Pool     string      `json:"pool,omitempty"`
	Fallback bool        `json:"fallback,omitempty"`
	Note     string      `json:"note,omitempty"`
}

// PoolStats carries raw reserve strings plus total volume when the pool
// exposes it.
type PoolStats struct {
	Reserves    []string `json:"reserves"`
	TotalVolume *string  `json:"totalVolume"`
	Notes       string   `json:"notes,omitempty"`
}

// TickInfo is the decoded getTickInfo tuple. All big integers travel as
// decimal strings so JSON consumers keep full precision.
type TickInfo struct {
	Radius        string   `json:"radius"`
	PlaneConstant string   `json:"planeConstant"`
	IsInterior    bool     `json:"isInterior"`
	Owner         string   `json:"owner"`
	Reserves      []string `json:"reserves"`
}

// Calldata is an unsigned transaction payload for the caller's wallet.
type Calldata struct {
	To    string `json:"to"`
	Data  string `json:"data"`
	Value string `json:"value"`
}

var (
	ErrPoolNotConfigured    = errors.New("pool_not_configured")
	ErrSessionNotConfigured = errors.New("session_manager_not_configured")
	ErrInvalidAddress       = errors.New("invalid_address")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrInvalidSessionID     = errors.New("invalid_session_id")
)
