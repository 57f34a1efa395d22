// Package chain is the read-side gateway to the on-chain pool. All AMM math
// stays in the contracts; this package only packs calls, decodes results and
// builds calldata for wallets to sign.
package chain

import (
	"context"
	_ "embed"
	"fmt"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/porbit/orbital-gateway/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

//go:embed abi/orbital_pool.json
var orbitalPoolABIJSON string

//go:embed abi/erc20.json
var erc20ABIJSON string

//go:embed abi/session_manager.json
var sessionManagerABIJSON string

// Reader exposes the pool views and calldata builders the HTTP layer needs.
type Reader interface {
	PoolInfo(ctx context.Context) (*PoolInfo, error)
	Reserves(ctx context.Context) ([]string, error)
	PoolStats(ctx context.Context) (*PoolStats, error)
	Quote(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (string, error)
	SpotPrice(ctx context.Context, tokenAIndex, tokenBIndex uint64) (string, error)
	TickEfficiency(ctx context.Context, idx *big.Int) (string, error)
	TickInfo(ctx context.Context, idx *big.Int) (*TickInfo, error)
	UserTicks(ctx context.Context, user string) ([]string, error)
	SessionRemaining(ctx context.Context, sessionID string) (string, error)

	BuildSwapCalldata(tokenIn, tokenOut string, amountIn, minAmountOut *big.Int) (*Calldata, error)
	BuildAddLiquidityCalldata(amounts []*big.Int, planeConstant *big.Int) (*Calldata, error)
	BuildRemoveLiquidityCalldata(idx, fraction *big.Int) (*Calldata, error)
}

// contractCaller is the slice of ethclient.Client the reader uses. Tests
// stub it; production wires the real client.
type contractCaller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

type Params struct {
	fx.In

	Cfg config.Config
	Log *zap.Logger
}

type Client struct {
	log    *zap.Logger
	caller contractCaller
	cfg    config.ChainConfig

	poolABI    abi.ABI
	erc20ABI   abi.ABI
	sessionABI abi.ABI

	poolAddr    common.Address
	sessionAddr common.Address
	hasPool     bool
	hasSession  bool
}

func New(p Params) (Reader, error) {
	eth, err := ethclient.Dial(p.Cfg.Chain.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("dial rpc %s: %w", p.Cfg.Chain.RPCURL, err)
	}
	return newClient(p.Cfg.Chain, eth, p.Log)
}

func newClient(cfg config.ChainConfig, caller contractCaller, log *zap.Logger) (*Client, error) {
	poolABI, err := abi.JSON(strings.NewReader(orbitalPoolABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	erc20ABI, err := abi.JSON(strings.NewReader(erc20ABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse erc20 abi: %w", err)
	}
	sessionABI, err := abi.JSON(strings.NewReader(sessionManagerABIJSON))
	if err != nil {
		return nil, fmt.Errorf("parse session manager abi: %w", err)
	}

	c := &Client{
		log:        log.Named("chain.client"),
		caller:     caller,
		cfg:        cfg,
		poolABI:    poolABI,
		erc20ABI:   erc20ABI,
		sessionABI: sessionABI,
	}
	if common.IsHexAddress(cfg.PoolAddress) {
		c.poolAddr = common.HexToAddress(cfg.PoolAddress)
		c.hasPool = true
	} else {
		c.log.Warn("pool address not configured, on-chain reads degrade to config fallback")
	}
	if common.IsHexAddress(cfg.SessionManager) {
		c.sessionAddr = common.HexToAddress(cfg.SessionManager)
		c.hasSession = true
	}
	return c, nil
}

func (c *Client) call(ctx context.Context, to common.Address, contract abi.ABI, method string, args ...any) ([]any, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	raw, err := c.caller.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return contract.Unpack(method, raw)
}

// tokenMeta reads ERC-20 symbol and decimals, degrading to the provided
// placeholder and 18 when the metadata calls fail.
func (c *Client) tokenMeta(ctx context.Context, addr common.Address, symbolHint string) TokenInfo {
	info := TokenInfo{Address: addr.Hex(), Symbol: symbolHint, Decimals: 18}
	if out, err := c.call(ctx, addr, c.erc20ABI, "symbol"); err == nil && len(out) == 1 {
		if s, ok := out[0].(string); ok {
			info.Symbol = s
		}
	}
	if out, err := c.call(ctx, addr, c.erc20ABI, "decimals"); err == nil && len(out) == 1 {
		if d, ok := out[0].(uint8); ok {
			info.Decimals = d
		}
	}
	return info
}

// PoolInfo enumerates the pool tokens. Without a pool address it
// synthesizes the list from configured token addresses.
func (c *Client) PoolInfo(ctx context.Context) (*PoolInfo, error) {
	if !c.hasPool {
		return c.poolInfoFallback(ctx), nil
	}

	out, err := c.call(ctx, c.poolAddr, c.poolABI, "tokenCount")
	if err != nil {
		return nil, err
	}
	count, ok := out[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("tokenCount: unexpected type %T", out[0])
	}

	tokens := make([]TokenInfo, 0, count.Int64())
	for i := int64(0); i < count.Int64(); i++ {
		out, err := c.call(ctx, c.poolAddr, c.poolABI, "tokens", big.NewInt(i))
		if err != nil {
			return nil, err
		}
		addr, ok := out[0].(common.Address)
		if !ok {
			return nil, fmt.Errorf("tokens(%d): unexpected type %T", i, out[0])
		}
		tokens = append(tokens, c.tokenMeta(ctx, addr, "UNKNOWN"))
	}
	return &PoolInfo{Tokens: tokens, Pool: c.poolAddr.Hex()}, nil
}

func (c *Client) poolInfoFallback(ctx context.Context) *PoolInfo {
	hints := make([]string, 0, len(c.cfg.TokenAddresses))
	for hint := range c.cfg.TokenAddresses {
		hints = append(hints, hint)
	}
	sort.Strings(hints)

	tokens := make([]TokenInfo, 0, len(hints))
	for _, hint := range hints {
		raw := c.cfg.TokenAddresses[hint]
		if !common.IsHexAddress(raw) {
			continue
		}
		tokens = append(tokens, c.tokenMeta(ctx, common.HexToAddress(raw), hint))
	}
	return &PoolInfo{
		Tokens:   tokens,
		Pool:     c.cfg.PoolAddress,
		Fallback: true,
		Note:     "returned from config fallback (pool contract not initialized)",
	}
}

// Reserves reads totalReserves(), falling back to the legacy getReserves().
func (c *Client) Reserves(ctx context.Context) ([]string, error) {
	if !c.hasPool {
		return nil, ErrPoolNotConfigured
	}
	out, err := c.call(ctx, c.poolAddr, c.poolABI, "totalReserves")
	if err != nil {
		c.log.Debug("totalReserves failed, trying getReserves", zap.Error(err))
		out, err = c.call(ctx, c.poolAddr, c.poolABI, "getReserves")
		if err != nil {
			return nil, err
		}
	}
	values, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("reserves: unexpected type %T", out[0])
	}
	return bigsToStrings(values), nil
}

func (c *Client) PoolStats(ctx context.Context) (*PoolStats, error) {
	reserves, err := c.Reserves(ctx)
	if err != nil {
		return nil, err
	}
	stats := &PoolStats{
		Reserves: reserves,
		Notes:    "totalVolume omitted: function not present or reverted",
	}
	if out, err := c.call(ctx, c.poolAddr, c.poolABI, "totalVolume"); err == nil && len(out) == 1 {
		if vol, ok := out[0].(*big.Int); ok {
			v := vol.String()
			stats.TotalVolume = &v
			stats.Notes = ""
		}
	}
	return stats, nil
}

// Quote asks the pool for getAmountOut and approximates with the first two
// reserves as a constant product when the view reverts. The approximation
// ignores fees; it exists so the demo keeps quoting against partial pools.
func (c *Client) Quote(ctx context.Context, tokenIn, tokenOut string, amountIn *big.Int) (string, error) {
	if !c.hasPool {
		return "", ErrPoolNotConfigured
	}
	if !common.IsHexAddress(tokenIn) || !common.IsHexAddress(tokenOut) {
		return "", ErrInvalidAddress
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return "", ErrInvalidAmount
	}

	out, err := c.call(ctx, c.poolAddr, c.poolABI, "getAmountOut",
		common.HexToAddress(tokenIn), common.HexToAddress(tokenOut), amountIn)
	if err == nil {
		if quote, ok := out[0].(*big.Int); ok {
			return quote.String(), nil
		}
	}
	c.log.Warn("getAmountOut failed, using constant product approximation", zap.Error(err))

	reserves, err := c.Reserves(ctx)
	if err != nil {
		return "", err
	}
	if len(reserves) < 2 {
		return "0", nil
	}
	reserveIn, okIn := new(big.Int).SetString(reserves[0], 10)
	reserveOut, okOut := new(big.Int).SetString(reserves[1], 10)
	if !okIn || !okOut || reserveIn.Sign() == 0 || reserveOut.Sign() == 0 {
		return "0", nil
	}

	newReserveIn := new(big.Int).Add(reserveIn, amountIn)
	k := new(big.Int).Mul(reserveIn, reserveOut)
	newReserveOut := new(big.Int).Div(k, newReserveIn)
	amountOut := new(big.Int).Sub(reserveOut, newReserveOut)
	return amountOut.String(), nil
}

func (c *Client) SpotPrice(ctx context.Context, tokenAIndex, tokenBIndex uint64) (string, error) {
	if !c.hasPool {
		return "", ErrPoolNotConfigured
	}
	out, err := c.call(ctx, c.poolAddr, c.poolABI, "getSpotPrice",
		new(big.Int).SetUint64(tokenAIndex), new(big.Int).SetUint64(tokenBIndex))
	if err != nil {
		return "", err
	}
	return out[0].(*big.Int).String(), nil
}

func (c *Client) TickEfficiency(ctx context.Context, idx *big.Int) (string, error) {
	if !c.hasPool {
		return "", ErrPoolNotConfigured
	}
	out, err := c.call(ctx, c.poolAddr, c.poolABI, "getTickEfficiency", idx)
	if err != nil {
		return "", err
	}
	return out[0].(*big.Int).String(), nil
}

func (c *Client) TickInfo(ctx context.Context, idx *big.Int) (*TickInfo, error) {
	if !c.hasPool {
		return nil, ErrPoolNotConfigured
	}
	out, err := c.call(ctx, c.poolAddr, c.poolABI, "getTickInfo", idx)
	if err != nil {
		return nil, err
	}
	if len(out) != 5 {
		return nil, fmt.Errorf("getTickInfo: unexpected arity %d", len(out))
	}
	return &TickInfo{
		Radius:        out[0].(*big.Int).String(),
		PlaneConstant: out[1].(*big.Int).String(),
		IsInterior:    out[2].(bool),
		Owner:         out[3].(common.Address).Hex(),
		Reserves:      bigsToStrings(out[4].([]*big.Int)),
	}, nil
}

func (c *Client) UserTicks(ctx context.Context, user string) ([]string, error) {
	if !c.hasPool {
		return nil, ErrPoolNotConfigured
	}
	if !common.IsHexAddress(user) {
		return nil, ErrInvalidAddress
	}
	out, err := c.call(ctx, c.poolAddr, c.poolABI, "getUserTicks", common.HexToAddress(user))
	if err != nil {
		return nil, err
	}
	ticks, ok := out[0].([]*big.Int)
	if !ok {
		return nil, fmt.Errorf("getUserTicks: unexpected type %T", out[0])
	}
	return bigsToStrings(ticks), nil
}

// SessionRemaining reads the session manager's remaining balance for a
// 32-byte session id.
func (c *Client) SessionRemaining(ctx context.Context, sessionID string) (string, error) {
	if !c.hasSession {
		return "", ErrSessionNotConfigured
	}
	if !strings.HasPrefix(sessionID, "0x") || len(sessionID) != 66 {
		return "", ErrInvalidSessionID
	}
	out, err := c.call(ctx, c.sessionAddr, c.sessionABI, "remaining", common.HexToHash(sessionID))
	if err != nil {
		return "", err
	}
	return out[0].(*big.Int).String(), nil
}

func bigsToStrings(values []*big.Int) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = v.String()
	}
	return out
}

var Module = fx.Module("chain.client",
	fx.Provide(New),
)
