package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/porbit/orbital-gateway/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testPoolAddr    = "0x1111111111111111111111111111111111111111"
	testSessionAddr = "0x2222222222222222222222222222222222222222"
	testTokenA      = "0x3333333333333333333333333333333333333333"
	testTokenB      = "0x4444444444444444444444444444444444444444"
)

type stubCaller struct {
	handler func(msg ethereum.CallMsg) ([]byte, error)
}

func (s *stubCaller) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	return s.handler(msg)
}

func newTestClient(t *testing.T, cfg config.ChainConfig, caller contractCaller) *Client {
	t.Helper()
	c, err := newClient(cfg, caller, zap.NewNop())
	require.NoError(t, err)
	return c
}

func (c *Client) selector(method string) []byte {
	return c.poolABI.Methods[method].ID
}

func (c *Client) packOutputs(t *testing.T, method string, values ...any) []byte {
	t.Helper()
	out, err := c.poolABI.Methods[method].Outputs.Pack(values...)
	require.NoError(t, err)
	return out
}

func TestReserves_TotalReserves(t *testing.T) {
	var c *Client
	caller := &stubCaller{handler: func(msg ethereum.CallMsg) ([]byte, error) {
		require.True(t, bytes.HasPrefix(msg.Data, c.selector("totalReserves")))
		return c.packOutputs(t, "totalReserves", []*big.Int{big.NewInt(1000), big.NewInt(2000)}), nil
	}}
	c = newTestClient(t, config.ChainConfig{PoolAddress: testPoolAddr}, caller)

	reserves, err := c.Reserves(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"1000", "2000"}, reserves)
}

func TestReserves_LegacyFallback(t *testing.T) {
	var c *Client
	caller := &stubCaller{handler: func(msg ethereum.CallMsg) ([]byte, error) {
		switch {
		case bytes.HasPrefix(msg.Data, c.selector("totalReserves")):
			return nil, errors.New("execution reverted")
		case bytes.HasPrefix(msg.Data, c.selector("getReserves")):
			return c.packOutputs(t, "getReserves", []*big.Int{big.NewInt(7), big.NewInt(9)}), nil
		}
		return nil, errors.New("unexpected call")
	}}
	c = newTestClient(t, config.ChainConfig{PoolAddress: testPoolAddr}, caller)

	reserves, err := c.Reserves(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"7", "9"}, reserves)
}

func TestReserves_PoolNotConfigured(t *testing.T) {
	c := newTestClient(t, config.ChainConfig{}, &stubCaller{})

	_, err := c.Reserves(context.Background())
	assert.ErrorIs(t, err, ErrPoolNotConfigured)
}

func TestQuote_OnChainView(t *testing.T) {
	var c *Client
	caller := &stubCaller{handler: func(msg ethereum.CallMsg) ([]byte, error) {
		require.True(t, bytes.HasPrefix(msg.Data, c.selector("getAmountOut")))
		return c.packOutputs(t, "getAmountOut", big.NewInt(987654)), nil
	}}
	c = newTestClient(t, config.ChainConfig{PoolAddress: testPoolAddr}, caller)

	quote, err := c.Quote(context.Background(), testTokenA, testTokenB, big.NewInt(1000000))
	require.NoError(t, err)
	assert.Equal(t, "987654", quote)
}

func TestQuote_ConstantProductFallback(t *testing.T) {
	var c *Client
	caller := &stubCaller{handler: func(msg ethereum.CallMsg) ([]byte, error) {
		switch {
		case bytes.HasPrefix(msg.Data, c.selector("getAmountOut")):
			return nil, errors.New("execution reverted")
		case bytes.HasPrefix(msg.Data, c.selector("totalReserves")):
			return c.packOutputs(t, "totalReserves", []*big.Int{big.NewInt(1000), big.NewInt(1000)}), nil
		}
		return nil, errors.New("unexpected call")
	}}
	c = newTestClient(t, config.ChainConfig{PoolAddress: testPoolAddr}, caller)

	// x*y=k with reserves 1000/1000 and amountIn 100: out = 1000 - 1000000/1100.
	quote, err := c.Quote(context.Background(), testTokenA, testTokenB, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, "91", quote)
}

func TestQuote_Validation(t *testing.T) {
	c := newTestClient(t, config.ChainConfig{PoolAddress: testPoolAddr}, &stubCaller{})

	_, err := c.Quote(context.Background(), "not-an-address", testTokenB, big.NewInt(1))
	assert.ErrorIs(t, err, ErrInvalidAddress)

	_, err = c.Quote(context.Background(), testTokenA, testTokenB, big.NewInt(0))
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestPoolInfo_ConfigFallback(t *testing.T) {
	caller := &stubCaller{handler: func(msg ethereum.CallMsg) ([]byte, error) {
		return nil, errors.New("no contract code")
	}}
	c := newTestClient(t, config.ChainConfig{
		TokenAddresses: map[string]string{
			"USDC":  testTokenA,
			"PYUSD": testTokenB,
			"DAI":   "",
		},
	}, caller)

	info, err := c.PoolInfo(context.Background())
	require.NoError(t, err)
	assert.True(t, info.Fallback)
	assert.NotEmpty(t, info.Note)
	require.Len(t, info.Tokens, 2)
	// Keys are visited in sorted order; metadata calls failed so the config
	// hints and default decimals survive.
	assert.Equal(t, "PYUSD", info.Tokens[0].Symbol)
	assert.Equal(t, "USDC", info.Tokens[1].Symbol)
	assert.Equal(t, uint8(18), info.Tokens[0].Decimals)
}

func TestPoolStats_TotalVolumeOptional(t *testing.T) {
	var c *Client
	caller := &stubCaller{handler: func(msg ethereum.CallMsg) ([]byte, error) {
		switch {
		case bytes.HasPrefix(msg.Data, c.selector("totalReserves")):
			return c.packOutputs(t, "totalReserves", []*big.Int{big.NewInt(5), big.NewInt(6)}), nil
		case bytes.HasPrefix(msg.Data, c.selector("totalVolume")):
			return nil, errors.New("execution reverted")
		}
		return nil, errors.New("unexpected call")
	}}
	c = newTestClient(t, config.ChainConfig{PoolAddress: testPoolAddr}, caller)

	stats, err := c.PoolStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"5", "6"}, stats.Reserves)
	assert.Nil(t, stats.TotalVolume)
	assert.NotEmpty(t, stats.Notes)
}

func TestSessionRemaining(t *testing.T) {
	sessionID := "0xabcdef0000000000000000000000000000000000000000000000000000000000"
	var c *Client
	caller := &stubCaller{handler: func(msg ethereum.CallMsg) ([]byte, error) {
		require.Equal(t, common.HexToAddress(testSessionAddr), *msg.To)
		out, err := c.sessionABI.Methods["remaining"].Outputs.Pack(big.NewInt(42))
		require.NoError(t, err)
		return out, nil
	}}
	c = newTestClient(t, config.ChainConfig{SessionManager: testSessionAddr}, caller)

	remaining, err := c.SessionRemaining(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, "42", remaining)
}

func TestSessionRemaining_Validation(t *testing.T) {
	c := newTestClient(t, config.ChainConfig{SessionManager: testSessionAddr}, &stubCaller{})
	_, err := c.SessionRemaining(context.Background(), "abc")
	assert.ErrorIs(t, err, ErrInvalidSessionID)

	c = newTestClient(t, config.ChainConfig{}, &stubCaller{})
	_, err = c.SessionRemaining(context.Background(), "0x0000000000000000000000000000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrSessionNotConfigured)
}

func TestUserTicks(t *testing.T) {
	var c *Client
	caller := &stubCaller{handler: func(msg ethereum.CallMsg) ([]byte, error) {
		require.True(t, bytes.HasPrefix(msg.Data, c.selector("getUserTicks")))
		return c.packOutputs(t, "getUserTicks", []*big.Int{big.NewInt(1), big.NewInt(3)}), nil
	}}
	c = newTestClient(t, config.ChainConfig{PoolAddress: testPoolAddr}, caller)

	ticks, err := c.UserTicks(context.Background(), testTokenA)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, ticks)
}

func TestTickInfo_DecodesTuple(t *testing.T) {
	var c *Client
	caller := &stubCaller{handler: func(msg ethereum.CallMsg) ([]byte, error) {
		require.True(t, bytes.HasPrefix(msg.Data, c.selector("getTickInfo")))
		return c.packOutputs(t, "getTickInfo",
			big.NewInt(500), big.NewInt(120), true,
			common.HexToAddress(testTokenA),
			[]*big.Int{big.NewInt(10), big.NewInt(20)},
		), nil
	}}
	c = newTestClient(t, config.ChainConfig{PoolAddress: testPoolAddr}, caller)

	info, err := c.TickInfo(context.Background(), big.NewInt(1))
	require.NoError(t, err)
	assert.Equal(t, "500", info.Radius)
	assert.Equal(t, "120", info.PlaneConstant)
	assert.True(t, info.IsInterior)
	assert.Equal(t, common.HexToAddress(testTokenA).Hex(), info.Owner)
	assert.Equal(t, []string{"10", "20"}, info.Reserves)
}
