package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Calldata builders encode unsigned pool transactions for the caller's
// wallet. Nothing is signed or sent here.

func (c *Client) buildCalldata(method string, args ...any) (*Calldata, error) {
	if !c.hasPool {
		return nil, ErrPoolNotConfigured
	}
	data, err := c.poolABI.Pack(method, args...)
	if err != nil {
		return nil, err
	}
	return &Calldata{
		To:    c.poolAddr.Hex(),
		Data:  hexutil.Encode(data),
		Value: "0x0",
	}, nil
}

func (c *Client) BuildSwapCalldata(tokenIn, tokenOut string, amountIn, minAmountOut *big.Int) (*Calldata, error) {
	if !common.IsHexAddress(tokenIn) || !common.IsHexAddress(tokenOut) {
		return nil, ErrInvalidAddress
	}
	if amountIn == nil || amountIn.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if minAmountOut == nil {
		minAmountOut = big.NewInt(0)
	}
	return c.buildCalldata("swap",
		common.HexToAddress(tokenIn), common.HexToAddress(tokenOut), amountIn, minAmountOut)
}

func (c *Client) BuildAddLiquidityCalldata(amounts []*big.Int, planeConstant *big.Int) (*Calldata, error) {
	if len(amounts) == 0 {
		return nil, ErrInvalidAmount
	}
	for _, amount := range amounts {
		if amount == nil || amount.Sign() < 0 {
			return nil, ErrInvalidAmount
		}
	}
	if planeConstant == nil {
		planeConstant = big.NewInt(0)
	}
	return c.buildCalldata("addLiquidity", amounts, planeConstant)
}

func (c *Client) BuildRemoveLiquidityCalldata(idx, fraction *big.Int) (*Calldata, error) {
	if idx == nil || idx.Sign() < 0 || fraction == nil || fraction.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return c.buildCalldata("removeLiquidity", idx, fraction)
}
