package server

import (
	"math/big"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	meteringdomain "github.com/porbit/orbital-gateway/internal/metering/domain"
)

func (s *Server) GetPoolInfo(c *gin.Context) {
	info, err := s.chainSvc.PoolInfo(c.Request.Context())
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) GetPoolStats(c *gin.Context) {
	stats, err := s.chainSvc.PoolStats(c.Request.Context())
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) GetPoolReserves(c *gin.Context) {
	reserves, err := s.chainSvc.Reserves(c.Request.Context())
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"reserves": reserves})
}

func (s *Server) GetSpotPrice(c *gin.Context) {
	tokenIn, errIn := strconv.ParseUint(c.Query("tokenIn"), 10, 64)
	tokenOut, errOut := strconv.ParseUint(c.Query("tokenOut"), 10, 64)
	if errIn != nil || errOut != nil {
		AbortWithError(c, newValidationError("tokenIn", "invalid_token_index", "token indexes must be integers"))
		return
	}

	price, err := s.chainSvc.SpotPrice(c.Request.Context(), tokenIn, tokenOut)
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"tokenIn":   strconv.FormatUint(tokenIn, 10),
		"tokenOut":  strconv.FormatUint(tokenOut, 10),
		"spotPrice": price,
	})
}

func (s *Server) GetTickEfficiency(c *gin.Context) {
	idx, ok := parseBigInt(c.Query("idx"))
	if !ok {
		AbortWithError(c, newValidationError("idx", "invalid_idx", "idx must be an integer"))
		return
	}

	eff, err := s.chainSvc.TickEfficiency(c.Request.Context(), idx)
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"idx": idx.String(), "tickEfficiency": eff})
}

func (s *Server) GetTickInfo(c *gin.Context) {
	idx, ok := parseBigInt(c.Query("idx"))
	if !ok {
		AbortWithError(c, newValidationError("idx", "invalid_idx", "idx must be an integer"))
		return
	}

	info, err := s.chainSvc.TickInfo(c.Request.Context(), idx)
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, info)
}

func (s *Server) GetUserTicks(c *gin.Context) {
	user := strings.TrimSpace(c.Query("user"))
	if user == "" {
		AbortWithError(c, newValidationError("user", "invalid_user", "user address required"))
		return
	}

	ticks, err := s.chainSvc.UserTicks(c.Request.Context(), user)
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": user, "ticks": ticks})
}

func (s *Server) GetQuote(c *gin.Context) {
	tokenIn := strings.TrimSpace(c.Query("tokenIn"))
	tokenOut := strings.TrimSpace(c.Query("tokenOut"))
	rawAmount := strings.TrimSpace(c.Query("amountIn"))
	if tokenIn == "" || tokenOut == "" || rawAmount == "" {
		AbortWithError(c, invalidRequestError())
		return
	}
	amountIn, ok := parseBigInt(rawAmount)
	if !ok {
		AbortWithError(c, newValidationError("amountIn", "invalid_amount", "amountIn must be an integer"))
		return
	}

	quote, err := s.chainSvc.Quote(c.Request.Context(), tokenIn, tokenOut, amountIn)
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"amountIn": rawAmount, "amountOut": quote})
}

type prepareSwapRequest struct {
	TokenIn      string `json:"tokenIn"`
	TokenOut     string `json:"tokenOut"`
	AmountIn     string `json:"amountIn"`
	MinAmountOut string `json:"minAmountOut"`
	PaymentID    string `json:"paymentId"`
}

// PrepareSwap builds unsigned swap calldata. When a paymentId travels along,
// one metered unit is consumed first; any denial surfaces as 402.
func (s *Server) PrepareSwap(c *gin.Context) {
	var req prepareSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if req.TokenIn == "" || req.TokenOut == "" || req.AmountIn == "" {
		AbortWithError(c, invalidRequestError())
		return
	}
	amountIn, ok := parseBigInt(req.AmountIn)
	if !ok {
		AbortWithError(c, newValidationError("amountIn", "invalid_amount", "amountIn must be an integer"))
		return
	}
	minAmountOut, ok := parseBigInt(req.MinAmountOut)
	if !ok && req.MinAmountOut != "" {
		AbortWithError(c, newValidationError("minAmountOut", "invalid_amount", "minAmountOut must be an integer"))
		return
	}

	if req.PaymentID != "" {
		if _, err := s.meteringSvc.Consume(c.Request.Context(), meteringdomain.ConsumeRequest{
			PaymentID: req.PaymentID,
			Units:     1,
		}); err != nil {
			AbortWithError(c, paymentRequiredError(err))
			return
		}
	}

	cd, err := s.chainSvc.BuildSwapCalldata(req.TokenIn, req.TokenOut, amountIn, minAmountOut)
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}

	var paymentID *string
	if req.PaymentID != "" {
		paymentID = &req.PaymentID
	}
	c.JSON(http.StatusOK, gin.H{
		"to":        cd.To,
		"data":      cd.Data,
		"value":     cd.Value,
		"chainId":   s.cfg.Chain.ChainID,
		"paymentId": paymentID,
	})
}

type meteredSwapRequest struct {
	PaymentID string `json:"paymentId"`
}

// MeteredSwap is the off-chain metered endpoint: it only burns a unit and
// reports the remaining balance.
func (s *Server) MeteredSwap(c *gin.Context) {
	var req meteredSwapRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.PaymentID == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.meteringSvc.Consume(c.Request.Context(), meteringdomain.ConsumeRequest{
		PaymentID: req.PaymentID,
		Units:     1,
	})
	if err != nil {
		AbortWithError(c, paymentRequiredError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "paymentId": resp.PaymentID, "remaining": resp.Remaining})
}

type addLiquidityRequest struct {
	Amounts       []string `json:"amounts"`
	PlaneConstant string   `json:"planeConstant"`
}

func (s *Server) AddLiquidity(c *gin.Context) {
	var req addLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Amounts) == 0 {
		AbortWithError(c, newValidationError("amounts", "invalid_amounts", "amounts array required"))
		return
	}

	amounts := make([]*big.Int, 0, len(req.Amounts))
	for _, raw := range req.Amounts {
		amount, ok := parseBigInt(raw)
		if !ok {
			AbortWithError(c, newValidationError("amounts", "invalid_amount", "amounts must be integers"))
			return
		}
		amounts = append(amounts, amount)
	}
	planeConstant, ok := parseBigInt(req.PlaneConstant)
	if !ok && req.PlaneConstant != "" {
		AbortWithError(c, newValidationError("planeConstant", "invalid_amount", "planeConstant must be an integer"))
		return
	}

	cd, err := s.chainSvc.BuildAddLiquidityCalldata(amounts, planeConstant)
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"calldata": cd,
		"note":     "Client must approve tokens & send transaction",
	})
}

type removeLiquidityRequest struct {
	Idx      string `json:"idx"`
	Fraction string `json:"fraction"`
}

func (s *Server) RemoveLiquidity(c *gin.Context) {
	var req removeLiquidityRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Idx == "" || req.Fraction == "" {
		AbortWithError(c, newValidationError("idx", "invalid_request", "idx and fraction required"))
		return
	}
	idx, okIdx := parseBigInt(req.Idx)
	fraction, okFraction := parseBigInt(req.Fraction)
	if !okIdx || !okFraction {
		AbortWithError(c, newValidationError("idx", "invalid_amount", "idx and fraction must be integers"))
		return
	}

	cd, err := s.chainSvc.BuildRemoveLiquidityCalldata(idx, fraction)
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"calldata": cd,
		"note":     "Client constructs and sends transaction",
	})
}

func (s *Server) SessionRemaining(c *gin.Context) {
	sessionID := strings.TrimSpace(c.Query("sessionId"))
	if sessionID == "" {
		AbortWithError(c, newValidationError("sessionId", "invalid_session_id", "sessionId required"))
		return
	}

	remaining, err := s.chainSvc.SessionRemaining(c.Request.Context(), sessionID)
	if err != nil {
		AbortWithError(c, chainError(err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessionId": sessionID, "remaining": remaining})
}

// parseBigInt accepts decimal or 0x-prefixed hex integers. The empty string
// parses to zero so optional fields can default.
func parseBigInt(raw string) (*big.Int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return big.NewInt(0), false
	}
	base := 10
	if strings.HasPrefix(raw, "0x") || strings.HasPrefix(raw, "0X") {
		raw = raw[2:]
		base = 16
	}
	value, ok := new(big.Int).SetString(raw, base)
	if !ok {
		return nil, false
	}
	return value, true
}
