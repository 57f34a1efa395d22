package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// verifiedPayment is route-local state for the verify/settle demo flow; the
// production path would defer to the facilitator instead.
type verifiedPayment struct {
	Verified bool
	Settled  bool
	TxHash   string
	TS       int64
}

func (s *Server) PaymentRequirements(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"x402Version": 1,
		"requirements": gin.H{
			"scheme":            "exact",
			"network":           "polygon-amoy",
			"maxAmountRequired": "1000",
			"description":       "Access Orbital premium APIs",
			"payTo":             s.cfg.Chain.PaymentAddress,
			"asset":             s.cfg.Chain.PaymentAssetAddr,
			"maxTimeoutSeconds": 300,
		},
	})
}

type verifyPaymentRequest struct {
	PaymentHeader string `json:"paymentHeader"`
}

// VerifyPayment trusts the header and mints a verified payment id. A real
// deployment would call the facilitator's verify endpoint here.
func (s *Server) VerifyPayment(c *gin.Context) {
	var req verifyPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PaymentHeader) == "" {
		AbortWithError(c, newValidationError("paymentHeader", "invalid_payment_header", "paymentHeader required"))
		return
	}

	now := s.clock.Now()
	paymentID := fmt.Sprintf("pid_%d", now.UnixMilli())

	s.paymentsMu.Lock()
	s.payments[paymentID] = &verifiedPayment{Verified: true, TS: now.UnixMilli()}
	s.paymentsMu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"isValid":            true,
		"settlementRequired": true,
		"paymentId":          paymentID,
	})
}

type settlePaymentRequest struct {
	PaymentID string `json:"paymentId"`
}

func (s *Server) SettlePayment(c *gin.Context) {
	var req settlePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.PaymentID) == "" {
		AbortWithError(c, newValidationError("paymentId", "invalid_payment_id", "paymentId required"))
		return
	}

	s.paymentsMu.Lock()
	defer s.paymentsMu.Unlock()

	rec, ok := s.payments[req.PaymentID]
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}
	rec.Settled = true
	rec.TxHash = "0x" + padRight("deadbeef", 64, '0')

	c.JSON(http.StatusOK, gin.H{"success": true, "txHash": rec.TxHash})
}

func (s *Server) SessionStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"sessionId": c.Param("id"),
		"state":     "unknown",
	})
}

func padRight(s string, width int, pad byte) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(string(pad), width-len(s))
}
