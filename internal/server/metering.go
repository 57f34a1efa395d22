package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	meteringdomain "github.com/porbit/orbital-gateway/internal/metering/domain"
)

// maxAuthorizedUnits caps a single authorization at the HTTP boundary.
const (
	defaultAuthorizedUnits = 5
	maxAuthorizedUnits     = 100
)

type authorizeRequest struct {
	MaxUnits int64 `json:"maxUnits"`
}

func (s *Server) AuthorizePayment(c *gin.Context) {
	var req authorizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}
	if req.MaxUnits == 0 {
		req.MaxUnits = defaultAuthorizedUnits
	}
	if req.MaxUnits < 1 || req.MaxUnits > maxAuthorizedUnits {
		AbortWithError(c, newValidationError("maxUnits", "invalid_max_units", "maxUnits must be between 1 and 100"))
		return
	}

	resp, err := s.meteringSvc.Authorize(c.Request.Context(), meteringdomain.AuthorizeRequest{
		MaxUnits: req.MaxUnits,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"paymentId": resp.PaymentID,
		"remaining": resp.Remaining,
	})
}

func (s *Server) PaymentStatus(c *gin.Context) {
	paymentID := strings.TrimSpace(c.Query("paymentId"))
	if paymentID == "" {
		AbortWithError(c, newValidationError("paymentId", "invalid_payment_id", "paymentId required"))
		return
	}

	rec, err := s.meteringSvc.Status(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
