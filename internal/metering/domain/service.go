package domain

import (
	"context"
	"errors"
)

// Service issues capped unit balances behind unguessable payment ids and
// enforces overdraft-free consumption.
type Service interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResponse, error)
	Status(ctx context.Context, paymentID string) (*Record, error)
	Consume(ctx context.Context, req ConsumeRequest) (*ConsumeResponse, error)
}

// Prober checks liveness of the external payment facilitator. The check is
// best-effort: any response counts, and errors never block issuance.
type Prober interface {
	Probe(ctx context.Context) error
}

// IDGenerator produces a fresh opaque payment id. Implementations must be
// cryptographically random; injectable so tests can pin ids.
type IDGenerator func() (string, error)

type AuthorizeRequest struct {
	MaxUnits int64          `json:"maxUnits"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

type AuthorizeResponse struct {
	PaymentID string `json:"paymentId"`
	Remaining int64  `json:"remaining"`
}

type ConsumeRequest struct {
	PaymentID string `json:"paymentId"`
	Units     int64  `json:"units"`
}

type ConsumeResponse struct {
	PaymentID string `json:"paymentId"`
	Remaining int64  `json:"remaining"`
}

var (
	ErrInvalidMaxUnits     = errors.New("invalid_max_units")
	ErrInvalidUnits        = errors.New("invalid_units")
	ErrUnknownPayment      = errors.New("unknown_payment")
	ErrInsufficientBalance = errors.New("insufficient_balance")
)
