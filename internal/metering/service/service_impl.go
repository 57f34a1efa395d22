package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"

	"github.com/porbit/orbital-gateway/internal/clock"
	meteringdomain "github.com/porbit/orbital-gateway/internal/metering/domain"
	obsmetrics "github.com/porbit/orbital-gateway/internal/observability/metrics"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const probeTimeout = 5 * time.Second

type Params struct {
	fx.In

	Log     *zap.Logger
	Clock   clock.Clock
	Prober  meteringdomain.Prober       `optional:"true"`
	GenID   meteringdomain.IDGenerator  `optional:"true"`
	Metrics *obsmetrics.Metrics         `optional:"true"`
}

type Service struct {
	log     *zap.Logger
	clock   clock.Clock
	prober  meteringdomain.Prober
	genID   meteringdomain.IDGenerator
	metrics *obsmetrics.Metrics

	mu      sync.Mutex
	records map[string]*meteringdomain.Record
}

func New(p Params) meteringdomain.Service {
	genID := p.GenID
	if genID == nil {
		genID = GeneratePaymentID
	}
	return &Service{
		log:     p.Log.Named("metering.service"),
		clock:   p.Clock,
		prober:  p.Prober,
		genID:   genID,
		metrics: p.Metrics,
		records: make(map[string]*meteringdomain.Record),
	}
}

// GeneratePaymentID returns 256 bits of CSPRNG entropy as 0x-prefixed hex.
func GeneratePaymentID() (string, error) {
	var buf [32]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	return "0x" + hex.EncodeToString(buf[:]), nil
}

func (s *Service) Authorize(ctx context.Context, req meteringdomain.AuthorizeRequest) (*meteringdomain.AuthorizeResponse, error) {
	if req.MaxUnits <= 0 {
		return nil, meteringdomain.ErrInvalidMaxUnits
	}

	// Liveness probe is fire-and-forget: the facilitator carries no state the
	// ledger needs, so an unreachable facilitator must not block issuance.
	if s.prober != nil {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		if err := s.prober.Probe(probeCtx); err != nil {
			s.log.Debug("facilitator probe failed", zap.Error(err))
		}
		cancel()
	}

	paymentID, err := s.genID()
	if err != nil {
		return nil, err
	}

	rec := &meteringdomain.Record{
		PaymentID:      paymentID,
		RemainingUnits: req.MaxUnits,
		CreatedAt:      s.clock.Now(),
		Metadata:       req.Metadata,
	}

	s.mu.Lock()
	s.records[paymentID] = rec
	s.mu.Unlock()

	s.metrics.RecordAuthorization()
	s.log.Info("payment authorized",
		zap.String("payment_id", paymentID),
		zap.Int64("max_units", req.MaxUnits),
	)

	return &meteringdomain.AuthorizeResponse{PaymentID: paymentID, Remaining: req.MaxUnits}, nil
}

func (s *Service) Status(ctx context.Context, paymentID string) (*meteringdomain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[paymentID]
	if !ok {
		return nil, meteringdomain.ErrUnknownPayment
	}
	// Detach the view: the metadata map and timestamp pointer must not
	// alias ledger state.
	view := *rec
	if rec.Metadata != nil {
		metadata := make(map[string]any, len(rec.Metadata))
		for k, v := range rec.Metadata {
			metadata[k] = v
		}
		view.Metadata = metadata
	}
	if rec.LastConsumedAt != nil {
		ts := *rec.LastConsumedAt
		view.LastConsumedAt = &ts
	}
	return &view, nil
}

// Consume decrements the balance. The sufficiency check and the decrement sit
// in one critical section so concurrent consumers can never overdraw.
func (s *Service) Consume(ctx context.Context, req meteringdomain.ConsumeRequest) (*meteringdomain.ConsumeResponse, error) {
	if req.Units <= 0 {
		return nil, meteringdomain.ErrInvalidUnits
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[req.PaymentID]
	if !ok {
		s.metrics.RecordDenied("unknown_payment")
		return nil, meteringdomain.ErrUnknownPayment
	}
	if rec.RemainingUnits < req.Units {
		s.metrics.RecordDenied("insufficient_balance")
		return nil, meteringdomain.ErrInsufficientBalance
	}

	rec.RemainingUnits -= req.Units
	now := s.clock.Now()
	rec.LastConsumedAt = &now

	s.metrics.RecordConsumption(req.Units)

	return &meteringdomain.ConsumeResponse{PaymentID: req.PaymentID, Remaining: rec.RemainingUnits}, nil
}
