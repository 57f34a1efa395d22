package domain

import "time"

// Record is one issued payment balance. Records live for the process lifetime
// only; a production port would add expiry.
type Record struct {
	PaymentID      string         `json:"paymentId"`
	RemainingUnits int64          `json:"remaining"`
	CreatedAt      time.Time      `json:"createdAt"`
	LastConsumedAt *time.Time     `json:"lastConsumption"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}
