package domain

import (
	"context"
	"time"
)

// Delivery is a raw inbound push payload kept for diagnostics and replay.
// The projection itself is volatile; the delivery log is the only thing this
// system ever persists.
type Delivery struct {
	ID         string
	ReceivedAt time.Time
	Blocks     int
	Rollbacks  int
	Payload    []byte
}

// DeliveryStore persists the append-only delivery log.
type DeliveryStore interface {
	Insert(ctx context.Context, d Delivery) error
	ListBefore(ctx context.Context, before time.Time) ([]Delivery, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
