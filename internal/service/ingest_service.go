package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/predictstack/indexer/internal/chainhook"
	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/metrics"
	"github.com/predictstack/indexer/internal/reconciler"
)

// IngestService handles inbound push deliveries: decode, apply, schedule
// rollback resyncs, and archive the raw payload. The push handler must
// acknowledge fast, so nothing here reads from the chain and the archive
// write happens off the request path.
type IngestService struct {
	decoder *chainhook.Decoder
	rec     *reconciler.Reconciler
	archive domain.DeliveryStore // may be nil
	logger  *slog.Logger
}

// NewIngestService creates an IngestService. archive may be nil when the
// delivery log is disabled.
func NewIngestService(decoder *chainhook.Decoder, rec *reconciler.Reconciler, archive domain.DeliveryStore, logger *slog.Logger) *IngestService {
	return &IngestService{
		decoder: decoder,
		rec:     rec,
		archive: archive,
		logger:  logger.With(slog.String("component", "ingest")),
	}
}

// HandleDelivery processes one raw push body. Only a malformed body returns
// an error; decode problems inside a well-formed payload cost individual
// events, never the delivery.
func (s *IngestService) HandleDelivery(ctx context.Context, body []byte) error {
	var payload chainhook.Payload
	if err := json.Unmarshal(body, &payload); err != nil {
		metrics.DeliveriesTotal.WithLabelValues("malformed").Inc()
		return fmt.Errorf("ingest: parse delivery: %w: %w", domain.ErrDecode, err)
	}

	deliveryID := uuid.NewString()
	commands := s.decoder.Decode(&payload)
	s.rec.ApplyEvents(ctx, commands)

	if heights := payload.RollbackHeights(); len(heights) > 0 {
		s.rec.HandleRollback(ctx, heights)
	}

	metrics.DeliveriesTotal.WithLabelValues("ok").Inc()
	s.logger.InfoContext(ctx, "delivery processed",
		slog.String("delivery_id", deliveryID),
		slog.Int("apply_blocks", len(payload.Apply)),
		slog.Int("rollback_blocks", len(payload.Rollback)),
		slog.Int("commands", len(commands)),
	)

	if s.archive != nil {
		d := domain.Delivery{
			ID:         deliveryID,
			ReceivedAt: time.Now().UTC(),
			Blocks:     len(payload.Apply),
			Rollbacks:  len(payload.Rollback),
			Payload:    body,
		}
		// Detached from the request context so an upstream disconnect
		// cannot cancel the archive write.
		go s.archiveDelivery(context.WithoutCancel(ctx), d)
	}

	return nil
}

func (s *IngestService) archiveDelivery(ctx context.Context, d domain.Delivery) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := s.archive.Insert(ctx, d); err != nil {
		s.logger.WarnContext(ctx, "delivery archive write failed",
			slog.String("delivery_id", d.ID),
			slog.String("error", err.Error()),
		)
	}
}
