package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/predictstack/indexer/internal/domain"
)

// Archiver periodically moves aged delivery rows out of the primary store
// into object storage. Upload happens before deletion: a failed upload
// leaves the rows in place for the next cycle.
type Archiver struct {
	writer     domain.BlobWriter
	deliveries domain.DeliveryStore
	retention  time.Duration
	interval   time.Duration
	logger     *slog.Logger
}

// NewArchiver creates an Archiver. retention is how long deliveries stay in
// the primary store; interval is how often the offload runs.
func NewArchiver(writer domain.BlobWriter, deliveries domain.DeliveryStore, retention, interval time.Duration, logger *slog.Logger) *Archiver {
	if retention <= 0 {
		retention = 7 * 24 * time.Hour
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &Archiver{
		writer:     writer,
		deliveries: deliveries,
		retention:  retention,
		interval:   interval,
		logger:     logger.With(slog.String("component", "archiver")),
	}
}

// Run offloads on a ticker until the context is done. Failures are logged
// and retried on the next tick.
func (a *Archiver) Run(ctx context.Context) error {
	a.logger.Info("archiver starting",
		slog.Duration("retention", a.retention),
		slog.Duration("interval", a.interval),
	)

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("archiver stopped")
			return nil
		case <-ticker.C:
			count, err := a.ArchiveDeliveries(ctx, time.Now().UTC().Add(-a.retention))
			if err != nil {
				a.logger.Error("delivery offload failed", slog.String("error", err.Error()))
				continue
			}
			if count > 0 {
				a.logger.Info("deliveries offloaded", slog.Int64("count", count))
			}
		}
	}
}

// ArchiveDeliveries uploads all deliveries received before the cutoff as one
// JSONL object, then deletes them from the primary store. Returns the number
// of rows offloaded.
func (a *Archiver) ArchiveDeliveries(ctx context.Context, before time.Time) (int64, error) {
	deliveries, err := a.deliveries.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive deliveries query: %w", err)
	}
	if len(deliveries) == 0 {
		return 0, nil
	}

	buf, err := marshalJSONL(deliveries)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive deliveries marshal: %w", err)
	}

	path := fmt.Sprintf("archive/deliveries/%s.jsonl", before.Format("2006-01-02T15-04-05"))
	if err := a.writer.Put(ctx, path, bytes.NewReader(buf), "application/x-ndjson"); err != nil {
		return 0, fmt.Errorf("s3blob: archive deliveries upload: %w", err)
	}

	deleted, err := a.deliveries.DeleteBefore(ctx, before)
	if err != nil {
		return int64(len(deliveries)), fmt.Errorf("s3blob: archive deliveries delete: %w", err)
	}
	return deleted, nil
}

// marshalJSONL serializes a slice as newline-delimited JSON.
func marshalJSONL[T any](items []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}
