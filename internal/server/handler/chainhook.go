package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/predictstack/indexer/internal/domain"
	"github.com/predictstack/indexer/internal/service"
)

// maxDeliveryBytes bounds the inbound push body.
const maxDeliveryBytes = 16 << 20

// ChainhookHandler receives push deliveries from the chain indexer.
type ChainhookHandler struct {
	ingest *service.IngestService
	logger *slog.Logger
}

// NewChainhookHandler creates a ChainhookHandler.
func NewChainhookHandler(ingest *service.IngestService, logger *slog.Logger) *ChainhookHandler {
	return &ChainhookHandler{ingest: ingest, logger: logger}
}

// Receive processes one push delivery. Only an unreadable or malformed body
// is a client error; anything past parsing is acknowledged with 200 so the
// upstream never redelivers a poison payload in a loop.
// POST /api/chainhook
func (h *ChainhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxDeliveryBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if err := h.ingest.HandleDelivery(r.Context(), body); err != nil {
		if errors.Is(err, domain.ErrDecode) {
			writeError(w, http.StatusBadRequest, "malformed payload")
			return
		}
		// Processing problems are logged, never surfaced as failed delivery.
		h.logger.ErrorContext(r.Context(), "delivery processing failed",
			slog.String("error", err.Error()),
		)
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
