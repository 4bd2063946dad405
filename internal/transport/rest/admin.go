package rest

import (
	"context"
	"log/slog"
	"net/http"
	"slices"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/service/projection"
)

type recomputer interface {
	Recompute(ctx context.Context, ids ...uuid.UUID) projection.BatchResult
	RecomputeAll(ctx context.Context) (projection.BatchResult, error)
}

type queueLen interface {
	Len() int
}

// AdminHandler serves maintenance endpoints. Access control is applied by
// the router.
type AdminHandler struct {
	engine recomputer
	queue  queueLen
	log    *slog.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(engine recomputer, queue queueLen, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{
		engine: engine,
		queue:  queue,
		log:    logger.With("handler", "admin"),
	}
}

type recomputeRequest struct {
	IDs []uuid.UUID `json:"ids"`
}

type batchResponse struct {
	Processed  int               `json:"processed"`
	Changed    []uuid.UUID       `json:"changed"`
	Failed     map[string]string `json:"failed"`
	DurationMS int64             `json:"durationMs"`
}

// Recompute handles POST /admin/recompute. It runs synchronously and
// reports per-entity failures in the body; the status is 200 even when some
// entities failed.
func (h *AdminHandler) Recompute(w http.ResponseWriter, r *http.Request) {
	var req recomputeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	res := h.engine.Recompute(r.Context(), req.IDs...)
	h.log.InfoContext(r.Context(), "admin recompute",
		slog.Int("processed", res.Processed),
		slog.Int("changed", len(res.Changed)),
		slog.Int("failed", len(res.Failed)),
	)
	writeJSON(w, http.StatusOK, toBatchResponse(res))
}

// Rebuild handles POST /admin/rebuild: a full projection pass over every
// known place.
func (h *AdminHandler) Rebuild(w http.ResponseWriter, r *http.Request) {
	res, err := h.engine.RecomputeAll(r.Context())
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	h.log.InfoContext(r.Context(), "admin rebuild",
		slog.Int("processed", res.Processed),
		slog.Int("changed", len(res.Changed)),
		slog.Int("failed", len(res.Failed)),
		slog.Duration("duration", res.Duration),
	)
	writeJSON(w, http.StatusOK, toBatchResponse(res))
}

// QueueStats handles GET /admin/queue.
func (h *AdminHandler) QueueStats(w http.ResponseWriter, r *http.Request) {
	pending := 0
	if h.queue != nil {
		pending = h.queue.Len()
	}
	writeJSON(w, http.StatusOK, map[string]int{"pending": pending})
}

func toBatchResponse(res projection.BatchResult) batchResponse {
	changed := slices.Clone(res.Changed)
	if changed == nil {
		changed = []uuid.UUID{}
	}
	slices.SortFunc(changed, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	failed := make(map[string]string, len(res.Failed))
	for id, err := range res.Failed {
		failed[id.String()] = err.Error()
	}
	return batchResponse{
		Processed:  res.Processed,
		Changed:    changed,
		Failed:     failed,
		DurationMS: res.Duration.Milliseconds(),
	}
}
