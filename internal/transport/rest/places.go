package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
)

const (
	defaultSearchLimit = 20
	maxSearchLimit     = 100
)

type snapshotReader interface {
	Get(ctx context.Context, id uuid.UUID) (*domain.Snapshot, error)
	GetMany(ctx context.Context, ids []uuid.UUID) ([]domain.Snapshot, error)
}

type placeSearcher interface {
	Search(ctx context.Context, query string, limit int) ([]uuid.UUID, error)
}

type entityResolver interface {
	Resolve(ctx context.Context, facts domain.Tags) (domain.Resolution, error)
}

// PlacesHandler serves the read side: snapshots, full-text search and
// dry-run entity resolution.
type PlacesHandler struct {
	snapshots snapshotReader
	search    placeSearcher
	resolver  entityResolver
	log       *slog.Logger
}

// NewPlacesHandler creates a PlacesHandler. search may be nil when no search
// backend is configured.
func NewPlacesHandler(snapshots snapshotReader, search placeSearcher, resolver entityResolver, logger *slog.Logger) *PlacesHandler {
	return &PlacesHandler{
		snapshots: snapshots,
		search:    search,
		resolver:  resolver,
		log:       logger.With("handler", "places"),
	}
}

type snapshotResponse struct {
	ID        uuid.UUID   `json:"id"`
	Tags      domain.Tags `json:"tags"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// Get handles GET /places/{id}.
func (h *PlacesHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	snap, err := h.snapshots.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponse(*snap))
}

// List handles GET /places?ids=a,b,c. Unknown ids are omitted.
func (h *PlacesHandler) List(w http.ResponseWriter, r *http.Request) {
	ids, err := parseUUIDList(r.URL.Query().Get("ids"))
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "ids is required")
		return
	}

	snaps, err := h.snapshots.GetMany(r.Context(), ids)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponses(snaps))
}

// Search handles GET /places/search?q=text&limit=n.
func (h *PlacesHandler) Search(w http.ResponseWriter, r *http.Request) {
	if h.search == nil {
		writeError(w, http.StatusServiceUnavailable, "search is not configured")
		return
	}

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "q is required")
		return
	}
	limit := defaultSearchLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxSearchLimit {
			writeError(w, http.StatusBadRequest, "limit must be in 1..100")
			return
		}
		limit = n
	}

	ids, err := h.search.Search(r.Context(), q, limit)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	if len(ids) == 0 {
		writeJSON(w, http.StatusOK, []snapshotResponse{})
		return
	}

	// The index may lag the store; hydrate from the authoritative snapshots.
	snaps, err := h.snapshots.GetMany(r.Context(), ids)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toSnapshotResponses(snaps))
}

type resolveRequest struct {
	Tags map[string]any `json:"tags"`
}

// Resolve handles POST /resolve. It reports which place the facts would be
// attached to without writing anything. An unmatched result carries a fresh
// id that is not reserved.
func (h *PlacesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	facts, err := domain.TagsFromMap(req.Tags)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	res, err := h.resolver.Resolve(r.Context(), facts)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toResolutionResponse(res))
}

func toSnapshotResponse(s domain.Snapshot) snapshotResponse {
	tags := s.Tags
	if tags == nil {
		tags = domain.Tags{}
	}
	return snapshotResponse{ID: s.ID, Tags: tags, UpdatedAt: s.UpdatedAt}
}

func toSnapshotResponses(snaps []domain.Snapshot) []snapshotResponse {
	out := make([]snapshotResponse, len(snaps))
	for i, s := range snaps {
		out[i] = toSnapshotResponse(s)
	}
	return out
}
