package rest

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
	"github.com/heartmarshall/gazetteer-backend/internal/service/ledger"
)

type ledgerService interface {
	SubmitChangeset(ctx context.Context, input ledger.SubmitChangesetInput) (*ledger.SubmitResult, error)
	RecordDecision(ctx context.Context, input ledger.RecordDecisionInput) (domain.DecisionEdge, error)
	EffectiveDocDecision(ctx context.Context, changesetID uuid.UUID) (domain.DecisionKind, error)
	EffectiveTagDecision(ctx context.Context, changesetID uuid.UUID, key string) (domain.DecisionKind, error)
	History(ctx context.Context, entityID uuid.UUID) ([]ledger.ChangesetStatus, error)
	Pending(ctx context.Context, limit int) ([]ledger.ChangesetStatus, error)
}

// LedgerHandler serves the write side: changesets, decisions and their
// moderation state.
type LedgerHandler struct {
	svc ledgerService
	log *slog.Logger
}

// NewLedgerHandler creates a LedgerHandler.
func NewLedgerHandler(svc ledgerService, logger *slog.Logger) *LedgerHandler {
	return &LedgerHandler{svc: svc, log: logger.With("handler", "ledger")}
}

type submitChangesetRequest struct {
	EntityID  *uuid.UUID     `json:"entityId,omitempty"`
	Tags      map[string]any `json:"tags"`
	Author    string         `json:"author,omitempty"`
	Automated bool           `json:"automated,omitempty"`
	Sources   string         `json:"sources,omitempty"`
	Comment   string         `json:"comment,omitempty"`
}

type changesetResponse struct {
	ID        uuid.UUID   `json:"id"`
	EntityID  uuid.UUID   `json:"entityId"`
	Tags      domain.Tags `json:"tags"`
	Author    string      `json:"author,omitempty"`
	Automated bool        `json:"automated"`
	Sources   string      `json:"sources,omitempty"`
	Comment   string      `json:"comment,omitempty"`
	CreatedAt time.Time   `json:"createdAt"`
}

type resolutionResponse struct {
	EntityID uuid.UUID `json:"entityId"`
	Matched  bool      `json:"matched"`
	Score    int       `json:"score"`
	Criteria []string  `json:"criteria"`
	Source   string    `json:"source,omitempty"`
}

type submitChangesetResponse struct {
	Changeset  changesetResponse   `json:"changeset"`
	Resolution *resolutionResponse `json:"resolution,omitempty"`
}

// SubmitChangeset handles POST /changesets.
func (h *LedgerHandler) SubmitChangeset(w http.ResponseWriter, r *http.Request) {
	var req submitChangesetRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	tags, err := domain.TagsFromMap(req.Tags)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	input := ledger.SubmitChangesetInput{
		Tags:        tags,
		AuthorTag:   actorOr(r, req.Author),
		IsAutomated: req.Automated,
		Sources:     req.Sources,
		Comment:     req.Comment,
	}
	if req.EntityID != nil {
		input.EntityID = *req.EntityID
	}

	result, err := h.svc.SubmitChangeset(r.Context(), input)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	resp := submitChangesetResponse{Changeset: toChangesetResponse(result.Changeset)}
	if result.Resolution != nil {
		rr := toResolutionResponse(*result.Resolution)
		resp.Resolution = &rr
	}
	writeJSON(w, http.StatusCreated, resp)
}

type recordDecisionRequest struct {
	Kind      string    `json:"kind"`
	Changeset uuid.UUID `json:"changeset"`
	Key       string    `json:"key,omitempty"`
	Reviewer  string    `json:"reviewer,omitempty"`
}

type decisionResponse struct {
	ID        uuid.UUID `json:"id"`
	Kind      string    `json:"kind"`
	Changeset uuid.UUID `json:"changeset"`
	Key       string    `json:"key,omitempty"`
	Reviewer  string    `json:"reviewer"`
	CreatedAt time.Time `json:"createdAt"`
}

// RecordDecision handles POST /decisions.
func (h *LedgerHandler) RecordDecision(w http.ResponseWriter, r *http.Request) {
	var req recordDecisionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	edge, err := h.svc.RecordDecision(r.Context(), ledger.RecordDecisionInput{
		Kind:      domain.DecisionKind(req.Kind),
		Changeset: req.Changeset,
		Key:       req.Key,
		Reviewer:  actorOr(r, req.Reviewer),
	})
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusCreated, decisionResponse{
		ID:        edge.ID,
		Kind:      string(edge.Kind),
		Changeset: edge.TargetChangeset,
		Key:       edge.TargetKey,
		Reviewer:  edge.Reviewer,
		CreatedAt: edge.CreatedAt,
	})
}

type effectiveDecisionResponse struct {
	Changeset uuid.UUID `json:"changeset"`
	Key       string    `json:"key,omitempty"`
	Decision  string    `json:"decision"`
}

// EffectiveDecision handles GET /changesets/{id}/decision[?key=k].
func (h *LedgerHandler) EffectiveDecision(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	key := r.URL.Query().Get("key")
	var (
		kind domain.DecisionKind
		err  error
	)
	if key == "" {
		kind, err = h.svc.EffectiveDocDecision(r.Context(), id)
	} else {
		kind, err = h.svc.EffectiveTagDecision(r.Context(), id, key)
	}
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, effectiveDecisionResponse{Changeset: id, Key: key, Decision: kind.String()})
}

type changesetStatusResponse struct {
	Changeset changesetResponse `json:"changeset"`
	Decision  string            `json:"decision"`
	Keys      map[string]string `json:"keys"`
	Visible   []string          `json:"visible"`
}

// History handles GET /places/{id}/history.
func (h *LedgerHandler) History(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	statuses, err := h.svc.History(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponses(statuses))
}

// Pending handles GET /pending?limit=n.
func (h *LedgerHandler) Pending(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}

	statuses, err := h.svc.Pending(r.Context(), limit)
	if err != nil {
		writeServiceError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toStatusResponses(statuses))
}

func toChangesetResponse(cs domain.Changeset) changesetResponse {
	tags := cs.Tags
	if tags == nil {
		tags = domain.Tags{}
	}
	return changesetResponse{
		ID:        cs.ID,
		EntityID:  cs.ForEntity,
		Tags:      tags,
		Author:    cs.AuthorTag,
		Automated: cs.IsAutomated,
		Sources:   cs.Sources,
		Comment:   cs.Comment,
		CreatedAt: cs.CreatedAt,
	}
}

func toResolutionResponse(res domain.Resolution) resolutionResponse {
	criteria := res.Criteria
	if criteria == nil {
		criteria = []string{}
	}
	return resolutionResponse{
		EntityID: res.EntityID,
		Matched:  res.Matched,
		Score:    res.Score,
		Criteria: criteria,
		Source:   res.Source,
	}
}

func toStatusResponses(statuses []ledger.ChangesetStatus) []changesetStatusResponse {
	out := make([]changesetStatusResponse, len(statuses))
	for i, st := range statuses {
		keys := make(map[string]string, len(st.Keys))
		for k, d := range st.Keys {
			keys[k] = d.String()
		}
		visible := st.Visible
		if visible == nil {
			visible = []string{}
		}
		out[i] = changesetStatusResponse{
			Changeset: toChangesetResponse(st.Changeset),
			Decision:  st.Decision.String(),
			Keys:      keys,
			Visible:   visible,
		}
	}
	return out
}
