package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/heartmarshall/gazetteer-backend/internal/domain"
	"github.com/heartmarshall/gazetteer-backend/pkg/ctxutil"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error     string       `json:"error"`
	Fields    []fieldError `json:"fields,omitempty"`
	RequestID string       `json:"requestId,omitempty"`
}

type fieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeServiceError maps domain sentinels to HTTP statuses. Unknown errors
// are logged and reported as 500 without detail.
func writeServiceError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	resp := errorResponse{RequestID: ctxutil.RequestIDFromCtx(r.Context())}
	var ve *domain.ValidationError

	switch {
	case errors.As(err, &ve):
		resp.Error = "validation failed"
		resp.Fields = make([]fieldError, len(ve.Errors))
		for i, fe := range ve.Errors {
			resp.Fields[i] = fieldError{Field: fe.Field, Message: fe.Message}
		}
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, domain.ErrValidation):
		resp.Error = err.Error()
		writeJSON(w, http.StatusBadRequest, resp)
	case errors.Is(err, domain.ErrNotFound):
		resp.Error = "not found"
		writeJSON(w, http.StatusNotFound, resp)
	case errors.Is(err, domain.ErrAlreadyExists), errors.Is(err, domain.ErrConflict):
		resp.Error = "conflict"
		writeJSON(w, http.StatusConflict, resp)
	case domain.IsRetryable(err):
		log.WarnContext(r.Context(), "transient failure", slog.String("error", err.Error()))
		resp.Error = "temporarily unavailable"
		w.Header().Set("Retry-After", "1")
		writeJSON(w, http.StatusServiceUnavailable, resp)
	default:
		log.ErrorContext(r.Context(), "internal error", slog.String("error", err.Error()))
		resp.Error = "internal server error"
		writeJSON(w, http.StatusInternalServerError, resp)
	}
}

// decodeJSON reads a size-limited JSON body into dst. Numbers are kept as
// json.Number so tag values survive without float rounding surprises.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.UseNumber()
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return false
	}
	return true
}

func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

func parseUUIDList(raw string) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := uuid.Parse(part)
		if err != nil {
			return nil, domain.NewValidationError("ids", fmt.Sprintf("invalid uuid %q", part))
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// actorOr returns explicit when set, otherwise the X-Actor identity.
func actorOr(r *http.Request, explicit string) string {
	if s := strings.TrimSpace(explicit); s != "" {
		return s
	}
	actor, _ := ctxutil.ActorFromCtx(r.Context())
	return actor
}
