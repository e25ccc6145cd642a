package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/longregen/parallelproof/internal/adapters/http/dto"
	"github.com/longregen/parallelproof/internal/adapters/http/encoding"
	"github.com/longregen/parallelproof/internal/domain"
)

const maxBodyBytes = 1024 * 1024

// respondJSON writes a JSON response with the given status code
func respondJSON(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", encoding.ContentTypeJSON)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respond honors Accept: application/msgpack and otherwise writes JSON.
func respond(w http.ResponseWriter, r *http.Request, data interface{}, status int) {
	if encoding.NegotiateContentType(r) == encoding.ContentTypeMsgpack {
		if err := encoding.WriteMsgpack(w, status, data); err != nil {
			slog.Error("failed to write msgpack response", "error", err)
		}
		return
	}
	respondJSON(w, data, status)
}

// respondError writes an error JSON response
func respondError(w http.ResponseWriter, errorType string, message string, status int) {
	respondJSON(w, dto.NewErrorResponse(errorType, message, status), status)
}

// respondDomainError maps err's kind to a status. Internal details are logged
// and replaced with a generic message.
func respondDomainError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	kind := domain.KindOf(err)
	status := dto.StatusForKind(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error(op+" failed", "kind", kind, "error", err)
		message = "internal server error"
	} else if errors.Is(err, domain.ErrTaskNotFound) {
		message = "Task not found"
	}
	respondError(w, dto.ErrorTypeForKind(kind), message, status)
}

// validateURLParam validates and returns a URL parameter
func validateURLParam(r *http.Request, w http.ResponseWriter, paramName, errorField string) (string, bool) {
	value := chi.URLParam(r, paramName)
	if value == "" {
		respondError(w, "invalid_request", errorField+" is required", http.StatusBadRequest)
		return "", false
	}
	return value, true
}

// decodeBody decodes a JSON or msgpack request body, by Content-Type.
func decodeBody[T any](r *http.Request, w http.ResponseWriter) (*T, bool) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req T
	var err error
	if encoding.IsMsgpackBody(r) {
		err = encoding.ReadMsgpack(r, &req)
	} else {
		err = json.NewDecoder(r.Body).Decode(&req)
	}
	if err != nil {
		respondError(w, "invalid_request", "Invalid request body", http.StatusBadRequest)
		return nil, false
	}
	return &req, true
}
