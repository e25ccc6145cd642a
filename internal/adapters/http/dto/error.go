package dto

import (
	"net/http"

	"github.com/longregen/parallelproof/internal/domain"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Code    int    `json:"code,omitempty"`
}

func NewErrorResponse(err string, message string, code int) *ErrorResponse {
	return &ErrorResponse{
		Error:   err,
		Message: message,
		Code:    code,
	}
}

// StatusForKind maps an error kind to the HTTP status reported to clients.
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ErrorTypeForKind is the "error" field for a kind. Internal failures share
// one type so backend details are not exposed as categories.
func ErrorTypeForKind(kind domain.ErrorKind) string {
	switch kind {
	case domain.KindValidation:
		return "invalid_request"
	case domain.KindNotFound:
		return "not_found"
	default:
		return "internal_error"
	}
}
