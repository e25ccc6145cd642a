package handlers

import (
	"log/slog"
	"net/http"

	"github.com/longregen/parallelproof/internal/adapters/http/dto"
	"github.com/longregen/parallelproof/internal/ports"
)

type OptimizationHandler struct {
	submit ports.SubmitOptimization
	status ports.GetTaskStatus
	logger *slog.Logger
}

func NewOptimizationHandler(submit ports.SubmitOptimization, status ports.GetTaskStatus, logger *slog.Logger) *OptimizationHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &OptimizationHandler{submit: submit, status: status, logger: logger.With("component", "optimization_handler")}
}

// Submit handles POST /api/v1/optimize.
func (h *OptimizationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody[ports.SubmitOptimizationInput](r, w)
	if !ok {
		return
	}

	out, err := h.submit.Execute(r.Context(), req)
	if err != nil {
		respondDomainError(w, h.logger, "submit optimization", err)
		return
	}

	respond(w, r, out, http.StatusOK)
}

// GetTask handles GET /api/v1/task/{id}.
func (h *OptimizationHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, ok := validateURLParam(r, w, "id", "Task ID")
	if !ok {
		return
	}

	view, err := h.status.Execute(r.Context(), taskID)
	if err != nil {
		respondDomainError(w, h.logger, "get task status", err)
		return
	}

	respond(w, r, dto.FromTaskView(view), http.StatusOK)
}
