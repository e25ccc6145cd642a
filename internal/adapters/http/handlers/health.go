package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/longregen/parallelproof/internal/adapters/http/dto"
)

const healthCheckTimeout = 5 * time.Second

// Pinger is satisfied by *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db          Pinger
	environment string
	version     string
}

func NewHealthHandler(db Pinger, environment, version string) *HealthHandler {
	return &HealthHandler{db: db, environment: environment, version: version}
}

// Handle reports liveness. The database field reflects a ping, but a failed
// ping does not change the HTTP status.
func (h *HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	database := "disconnected"
	if h.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		defer cancel()
		if err := h.db.Ping(ctx); err == nil {
			database = "connected"
		}
	}

	respondJSON(w, dto.HealthResponse{
		Status:      "healthy",
		Service:     "parallelproof",
		Environment: h.environment,
		Database:    database,
	}, http.StatusOK)
}

func (h *HealthHandler) Root(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, dto.RootResponse{
		Message: "ParallelProof API",
		Version: h.version,
	}, http.StatusOK)
}
