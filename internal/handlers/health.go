package handlers

import (
	"context"
	"net/http"
	"time"
)

// HealthHandler responds with service health information.
type HealthHandler struct {
	Store HealthChecker
}

type healthStatus struct {
	Status string `json:"status"`
	Store  string `json:"store"`
}

// Handle implements GET /healthz.
func (h HealthHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := healthStatus{Status: "ok", Store: "ok"}
	code := http.StatusOK
	if h.Store != nil {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := h.Store.Ping(pingCtx); err != nil {
			status = healthStatus{Status: "degraded", Store: "unreachable"}
			code = http.StatusServiceUnavailable
		}
	}

	respondJSON(ctx, w, code, successEnvelope{
		StatusCode: code,
		Data:       status,
		Message:    status.Status,
		Success:    code == http.StatusOK,
	})
}
