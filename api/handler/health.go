package handler

import (
	"net/http"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fiberdash/backend/api/transport"
	"github.com/fiberdash/backend/internal/infrastructure/monitor"
	"github.com/fiberdash/backend/pkg/httpcontext"
)

type HealthHandler struct {
	baseHandler
	monitor *monitor.Monitor
}

func NewHealthHandler(mon *monitor.Monitor, adapter *httpcontext.Adapter, logger *zap.Logger) *HealthHandler {
	return &HealthHandler{
		baseHandler: newBaseHandler(adapter, logger),
		monitor:     mon,
	}
}

// @Summary Health check
// @Tags health
// @Router /health [get]
func (h *HealthHandler) Check(ctx *fasthttp.RequestCtx) {
	status := h.monitor.GetStatus()
	payload := map[string]interface{}{
		"timestamp": time.Now().UTC(),
		"services": map[string]interface{}{
			"postgresql": status.PostgreSQL,
			"redis":      status.Redis,
			"replication": map[string]interface{}{
				"online":  status.Queue,
				"pending": status.PendingWrites,
			},
		},
	}

	// Session continuity survives a single store outage; the health probe
	// only goes red once every persisted backend is gone.
	if status.PostgreSQL || status.Redis {
		if !status.PostgreSQL || !status.Redis {
			h.respondJSON(ctx, http.StatusOK, transport.NewError("DEGRADED", "one session store offline", payload))
			return
		}
		h.respondSuccess(ctx, http.StatusOK, payload)
		return
	}
	h.respondJSON(ctx, http.StatusServiceUnavailable, transport.NewError("DEGRADED", "session stores unreachable", payload))
}
