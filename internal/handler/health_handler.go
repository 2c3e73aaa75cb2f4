package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
)

// DegradedReporter reports whether a background feed has fallen back to polling.
type DegradedReporter interface {
	Degraded() bool
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	db       *sqlx.DB
	realtime DegradedReporter
}

// NewHealthHandler creates a new HealthHandler. realtime may be nil.
func NewHealthHandler(db *sqlx.DB, realtime DegradedReporter) *HealthHandler {
	return &HealthHandler{db: db, realtime: realtime}
}

// Liveness handles GET /healthz
// @Summary Liveness probe
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /healthz [get]
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}

// Readiness handles GET /readyz. A degraded realtime feed is reported but
// does not fail the probe.
// @Summary Readiness probe
// @Tags health
// @Produce json
// @Success 200 {object} HealthResponse
// @Failure 503 {object} HealthResponse
// @Router /readyz [get]
func (h *HealthHandler) Readiness(c *gin.Context) {
	if err := h.db.PingContext(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Status: "unavailable", Error: "database not reachable"})
		return
	}
	resp := HealthResponse{Status: "ok"}
	if h.realtime != nil {
		resp.Realtime = "live"
		if h.realtime.Degraded() {
			resp.Realtime = "polling"
		}
	}
	c.JSON(http.StatusOK, resp)
}
