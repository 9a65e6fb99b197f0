package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status        string       `json:"status"`
	Database      string       `json:"database"`
	UptimeSeconds uint64       `json:"uptimeSeconds,omitempty"`
	Memory        *MemoryStats `json:"memory,omitempty"`
}

// MemoryStats summarizes host memory.
type MemoryStats struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	UsedPercent float64 `json:"usedPercent"`
}

// HealthHandler reports service and host health.
type HealthHandler struct {
	db Pinger
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(db Pinger) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check pings the database and samples host stats. Host stat failures are
// logged and omitted; only the database decides the status code.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) error {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", Database: "up"}
	status := http.StatusOK
	if err := h.db.PingContext(ctx); err != nil {
		log.Error().Err(err).Msg("Health check: database unreachable")
		resp.Status = "unavailable"
		resp.Database = "down"
		status = http.StatusServiceUnavailable
	}

	if uptime, err := host.UptimeWithContext(ctx); err == nil {
		resp.UptimeSeconds = uptime
	} else {
		log.Warn().Err(err).Msg("Health check: failed to read host uptime")
	}
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		resp.Memory = &MemoryStats{Total: vm.Total, Used: vm.Used, UsedPercent: vm.UsedPercent}
	} else {
		log.Warn().Err(err).Msg("Health check: failed to read memory stats")
	}

	return writeJSON(w, status, resp)
}
