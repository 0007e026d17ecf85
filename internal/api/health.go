package api

import (
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v3/process"
)

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status            string  `json:"status"`
	Node              string  `json:"node"`
	Uptime            string  `json:"uptime"`
	UptimeSeconds     float64 `json:"uptime_seconds"`
	Timestamp         string  `json:"timestamp"`
	PendingCandidates int     `json:"pending_candidates"`
	Goroutines        int     `json:"goroutines"`
	ProcessMemoryMB   float64 `json:"process_memory_mb,omitempty"`
	ProcessCPU        float64 `json:"process_cpu_percent,omitempty"`
}

// healthCheck handles the server health check endpoint.
func (s *Server) healthCheck(c echo.Context) error {
	uptime := time.Since(s.startTime)

	resp := HealthResponse{
		Status:            "healthy",
		Node:              s.settings.Main.Name,
		Uptime:            uptime.Round(time.Second).String(),
		UptimeSeconds:     uptime.Seconds(),
		Timestamp:         time.Now().Format(time.RFC3339),
		PendingCandidates: s.processor.Pending(),
		Goroutines:        runtime.NumGoroutine(),
	}

	// Process statistics are best effort; some platforms do not expose them.
	if proc, err := process.NewProcessWithContext(c.Request().Context(), int32(os.Getpid())); err == nil { //nolint:gosec // G115: pid fits in int32
		if mem, err := proc.MemoryInfoWithContext(c.Request().Context()); err == nil && mem != nil {
			resp.ProcessMemoryMB = float64(mem.RSS) / 1024 / 1024
		}
		if cpu, err := proc.CPUPercentWithContext(c.Request().Context()); err == nil {
			resp.ProcessCPU = cpu
		}
	}

	return c.JSON(http.StatusOK, resp)
}
