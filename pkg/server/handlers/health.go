package handlers

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
)

const serviceName = "embedkit"

// Build information, set at build time with -ldflags "-X ...".
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

// breakerReporter is implemented by embedders guarded by a circuit breaker.
type breakerReporter interface {
	BreakerState() string
}

// HealthHandler serves the probe endpoints.
type HealthHandler struct {
	embedder  Embedder
	startedAt time.Time
}

// NewHealthHandler creates a health handler for e. A nil e is reported as
// not ready.
func NewHealthHandler(e Embedder) *HealthHandler {
	return &HealthHandler{embedder: e, startedAt: time.Now()}
}

func (h *HealthHandler) status(state string) gin.H {
	return gin.H{
		"status":    state,
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}

// HealthCheck handles GET /health.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	resp := h.status("healthy")
	resp["version"] = Version
	c.JSON(http.StatusOK, resp)
}

// LivenessCheck handles GET /live.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, h.status("alive"))
}

// ReadinessCheck handles GET /ready. The remote service is never called;
// an open circuit breaker makes the instance not ready.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	if h.embedder == nil {
		resp := h.status("not_ready")
		resp["error"] = "embedder not initialized"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	resp := h.status("ready")
	resp["model"] = h.embedder.Model()
	resp["dimensions"] = h.embedder.Dimensions()

	breaker := h.breakerState()
	if breaker != "" {
		resp["circuit_breaker"] = breaker
	}
	if breaker == "open" {
		resp["status"] = "not_ready"
		resp["error"] = "circuit breaker open"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// DetailedHealthCheck handles GET /health/detailed.
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	resp := h.status("healthy")
	resp["version"] = Version
	resp["build_info"] = gin.H{
		"git_commit": GitCommit,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
	}
	resp["uptime"] = time.Since(h.startedAt).Round(time.Second).String()
	resp["system"] = readSystemMetrics()

	if h.embedder == nil {
		resp["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	embedder := gin.H{
		"model":      h.embedder.Model(),
		"dimensions": h.embedder.Dimensions(),
	}
	if state := h.breakerState(); state != "" {
		embedder["circuit_breaker"] = state
	}
	resp["embedder"] = embedder
	c.JSON(http.StatusOK, resp)
}

func (h *HealthHandler) breakerState() string {
	if r, ok := h.embedder.(breakerReporter); ok {
		return r.BreakerState()
	}
	return ""
}

// SystemMetrics is a snapshot of the Go runtime.
type SystemMetrics struct {
	HeapAlloc   string `json:"heap_alloc"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
}

func readSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return SystemMetrics{
		HeapAlloc:   fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
	}
}
