package http

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"
)

// HealthStatus represents the health check response
type HealthStatus struct {
	Status    string           `json:"status"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a single health check result
type Check struct {
	Status   string `json:"status"`
	Message  string `json:"message,omitempty"`
	Duration string `json:"duration,omitempty"`
}

type SystemInfo struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	MemAllocMB   uint64 `json:"mem_alloc_mb"`
}

const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDegraded  = "degraded"
)

// probe is one readiness dependency. A failing critical probe makes the
// instance unready; any other failure only degrades it.
type probe struct {
	name     string
	critical bool
	run      func(ctx context.Context) Check
}

func (h *Handlers) probes() []probe {
	ps := []probe{{name: "catalog", critical: true, run: h.checkCatalog}}
	if h.DB != nil {
		ps = append(ps, probe{name: "database", critical: true, run: pinger(h.DB.Ping)})
	}
	// without Redis, logouts are remembered in-process only
	if h.Redis != nil {
		ps = append(ps, probe{name: "redis", run: pinger(h.Redis.Ping)})
	}
	if h.Q != nil {
		ps = append(ps, probe{name: "queue", run: h.checkQueue})
	}
	return ps
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Ready runs every probe and answers 503 when a critical one fails.
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := HealthStatus{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]Check),
	}
	for _, p := range h.probes() {
		c := p.run(ctx)
		status.Checks[p.name] = c
		switch {
		case c.Status == StatusHealthy:
		case p.critical:
			status.Status = StatusUnhealthy
		case status.Status == StatusHealthy:
			status.Status = StatusDegraded
		}
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	status.System = &SystemInfo{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemAllocMB:   mem.Alloc / 1024 / 1024,
	}

	code := http.StatusOK
	if status.Status == StatusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

// an empty catalog denies every feature
func (h *Handlers) checkCatalog(context.Context) Check {
	n := 0
	if h.Gate != nil && h.Gate.Catalog() != nil {
		n = h.Gate.Catalog().Len()
	}
	if n == 0 {
		return Check{Status: StatusUnhealthy, Message: "role catalog is empty, all features denied"}
	}
	return Check{Status: StatusHealthy, Message: fmt.Sprintf("%d roles loaded", n)}
}

func pinger(ping func(context.Context) error) func(context.Context) Check {
	return func(ctx context.Context) Check {
		start := time.Now()
		err := ping(ctx)
		c := Check{Status: StatusHealthy, Message: "connection successful", Duration: time.Since(start).String()}
		if err != nil {
			c.Status = StatusUnhealthy
			c.Message = err.Error()
		}
		return c
	}
}

func (h *Handlers) checkQueue(context.Context) Check {
	pending := h.Q.Len()
	if h.Config.QueueBuf > 0 && pending > h.Config.QueueBuf/2 {
		return Check{Status: StatusDegraded, Message: fmt.Sprintf("queue backlog detected (pending: %d)", pending)}
	}
	return Check{Status: StatusHealthy, Message: fmt.Sprintf("queue operational (pending: %d)", pending)}
}
