package monitoring

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
)

const checkTimeout = 5 * time.Second

type Metrics struct {
	mu              sync.RWMutex
	RequestCount    int64            `json:"request_count"`
	RequestDuration time.Duration    `json:"avg_request_duration_ms"`
	ActiveRequests  int64            `json:"active_requests"`
	ErrorCount      int64            `json:"error_count"`
	StatusCodes     map[string]int64 `json:"status_codes"`
	Endpoints       map[string]int64 `json:"endpoint_calls"`
	StartTime       time.Time        `json:"start_time"`
	LastRequest     time.Time        `json:"last_request"`
	totalDuration   time.Duration
}

type HealthCheck struct {
	Name    string    `json:"name"`
	Status  string    `json:"status"`
	Message string    `json:"message,omitempty"`
	LastRun time.Time `json:"last_run"`
}

type HealthCheckFunc func(ctx context.Context) error

// StatsFunc reports the live counters of a subsystem (board cache, db pool,
// job queue) for the metrics endpoint.
type StatsFunc func() map[string]interface{}

type HealthChecker struct {
	mu     sync.RWMutex
	checks map[string]HealthCheckFunc
	stats  map[string]StatsFunc
}

// globalsMu guards swapping the globals in Reset. Each value has its own
// lock for its contents.
var (
	globalsMu           sync.RWMutex
	globalMetrics       = newMetrics()
	globalHealthChecker = newHealthChecker()
)

func currentMetrics() *Metrics {
	globalsMu.RLock()
	defer globalsMu.RUnlock()
	return globalMetrics
}

func currentHealthChecker() *HealthChecker {
	globalsMu.RLock()
	defer globalsMu.RUnlock()
	return globalHealthChecker
}

func newMetrics() *Metrics {
	return &Metrics{
		StatusCodes: make(map[string]int64),
		Endpoints:   make(map[string]int64),
		StartTime:   time.Now(),
	}
}

func newHealthChecker() *HealthChecker {
	return &HealthChecker{
		checks: make(map[string]HealthCheckFunc),
		stats:  make(map[string]StatsFunc),
	}
}

// Reset clears counters and registrations. Used between tests and when the
// server is rebuilt in-process.
func Reset() {
	m, h := newMetrics(), newHealthChecker()
	globalsMu.Lock()
	defer globalsMu.Unlock()
	globalMetrics = m
	globalHealthChecker = h
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		m := currentMetrics()
		start := time.Now()

		m.mu.Lock()
		m.ActiveRequests++
		m.mu.Unlock()

		c.Next()

		duration := time.Since(start)
		statusCode := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		endpoint := c.Request.Method + " " + route

		m.mu.Lock()
		m.RequestCount++
		m.ActiveRequests--
		m.totalDuration += duration
		m.RequestDuration = m.totalDuration / time.Duration(m.RequestCount)
		m.LastRequest = time.Now()
		if statusCode >= 400 {
			m.ErrorCount++
		}
		m.StatusCodes[strconv.Itoa(statusCode)]++
		m.Endpoints[endpoint]++
		m.mu.Unlock()
	}
}

func GetMetrics() *Metrics {
	m := currentMetrics()
	m.mu.RLock()
	defer m.mu.RUnlock()

	metrics := &Metrics{
		RequestCount:    m.RequestCount,
		RequestDuration: m.RequestDuration,
		ActiveRequests:  m.ActiveRequests,
		ErrorCount:      m.ErrorCount,
		StatusCodes:     make(map[string]int64, len(m.StatusCodes)),
		Endpoints:       make(map[string]int64, len(m.Endpoints)),
		StartTime:       m.StartTime,
		LastRequest:     m.LastRequest,
	}
	for k, v := range m.StatusCodes {
		metrics.StatusCodes[k] = v
	}
	for k, v := range m.Endpoints {
		metrics.Endpoints[k] = v
	}
	return metrics
}

type SystemMetrics struct {
	Uptime         time.Duration `json:"uptime"`
	MemoryUsage    MemoryStats   `json:"memory"`
	GoroutineCount int           `json:"goroutine_count"`
	CPUCount       int           `json:"cpu_count"`
	GoVersion      string        `json:"go_version"`
}

type MemoryStats struct {
	Alloc        uint64 `json:"alloc_mb"`
	TotalAlloc   uint64 `json:"total_alloc_mb"`
	Sys          uint64 `json:"sys_mb"`
	NumGC        uint32 `json:"num_gc"`
	NextGC       uint64 `json:"next_gc_mb"`
	LastGC       string `json:"last_gc"`
	GCPauseTotal string `json:"gc_pause_total"`
}

func GetSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		Uptime: time.Since(currentMetrics().StartTime),
		MemoryUsage: MemoryStats{
			Alloc:        bToMb(m.Alloc),
			TotalAlloc:   bToMb(m.TotalAlloc),
			Sys:          bToMb(m.Sys),
			NumGC:        m.NumGC,
			NextGC:       bToMb(m.NextGC),
			LastGC:       time.Unix(0, int64(m.LastGC)).Format(time.RFC3339),
			GCPauseTotal: time.Duration(m.PauseTotalNs).String(),
		},
		GoroutineCount: runtime.NumGoroutine(),
		CPUCount:       runtime.NumCPU(),
		GoVersion:      runtime.Version(),
	}
}

func bToMb(b uint64) uint64 {
	return b / 1024 / 1024
}

// RegisterHealthCheck adds a dependency probe run on every health and
// readiness request. Registering the same name again replaces it.
func RegisterHealthCheck(name string, checkFunc HealthCheckFunc) {
	h := currentHealthChecker()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.checks[name] = checkFunc
}

func RegisterStats(name string, fn StatsFunc) {
	h := currentHealthChecker()
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stats[name] = fn
}

// RunHealthChecks runs every registered probe concurrently, each bounded by
// its own timeout.
func RunHealthChecks(ctx context.Context) map[string]HealthCheck {
	h := currentHealthChecker()
	h.mu.RLock()
	checks := make(map[string]HealthCheckFunc, len(h.checks))
	for name, fn := range h.checks {
		checks[name] = fn
	}
	h.mu.RUnlock()

	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		results = make(map[string]HealthCheck, len(checks))
	)
	for name, fn := range checks {
		wg.Add(1)
		go func(name string, fn HealthCheckFunc) {
			defer wg.Done()
			checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
			defer cancel()

			check := HealthCheck{Name: name, Status: "healthy"}
			if err := fn(checkCtx); err != nil {
				check.Status = "unhealthy"
				check.Message = err.Error()
			}
			check.LastRun = time.Now()

			mu.Lock()
			results[name] = check
			mu.Unlock()
		}(name, fn)
	}
	wg.Wait()
	return results
}

func collectStats() map[string]interface{} {
	h := currentHealthChecker()
	h.mu.RLock()
	names := make([]string, 0, len(h.stats))
	for name := range h.stats {
		names = append(names, name)
	}
	sort.Strings(names)
	fns := make([]StatsFunc, len(names))
	for i, name := range names {
		fns[i] = h.stats[name]
	}
	h.mu.RUnlock()

	out := make(map[string]interface{}, len(names))
	for i, name := range names {
		out[name] = fns[i]()
	}
	return out
}

func healthy(checks map[string]HealthCheck) bool {
	for _, check := range checks {
		if check.Status != "healthy" {
			return false
		}
	}
	return true
}

func MetricsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"application": GetMetrics(),
			"system":      GetSystemMetrics(),
			"components":  collectStats(),
			"timestamp":   time.Now(),
		})
	}
}

func HealthHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		checks := RunHealthChecks(c.Request.Context())

		overallStatus := "healthy"
		status := http.StatusOK
		if !healthy(checks) {
			overallStatus = "unhealthy"
			status = http.StatusServiceUnavailable
		}

		c.JSON(status, gin.H{
			"status":    overallStatus,
			"timestamp": time.Now(),
			"checks":    checks,
			"uptime":    time.Since(currentMetrics().StartTime).String(),
		})
	}
}

func ReadinessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if healthy(RunHealthChecks(c.Request.Context())) {
			c.JSON(http.StatusOK, gin.H{
				"status":    "ready",
				"timestamp": time.Now(),
			})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not ready",
			"timestamp": time.Now(),
		})
	}
}

func LivenessHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "alive",
			"timestamp": time.Now(),
			"uptime":    time.Since(currentMetrics().StartTime).String(),
		})
	}
}
