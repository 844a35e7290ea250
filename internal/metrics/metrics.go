// Package metrics exposes the Prometheus registry and /health + /metrics
// HTTP surface shared by all three binaries (spec §6).
package metrics

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/process"
)

// Metrics holds every Prometheus metric named in spec §6 plus the ambient
// resource gauges carried over from the reference pack.
type Metrics struct {
	HTTPRequestsTotal        *prometheus.CounterVec
	SignalEvaluationsTotal   *prometheus.CounterVec
	SignalEvaluationDuration prometheus.Histogram
	WebsocketConnected       prometheus.Gauge
	CacheConnected           prometheus.Gauge
	StoreConnected           prometheus.Gauge

	JobsEnqueuedTotal  *prometheus.CounterVec
	JobsProcessedTotal *prometheus.CounterVec
	JobsRetriedTotal   *prometheus.CounterVec
	PELReclaimedTotal  prometheus.Counter

	CircuitBreakerState *prometheus.GaugeVec // labels: dependency; 0=closed,1=open,2=half-open
	RingBufferOverflow  prometheus.Counter

	ProcessCPUPercent       prometheus.Gauge
	ProcessResidentMemBytes prometheus.Gauge
}

// New registers and returns every metric.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests served by the admin surface",
		}, []string{"path", "status"}),
		SignalEvaluationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "signal_evaluations_total",
			Help: "Total strategy evaluations, by resulting direction",
		}, []string{"direction"}),
		SignalEvaluationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "signal_evaluation_duration_seconds",
			Help:    "Wall-clock time to evaluate one strategy against a candle slice",
			Buckets: prometheus.DefBuckets,
		}),
		WebsocketConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "websocket_connected",
			Help: "1 if the ingestor's feed connection is in the Connected state, else 0",
		}),
		CacheConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cache_connected",
			Help: "1 if the key-value cache is reachable, else 0",
		}),
		StoreConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "store_connected",
			Help: "1 if the time-series store is reachable, else 0",
		}),
		JobsEnqueuedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_enqueued_total",
			Help: "Jobs pushed onto a queue, by stage",
		}, []string{"stage"}),
		JobsProcessedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "Jobs successfully processed, by stage",
		}, []string{"stage"}),
		JobsRetriedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_retried_total",
			Help: "Jobs returned as retryable, by stage",
		}, []string{"stage"}),
		PELReclaimedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pel_messages_reclaimed_total",
			Help: "Messages reclaimed from idle/dead consumers via XCLAIM",
		}),
		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state per dependency (0=closed, 1=open, 2=half-open)",
		}, []string{"dependency"}),
		RingBufferOverflow: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ringbuffer_overflow_total",
			Help: "Candles dropped because a per-key ring buffer was full",
		}),
		ProcessCPUPercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "process_cpu_percent",
			Help: "Process CPU usage percent, sampled periodically",
		}),
		ProcessResidentMemBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "process_resident_memory_bytes",
			Help: "Process resident memory in bytes, sampled periodically",
		}),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.SignalEvaluationsTotal,
		m.SignalEvaluationDuration,
		m.WebsocketConnected,
		m.CacheConnected,
		m.StoreConnected,
		m.JobsEnqueuedTotal,
		m.JobsProcessedTotal,
		m.JobsRetriedTotal,
		m.PELReclaimedTotal,
		m.CircuitBreakerState,
		m.RingBufferOverflow,
		m.ProcessCPUPercent,
		m.ProcessResidentMemBytes,
	)

	return m
}

// StartResourceSampler periodically samples this process's CPU/memory usage
// via gopsutil and updates the corresponding gauges.
func (m *Metrics) StartResourceSampler(ctx context.Context, interval time.Duration) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		slog.Warn("metrics: resource sampler disabled", "error", err)
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if pct, err := proc.CPUPercent(); err == nil {
					m.ProcessCPUPercent.Set(pct)
				}
				if info, err := proc.MemoryInfo(); err == nil && info != nil {
					m.ProcessResidentMemBytes.Set(float64(info.RSS))
				}
			}
		}
	}()
}

// Health reports process liveness. Per spec §7, health always reports
// healthy while the process runs; connectivity degradation is surfaced
// only through the Connected gauges, never by failing this endpoint.
type Health struct {
	mu        sync.RWMutex
	startedAt time.Time
}

func NewHealth() *Health {
	return &Health{startedAt: time.Now()}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	uptime := time.Since(h.startedAt)
	h.mu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Status string `json:"status"`
		Uptime string `json:"uptime"`
	}{Status: "healthy", Uptime: uptime.Round(time.Second).String()})
}

// Server runs an HTTP server exposing /metrics and /health.
type Server struct {
	addr string
	srv  *http.Server
}

// NewServer creates a metrics and health server. extraRoutes lets the
// api-server binary add its read-only strategy listing alongside /health
// and /metrics.
func NewServer(addr string, health *Health, extraRoutes func(*http.ServeMux)) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", health.ServeHTTP)
	if extraRoutes != nil {
		extraRoutes(mux)
	}

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		slog.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
