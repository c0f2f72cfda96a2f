package metrics

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics holds the collectors for oracle reads and pool transactions.
type Metrics struct {
	priceFetches *prometheus.CounterVec
	priceLatency prometheus.Histogram
	txPhases     *prometheus.CounterVec
	txLatency    *prometheus.HistogramVec
}

var (
	registryOnce sync.Once
	registry     *Metrics
)

// Default returns the lazily-initialised process metrics.
func Default() *Metrics {
	registryOnce.Do(func() {
		registry = New(prometheus.DefaultRegisterer)
	})
	return registry
}

// New builds and registers collectors on reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		priceFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lendscope",
			Subsystem: "oracle",
			Name:      "price_fetches_total",
			Help:      "Oracle getAssetPrice reads segmented by outcome.",
		}, []string{"outcome"}),
		priceLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "lendscope",
			Subsystem: "oracle",
			Name:      "price_fetch_duration_seconds",
			Help:      "Latency of oracle reads including retries.",
			Buckets:   prometheus.DefBuckets,
		}),
		txPhases: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "lendscope",
			Subsystem: "pool",
			Name:      "tx_phases_total",
			Help:      "Pool transaction phases segmented by phase and outcome.",
		}, []string{"phase", "outcome"}),
		txLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "lendscope",
			Subsystem: "pool",
			Name:      "tx_phase_duration_seconds",
			Help:      "Time from build to confirmed receipt per transaction phase.",
			Buckets:   []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"phase"}),
	}
	if reg != nil {
		reg.MustRegister(m.priceFetches, m.priceLatency, m.txPhases, m.txLatency)
	}
	return m
}

// ObservePriceFetch records one oracle read.
func (m *Metrics) ObservePriceFetch(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.priceFetches.WithLabelValues(outcome).Inc()
	m.priceLatency.Observe(elapsed.Seconds())
}

// ObserveTxPhase records one approval/deposit/withdraw phase.
func (m *Metrics) ObserveTxPhase(phase, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.txPhases.WithLabelValues(phase, outcome).Inc()
	m.txLatency.WithLabelValues(phase).Observe(elapsed.Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("metrics listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
