package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

var (
	// SyncAttempts counts finished sync attempts by result.
	SyncAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tvsync_sync_attempts_total",
		Help: "Total number of finished sync attempts by result",
	}, []string{"result"})
	// SyncQueued counts requests deferred because a sync was already running.
	SyncQueued = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tvsync_sync_queued_total",
		Help: "Total number of sync requests queued behind an in-flight sync",
	})
	// SyncTimeouts counts attempts whose remote fetch lost the deadline race.
	SyncTimeouts = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tvsync_sync_timeouts_total",
		Help: "Total number of sync attempts that hit the deadline",
	})
	// SyncLockHeld reports whether the sync lock is currently held.
	SyncLockHeld = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "tvsync_sync_lock_held",
		Help: "1 while a sync attempt holds the lock",
	})
	// SyncDuration observes attempt latency.
	SyncDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tvsync_sync_duration_seconds",
		Help:    "Duration of sync attempts",
		Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
	})
	// ProbeFailures counts unreachable sources seen by the availability probe.
	ProbeFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tvsync_probe_failures_total",
		Help: "Total number of failed source availability probes",
	}, []string{"source"})
)

// NewRegistry creates a new Prometheus registry.
func NewRegistry() *prometheus.Registry {
	return prometheus.NewRegistry()
}

// RegisterSyncMetrics registers the sync metrics on the provided registry.
func RegisterSyncMetrics(reg prometheus.Registerer) {
	reg.MustRegister(SyncAttempts, SyncQueued, SyncTimeouts, SyncLockHeld, SyncDuration, ProbeFailures)
}

// Serve exposes reg on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
