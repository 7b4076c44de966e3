// Package metrics exports the engine's activity as Prometheus metrics.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/yllada/connman-indicator/common"
	"github.com/yllada/connman-indicator/connman"
)

var statusKinds = []connman.StatusKind{
	connman.StatusOffline,
	connman.StatusWired,
	connman.StatusWifi,
	connman.StatusAcquiring,
}

// Collector bundles the engine metrics. It implements connman.Observer.
type Collector struct {
	gatherer prometheus.Gatherer

	Reconciliations *prometheus.CounterVec
	Requests        *prometheus.CounterVec
	Services        *prometheus.GaugeVec
	DaemonPresent   prometheus.Gauge
	Status          *prometheus.GaugeVec
}

// NewCollector registers the engine metrics against reg, defaulting to the
// global Prometheus registry when nil.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	reconciliations, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connman_reconciliations_total",
		Help: "Model reconciliations, labeled by what triggered them.",
	}, []string{"trigger"}), "connman_reconciliations_total")
	if err != nil {
		return nil, err
	}

	requests, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "connman_requests_total",
		Help: "Completed daemon requests, labeled by method and result (ok, error, timeout).",
	}, []string{"method", "result"}), "connman_requests_total")
	if err != nil {
		return nil, err
	}

	services, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "connman_services",
		Help: "Services currently listed per technology.",
	}, []string{"technology"}), "connman_services")
	if err != nil {
		return nil, err
	}

	present, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "connman_daemon_present",
		Help: "1 while the daemon owns its bus name.",
	}), "connman_daemon_present")
	if err != nil {
		return nil, err
	}

	status, err := registerGaugeVec(reg, prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "connman_status",
		Help: "Derived global status, one-hot.",
	}, []string{"status"}), "connman_status")
	if err != nil {
		return nil, err
	}

	return &Collector{
		gatherer:        gatherer,
		Reconciliations: reconciliations,
		Requests:        requests,
		Services:        services,
		DaemonPresent:   present,
		Status:          status,
	}, nil
}

// Reconciled counts one reconciliation.
func (c *Collector) Reconciled(trigger string) {
	if c == nil {
		return
	}
	c.Reconciliations.WithLabelValues(trigger).Inc()
}

// RequestCompleted counts one daemon reply.
func (c *Collector) RequestCompleted(method string, err error) {
	if c == nil {
		return
	}
	c.Requests.WithLabelValues(method, result(err)).Inc()
}

// Published updates the gauges from a snapshot.
func (c *Collector) Published(snapshot connman.Snapshot) {
	if c == nil {
		return
	}
	if snapshot.DaemonPresent {
		c.DaemonPresent.Set(1)
	} else {
		c.DaemonPresent.Set(0)
	}
	for _, kind := range connman.Kinds {
		view := snapshot.Technology(kind)
		c.Services.WithLabelValues(kind.String()).Set(float64(len(view.Direct) + len(view.Overflow)))
	}
	for _, kind := range statusKinds {
		value := 0.0
		if snapshot.Status.Kind == kind {
			value = 1
		}
		c.Status.WithLabelValues(kind.String()).Set(value)
	}
}

// Handler exposes a ready-to-use /metrics handler.
func (c *Collector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve serves /metrics on addr until ctx is done.
func (c *Collector) Serve(ctx context.Context, addr string, log common.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Info("Serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

func result(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, common.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGaugeVec(reg prometheus.Registerer, vec *prometheus.GaugeVec, name string) (*prometheus.GaugeVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.GaugeVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
