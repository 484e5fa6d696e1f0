package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Job is the pushgateway job name
const Job = "yieldctl"

var (
	// TransactionsTracked counts tracking attempts per network, replacements included
	TransactionsTracked = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldctl_transactions_tracked_total",
			Help: "Total number of transactions tracked",
		},
		[]string{"network"},
	)

	// TransactionOutcomes counts terminal tracking outcomes
	TransactionOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldctl_transaction_outcomes_total",
			Help: "Total number of tracked transactions by outcome",
		},
		[]string{"network", "outcome"}, // confirmed, failed, cancelled, still_pending
	)

	// Replacements counts speed-ups and cancellations observed while tracking
	Replacements = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldctl_transaction_replacements_total",
			Help: "Total number of transaction replacements observed",
		},
		[]string{"network", "reason"},
	)

	// ConfirmationLatency tracks time from tracking start to confirmation
	ConfirmationLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "yieldctl_confirmation_latency_seconds",
			Help:    "Time from broadcast to the required confirmations",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"network"},
	)

	// OperationsInFlight tracks operations whose status is loading
	OperationsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "yieldctl_operations_in_flight",
			Help: "Number of operations currently loading",
		},
	)

	// OperationsSettled counts operation runs by the phase they settled in
	OperationsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "yieldctl_operations_settled_total",
			Help: "Total number of operation runs settled, by phase",
		},
		[]string{"phase"}, // fulfilled, rejected
	)
)

// Handler serves the default registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.Handler()
}

// Push replaces this process's group on the pushgateway at url
func Push(ctx context.Context, url string) error {
	if err := push.New(url, Job).Gatherer(prometheus.DefaultGatherer).PushContext(ctx); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}

// Serve exposes /metrics on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
