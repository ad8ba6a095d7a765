// Package metrics exposes Prometheus counters for the authentication and
// transaction flows on a dedicated listener.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the counters the handlers update.
type Metrics struct {
	SessionsProvisioned prometheus.Counter
	SessionsReused      prometheus.Counter
	SessionsLoggedOut   prometheus.Counter
	CarrierRejections   prometheus.Counter
	ChallengeFailures   prometheus.Counter
	SignatureFailures   prometheus.Counter
	SignatureBypasses   prometheus.Counter
	TransactionsAANF    prometheus.Counter
	TransactionsLegacy  prometheus.Counter
}

// NewMetrics registers the counter set on the given registerer. Handlers
// receive the result; the server owns the listener.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	counter := func(name, help string) prometheus.Counter {
		return promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		SessionsProvisioned: counter("sessions_provisioned_total", "Sessions provisioned with a fresh key hierarchy."),
		SessionsReused:      counter("sessions_reused_total", "Authentications answered with an existing active session."),
		SessionsLoggedOut:   counter("sessions_logged_out_total", "Sessions deactivated through logout."),
		CarrierRejections:   counter("carrier_rejections_total", "Authentications rejected by the carrier allow-list."),
		ChallengeFailures:   counter("challenge_failures_total", "Authentications rejected for a failed challenge proof."),
		SignatureFailures:   counter("signature_failures_total", "Transactions rejected for an invalid signature."),
		SignatureBypasses:   counter("signature_bypasses_total", "Transactions accepted despite a failed signature under the permissive policy."),
		TransactionsAANF:    counter("transactions_aanf_total", "Transactions accepted through the signed AANF flow."),
		TransactionsLegacy:  counter("transactions_traditional_total", "Transactions accepted through the traditional flow."),
	}
}

// MetricsServer serves the Prometheus endpoint.
type MetricsServer struct {
	srv     *http.Server
	metrics *Metrics
}

// New creates a metrics server with a private registry.
func New(namespace, listenAddr string) (*MetricsServer, error) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(namespace, reg)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	return &MetricsServer{
		srv: &http.Server{
			Addr:         listenAddr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		metrics: m,
	}, nil
}

// Metrics returns the counter set for handlers to update.
func (s *MetricsServer) Metrics() *Metrics {
	return s.metrics
}

// ListenAndServe blocks serving the metrics endpoint.
func (s *MetricsServer) ListenAndServe() error {
	return s.srv.ListenAndServe()
}

// Shutdown gracefully stops the metrics listener.
func (s *MetricsServer) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
