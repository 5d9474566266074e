package observability

import (
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the checkout.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	operationDuration *prometheus.HistogramVec
	gatewayErrors     *prometheus.CounterVec
	charges           *prometheus.CounterVec
	pollTicks         *prometheus.CounterVec
	pollOutcomes      *prometheus.CounterVec
	sessionsActive    prometheus.Gauge
	redirects         prometheus.Counter
	auditRecords      *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		operationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkout_operation_duration_seconds",
				Help:    "Duration of checkout operations and gateway calls.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		gatewayErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_gateway_errors_total",
				Help: "Transport failures talking to the gateway proxy.",
			},
			[]string{"operation"},
		),
		charges: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_charges_total",
				Help: "Charge creation outcomes by method and status.",
			},
			[]string{"method", "status"},
		),
		pollTicks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_poll_ticks_total",
				Help: "Status polls issued by the PIX polling loop.",
			},
			[]string{"result"},
		),
		pollOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_poll_outcomes_total",
				Help: "How PIX polling loops ended.",
			},
			[]string{"outcome"},
		),
		sessionsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "checkout_sessions_active",
				Help: "Checkout sessions currently held in memory.",
			},
		),
		redirects: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_redirects_total",
				Help: "Redirects fired after a confirmed PIX payment.",
			},
		),
		auditRecords: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_audit_records_total",
				Help: "Background charge audit writes.",
			},
			[]string{"result"},
		),
	}
}

// RecordOperationDuration records the duration of an operation.
func (m *Metrics) RecordOperationDuration(operation string, d time.Duration) {
	m.operationDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrGatewayError increments the gateway transport error counter.
func (m *Metrics) IncrGatewayError(operation string) {
	m.gatewayErrors.WithLabelValues(operation).Inc()
}

// IncrCharge counts a charge creation outcome.
func (m *Metrics) IncrCharge(method domain.PaymentMethod, status domain.ChargeStatus) {
	m.charges.WithLabelValues(string(method), string(status)).Inc()
}

// IncrPollTick counts a poll result: pending, confirmed, failed, error or stale.
func (m *Metrics) IncrPollTick(result string) {
	m.pollTicks.WithLabelValues(result).Inc()
}

// IncrPollOutcome counts how a polling loop ended: confirmed, failed, timeout.
func (m *Metrics) IncrPollOutcome(outcome string) {
	m.pollOutcomes.WithLabelValues(outcome).Inc()
}

// SessionOpened increments the active sessions gauge.
func (m *Metrics) SessionOpened() { m.sessionsActive.Inc() }

// SessionClosed decrements the active sessions gauge.
func (m *Metrics) SessionClosed() { m.sessionsActive.Dec() }

// IncrRedirect counts a fired redirect.
func (m *Metrics) IncrRedirect() { m.redirects.Inc() }

// IncrAuditRecord counts an audit write by result: ok, failed or dropped.
func (m *Metrics) IncrAuditRecord(result string) {
	m.auditRecords.WithLabelValues(result).Inc()
}

// Snapshot returns a JSON-friendly view of the checkout counters for the
// GET /v1/metrics/checkout endpoint.
func (m *Metrics) Snapshot() *domain.CheckoutMetrics {
	var pix, card, confirmed, failed float64
	for _, status := range []domain.ChargeStatus{domain.ChargePending, domain.ChargeConfirmed, domain.ChargeFailed, domain.ChargeUnknown} {
		pix += getCounterValue(m.charges, string(domain.MethodPix), string(status))
		card += getCounterValue(m.charges, string(domain.MethodCard), string(status))
	}
	confirmed = getCounterValue(m.charges, string(domain.MethodCard), string(domain.ChargeConfirmed)) +
		getCounterValue(m.pollOutcomes, "confirmed") +
		getCounterValue(m.charges, string(domain.MethodPix), string(domain.ChargeConfirmed))
	failed = getCounterValue(m.charges, string(domain.MethodCard), string(domain.ChargeFailed)) +
		getCounterValue(m.charges, string(domain.MethodPix), string(domain.ChargeFailed)) +
		getCounterValue(m.pollOutcomes, "failed")

	var gatewayErrors float64
	for _, op := range []string{"fetch_config", "register_customer", "create_charge", "record_charge", "poll_status", "push_status"} {
		gatewayErrors += getCounterValue(m.gatewayErrors, op)
	}

	rate := float64(0)
	if pix+card > 0 {
		rate = confirmed / (pix + card)
	}

	return &domain.CheckoutMetrics{
		ActiveSessions:  int64(getGaugeValue(m.sessionsActive)),
		PixCharges:      int64(pix),
		CardCharges:     int64(card),
		Confirmed:       int64(confirmed),
		Failed:          int64(failed),
		PollTimeouts:    int64(getCounterValue(m.pollOutcomes, "timeout")),
		Redirects:       int64(readMetric(m.redirects).GetCounter().GetValue()),
		GatewayErrors:   int64(gatewayErrors),
		ConfirmationPct: rate,
		Period:          "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	return readMetric(cv.WithLabelValues(labels...)).GetCounter().GetValue()
}

func getGaugeValue(g prometheus.Gauge) float64 {
	return readMetric(g).GetGauge().GetValue()
}

func readMetric(c prometheus.Metric) *dto.Metric {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return &dto.Metric{}
	}
	return m
}
