package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/observability"
	"github.com/boddenberg/paysimples-checkout-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// NewRouter creates the HTTP router with all routes and middleware.
// breaker is the gateway circuit breaker reported by /healthz; it may be nil.
func NewRouter(
	svc *service.CheckoutService,
	adminAuth *service.AdminAuth,
	breaker *gobreaker.CircuitBreaker,
	metrics *observability.Metrics,
	corsOrigins []string,
	logger *zap.Logger,
) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger, metrics))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))
	r.Use(CORSMiddleware(corsOrigins))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(svc, breaker))
	r.Get("/readyz", readyzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {

		// =============================================
		// 1. Métricas
		// GET /v1/metrics/checkout
		// =============================================
		r.Get("/metrics/checkout", checkoutMetricsHandler(metrics))

		// =============================================
		// 2. Checkout
		// POST   /v1/checkout/{slug}/sessions
		// GET    /v1/checkout/sessions/{sessionId}
		// DELETE /v1/checkout/sessions/{sessionId}
		// POST   /v1/checkout/sessions/{sessionId}/registration
		// POST   /v1/checkout/sessions/{sessionId}/pix
		// POST   /v1/checkout/sessions/{sessionId}/card
		// POST   /v1/checkout/sessions/{sessionId}/back
		// POST   /v1/checkout/sessions/{sessionId}/reset
		// GET    /v1/checkout/format/{kind}?value=
		// =============================================
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/{slug}/sessions", startSessionHandler(svc, logger))
			r.Get("/format/{kind}", formatHandler())

			r.Route("/sessions/{sessionId}", func(r chi.Router) {
				r.Get("/", getSessionHandler(svc, logger))
				r.Delete("/", endSessionHandler(svc, logger))
				r.Post("/registration", registerHandler(svc, logger))
				r.Post("/pix", generatePixHandler(svc, logger))
				r.Post("/card", submitCardHandler(svc, logger))
				r.Post("/back", backHandler(svc, logger))
				r.Post("/reset", resetHandler(svc, logger))
			})
		})

		// =============================================
		// 3. Administração
		// POST /v1/admin/token
		// POST /v1/admin/charges/{gatewayChargeId}/status (JWT)
		// =============================================
		r.Route("/admin", func(r chi.Router) {
			r.Post("/token", adminTokenHandler(adminAuth, logger))

			r.Group(func(r chi.Router) {
				r.Use(AdminAuthMiddleware(adminAuth, logger))
				r.Post("/charges/{gatewayChargeId}/status", pushStatusHandler(svc, logger))
			})
		})
	})

	return r
}

// ============================================================
// Operational
// ============================================================

func healthzHandler(svc *service.CheckoutService, breaker *gobreaker.CircuitBreaker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		now := time.Now().Format(time.RFC3339)

		api := domain.ServiceHealth{Name: "checkout-api", Status: "healthy", LastChecked: now}
		if svc != nil {
			api.Detail = pluralSessions(svc.ActiveSessions())
		}
		services := []domain.ServiceHealth{api}

		if breaker != nil {
			services = append(services, domain.ServiceHealth{
				Name:        "gateway",
				Status:      breakerHealth(breaker.State()),
				Detail:      "circuit " + breaker.State().String(),
				LastChecked: now,
			})
		}

		overallStatus := "healthy"
		for _, s := range services {
			if s.Status == "unhealthy" {
				overallStatus = "unhealthy"
				break
			}
			if s.Status == "degraded" {
				overallStatus = "degraded"
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overallStatus,
			Services: services,
		})
	}
}

func breakerHealth(state gobreaker.State) string {
	switch state {
	case gobreaker.StateOpen:
		return "unhealthy"
	case gobreaker.StateHalfOpen:
		return "degraded"
	default:
		return "healthy"
	}
}

func pluralSessions(n int) string {
	if n == 1 {
		return "1 active session"
	}
	return strconv.Itoa(n) + " active sessions"
}

func readyzHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func checkoutMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.Snapshot())
	}
}
