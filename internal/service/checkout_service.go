// Package service manages checkout sessions and admin access on top of the
// checkout state machine.
package service

import (
	"context"
	"strings"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/checkout"
	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/cache"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/observability"
	"github.com/boddenberg/paysimples-checkout-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

var tracer = otel.Tracer("service")

const defaultSessionTTL = 30 * time.Minute

// Settings holds the per-session parameters shared by every checkout.
type Settings struct {
	Timings            checkout.Timings
	DefaultRedirectURL string
	SessionTTL         time.Duration
}

// CheckoutService owns the live checkout sessions. Sessions expire after
// SessionTTL without access; expiry closes them, which stops any polling.
type CheckoutService struct {
	gw       port.Gateway
	recorder *checkout.Recorder
	settings Settings
	sessions *cache.InMemory[*checkout.Session]
	configs  singleflight.Group
	metrics  *observability.Metrics
	logger   *zap.Logger
}

// NewCheckoutService creates the service. recorder may be nil.
func NewCheckoutService(gw port.Gateway, recorder *checkout.Recorder, settings Settings, metrics *observability.Metrics, logger *zap.Logger) *CheckoutService {
	if settings.SessionTTL <= 0 {
		settings.SessionTTL = defaultSessionTTL
	}
	s := &CheckoutService{
		gw:       gw,
		recorder: recorder,
		settings: settings,
		metrics:  metrics,
		logger:   logger,
	}
	s.sessions = cache.New[*checkout.Session](settings.SessionTTL,
		cache.WithSlidingExpiry[*checkout.Session](),
		cache.WithExpireHook(s.expire),
	)
	return s
}

// ============================================================
// Sessions
// ============================================================

// StartSession resolves the payment link and opens a session for it. An
// unknown slug returns the invalid-link snapshot along with
// *domain.ErrInvalidLink; no session is stored for it.
func (s *CheckoutService) StartSession(ctx context.Context, slug string) (checkout.Snapshot, error) {
	ctx, span := tracer.Start(ctx, "CheckoutService.StartSession")
	defer span.End()

	slug = strings.TrimSpace(slug)
	span.SetAttributes(attribute.String("checkout.slug", slug))
	if slug == "" {
		return checkout.Snapshot{}, &domain.ErrValidation{Field: "slug", Code: "required", Message: "slug é obrigatório"}
	}

	cfg, err := s.fetchConfig(ctx, slug)
	if err != nil {
		return checkout.Snapshot{}, err
	}
	if cfg == nil {
		s.logger.Info("checkout: invalid payment link", zap.String("slug", slug))
		return checkout.Snapshot{Step: checkout.StepInvalidLink}, &domain.ErrInvalidLink{Slug: slug}
	}

	id := uuid.NewString()
	sess := checkout.NewSession(id, cfg, s.gw, checkout.Options{
		Timings:            s.settings.Timings,
		DefaultRedirectURL: s.settings.DefaultRedirectURL,
		Hooks: checkout.Hooks{
			OnRedirect: s.onRedirect,
		},
		Recorder: s.recorder,
		Metrics:  s.metrics,
		Logger:   s.logger,
	})
	s.sessions.Set(id, sess)
	s.metrics.SessionOpened()

	span.SetAttributes(attribute.String("session.id", id))
	s.logger.Info("checkout: session started",
		zap.String("session_id", id),
		zap.String("slug", slug),
		zap.String("amount", cfg.Amount.StringFixed(2)),
	)
	return sess.Snapshot(), nil
}

// fetchConfig coalesces concurrent lookups of the same slug. Each caller
// gets its own copy; nothing is cached across sessions.
func (s *CheckoutService) fetchConfig(ctx context.Context, slug string) (*domain.SessionConfig, error) {
	v, err, shared := s.configs.Do(slug, func() (any, error) {
		return s.gw.FetchSessionConfig(context.WithoutCancel(ctx), slug)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		s.logger.Debug("checkout: config lookup coalesced", zap.String("slug", slug))
	}

	cfg, _ := v.(*domain.SessionConfig)
	if cfg == nil {
		return nil, nil
	}
	c := *cfg
	return &c, nil
}

// Session returns a live session.
func (s *CheckoutService) Session(id string) (*checkout.Session, error) {
	sess, ok := s.sessions.Get(id)
	if !ok || sess.Closed() {
		return nil, &domain.ErrNotFound{Resource: "checkout session", ID: id}
	}
	return sess, nil
}

// EndSession closes and forgets a session.
func (s *CheckoutService) EndSession(id string) error {
	sess, ok := s.sessions.Take(id)
	if !ok {
		return &domain.ErrNotFound{Resource: "checkout session", ID: id}
	}
	sess.Close()
	s.metrics.SessionClosed()
	s.logger.Info("checkout: session ended", zap.String("session_id", id))
	return nil
}

// ActiveSessions returns the number of stored sessions.
func (s *CheckoutService) ActiveSessions() int {
	return s.sessions.Len()
}

// Close closes every session. Used on shutdown.
func (s *CheckoutService) Close() {
	s.sessions.Close()
	for _, sess := range s.sessions.Drain() {
		sess.Close()
		s.metrics.SessionClosed()
	}
}

func (s *CheckoutService) expire(id string, sess *checkout.Session) {
	sess.Close()
	s.metrics.SessionClosed()
	s.logger.Info("checkout: session expired", zap.String("session_id", id))
}

func (s *CheckoutService) onRedirect(sessionID, url string) {
	s.logger.Info("checkout: redirecting customer",
		zap.String("session_id", sessionID),
		zap.String("redirect_url", url),
	)
}

// ============================================================
// Admin
// ============================================================

// PushStatusUpdate forwards an administrative status override to the
// gateway. The status accepts the same vocabulary as charge polling.
func (s *CheckoutService) PushStatusUpdate(ctx context.Context, gatewayChargeID, rawStatus string) error {
	ctx, span := tracer.Start(ctx, "CheckoutService.PushStatusUpdate")
	defer span.End()

	gatewayChargeID = strings.TrimSpace(gatewayChargeID)
	if gatewayChargeID == "" {
		return &domain.ErrValidation{Field: "gatewayChargeId", Code: "required", Message: "id da cobrança é obrigatório"}
	}
	status := domain.ParseChargeStatus(rawStatus)
	if status == domain.ChargeUnknown {
		return &domain.ErrValidation{Field: "status", Code: "invalid_status", Message: "status inválido"}
	}
	span.SetAttributes(
		attribute.String("charge.gateway_id", gatewayChargeID),
		attribute.String("charge.status", string(status)),
	)

	return s.gw.PushStatusUpdate(ctx, gatewayChargeID, status)
}
