// Package checkout implements the checkout wizard for one browser session:
// registration, payment by PIX or card, and confirmation. The PIX path owns a
// background polling loop that waits for the gateway to settle the charge.
package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/formatter"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/observability"
	"github.com/boddenberg/paysimples-checkout-go/internal/port"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("checkout")

// Step is the wizard step.
type Step string

const (
	StepRegistration Step = "registration"
	StepPayment      Step = "payment"
	StepConfirmation Step = "confirmation"
	StepInvalidLink  Step = "invalid_link"
)

// Phase is the sub-state of the payment step.
type Phase string

const (
	PhaseAwaitingMethod          Phase = "awaiting_method"
	PhasePixGenerating           Phase = "pix_generating"
	PhasePixAwaitingConfirmation Phase = "pix_awaiting_confirmation"
	PhasePixConfirmed            Phase = "pix_confirmed"
	PhaseCardSubmitting          Phase = "card_submitting"
	PhaseCardApproved            Phase = "card_approved"
)

// User-facing notifications.
const (
	msgRegistrationFailed = "Erro ao realizar cadastro"
	msgPixFailed          = "Não foi possível gerar o PIX. Tente novamente."
	msgPixNotConfirmed    = "Pagamento não confirmado. Gere um novo PIX para tentar novamente."
	msgPixExpired         = "Tempo para pagamento esgotado. Gere um novo PIX."
	msgCardDeclined       = "Pagamento não aprovado"
	msgCardFailed         = "Erro ao processar pagamento. Tente novamente."
)

// Timings controls the polling loop and the confirmation display delay.
type Timings struct {
	PollInterval time.Duration
	PollTimeout  time.Duration
	DisplayDelay time.Duration
}

// DefaultTimings polls every 3s for up to 10 minutes and shows a
// confirmation for 2s before moving on.
func DefaultTimings() Timings {
	return Timings{
		PollInterval: 3 * time.Second,
		PollTimeout:  10 * time.Minute,
		DisplayDelay: 2 * time.Second,
	}
}

func (t Timings) withDefaults() Timings {
	d := DefaultTimings()
	if t.PollInterval <= 0 {
		t.PollInterval = d.PollInterval
	}
	if t.PollTimeout <= 0 {
		t.PollTimeout = d.PollTimeout
	}
	if t.DisplayDelay < 0 {
		t.DisplayDelay = 0
	}
	return t
}

// Hooks are invoked by the session. OnTransition runs with the session lock
// held and must not call back into the Session. OnRedirect runs without it.
type Hooks struct {
	OnRedirect   func(sessionID, url string)
	OnTransition func(sessionID string, step Step, phase Phase)
}

// Options configures a Session.
type Options struct {
	Timings            Timings
	DefaultRedirectURL string
	Hooks              Hooks
	Recorder           *Recorder // nil disables audit recording
	Metrics            *observability.Metrics
	Logger             *zap.Logger
}

// Session is the checkout state machine of one customer. All methods are
// safe for concurrent use. Gateway calls run without the lock held; their
// results are dropped if the session moved on in the meantime.
type Session struct {
	id     string
	cfg    *domain.SessionConfig
	gw     port.Gateway
	opts   Options
	logger *zap.Logger

	mu           sync.Mutex
	step         Step
	phase        Phase
	busy         bool
	customer     *domain.CustomerRecord
	registration *domain.Registration
	charge       *domain.ChargeOutcome
	notice       string
	redirectURL  string
	redirected   bool
	closed       bool

	// gen is bumped whenever in-flight work must be invalidated.
	gen     uint64
	poll    *pollHandle
	display *time.Timer
}

// NewSession creates a session for a resolved payment link. A nil cfg puts
// the session in the terminal invalid-link step.
func NewSession(id string, cfg *domain.SessionConfig, gw port.Gateway, opts Options) *Session {
	opts.Timings = opts.Timings.withDefaults()
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = observability.NewMetrics()
	}

	s := &Session{
		id:     id,
		cfg:    cfg,
		gw:     gw,
		opts:   opts,
		logger: opts.Logger.With(zap.String("session_id", id)),
		step:   StepRegistration,
	}
	if cfg == nil {
		s.step = StepInvalidLink
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// ============================================================
// Registration
// ============================================================

// Register validates the form, registers the customer remotely and moves to
// the payment step. Validation failures are reported all at once as
// *domain.ErrValidationSet and never reach the gateway.
func (s *Session) Register(ctx context.Context, form RegistrationForm) error {
	ctx, span := tracer.Start(ctx, "Session.Register")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.id))

	s.mu.Lock()
	if err := s.allowLocked("register", s.step == StepRegistration && !s.busy); err != nil {
		s.mu.Unlock()
		return err
	}
	rec, err := form.Validate()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.busy = true
	s.notice = ""
	gen := s.gen
	slug := s.cfg.Slug
	s.mu.Unlock()

	reg, err := s.gw.RegisterCustomer(ctx, rec, slug)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.currentLocked(gen); err != nil {
		return err
	}
	s.busy = false

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.notice = msgRegistrationFailed
		var bf *domain.ErrBusinessFailure
		if errors.As(err, &bf) && bf.Message != "" {
			s.notice = bf.Message
		}
		s.logger.Warn("checkout: registration failed", zap.Error(err))
		return err
	}

	s.customer = &rec
	s.registration = reg
	s.logger.Info("checkout: customer registered",
		zap.String("customer_id", reg.LocalID),
		zap.String("gateway_customer_id", reg.RemoteID),
		zap.String("person_type", string(rec.PersonType)),
	)
	s.transitionLocked(StepPayment, PhaseAwaitingMethod)
	return nil
}

// ============================================================
// PIX
// ============================================================

// GeneratePix creates a PIX charge. Any active polling loop is torn down
// first; a pending charge starts a new one.
func (s *Session) GeneratePix(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "Session.GeneratePix")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.id))

	s.mu.Lock()
	allowed := s.step == StepPayment &&
		(s.phase == PhaseAwaitingMethod || s.phase == PhasePixAwaitingConfirmation)
	if err := s.allowLocked("generate pix", allowed); err != nil {
		s.mu.Unlock()
		return err
	}
	s.invalidateLocked()
	s.charge = nil
	s.notice = ""
	s.transitionLocked(StepPayment, PhasePixGenerating)
	gen := s.gen
	req := domain.NewPixCharge(s.registration.LocalID, s.registration.RemoteID, s.cfg.Amount)
	req.Description = s.cfg.ProductDescription
	s.mu.Unlock()

	outcome, err := s.gw.CreateCharge(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.currentLocked(gen); err != nil {
		return err
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.opts.Metrics.IncrCharge(domain.MethodPix, domain.ChargeUnknown)
		s.notice = msgPixFailed
		s.transitionLocked(StepPayment, PhaseAwaitingMethod)
		s.logger.Warn("checkout: pix charge failed", zap.Error(err))
		return err
	}

	outcome.Method = domain.MethodPix
	s.opts.Metrics.IncrCharge(domain.MethodPix, outcome.Status)
	s.recordLocked(outcome)
	span.SetAttributes(attribute.String("charge.status", string(outcome.Status)))

	switch outcome.Status {
	case domain.ChargePending:
		s.charge = outcome
		s.transitionLocked(StepPayment, PhasePixAwaitingConfirmation)
		s.startPollingLocked(outcome.ChargeID)
		s.logger.Info("checkout: pix charge pending", zap.String("charge_id", outcome.ChargeID))
		return nil
	case domain.ChargeConfirmed:
		s.charge = outcome
		s.confirmPixLocked(outcome)
		return nil
	default:
		s.notice = msgPixFailed
		if outcome.Message != "" {
			s.notice = outcome.Message
		}
		s.transitionLocked(StepPayment, PhaseAwaitingMethod)
		return &domain.ErrBusinessFailure{Operation: "create_pix_charge", Message: s.notice}
	}
}

// confirmPixLocked enters pix_confirmed and schedules the one-shot redirect.
func (s *Session) confirmPixLocked(latest *domain.ChargeOutcome) {
	s.stopPollingLocked()

	if latest != s.charge {
		s.charge.Status = domain.ChargeConfirmed
		if latest.GatewayChargeID != "" {
			s.charge.GatewayChargeID = latest.GatewayChargeID
		}
		if latest.RedirectURL != "" {
			s.charge.RedirectURL = latest.RedirectURL
		}
	}

	target := s.charge.RedirectURL
	if target == "" {
		target = s.opts.DefaultRedirectURL
	}
	s.redirectURL = target
	s.transitionLocked(StepPayment, PhasePixConfirmed)
	s.logger.Info("checkout: pix confirmed",
		zap.String("charge_id", s.charge.ChargeID),
		zap.String("redirect_url", target),
	)

	s.afterDisplayLocked(func() func() {
		s.transitionLocked(StepConfirmation, "")
		if s.redirected {
			return nil
		}
		s.redirected = true
		s.opts.Metrics.IncrRedirect()
		hook := s.opts.Hooks.OnRedirect
		if hook == nil {
			return nil
		}
		id := s.id
		return func() { hook(id, target) }
	})
}

// ============================================================
// Card
// ============================================================

// SubmitCard validates the card form and performs one synchronous charge.
// Validation failures return *domain.ErrValidation without a network call.
func (s *Session) SubmitCard(ctx context.Context, form CardForm) error {
	ctx, span := tracer.Start(ctx, "Session.SubmitCard")
	defer span.End()
	span.SetAttributes(attribute.String("session.id", s.id))

	s.mu.Lock()
	allowed := s.step == StepPayment &&
		(s.phase == PhaseAwaitingMethod || s.phase == PhasePixAwaitingConfirmation)
	if err := s.allowLocked("submit card", allowed); err != nil {
		s.mu.Unlock()
		return err
	}
	card, err := form.Validate()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.invalidateLocked()
	s.charge = nil
	s.notice = ""
	s.transitionLocked(StepPayment, PhaseCardSubmitting)
	gen := s.gen
	req := domain.NewCardCharge(s.registration.LocalID, s.registration.RemoteID, s.cfg.Amount, card)
	req.Description = s.cfg.ProductDescription
	s.mu.Unlock()

	s.logger.Info("checkout: submitting card charge", zap.String("card_last_four", card.LastFour()))
	outcome, err := s.gw.CreateCharge(ctx, req)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.currentLocked(gen); err != nil {
		return err
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.opts.Metrics.IncrCharge(domain.MethodCard, domain.ChargeUnknown)
		s.notice = msgCardFailed
		s.transitionLocked(StepPayment, PhaseAwaitingMethod)
		s.logger.Warn("checkout: card charge failed", zap.Error(err))
		return err
	}

	outcome.Method = domain.MethodCard
	s.opts.Metrics.IncrCharge(domain.MethodCard, outcome.Status)
	s.recordLocked(outcome)
	span.SetAttributes(attribute.String("charge.status", string(outcome.Status)))

	if outcome.Status != domain.ChargeConfirmed {
		s.notice = msgCardDeclined
		if outcome.Message != "" {
			s.notice = outcome.Message
		}
		s.transitionLocked(StepPayment, PhaseAwaitingMethod)
		return &domain.ErrBusinessFailure{Operation: "create_card_charge", Message: s.notice}
	}

	s.charge = outcome
	s.transitionLocked(StepPayment, PhaseCardApproved)
	s.logger.Info("checkout: card approved", zap.String("charge_id", outcome.ChargeID))
	s.afterDisplayLocked(func() func() {
		s.transitionLocked(StepConfirmation, "")
		return nil
	})
	return nil
}

// ============================================================
// Navigation
// ============================================================

// Back leaves the payment step for registration. Any polling loop, pending
// confirmation timer or in-flight charge result is discarded.
func (s *Session) Back() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	allowed := s.step == StepPayment && s.phase != PhasePixConfirmed && s.phase != PhaseCardApproved
	if err := s.allowLocked("go back", allowed); err != nil {
		return err
	}
	s.invalidateLocked()
	s.charge = nil
	s.notice = ""
	s.busy = false
	s.transitionLocked(StepRegistration, "")
	return nil
}

// Reset starts a new payment from the confirmation step with the same
// payment link.
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.allowLocked("start a new payment", s.step == StepConfirmation); err != nil {
		return err
	}
	s.invalidateLocked()
	s.customer = nil
	s.registration = nil
	s.charge = nil
	s.notice = ""
	s.redirectURL = ""
	s.redirected = false
	s.busy = false
	s.transitionLocked(StepRegistration, "")
	return nil
}

// Close cancels the polling loop and any pending timer. It is idempotent;
// every later operation fails with domain.ErrSessionClosed.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	h := s.poll
	s.invalidateLocked()
	s.closed = true
	s.mu.Unlock()

	if h != nil {
		<-h.done
	}
	s.logger.Debug("checkout: session closed")
}

// Closed reports whether Close was called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// ============================================================
// Snapshot
// ============================================================

// ChargeView is the renderable part of the current charge.
type ChargeView struct {
	Method          domain.PaymentMethod `json:"method"`
	Status          domain.ChargeStatus  `json:"status"`
	ChargeID        string               `json:"chargeId,omitempty"`
	GatewayChargeID string               `json:"gatewayChargeId,omitempty"`
	PixPayload      string               `json:"pixPayload,omitempty"`
	PixQRDataURI    string               `json:"pixQrDataUri,omitempty"`
	Message         string               `json:"message,omitempty"`
}

// Snapshot is an immutable view of the session for rendering.
type Snapshot struct {
	SessionID       string                 `json:"sessionId"`
	Step            Step                   `json:"step"`
	Phase           Phase                  `json:"phase,omitempty"`
	Busy            bool                   `json:"busy"`
	Config          *domain.SessionConfig  `json:"config,omitempty"`
	AmountFormatted string                 `json:"amountFormatted,omitempty"`
	Customer        *domain.CustomerRecord `json:"customer,omitempty"`
	Registration    *domain.Registration   `json:"registration,omitempty"`
	Charge          *ChargeView            `json:"charge,omitempty"`
	Notification    string                 `json:"notification,omitempty"`
	RedirectURL     string                 `json:"redirectUrl,omitempty"`
	PixConfirmed    bool                   `json:"pixConfirmed"`
	Closed          bool                   `json:"closed,omitempty"`
}

// Snapshot returns the current state.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := Snapshot{
		SessionID:    s.id,
		Step:         s.step,
		Phase:        s.phase,
		Busy:         s.busy || s.phase == PhasePixGenerating || s.phase == PhaseCardSubmitting,
		Notification: s.notice,
		RedirectURL:  s.redirectURL,
		PixConfirmed: s.phase == PhasePixConfirmed || (s.step == StepConfirmation && s.charge != nil && s.charge.Method == domain.MethodPix),
		Closed:       s.closed,
	}
	if s.cfg != nil {
		cfg := *s.cfg
		snap.Config = &cfg
		snap.AmountFormatted = formatter.FormatCurrency(cfg.Amount)
	}
	if s.customer != nil {
		c := *s.customer
		snap.Customer = &c
	}
	if s.registration != nil {
		r := *s.registration
		snap.Registration = &r
	}
	if s.charge != nil {
		snap.Charge = &ChargeView{
			Method:          s.charge.Method,
			Status:          s.charge.Status,
			ChargeID:        s.charge.ChargeID,
			GatewayChargeID: s.charge.GatewayChargeID,
			PixPayload:      s.charge.PixPayload,
			PixQRDataURI:    s.charge.PixQRDataURI(),
			Message:         s.charge.Message,
		}
	}
	return snap
}

// ============================================================
// Internals
// ============================================================

func (s *Session) allowLocked(action string, allowed bool) error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.step == StepInvalidLink {
		return &domain.ErrInvalidLink{}
	}
	if !allowed {
		from := string(s.step)
		if s.phase != "" {
			from += "/" + string(s.phase)
		}
		return &domain.ErrInvalidTransition{From: from, Action: action}
	}
	return nil
}

// currentLocked reports whether a result captured at gen may still be applied.
func (s *Session) currentLocked(gen uint64) error {
	if s.closed {
		return domain.ErrSessionClosed
	}
	if s.gen != gen {
		return domain.ErrSessionChanged
	}
	return nil
}

// invalidateLocked stops the polling loop and the display timer and makes
// every in-flight result stale.
func (s *Session) invalidateLocked() {
	s.stopPollingLocked()
	if s.display != nil {
		s.display.Stop()
		s.display = nil
	}
	s.gen++
}

func (s *Session) transitionLocked(step Step, phase Phase) {
	if s.step == step && s.phase == phase {
		return
	}
	s.logger.Debug("checkout: transition",
		zap.String("from_step", string(s.step)),
		zap.String("from_phase", string(s.phase)),
		zap.String("to_step", string(step)),
		zap.String("to_phase", string(phase)),
	)
	s.step = step
	s.phase = phase
	if s.opts.Hooks.OnTransition != nil {
		s.opts.Hooks.OnTransition(s.id, step, phase)
	}
}

// afterDisplayLocked runs fn under the lock once the display delay elapses,
// unless the session moved on. A non-nil func returned by fn runs after the
// lock is released.
func (s *Session) afterDisplayLocked(fn func() func()) {
	gen := s.gen
	var t *time.Timer
	t = time.AfterFunc(s.opts.Timings.DisplayDelay, func() {
		s.mu.Lock()
		if s.closed || s.gen != gen || s.display != t {
			s.mu.Unlock()
			return
		}
		s.display = nil
		after := fn()
		s.mu.Unlock()

		if after != nil {
			after()
		}
	})
	s.display = t
}

func (s *Session) recordLocked(outcome *domain.ChargeOutcome) {
	if s.opts.Recorder == nil || outcome.ChargeID == "" {
		return
	}
	rec := domain.ChargeRecord{
		Slug:            s.cfg.Slug,
		ChargeID:        outcome.ChargeID,
		GatewayChargeID: outcome.GatewayChargeID,
		Amount:          s.cfg.Amount,
		Method:          outcome.Method,
		Status:          outcome.Status,
		PixPayload:      outcome.PixPayload,
		PixQRImage:      outcome.PixQRImage,
	}
	if s.registration != nil {
		rec.CustomerID = s.registration.LocalID
		rec.GatewayCustomerID = s.registration.RemoteID
	}
	s.opts.Recorder.Record(rec)
}
