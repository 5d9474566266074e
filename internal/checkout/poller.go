package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"

	"go.uber.org/zap"
)

// pollHandle is the single active polling loop of a session. cancel stops
// both the tick schedule and the absolute timeout.
type pollHandle struct {
	chargeID string
	cancel   context.CancelFunc
	done     chan struct{}
}

func (s *Session) startPollingLocked(chargeID string) {
	s.stopPollingLocked()

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.Timings.PollTimeout)
	h := &pollHandle{
		chargeID: chargeID,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.poll = h
	go s.runPoll(ctx, h)
}

// stopPollingLocked is idempotent. It never waits for the loop goroutine,
// since the loop itself calls it while applying a terminal result.
func (s *Session) stopPollingLocked() {
	if s.poll == nil {
		return
	}
	s.poll.cancel()
	s.poll = nil
}

// activeLocked reports whether h is still the session's current loop.
func (s *Session) activeLocked(h *pollHandle) bool {
	return !s.closed && s.poll == h
}

func (s *Session) runPoll(ctx context.Context, h *pollHandle) {
	defer close(h.done)
	defer h.cancel()

	ticker := time.NewTicker(s.opts.Timings.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				s.pollTimedOut(h)
			}
			return
		case <-ticker.C:
			// Ticks are sequential: the next one is only issued after this
			// poll returned and was applied.
			if finished := s.tick(ctx, h); finished {
				return
			}
		}
	}
}

// tick performs one status check and applies its result. It returns true
// when the loop must end.
func (s *Session) tick(ctx context.Context, h *pollHandle) bool {
	start := time.Now()
	outcome, err := s.gw.PollChargeStatus(ctx, h.chargeID)
	s.opts.Metrics.RecordOperationDuration("poll_tick", time.Since(start))

	s.mu.Lock()
	defer s.mu.Unlock()

	// The response may arrive after the loop was cancelled.
	if !s.activeLocked(h) {
		s.opts.Metrics.IncrPollTick("stale")
		return true
	}

	if err != nil {
		if ctx.Err() != nil {
			// The timeout fired while the poll was in flight.
			return false
		}
		s.opts.Metrics.IncrPollTick("error")
		s.logger.Warn("checkout: status poll failed, retrying on next tick",
			zap.String("charge_id", h.chargeID),
			zap.Error(err),
		)
		return false
	}

	switch outcome.Status {
	case domain.ChargeConfirmed:
		s.opts.Metrics.IncrPollTick("confirmed")
		s.opts.Metrics.IncrPollOutcome("confirmed")
		s.recordStatusLocked(outcome)
		s.confirmPixLocked(outcome)
		return true

	case domain.ChargeFailed:
		s.opts.Metrics.IncrPollTick("failed")
		s.opts.Metrics.IncrPollOutcome("failed")
		s.recordStatusLocked(outcome)
		s.stopPollingLocked()
		s.charge = nil
		s.notice = msgPixNotConfirmed
		if outcome.Message != "" {
			s.notice = outcome.Message
		}
		s.transitionLocked(StepPayment, PhaseAwaitingMethod)
		s.logger.Info("checkout: pix charge failed", zap.String("charge_id", h.chargeID))
		return true

	default:
		s.opts.Metrics.IncrPollTick("pending")
		return false
	}
}

func (s *Session) pollTimedOut(h *pollHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.activeLocked(h) {
		return
	}
	s.opts.Metrics.IncrPollOutcome("timeout")
	s.stopPollingLocked()
	s.charge = nil
	s.notice = msgPixExpired
	s.transitionLocked(StepPayment, PhaseAwaitingMethod)
	s.logger.Info("checkout: pix confirmation timed out",
		zap.String("charge_id", h.chargeID),
		zap.Duration("timeout", s.opts.Timings.PollTimeout),
	)
}

// recordStatusLocked audits a terminal poll result against the stored charge.
func (s *Session) recordStatusLocked(latest *domain.ChargeOutcome) {
	if s.charge == nil {
		return
	}
	updated := *s.charge
	updated.Status = latest.Status
	if latest.GatewayChargeID != "" {
		updated.GatewayChargeID = latest.GatewayChargeID
	}
	s.recordLocked(&updated)
}
