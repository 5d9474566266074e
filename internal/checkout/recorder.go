package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/observability"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/resilience"
	"github.com/boddenberg/paysimples-checkout-go/internal/port"

	"go.uber.org/zap"
)

const recordAttemptTimeout = 10 * time.Second

// Recorder persists charge outcomes for audit in the background. Recording
// is best-effort: failures are logged and counted, never surfaced to the
// checkout flow.
type Recorder struct {
	store    port.ChargeRecorder
	cfg      resilience.Config
	bulkhead *resilience.Bulkhead
	metrics  *observability.Metrics
	logger   *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

// NewRecorder creates an audit recorder. cfg.MaxConcurrency bounds the number
// of concurrent RecordCharge calls.
func NewRecorder(store port.ChargeRecorder, cfg resilience.Config, metrics *observability.Metrics, logger *zap.Logger) *Recorder {
	ctx, cancel := context.WithCancel(context.Background())
	return &Recorder{
		store:    store,
		cfg:      cfg,
		bulkhead: resilience.NewBulkhead(cfg.MaxConcurrency),
		metrics:  metrics,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Record schedules rec for persistence and returns immediately.
func (r *Recorder) Record(rec domain.ChargeRecord) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		r.metrics.IncrAuditRecord("dropped")
		r.logger.Warn("audit: recorder closed, record dropped", zap.String("charge_id", rec.ChargeID))
		return
	}
	r.wg.Add(1)
	r.mu.Unlock()

	go func() {
		defer r.wg.Done()
		r.persist(rec)
	}()
}

func (r *Recorder) persist(rec domain.ChargeRecord) {
	if err := r.bulkhead.Acquire(r.ctx); err != nil {
		r.metrics.IncrAuditRecord("dropped")
		return
	}
	defer r.bulkhead.Release()

	err := resilience.RetryWithBackoff(r.ctx, r.cfg, func() error {
		ctx, cancel := context.WithTimeout(r.ctx, recordAttemptTimeout)
		defer cancel()

		err := r.store.RecordCharge(ctx, rec)
		var bf *domain.ErrBusinessFailure
		if errors.As(err, &bf) {
			return resilience.Permanent(err)
		}
		return err
	})
	if err != nil {
		r.metrics.IncrAuditRecord("failed")
		r.logger.Error("audit: failed to record charge",
			zap.String("charge_id", rec.ChargeID),
			zap.String("method", string(rec.Method)),
			zap.String("status", string(rec.Status)),
			zap.Error(err),
		)
		return
	}

	r.metrics.IncrAuditRecord("ok")
	r.logger.Debug("audit: charge recorded",
		zap.String("charge_id", rec.ChargeID),
		zap.String("status", string(rec.Status)),
	)
}

// Close stops accepting records and waits for in-flight ones. When ctx
// expires first, pending work is cancelled and ctx.Err() is returned.
func (r *Recorder) Close(ctx context.Context) error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.cancel()
		return nil
	case <-ctx.Done():
		r.cancel()
		<-done
		return ctx.Err()
	}
}
