package checkout_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/checkout"
	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/observability"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/resilience"

	"go.uber.org/zap"
)

type flakyStore struct {
	mu       sync.Mutex
	failures int
	err      error
	calls    int
	stored   []domain.ChargeRecord
}

func (f *flakyStore) RecordCharge(_ context.Context, rec domain.ChargeRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls <= f.failures {
		return f.err
	}
	f.stored = append(f.stored, rec)
	return nil
}

func (f *flakyStore) snapshot() (int, int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls, len(f.stored)
}

var recorderCfg = resilience.Config{MaxRetries: 3, InitialBackoff: time.Millisecond, MaxConcurrency: 2}

func TestRecorder_RetriesTransportErrors(t *testing.T) {
	store := &flakyStore{failures: 2, err: &domain.ErrExternalService{Service: "gateway/record_charge", Err: errors.New("503")}}
	r := checkout.NewRecorder(store, recorderCfg, observability.NewMetrics(), zap.NewNop())

	r.Record(domain.ChargeRecord{ChargeID: "tx-1", Method: domain.MethodPix, Status: domain.ChargePending})
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	calls, stored := store.snapshot()
	if calls != 3 || stored != 1 {
		t.Errorf("expected 3 calls and 1 stored record, got %d and %d", calls, stored)
	}
}

func TestRecorder_BusinessFailureIsNotRetried(t *testing.T) {
	store := &flakyStore{failures: 10, err: &domain.ErrBusinessFailure{Operation: "record_charge", Message: "duplicada"}}
	r := checkout.NewRecorder(store, recorderCfg, observability.NewMetrics(), zap.NewNop())

	r.Record(domain.ChargeRecord{ChargeID: "tx-1"})
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	if calls, _ := store.snapshot(); calls != 1 {
		t.Errorf("expected a single attempt, got %d", calls)
	}
}

func TestRecorder_DropsAfterClose(t *testing.T) {
	store := &flakyStore{}
	r := checkout.NewRecorder(store, recorderCfg, observability.NewMetrics(), zap.NewNop())
	if err := r.Close(context.Background()); err != nil {
		t.Fatalf("close: %v", err)
	}

	r.Record(domain.ChargeRecord{ChargeID: "late"})
	time.Sleep(20 * time.Millisecond)
	if calls, _ := store.snapshot(); calls != 0 {
		t.Errorf("expected no calls after close, got %d", calls)
	}
}

func TestSession_RecordsChargeOutcomes(t *testing.T) {
	gw := newMockGateway()
	gw.createFn = func(domain.ChargeRequest, int) (*domain.ChargeOutcome, error) {
		return &domain.ChargeOutcome{Status: domain.ChargeConfirmed, ChargeID: "tx-card", GatewayChargeID: "pay_1"}, nil
	}
	metrics := observability.NewMetrics()
	recorder := checkout.NewRecorder(gw, recorderCfg, metrics, zap.NewNop())

	s := checkout.NewSession("sess-audit", testConfig(), gw, checkout.Options{
		Timings:  fastTimings,
		Recorder: recorder,
		Metrics:  metrics,
		Logger:   zap.NewNop(),
	})
	defer s.Close()
	registered(t, s)

	if err := s.SubmitCard(context.Background(), validCard()); err != nil {
		t.Fatalf("submit card: %v", err)
	}
	if err := recorder.Close(context.Background()); err != nil {
		t.Fatalf("close recorder: %v", err)
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if len(gw.records) != 1 {
		t.Fatalf("expected one audit record, got %d", len(gw.records))
	}
	rec := gw.records[0]
	if rec.ChargeID != "tx-card" || rec.Method != domain.MethodCard || rec.Status != domain.ChargeConfirmed ||
		rec.CustomerID != "local-1" || rec.Slug != "curso-go" || !rec.Amount.Equal(testConfig().Amount) {
		t.Errorf("unexpected audit record: %+v", rec)
	}
}
