package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/gateway"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func TestSimulated_FabricatesOnTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	sim := gateway.NewSimulated(c, zap.NewNop())
	ctx := context.Background()

	reg, err := sim.RegisterCustomer(ctx, domain.CustomerRecord{}, "s")
	if err != nil || reg.LocalID == "" || reg.RemoteID == "" {
		t.Fatalf("expected fabricated registration, got %+v, %v", reg, err)
	}

	pix, err := sim.CreateCharge(ctx, domain.NewPixCharge("a", "b", decimal.NewFromInt(1)))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if pix.Status != domain.ChargePending || pix.ChargeID == "" || pix.PixPayload != gateway.SamplePixPayload {
		t.Errorf("unexpected pix outcome: %+v", pix)
	}

	poll, err := sim.PollChargeStatus(ctx, pix.ChargeID)
	if err != nil || poll.Status != domain.ChargeConfirmed {
		t.Errorf("expected fabricated confirmation, got %+v, %v", poll, err)
	}
}

func TestSimulated_PassesBusinessAnswers(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeBody(w, http.StatusBadRequest, map[string]any{"success": false, "message": "recusado"})
	})
	sim := gateway.NewSimulated(c, zap.NewNop())

	_, err := sim.RegisterCustomer(context.Background(), domain.CustomerRecord{}, "s")
	var bf *domain.ErrBusinessFailure
	if !errors.As(err, &bf) {
		t.Fatalf("expected business failure to pass through, got %v", err)
	}
}

func TestSimulated_KeepsInvalidLink(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	sim := gateway.NewSimulated(c, zap.NewNop())

	cfg, err := sim.FetchSessionConfig(context.Background(), "nope")
	if err != nil || cfg != nil {
		t.Errorf("expected absent config, got %+v, %v", cfg, err)
	}
}
