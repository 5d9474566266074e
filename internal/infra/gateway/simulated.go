package gateway

import (
	"context"
	"errors"
	"strings"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/port"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SamplePixPayload is the copy-paste code fabricated in simulation mode.
const SamplePixPayload = "00020126580014br.gov.bcb.pix0136123e4567-e12b-12d1-a456-4266554400005204000053039865802BR5913PaySimples6009SAO PAULO62070503***6304"

// samplePixQR is a 1x1 transparent PNG.
const samplePixQR = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// Simulated decorates a gateway and replaces transport failures with
// fabricated successful responses. Business answers from the proxy pass
// through untouched. Development and demo environments only.
type Simulated struct {
	next   port.Gateway
	logger *zap.Logger
}

// NewSimulated wraps next with the development fallback.
func NewSimulated(next port.Gateway, logger *zap.Logger) *Simulated {
	return &Simulated{next: next, logger: logger}
}

var _ port.Gateway = (*Simulated)(nil)

func transportFailure(err error) bool {
	var ext *domain.ErrExternalService
	var open *domain.ErrCircuitOpen
	return errors.As(err, &ext) || errors.As(err, &open)
}

func (s *Simulated) warn(op string, err error) {
	s.logger.Warn("gateway: simulated response",
		zap.String("operation", op),
		zap.Error(err),
	)
}

func simulatedID(prefix string) string {
	return prefix + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (s *Simulated) FetchSessionConfig(ctx context.Context, slug string) (*domain.SessionConfig, error) {
	// An unresolvable link stays unresolvable: there is no plausible
	// amount to fabricate.
	return s.next.FetchSessionConfig(ctx, slug)
}

func (s *Simulated) RegisterCustomer(ctx context.Context, rec domain.CustomerRecord, slug string) (*domain.Registration, error) {
	reg, err := s.next.RegisterCustomer(ctx, rec, slug)
	if err == nil || !transportFailure(err) {
		return reg, err
	}
	s.warn("register_customer", err)
	return &domain.Registration{
		LocalID:  uuid.NewString(),
		RemoteID: simulatedID("cus"),
		Message:  "Cliente cadastrado (simulação)",
	}, nil
}

func (s *Simulated) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeOutcome, error) {
	outcome, err := s.next.CreateCharge(ctx, req)
	if err == nil || !transportFailure(err) {
		return outcome, err
	}
	s.warn("create_charge", err)

	if req.Method() == domain.MethodCard {
		return &domain.ChargeOutcome{
			Status:          domain.ChargeConfirmed,
			Method:          domain.MethodCard,
			ChargeID:        uuid.NewString(),
			GatewayChargeID: simulatedID("pay"),
			Message:         "Pagamento aprovado (simulação)",
		}, nil
	}
	return &domain.ChargeOutcome{
		Status:          domain.ChargePending,
		Method:          domain.MethodPix,
		ChargeID:        uuid.NewString(),
		GatewayChargeID: simulatedID("pay"),
		PixPayload:      SamplePixPayload,
		PixQRImage:      samplePixQR,
		Message:         "PIX gerado (simulação)",
	}, nil
}

func (s *Simulated) PollChargeStatus(ctx context.Context, chargeID string) (*domain.ChargeOutcome, error) {
	outcome, err := s.next.PollChargeStatus(ctx, chargeID)
	if err == nil || !transportFailure(err) {
		return outcome, err
	}
	s.warn("poll_status", err)
	return &domain.ChargeOutcome{
		Status:   domain.ChargeConfirmed,
		Method:   domain.MethodPix,
		ChargeID: chargeID,
		Message:  "Pagamento confirmado (simulação)",
	}, nil
}

func (s *Simulated) RecordCharge(ctx context.Context, rec domain.ChargeRecord) error {
	err := s.next.RecordCharge(ctx, rec)
	if err == nil || !transportFailure(err) {
		return err
	}
	s.warn("record_charge", err)
	return nil
}

func (s *Simulated) PushStatusUpdate(ctx context.Context, gatewayChargeID string, status domain.ChargeStatus) error {
	err := s.next.PushStatusUpdate(ctx, gatewayChargeID, status)
	if err == nil || !transportFailure(err) {
		return err
	}
	s.warn("push_status", err)
	return nil
}
