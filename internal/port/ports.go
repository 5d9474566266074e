// Package port defines the interfaces (ports) for external dependencies.
// Following hexagonal architecture, these ports decouple the checkout state
// machine and service layer from the concrete gateway adapter.
package port

import (
	"context"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
)

// ConfigFetcher resolves a payment link slug. A nil config with a nil error
// means the link is invalid or expired.
type ConfigFetcher interface {
	FetchSessionConfig(ctx context.Context, slug string) (*domain.SessionConfig, error)
}

// CustomerRegistrar registers a customer locally and at the gateway.
type CustomerRegistrar interface {
	RegisterCustomer(ctx context.Context, rec domain.CustomerRecord, slug string) (*domain.Registration, error)
}

// ChargeCreator creates PIX and card charges.
type ChargeCreator interface {
	CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeOutcome, error)
}

// StatusPoller returns the latest status of a charge. Poll responses never
// carry the PIX payload or QR image.
type StatusPoller interface {
	PollChargeStatus(ctx context.Context, chargeID string) (*domain.ChargeOutcome, error)
}

// ChargeRecorder persists a charge outcome for audit.
type ChargeRecorder interface {
	RecordCharge(ctx context.Context, rec domain.ChargeRecord) error
}

// StatusPusher applies an administrative status override at the gateway.
type StatusPusher interface {
	PushStatusUpdate(ctx context.Context, gatewayChargeID string, status domain.ChargeStatus) error
}

// Gateway is the full backend proxy surface.
type Gateway interface {
	ConfigFetcher
	CustomerRegistrar
	ChargeCreator
	StatusPoller
	ChargeRecorder
	StatusPusher
}
