package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"

	"go.uber.org/zap"
)

// CreateCharge creates a PIX or card charge.
//
// PIX: pending unless the gateway already reports the charge as settled.
// A pending PIX outcome always carries a charge id; the proxy omitting it is
// treated as a protocol failure.
// Card: the synchronous authorization maps settled → confirmed, anything
// else → failed.
func (c *Client) CreateCharge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeOutcome, error) {
	in := chargeRequest{
		CustomerID:      req.CustomerID,
		AsaasCustomerID: req.GatewayCustomerID,
		Valor:           amountNumber(req.Amount),
		Descricao:       req.Description,
	}
	switch req.Method() {
	case domain.MethodPix:
		in.Metodo = wireMethodPix
	case domain.MethodCard:
		card, _ := req.Card()
		in.Metodo = wireMethodCard
		in.Cartao = &cardPayload{
			Numero:   card.Number,
			Nome:     card.HolderName,
			Validade: card.Expiry,
			CVV:      card.SecurityCode,
		}
	default:
		return nil, &domain.ErrValidation{Field: "method", Code: "invalid_method", Message: "método de pagamento inválido"}
	}

	var resp chargeResponse
	status, err := c.call(ctx, "create_charge", http.MethodPost, pathCharges, nil, in, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &domain.ErrExternalService{Service: "gateway/create_charge", Err: fmt.Errorf("charge endpoint not found")}
	}

	outcome := toOutcome(resp)
	outcome.Method = req.Method()

	switch req.Method() {
	case domain.MethodPix:
		switch outcome.Status {
		case domain.ChargeConfirmed, domain.ChargeFailed:
		default:
			outcome.Status = domain.ChargePending
			if outcome.ChargeID == "" {
				return nil, &domain.ErrExternalService{
					Service: "gateway/create_charge",
					Err:     fmt.Errorf("pending pix charge without charge id"),
				}
			}
		}
	case domain.MethodCard:
		if outcome.Status != domain.ChargeConfirmed {
			outcome.Status = domain.ChargeFailed
		}
		// PIX artifacts never belong to a card outcome.
		outcome.PixPayload = ""
		outcome.PixQRImage = ""
	}

	c.logger.Info("gateway: charge created",
		zap.String("method", string(outcome.Method)),
		zap.String("status", string(outcome.Status)),
		zap.String("charge_id", outcome.ChargeID),
		zap.String("gateway_charge_id", outcome.GatewayChargeID),
	)
	return outcome, nil
}

// PollChargeStatus returns the latest status only.
func (c *Client) PollChargeStatus(ctx context.Context, chargeID string) (*domain.ChargeOutcome, error) {
	var resp chargeResponse
	status, err := c.call(ctx, "poll_status", http.MethodGet, pathChargeStatus, url.Values{"chargeId": {chargeID}}, nil, &resp)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, &domain.ErrExternalService{
			Service: "gateway/poll_status",
			Err:     &domain.ErrNotFound{Resource: "charge", ID: chargeID},
		}
	}

	outcome := toOutcome(resp)
	outcome.PixPayload = ""
	outcome.PixQRImage = ""
	if outcome.ChargeID == "" {
		outcome.ChargeID = chargeID
	}
	return outcome, nil
}

// RecordCharge persists an outcome for audit.
func (c *Client) RecordCharge(ctx context.Context, rec domain.ChargeRecord) error {
	in := recordRequest{
		Slug:            rec.Slug,
		TransactionID:   rec.ChargeID,
		PaymentID:       rec.GatewayChargeID,
		CustomerID:      rec.CustomerID,
		AsaasCustomerID: rec.GatewayCustomerID,
		Valor:           amountNumber(rec.Amount),
		Metodo:          wireMethod(rec.Method),
		Status:          string(rec.Status),
		PixCode:         rec.PixPayload,
		PixQrCode:       rec.PixQRImage,
	}

	var resp ackResponse
	status, err := c.call(ctx, "record_charge", http.MethodPost, pathChargeRecord, nil, in, &resp)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound || !resp.Success {
		return &domain.ErrBusinessFailure{Operation: "record_charge", Message: resp.Message}
	}
	return nil
}

// PushStatusUpdate forwards an administrative status override.
func (c *Client) PushStatusUpdate(ctx context.Context, gatewayChargeID string, st domain.ChargeStatus) error {
	in := statusUpdateRequest{PaymentID: gatewayChargeID, Status: string(st)}

	var resp ackResponse
	status, err := c.call(ctx, "push_status", http.MethodPost, pathChargeStatus, nil, in, &resp)
	if err != nil {
		return err
	}
	if status == http.StatusNotFound {
		return &domain.ErrNotFound{Resource: "charge", ID: gatewayChargeID}
	}
	if !resp.Success {
		return &domain.ErrBusinessFailure{Operation: "push_status", Message: resp.Message}
	}
	return nil
}

func toOutcome(resp chargeResponse) *domain.ChargeOutcome {
	return &domain.ChargeOutcome{
		Status:          domain.ParseChargeStatus(resp.Status),
		ChargeID:        resp.TransactionID,
		GatewayChargeID: resp.PaymentID,
		PixPayload:      resp.PixCode,
		PixQRImage:      resp.PixQrCode,
		RedirectURL:     resp.RedirectURL,
		Message:         resp.Message,
	}
}

func wireMethod(m domain.PaymentMethod) string {
	if m == domain.MethodCard {
		return wireMethodCard
	}
	return wireMethodPix
}
