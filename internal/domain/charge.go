package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ============================================================
// Charges
// ============================================================

// PaymentMethod tags a ChargeRequest.
type PaymentMethod string

const (
	MethodPix  PaymentMethod = "pix"
	MethodCard PaymentMethod = "card"
)

// ChargeStatus is the authoritative state of a charge.
type ChargeStatus string

const (
	ChargePending   ChargeStatus = "pending"
	ChargeConfirmed ChargeStatus = "confirmed"
	ChargeFailed    ChargeStatus = "failed"
	// ChargeUnknown is never produced by the gateway. It marks an outcome
	// whose request could not be confirmed to have reached the gateway.
	ChargeUnknown ChargeStatus = "unknown"
)

// ParseChargeStatus maps both the proxy vocabulary (pending/confirmed/failed)
// and the gateway's payment statuses onto ChargeStatus.
func ParseChargeStatus(raw string) ChargeStatus {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "PENDING", "AWAITING_RISK_ANALYSIS", "AUTHORIZED":
		return ChargePending
	case "CONFIRMED", "RECEIVED", "RECEIVED_IN_CASH", "PAID", "SETTLED", "APPROVED":
		return ChargeConfirmed
	case "FAILED", "OVERDUE", "REFUNDED", "REFUND_REQUESTED", "DELETED",
		"CANCELED", "CANCELLED", "DECLINED", "CHARGEBACK_REQUESTED", "REJECTED":
		return ChargeFailed
	default:
		return ChargeUnknown
	}
}

// Terminal reports whether the status ends a polling loop.
func (s ChargeStatus) Terminal() bool {
	return s == ChargeConfirmed || s == ChargeFailed
}

// CardDetails holds the raw card fields. Number and SecurityCode are digits only.
type CardDetails struct {
	Number       string `json:"number"`
	HolderName   string `json:"holderName"`
	Expiry       string `json:"expiry"` // MM/YY
	SecurityCode string `json:"securityCode"`
}

// LastFour returns the last four digits of the card number, for logs.
func (c CardDetails) LastFour() string {
	if len(c.Number) < 4 {
		return c.Number
	}
	return c.Number[len(c.Number)-4:]
}

// ChargeRequest is constructed fresh per submission attempt. The method tag
// and card payload are unexported so that only NewPixCharge and NewCardCharge
// can build one: a pix request never carries card fields and a card request
// always does.
type ChargeRequest struct {
	CustomerID        string
	GatewayCustomerID string
	Amount            decimal.Decimal
	Description       string

	method PaymentMethod
	card   *CardDetails
}

// NewPixCharge builds a PIX charge request.
func NewPixCharge(customerID, gatewayCustomerID string, amount decimal.Decimal) ChargeRequest {
	return ChargeRequest{
		CustomerID:        customerID,
		GatewayCustomerID: gatewayCustomerID,
		Amount:            amount,
		method:            MethodPix,
	}
}

// NewCardCharge builds a credit card charge request.
func NewCardCharge(customerID, gatewayCustomerID string, amount decimal.Decimal, card CardDetails) ChargeRequest {
	return ChargeRequest{
		CustomerID:        customerID,
		GatewayCustomerID: gatewayCustomerID,
		Amount:            amount,
		method:            MethodCard,
		card:              &card,
	}
}

// Method returns the payment method tag.
func (r ChargeRequest) Method() PaymentMethod { return r.method }

// Card returns the card payload; ok is false for PIX requests.
func (r ChargeRequest) Card() (card CardDetails, ok bool) {
	if r.card == nil {
		return CardDetails{}, false
	}
	return *r.card, true
}

// ChargeOutcome is returned by charge creation and by every status poll.
// PixPayload and PixQRImage are only filled by the creation response.
type ChargeOutcome struct {
	Status          ChargeStatus  `json:"status"`
	Method          PaymentMethod `json:"method,omitempty"`
	ChargeID        string        `json:"chargeId,omitempty"`
	GatewayChargeID string        `json:"gatewayChargeId,omitempty"`
	PixPayload      string        `json:"pixPayload,omitempty"`
	PixQRImage      string        `json:"pixQrImage,omitempty"` // base64 PNG
	RedirectURL     string        `json:"redirectUrl,omitempty"`
	Message         string        `json:"message,omitempty"`
}

// PixQRDataURI renders the QR image as a data URI. Images that already carry
// a data: prefix are returned unchanged.
func (o *ChargeOutcome) PixQRDataURI() string {
	if o == nil || o.PixQRImage == "" {
		return ""
	}
	if strings.HasPrefix(o.PixQRImage, "data:") {
		return o.PixQRImage
	}
	return "data:image/png;base64," + o.PixQRImage
}

// ChargeRecord is the audit entry persisted server-side after an outcome.
type ChargeRecord struct {
	Slug              string          `json:"slug"`
	CustomerID        string          `json:"customerId"`
	GatewayCustomerID string          `json:"gatewayCustomerId"`
	ChargeID          string          `json:"chargeId"`
	GatewayChargeID   string          `json:"gatewayChargeId,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	Method            PaymentMethod   `json:"method"`
	Status            ChargeStatus    `json:"status"`
	PixPayload        string          `json:"pixPayload,omitempty"`
	PixQRImage        string          `json:"pixQrImage,omitempty"`
}
