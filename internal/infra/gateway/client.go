// Package gateway is the HTTP client for the backend proxy that fronts the
// payment gateway. Every operation is a single round trip: nothing is retried
// here. Transport failures come back as *domain.ErrExternalService (or
// *domain.ErrCircuitOpen) so callers never see a raw net/http error.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/observability"
	"github.com/boddenberg/paysimples-checkout-go/internal/port"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("gateway")

const (
	pathConfig       = "/checkout/config"
	pathCustomers    = "/checkout/customers"
	pathCharges      = "/checkout/charges"
	pathChargeRecord = "/checkout/charges/record"
	pathChargeStatus = "/checkout/charges/status"

	maxResponseBytes = 1 << 20
)

// Client talks to the backend proxy.
type Client struct {
	httpClient *http.Client
	baseURL    string
	cb         *gobreaker.CircuitBreaker
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// NewClient creates a gateway proxy client.
func NewClient(httpClient *http.Client, baseURL string, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
		cb:         cb,
		metrics:    metrics,
		logger:     logger,
	}
}

var _ port.Gateway = (*Client)(nil)

// answered reports whether a status code carries a meaningful JSON answer
// from the proxy. Everything else is a transport failure.
func answered(status int) bool {
	switch {
	case status >= 200 && status < 300:
		return true
	case status == http.StatusBadRequest, status == http.StatusPaymentRequired,
		status == http.StatusConflict, status == http.StatusUnprocessableEntity:
		return true
	}
	return false
}

// call executes one request through the circuit breaker and decodes the
// JSON answer into out. A 404 is returned as a status with no error and no
// decoding, so callers decide what "absent" means for their operation.
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, in, out any) (int, error) {
	ctx, span := tracer.Start(ctx, "Gateway."+op)
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("gateway.path", path),
	)

	start := time.Now()
	defer func() {
		c.metrics.RecordOperationDuration("gateway "+op, time.Since(start))
	}()

	result, err := c.cb.Execute(func() (any, error) {
		return c.roundTrip(ctx, method, path, query, in, out)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("gateway: circuit open", zap.String("operation", op))
			return 0, &domain.ErrCircuitOpen{Service: "gateway"}
		}

		c.metrics.IncrGatewayError(op)
		c.logger.Error("gateway: request failed",
			zap.String("operation", op),
			zap.String("method", method),
			zap.String("path", path),
			zap.Error(err),
		)
		return 0, &domain.ErrExternalService{Service: "gateway/" + op, Err: err}
	}

	status := result.(int)
	span.SetAttributes(attribute.Int("http.status_code", status))
	return status, nil
}

func (c *Client) roundTrip(ctx context.Context, method, path string, query url.Values, in, out any) (int, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return resp.StatusCode, nil
	}
	if !answered(resp.StatusCode) {
		return resp.StatusCode, fmt.Errorf("gateway proxy returned status %d", resp.StatusCode)
	}

	c.logger.Debug("gateway: request OK",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
	)

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode response: %w", err)
	}
	return resp.StatusCode, nil
}

// ============================================================
// Session config
// ============================================================

// FetchSessionConfig resolves a payment link. (nil, nil) means the slug is
// unknown, expired or not payable.
func (c *Client) FetchSessionConfig(ctx context.Context, slug string) (*domain.SessionConfig, error) {
	var resp configResponse
	status, err := c.call(ctx, "fetch_config", http.MethodGet, pathConfig, url.Values{"slug": {slug}}, nil, &resp)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound || !resp.Success || !resp.Valor.IsPositive() {
		c.logger.Info("gateway: payment link not resolvable",
			zap.String("slug", slug),
			zap.Int("status", status),
			zap.String("message", resp.Message),
		)
		return nil, nil
	}

	return &domain.SessionConfig{
		Slug:               slug,
		Amount:             resp.Valor,
		RecipientName:      resp.Destinatario,
		ProductDescription: resp.Descricao,
	}, nil
}

// ============================================================
// Customers
// ============================================================

// RegisterCustomer creates the customer locally and at the gateway.
// A rejection comes back as *domain.ErrBusinessFailure.
func (c *Client) RegisterCustomer(ctx context.Context, rec domain.CustomerRecord, slug string) (*domain.Registration, error) {
	in := customerRequest{
		Slug:       slug,
		Nome:       rec.LegalName,
		CpfCnpj:    rec.NationalID,
		TipoPessoa: string(rec.PersonType),
		Email:      rec.Email,
		Whatsapp:   rec.Phone,
		Companhia:  rec.OrganizationName,
		Rua:        rec.Address.Street,
		Numero:     rec.Address.Number,
		Bairro:     rec.Address.District,
		Cidade:     rec.Address.City,
		UF:         rec.Address.StateCode,
		CEP:        rec.Address.PostalCode,
		Descricao:  rec.Description,
	}

	var resp customerResponse
	status, err := c.call(ctx, "register_customer", http.MethodPost, pathCustomers, nil, in, &resp)
	if err != nil {
		return nil, err
	}

	if status == http.StatusNotFound {
		return nil, &domain.ErrExternalService{
			Service: "gateway/register_customer",
			Err:     fmt.Errorf("registration endpoint not found"),
		}
	}
	if !resp.Success || resp.CustomerID == "" {
		return nil, &domain.ErrBusinessFailure{Operation: "register_customer", Message: resp.Message}
	}

	return &domain.Registration{
		LocalID:  resp.CustomerID,
		RemoteID: resp.AsaasCustomerID,
		Message:  resp.Message,
	}, nil
}
