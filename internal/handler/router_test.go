package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/paysimples-checkout-go/internal/checkout"
	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/handler"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/observability"
	"github.com/boddenberg/paysimples-checkout-go/internal/infra/resilience"
	"github.com/boddenberg/paysimples-checkout-go/internal/service"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// --- Fake gateway ---

type fakeGateway struct {
	charges   atomic.Int32
	confirmed atomic.Bool

	mu     sync.Mutex
	pushed map[string]domain.ChargeStatus
}

func (f *fakeGateway) FetchSessionConfig(_ context.Context, slug string) (*domain.SessionConfig, error) {
	if slug != "curso-go" {
		return nil, nil
	}
	return &domain.SessionConfig{Slug: slug, Amount: decimal.RequireFromString("149.90"), RecipientName: "Escola Go"}, nil
}

func (f *fakeGateway) RegisterCustomer(context.Context, domain.CustomerRecord, string) (*domain.Registration, error) {
	return &domain.Registration{LocalID: "local-1", RemoteID: "cus_1"}, nil
}

func (f *fakeGateway) CreateCharge(_ context.Context, req domain.ChargeRequest) (*domain.ChargeOutcome, error) {
	f.charges.Add(1)
	if req.Method() == domain.MethodCard {
		return &domain.ChargeOutcome{Status: domain.ChargeConfirmed, Method: domain.MethodCard, ChargeID: "tx-card"}, nil
	}
	return &domain.ChargeOutcome{
		Status:     domain.ChargePending,
		Method:     domain.MethodPix,
		ChargeID:   "tx-pix",
		PixPayload: "00020101021226",
		PixQRImage: "iVBORw0KGgo=",
	}, nil
}

func (f *fakeGateway) PollChargeStatus(_ context.Context, chargeID string) (*domain.ChargeOutcome, error) {
	if f.confirmed.Load() {
		return &domain.ChargeOutcome{Status: domain.ChargeConfirmed, ChargeID: chargeID, RedirectURL: "https://example/done"}, nil
	}
	return &domain.ChargeOutcome{Status: domain.ChargePending, ChargeID: chargeID}, nil
}

func (f *fakeGateway) RecordCharge(context.Context, domain.ChargeRecord) error { return nil }

func (f *fakeGateway) PushStatusUpdate(_ context.Context, id string, status domain.ChargeStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pushed == nil {
		f.pushed = map[string]domain.ChargeStatus{}
	}
	f.pushed[id] = status
	return nil
}

type errorBody struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Fields  []domain.ErrValidation `json:"fields"`
	Session *checkout.Snapshot     `json:"session"`
}

func newTestRouter(t *testing.T, gw *fakeGateway) http.Handler {
	t.Helper()
	metrics := observability.NewMetrics()
	logger := zap.NewNop()

	svc := service.NewCheckoutService(gw, nil, service.Settings{
		Timings: checkout.Timings{
			PollInterval: 10 * time.Millisecond,
			PollTimeout:  5 * time.Second,
			DisplayDelay: 20 * time.Millisecond,
		},
		DefaultRedirectURL: "https://default/redirect",
		SessionTTL:         time.Minute,
	}, metrics, logger)
	t.Cleanup(svc.Close)

	hash, err := bcrypt.GenerateFromPassword([]byte("admin-pass"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	auth := service.NewAdminAuth(string(hash), "jwt-secret", time.Hour, logger)
	breaker := resilience.NewCircuitBreaker("gateway", logger)

	return handler.NewRouter(svc, auth, breaker, metrics, nil, logger)
}

func do(t *testing.T, router http.Handler, method, path string, body any, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v (body=%q)", err, rec.Body.String())
	}
	return v
}

var registrationBody = checkout.RegistrationForm{
	LegalName:  "Maria Silva",
	NationalID: "529.982.247-25",
	Email:      "maria@example.com",
	Phone:      "(11) 98765-4321",
	Street:     "Rua das Flores",
	Number:     "100",
	District:   "Centro",
	City:       "São Paulo",
	StateCode:  "sp",
	PostalCode: "01001-000",
}

func startRegistered(t *testing.T, router http.Handler) string {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/v1/checkout/curso-go/sessions", nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session: expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	snap := decode[checkout.Snapshot](t, rec)

	rec = do(t, router, http.MethodPost, "/v1/checkout/sessions/"+snap.SessionID+"/registration", registrationBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("register: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	return snap.SessionID
}

// ============================================================
// Operational
// ============================================================

func TestHealthz(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	rec := do(t, router, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	health := decode[domain.HealthStatus](t, rec)
	if health.Status != "healthy" || len(health.Services) != 2 {
		t.Errorf("unexpected health: %+v", health)
	}
}

func TestReadyz(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), nil, zap.NewNop())

	rec := do(t, router, http.MethodGet, "/readyz", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

func TestMetrics(t *testing.T) {
	router := handler.NewRouter(nil, nil, nil, observability.NewMetrics(), nil, zap.NewNop())

	rec := do(t, router, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodGet, "/v1/metrics/checkout", nil)
	if rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
}

// ============================================================
// Checkout flows
// ============================================================

func TestCheckout_PixHappyPath(t *testing.T) {
	gw := &fakeGateway{}
	router := newTestRouter(t, gw)
	id := startRegistered(t, router)

	rec := do(t, router, http.MethodPost, "/v1/checkout/sessions/"+id+"/pix", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("pix: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	snap := decode[checkout.Snapshot](t, rec)
	if snap.Phase != checkout.PhasePixAwaitingConfirmation || snap.Charge == nil {
		t.Fatalf("expected awaiting confirmation with charge, got %+v", snap)
	}
	if snap.Charge.PixPayload == "" || snap.Charge.PixQRDataURI != "data:image/png;base64,iVBORw0KGgo=" {
		t.Errorf("expected pix payload and QR data URI, got %+v", snap.Charge)
	}

	gw.confirmed.Store(true)

	deadline := time.Now().Add(2 * time.Second)
	for {
		rec = do(t, router, http.MethodGet, "/v1/checkout/sessions/"+id, nil)
		snap = decode[checkout.Snapshot](t, rec)
		if snap.Step == checkout.StepConfirmation {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected confirmation, last snapshot %+v", snap)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !snap.PixConfirmed || snap.RedirectURL != "https://example/done" {
		t.Errorf("unexpected confirmation snapshot: %+v", snap)
	}
}

func TestCheckout_CardInvalidNumberNeverReachesGateway(t *testing.T) {
	gw := &fakeGateway{}
	router := newTestRouter(t, gw)
	id := startRegistered(t, router)

	rec := do(t, router, http.MethodPost, "/v1/checkout/sessions/"+id+"/card", checkout.CardForm{
		Number:       "4111 1111 1111",
		HolderName:   "MARIA SILVA",
		Expiry:       "12/30",
		SecurityCode: "123",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[errorBody](t, rec)
	if body.Code != "invalid_card_number" || len(body.Fields) != 1 || body.Fields[0].Field != "number" {
		t.Errorf("unexpected error body: %+v", body)
	}
	if body.Session == nil || body.Session.Phase != checkout.PhaseAwaitingMethod {
		t.Errorf("expected session to stay awaiting method, got %+v", body.Session)
	}
	if gw.charges.Load() != 0 {
		t.Error("gateway must not be called for an invalid card")
	}
}

func TestCheckout_CardApproved(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})
	id := startRegistered(t, router)

	rec := do(t, router, http.MethodPost, "/v1/checkout/sessions/"+id+"/card", checkout.CardForm{
		Number:       "4111 1111 1111 1111",
		HolderName:   "MARIA SILVA",
		Expiry:       "12/30",
		SecurityCode: "123",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	snap := decode[checkout.Snapshot](t, rec)
	if snap.Phase != checkout.PhaseCardApproved {
		t.Errorf("expected card_approved, got %+v", snap)
	}
}

func TestCheckout_RegistrationValidation(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	rec := do(t, router, http.MethodPost, "/v1/checkout/curso-go/sessions", nil)
	snap := decode[checkout.Snapshot](t, rec)

	form := registrationBody
	form.NationalID = "111.111.111-11"
	form.Email = "nope"
	rec = do(t, router, http.MethodPost, "/v1/checkout/sessions/"+snap.SessionID+"/registration", form)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	body := decode[errorBody](t, rec)
	if len(body.Fields) != 2 {
		t.Errorf("expected 2 failing fields, got %+v", body.Fields)
	}
	if body.Session == nil || body.Session.Step != checkout.StepRegistration {
		t.Errorf("expected registration step, got %+v", body.Session)
	}
}

func TestCheckout_InvalidLink(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	rec := do(t, router, http.MethodPost, "/v1/checkout/does-not-exist/sessions", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	body := decode[errorBody](t, rec)
	if body.Code != "invalid_link" || body.Session == nil || body.Session.Step != checkout.StepInvalidLink {
		t.Errorf("unexpected body: %+v", body)
	}
	if body.Session.Config != nil || body.Session.Charge != nil {
		t.Error("invalid link must not expose config or charge")
	}
}

func TestCheckout_InvalidTransition(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	rec := do(t, router, http.MethodPost, "/v1/checkout/curso-go/sessions", nil)
	snap := decode[checkout.Snapshot](t, rec)

	rec = do(t, router, http.MethodPost, "/v1/checkout/sessions/"+snap.SessionID+"/pix", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for pix before registration, got %d", rec.Code)
	}
}

func TestCheckout_EndSession(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	rec := do(t, router, http.MethodPost, "/v1/checkout/curso-go/sessions", nil)
	snap := decode[checkout.Snapshot](t, rec)

	rec = do(t, router, http.MethodDelete, "/v1/checkout/sessions/"+snap.SessionID, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	rec = do(t, router, http.MethodGet, "/v1/checkout/sessions/"+snap.SessionID, nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after end, got %d", rec.Code)
	}
}

func TestFormat(t *testing.T) {
	router := newTestRouter(t, &fakeGateway{})

	tests := []struct {
		path   string
		code   int
		masked string
	}{
		{"/v1/checkout/format/document?value=52998224725", http.StatusOK, "529.982.247-25"},
		{"/v1/checkout/format/postal-code?value=01001000", http.StatusOK, "01001-000"},
		{"/v1/checkout/format/card-number?value=4111111111111111", http.StatusOK, "4111 1111 1111 1111"},
		{"/v1/checkout/format/unknown?value=1", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, tt.path, nil)
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d", tt.code, rec.Code)
			}
			if tt.code != http.StatusOK {
				return
			}
			body := decode[struct {
				Masked string `json:"masked"`
			}](t, rec)
			if body.Masked != tt.masked {
				t.Errorf("expected %q, got %q", tt.masked, body.Masked)
			}
		})
	}
}

// ============================================================
// Admin
// ============================================================

func TestAdmin_PushStatusRequiresToken(t *testing.T) {
	gw := &fakeGateway{}
	router := newTestRouter(t, gw)

	rec := do(t, router, http.MethodPost, "/v1/admin/charges/pay_1/status", domain.StatusUpdateRequest{Status: "confirmed"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/v1/admin/charges/pay_1/status", domain.StatusUpdateRequest{Status: "confirmed"},
		"Authorization", "Bearer not-a-token")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 with invalid token, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/v1/admin/token", domain.AdminLoginRequest{Password: "wrong"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}

	rec = do(t, router, http.MethodPost, "/v1/admin/token", domain.AdminLoginRequest{Password: "admin-pass"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 for token, got %d: %s", rec.Code, rec.Body.String())
	}
	tok := decode[domain.AdminToken](t, rec)

	rec = do(t, router, http.MethodPost, "/v1/admin/charges/pay_1/status", domain.StatusUpdateRequest{Status: "confirmed"},
		"Authorization", "Bearer "+tok.AccessToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with token, got %d: %s", rec.Code, rec.Body.String())
	}

	gw.mu.Lock()
	defer gw.mu.Unlock()
	if gw.pushed["pay_1"] != domain.ChargeConfirmed {
		t.Errorf("expected confirmed to be pushed, got %v", gw.pushed)
	}
}
