package handler

import (
	"errors"
	"net/http"

	"github.com/boddenberg/paysimples-checkout-go/internal/checkout"
	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/formatter"
	"github.com/boddenberg/paysimples-checkout-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Checkout sessions
// ============================================================

func startSessionHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/{slug}/sessions")
		defer span.End()

		slug := chi.URLParam(r, "slug")
		span.SetAttributes(attribute.String("checkout.slug", slug))

		snap, err := svc.StartSession(ctx, slug)
		if err != nil {
			var invalidLink *domain.ErrInvalidLink
			if errors.As(err, &invalidLink) {
				writeJSON(w, http.StatusNotFound, errorResponse{
					Error:   invalidLink.Error(),
					Code:    "invalid_link",
					Session: &snap,
				})
				return
			}
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusCreated, snap)
	}
}

func getSessionHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "GET /v1/checkout/sessions/{sessionId}")
		defer span.End()

		sess, err := lookupSession(svc, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func endSessionHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "DELETE /v1/checkout/sessions/{sessionId}")
		defer span.End()

		if err := svc.EndSession(chi.URLParam(r, "sessionId")); err != nil {
			handleServiceError(w, err, logger)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func registerHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/registration")
		defer span.End()

		sess, err := lookupSession(svc, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var form checkout.RegistrationForm
		if !decodeJSON(w, r, &form) {
			return
		}

		if err := sess.Register(ctx, form); err != nil {
			handleSessionError(w, err, sess, logger)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func generatePixHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/pix")
		defer span.End()

		sess, err := lookupSession(svc, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		if err := sess.GeneratePix(ctx); err != nil {
			handleSessionError(w, err, sess, logger)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func submitCardHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/card")
		defer span.End()

		sess, err := lookupSession(svc, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		var form checkout.CardForm
		if !decodeJSON(w, r, &form) {
			return
		}

		if err := sess.SubmitCard(ctx, form); err != nil {
			handleSessionError(w, err, sess, logger)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func backHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/back")
		defer span.End()

		sess, err := lookupSession(svc, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := sess.Back(); err != nil {
			handleSessionError(w, err, sess, logger)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func resetHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, span := tracer.Start(r.Context(), "POST /v1/checkout/sessions/{sessionId}/reset")
		defer span.End()

		sess, err := lookupSession(svc, r)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		if err := sess.Reset(); err != nil {
			handleSessionError(w, err, sess, logger)
			return
		}
		writeJSON(w, http.StatusOK, sess.Snapshot())
	}
}

func lookupSession(svc *service.CheckoutService, r *http.Request) (*checkout.Session, error) {
	return svc.Session(chi.URLParam(r, "sessionId"))
}

// ============================================================
// Input masks
// ============================================================

type formatResponse struct {
	Kind       string `json:"kind"`
	Masked     string `json:"masked"`
	Valid      *bool  `json:"valid,omitempty"`
	PersonType string `json:"personType,omitempty"`
}

func formatHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		kind := chi.URLParam(r, "kind")
		value := r.URL.Query().Get("value")

		masked, ok := formatter.Mask(kind, value)
		if !ok {
			writeError(w, http.StatusNotFound, "unknown format: "+kind)
			return
		}

		resp := formatResponse{Kind: kind, Masked: masked}
		switch kind {
		case "document":
			resp.Valid = boolPtr(formatter.ValidateDocument(value))
			resp.PersonType = string(formatter.DetectPersonType(value))
		case "cpf":
			resp.Valid = boolPtr(formatter.ValidateCPF(value))
		case "cnpj":
			resp.Valid = boolPtr(formatter.ValidateCNPJ(value))
		case "phone":
			resp.Valid = boolPtr(formatter.ValidatePhone(value))
		case "postal-code":
			resp.Valid = boolPtr(formatter.ValidatePostalCode(value))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func boolPtr(b bool) *bool { return &b }
