package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/boddenberg/paysimples-checkout-go/internal/checkout"
	"github.com/boddenberg/paysimples-checkout-go/internal/domain"

	"go.uber.org/zap"
)

// ============================================================
// Shared helper functions
// ============================================================

const maxBodyBytes = 64 << 10

// User-facing messages for failures whose details must stay server-side.
const (
	msgGatewayUnavailable = "Serviço de pagamento indisponível. Tente novamente em instantes."
	msgInternal           = "Erro interno. Tente novamente."
	msgFixForm            = "Por favor, corrija os erros no formulário"
)

type errorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Fields  []domain.ErrValidation `json:"fields,omitempty"`
	Session *checkout.Snapshot     `json:"session,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// handleServiceError maps domain errors to HTTP responses.
func handleServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	handleSessionError(w, err, nil, logger)
}

// handleSessionError maps domain errors to HTTP responses and attaches the
// session snapshot when there is one, so the frontend can re-render.
func handleSessionError(w http.ResponseWriter, err error, sess *checkout.Session, logger *zap.Logger) {
	var validationSet *domain.ErrValidationSet
	var validation *domain.ErrValidation
	var notFound *domain.ErrNotFound
	var invalidLink *domain.ErrInvalidLink
	var invalidTransition *domain.ErrInvalidTransition
	var business *domain.ErrBusinessFailure
	var external *domain.ErrExternalService
	var circuitOpen *domain.ErrCircuitOpen
	var unauthorized *domain.ErrUnauthorized

	var status int
	resp := errorResponse{Error: err.Error()}

	switch {
	case errors.As(err, &validationSet):
		logger.Debug("validation error", zap.String("error", err.Error()))
		status = http.StatusUnprocessableEntity
		resp.Error = msgFixForm
		resp.Code = "validation_failed"
		resp.Fields = validationSet.Fields
	case errors.As(err, &validation):
		logger.Debug("validation error", zap.String("error", err.Error()))
		status = http.StatusBadRequest
		resp.Error = validation.Message
		resp.Code = validation.Code
		resp.Fields = []domain.ErrValidation{*validation}
	case errors.As(err, &notFound):
		logger.Debug("not found", zap.String("error", err.Error()))
		status = http.StatusNotFound
		resp.Code = "not_found"
	case errors.As(err, &invalidLink):
		logger.Debug("invalid payment link", zap.String("slug", invalidLink.Slug))
		status = http.StatusNotFound
		resp.Code = "invalid_link"
	case errors.As(err, &invalidTransition):
		logger.Debug("invalid transition", zap.String("error", err.Error()))
		status = http.StatusConflict
		resp.Code = "invalid_transition"
	case errors.Is(err, domain.ErrSessionChanged):
		status = http.StatusConflict
		resp.Code = "session_changed"
	case errors.Is(err, domain.ErrSessionClosed):
		status = http.StatusGone
		resp.Code = "session_closed"
	case errors.As(err, &business):
		logger.Info("business failure",
			zap.String("operation", business.Operation),
			zap.String("message", business.Message),
		)
		status = http.StatusUnprocessableEntity
		resp.Code = "rejected"
	case errors.As(err, &circuitOpen):
		logger.Error("circuit breaker open", zap.Error(err))
		status = http.StatusServiceUnavailable
		resp.Error = msgGatewayUnavailable
		resp.Code = "gateway_unavailable"
	case errors.As(err, &external):
		logger.Error("gateway failure", zap.String("service", external.Service), zap.Error(err))
		status = http.StatusBadGateway
		resp.Error = msgGatewayUnavailable
		resp.Code = "gateway_error"
	case errors.As(err, &unauthorized):
		logger.Warn("unauthorized", zap.String("error", err.Error()))
		status = http.StatusUnauthorized
		resp.Code = "unauthorized"
	default:
		logger.Error("unhandled error", zap.Error(err))
		status = http.StatusInternalServerError
		resp.Error = msgInternal
	}

	if sess != nil {
		snap := sess.Snapshot()
		resp.Session = &snap
	}
	writeJSON(w, status, resp)
}
