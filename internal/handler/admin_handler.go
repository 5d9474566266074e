package handler

import (
	"net/http"

	"github.com/boddenberg/paysimples-checkout-go/internal/domain"
	"github.com/boddenberg/paysimples-checkout-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Admin
// ============================================================

func adminTokenHandler(auth *service.AdminAuth, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/token")
		defer span.End()

		var req domain.AdminLoginRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		tok, err := auth.IssueToken(ctx, req.Password)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		writeJSON(w, http.StatusOK, tok)
	}
}

func pushStatusHandler(svc *service.CheckoutService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/admin/charges/{gatewayChargeId}/status")
		defer span.End()

		chargeID := chi.URLParam(r, "gatewayChargeId")
		span.SetAttributes(attribute.String("charge.gateway_id", chargeID))

		var req domain.StatusUpdateRequest
		if !decodeJSON(w, r, &req) {
			return
		}

		if err := svc.PushStatusUpdate(ctx, chargeID, req.Status); err != nil {
			handleServiceError(w, err, logger)
			return
		}

		logger.Info("admin: charge status pushed",
			zap.String("gateway_charge_id", chargeID),
			zap.String("status", req.Status),
			zap.String("token_id", AdminTokenIDFromContext(ctx)),
		)
		writeJSON(w, http.StatusOK, domain.SuccessResponse{
			Message: "Status atualizado",
			ID:      chargeID,
		})
	}
}
