package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/api/responses"
	"github.com/bazario/bazario-backend/api/validators"
	"github.com/bazario/bazario-backend/internal/settlement"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
)

type paymentConfirmRequest struct {
	OrderID     string `json:"order_id" validate:"required,uuid"`
	GatewayTxID string `json:"gateway_tx_id" validate:"required,min=4,max=128"`
}

// PaymentConfirm is the gateway capture callback. Replays with the same
// transaction id return the already-paid order unchanged.
func PaymentConfirm(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req paymentConfirmRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := uuid.Parse(req.OrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order id"))
			return
		}
		order, err := svc.ConfirmPayment(r.Context(), orderID, req.GatewayTxID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
