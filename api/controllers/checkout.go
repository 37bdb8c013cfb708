package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/api/responses"
	"github.com/bazario/bazario-backend/api/validators"
	"github.com/bazario/bazario-backend/internal/checkout"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
)

type checkoutRequest struct {
	AddressID     string  `json:"address_id" validate:"required,uuid"`
	PaymentMethod string  `json:"payment_method" validate:"required,max=64"`
	CouponCode    *string `json:"coupon_code" validate:"omitempty,max=64"`
}

// Checkout turns the caller's cart into an order tree. All-or-nothing: a
// failure on any line leaves the cart and stock untouched.
func Checkout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req checkoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		addressID, err := uuid.Parse(req.AddressID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid address id"))
			return
		}

		order, err := svc.PlaceOrder(r.Context(), checkout.PlaceOrderInput{
			BuyerID:       buyer,
			AddressID:     addressID,
			PaymentMethod: req.PaymentMethod,
			CouponCode:    req.CouponCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}
