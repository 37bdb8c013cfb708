package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/api/responses"
	"github.com/bazario/bazario-backend/api/validators"
	"github.com/bazario/bazario-backend/internal/disputes"
	"github.com/bazario/bazario-backend/internal/settlement"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
)

type openDisputeRequest struct {
	SubOrderID string `json:"sub_order_id" validate:"required,uuid"`
	Reason     string `json:"reason" validate:"required,min=3,max=1000"`
}

type resolveDisputeRequest struct {
	Outcome string  `json:"outcome" validate:"required,oneof=refund release"`
	Note    *string `json:"note" validate:"omitempty,max=1000"`
}

// OpenDispute lets a buyer contest an unsettled sub-order.
func OpenDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buyer, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req openDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subOrderID, err := uuid.Parse(req.SubOrderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid sub-order id"))
			return
		}
		dispute, err := svc.OpenDispute(r.Context(), disputes.OpenDisputeInput{
			SubOrderID: subOrderID,
			BuyerID:    buyer,
			Reason:     req.Reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, dispute)
	}
}

func GetDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		disputeID, err := parseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispute, err := svc.GetDispute(r.Context(), disputeID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}

// ResolveDispute applies an admin outcome: refund the buyer or release the
// hold so the scheduled sweep can settle the seller.
func ResolveDispute(svc settlement.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		admin, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		disputeID, err := parseUUIDParam(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispute, err := svc.ResolveDispute(r.Context(), settlement.ResolveDisputeInput{
			DisputeID: disputeID,
			AdminID:   admin,
			Outcome:   enums.DisputeOutcome(req.Outcome),
			Note:      req.Note,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dispute)
	}
}
