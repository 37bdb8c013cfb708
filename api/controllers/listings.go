package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/api/responses"
	"github.com/bazario/bazario-backend/api/validators"
	"github.com/bazario/bazario-backend/internal/buybox"
	"github.com/bazario/bazario-backend/internal/listings"
	"github.com/bazario/bazario-backend/pkg/enums"
	pkgerrors "github.com/bazario/bazario-backend/pkg/errors"
	"github.com/bazario/bazario-backend/pkg/logger"
)

type createListingRequest struct {
	ProductID      string `json:"product_id" validate:"required,uuid"`
	ShopID         string `json:"shop_id" validate:"required,uuid"`
	SKU            string `json:"sku" validate:"omitempty,max=64"`
	PriceCents     int    `json:"price_cents" validate:"required,min=1"`
	SalePriceCents *int   `json:"sale_price_cents" validate:"omitempty,min=1"`
	Stock          int    `json:"stock" validate:"min=0"`
	ShippingSpeed  string `json:"shipping_speed" validate:"required,oneof=standard expedited overnight"`
}

type updatePriceRequest struct {
	PriceCents     int  `json:"price_cents" validate:"required,min=1"`
	SalePriceCents *int `json:"sale_price_cents" validate:"omitempty,min=1"`
}

type adjustStockRequest struct {
	Delta  int    `json:"delta" validate:"required"`
	Reason string `json:"reason" validate:"required,max=120"`
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

// CreateListing adds a shop's offer for a product.
func CreateListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createListingRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		productID, err := uuid.Parse(req.ProductID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid product id"))
			return
		}
		shopID, err := uuid.Parse(req.ShopID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid shop id"))
			return
		}

		listing, err := svc.CreateListing(r.Context(), listings.CreateListingInput{
			ProductID:      productID,
			ShopID:         shopID,
			SKU:            req.SKU,
			PriceCents:     req.PriceCents,
			SalePriceCents: req.SalePriceCents,
			Stock:          req.Stock,
			ShippingSpeed:  enums.ShippingSpeed(req.ShippingSpeed),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, listing)
	}
}

func GetListing(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := parseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.GetListing(r.Context(), listingID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// UpdateListingPrice changes the offer price and re-ranks the product.
func UpdateListingPrice(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := parseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updatePriceRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.UpdatePrice(r.Context(), listingID, req.PriceCents, req.SalePriceCents)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// AdjustListingStock applies a stock delta with an audit reason.
func AdjustListingStock(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := parseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adjustStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.AdjustStock(r.Context(), listingID, req.Delta, req.Reason)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// SetListingActive toggles offer visibility; listings are never deleted.
func SetListingActive(svc listings.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		listingID, err := parseUUIDParam(r, "listingId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setActiveRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		listing, err := svc.SetActive(r.Context(), listingID, req.Active)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listing)
	}
}

// BuyBoxWinner returns the current winning offer for a product.
func BuyBoxWinner(svc buybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		winner, err := svc.Winner(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, winner)
	}
}

// BuyBoxRank returns every eligible offer with its composite score.
func BuyBoxRank(svc buybox.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		productID, err := parseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ranked, err := svc.Rank(r.Context(), productID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ranked)
	}
}
