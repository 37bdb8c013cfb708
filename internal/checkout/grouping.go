package checkout

import (
	"sort"

	"github.com/google/uuid"

	"github.com/bazario/bazario-backend/pkg/db/models"
)

// shopGroup is one shop's slice of the cart before it becomes a sub-order.
type shopGroup struct {
	ShopID        uuid.UUID
	Items         []models.CartItem
	SubtotalCents int
}

// groupByShop splits cart items into per-shop groups. Groups are ordered by
// shop id so sub-order creation is deterministic. Prices are taken from the
// live listings, not the cart snapshot.
func groupByShop(items []models.CartItem, listingByID map[uuid.UUID]models.Listing) []shopGroup {
	grouped := map[uuid.UUID]*shopGroup{}
	for _, item := range items {
		listing, ok := listingByID[item.ListingID]
		if !ok {
			continue
		}
		group, exists := grouped[listing.ShopID]
		if !exists {
			group = &shopGroup{ShopID: listing.ShopID}
			grouped[listing.ShopID] = group
		}
		group.Items = append(group.Items, item)
		group.SubtotalCents += listing.EffectivePriceCents() * item.Quantity
	}

	result := make([]shopGroup, 0, len(grouped))
	for _, group := range grouped {
		result = append(result, *group)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].ShopID.String() < result[j].ShopID.String()
	})
	return result
}
