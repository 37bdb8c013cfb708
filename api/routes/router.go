package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/bazario/bazario-backend/api/controllers"
	"github.com/bazario/bazario-backend/api/middleware"
	"github.com/bazario/bazario-backend/internal/buybox"
	"github.com/bazario/bazario-backend/internal/cart"
	checkoutsvc "github.com/bazario/bazario-backend/internal/checkout"
	"github.com/bazario/bazario-backend/internal/disputes"
	"github.com/bazario/bazario-backend/internal/listings"
	"github.com/bazario/bazario-backend/internal/notifications"
	"github.com/bazario/bazario-backend/internal/orders"
	"github.com/bazario/bazario-backend/internal/settlement"
	"github.com/bazario/bazario-backend/internal/shops"
	"github.com/bazario/bazario-backend/internal/wallet"
	"github.com/bazario/bazario-backend/pkg/config"
	"github.com/bazario/bazario-backend/pkg/db"
	"github.com/bazario/bazario-backend/pkg/logger"
	pkgredis "github.com/bazario/bazario-backend/pkg/redis"
)

// Services bundles everything the router wires into handlers.
type Services struct {
	Shops         shops.Service
	Listings      listings.Service
	BuyBox        buybox.Service
	Cart          cart.Service
	Checkout      checkoutsvc.Service
	Orders        orders.Service
	Wallet        wallet.Service
	Disputes      disputes.Service
	Settlement    settlement.Service
	Notifications notifications.Service
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *pkgredis.Client,
	svcs Services,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Gateway callbacks authenticate upstream, not through caller identity.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payment", controllers.PaymentConfirm(svcs.Settlement, logg))
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Identity(logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Route("/v1", func(r chi.Router) {
			r.Route("/shops", func(r chi.Router) {
				r.Post("/", controllers.CreateShop(svcs.Shops, logg))
				r.Get("/{shopId}", controllers.GetShop(svcs.Shops, logg))
				r.Get("/{shopId}/sub-orders", controllers.ListShopSubOrders(svcs.Orders, svcs.Shops, logg))
			})

			r.Route("/listings", func(r chi.Router) {
				r.Post("/", controllers.CreateListing(svcs.Listings, logg))
				r.Get("/{listingId}", controllers.GetListing(svcs.Listings, logg))
				r.Patch("/{listingId}/price", controllers.UpdateListingPrice(svcs.Listings, logg))
				r.Post("/{listingId}/stock", controllers.AdjustListingStock(svcs.Listings, logg))
				r.Patch("/{listingId}/active", controllers.SetListingActive(svcs.Listings, logg))
			})

			r.Route("/products/{productId}", func(r chi.Router) {
				r.Get("/winner", controllers.BuyBoxWinner(svcs.BuyBox, logg))
				r.Get("/offers", controllers.BuyBoxRank(svcs.BuyBox, logg))
			})

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", controllers.CartFetch(svcs.Cart, logg))
				r.Post("/items", controllers.CartAddItem(svcs.Cart, logg))
				r.Patch("/items/{listingId}", controllers.CartUpdateItem(svcs.Cart, logg))
				r.Delete("/items/{listingId}", controllers.CartRemoveItem(svcs.Cart, logg))
			})

			r.Post("/checkout", controllers.Checkout(svcs.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.Get("/", controllers.ListOrders(svcs.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(svcs.Orders, logg))
			})

			r.Route("/sub-orders/{subOrderId}", func(r chi.Router) {
				r.Post("/advance", controllers.AdvanceSubOrder(svcs.Orders, svcs.Shops, logg))
				r.Post("/return", controllers.RequestReturn(svcs.Orders, logg))
				r.Post("/cancel", controllers.CancelSubOrder(svcs.Settlement, logg))
			})

			r.Route("/wallet", func(r chi.Router) {
				r.Get("/", controllers.WalletFetch(svcs.Wallet, logg))
				r.Get("/transactions", controllers.WalletTransactions(svcs.Wallet, logg))
				r.Post("/payouts", controllers.RequestPayout(svcs.Wallet, logg))
				r.Get("/payouts", controllers.ListPayouts(svcs.Wallet, logg))
			})

			r.Route("/disputes", func(r chi.Router) {
				r.Post("/", controllers.OpenDispute(svcs.Disputes, logg))
				r.Get("/{disputeId}", controllers.GetDispute(svcs.Disputes, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(svcs.Notifications, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(svcs.Notifications, logg))
			})
		})

		r.Route("/admin/v1", func(r chi.Router) {
			r.Use(middleware.RequireRole("admin", logg))
			r.Post("/shops/{shopId}/kyc", controllers.DecideKYC(svcs.Shops, logg))
			r.Post("/sub-orders/{subOrderId}/return-decision", controllers.DecideReturn(svcs.Settlement, logg))
			r.Post("/disputes/{disputeId}/resolve", controllers.ResolveDispute(svcs.Settlement, logg))
			r.Post("/payouts/{payoutId}/resolve", controllers.ResolvePayout(svcs.Wallet, logg))
			r.Get("/wallets/{walletId}/replay", controllers.WalletReplay(svcs.Wallet, logg))
		})
	})

	return r
}
