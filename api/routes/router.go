package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/pos-backend/api/controllers"
	"github.com/angelmondragon/pos-backend/api/middleware"
	"github.com/angelmondragon/pos-backend/internal/audit"
	"github.com/angelmondragon/pos-backend/internal/cart"
	"github.com/angelmondragon/pos-backend/internal/catalog"
	"github.com/angelmondragon/pos-backend/internal/checkout"
	"github.com/angelmondragon/pos-backend/internal/inventory"
	"github.com/angelmondragon/pos-backend/internal/sales"
	"github.com/angelmondragon/pos-backend/pkg/config"
	"github.com/angelmondragon/pos-backend/pkg/logger"
	"github.com/angelmondragon/pos-backend/pkg/redis"
)

// Services are the collaborators the routes dispatch to.
type Services struct {
	Catalog     *catalog.Service
	Carts       *cart.Registry
	Checkout    *checkout.Orchestrator
	Sales       *sales.Service
	Inventory   *inventory.Ledger
	Activity    *audit.Recorder
	Idempotency redis.IdempotencyStore
	Pingers     map[string]controllers.Pinger
	// Metrics serves /metrics; defaults to the global prometheus registry.
	Metrics http.Handler
}

func NewRouter(cfg *config.Config, logg *logger.Logger, svc Services) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.SecureHeaders(!cfg.App.IsProd()),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, svc.Pingers, logg))
	})

	metricsHandler := svc.Metrics
	if metricsHandler == nil {
		metricsHandler = promhttp.Handler()
	}
	r.Method(http.MethodGet, "/metrics", metricsHandler)

	r.Route("/api", func(r chi.Router) {
		r.Use(
			middleware.Auth(cfg.JWT, logg),
			middleware.RateLimit(cfg.RateLimit.RequestsPerMinute, logg),
			middleware.Idempotency(svc.Idempotency, logg),
		)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/resolve", controllers.CatalogResolve(svc.Catalog, logg))
			r.Get("/search", controllers.CatalogSearch(svc.Catalog, logg))
			r.Get("/low-stock", controllers.CatalogLowStock(svc.Catalog, logg))

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireElevated(logg))
				r.Post("/products", controllers.CatalogCreateProduct(svc.Catalog, logg))
				r.Patch("/products/{id}", controllers.CatalogUpdateProduct(svc.Catalog, logg))
				r.Delete("/products/{id}", controllers.CatalogDeactivateProduct(svc.Catalog, logg))
			})
		})

		r.Route("/terminals/{terminal}", func(r chi.Router) {
			r.Get("/cart", controllers.CartGet(svc.Carts, logg))
			r.Delete("/cart", controllers.CartClear(svc.Carts, logg))
			r.Post("/cart/scan", controllers.CartScan(svc.Carts, svc.Catalog, logg))
			r.Put("/cart/lines/{productId}", controllers.CartSetQuantity(svc.Carts, svc.Catalog, logg))
			r.Delete("/cart/lines/{productId}", controllers.CartRemoveLine(svc.Carts, logg))
			r.Post("/checkout", controllers.CheckoutCommit(svc.Carts, svc.Catalog, svc.Checkout, logg))
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", controllers.SalesListRecent(svc.Sales, logg))
			r.Get("/{id}", controllers.SalesGet(svc.Sales, logg))
		})

		r.Route("/inventory", func(r chi.Router) {
			r.With(middleware.RequireElevated(logg)).Post("/movements", controllers.InventoryAdjust(svc.Inventory, logg))
			r.Get("/products/{id}/movements", controllers.InventoryHistory(svc.Inventory, logg))
		})

		r.With(middleware.RequireElevated(logg)).Get("/activity/{entity}/{id}", controllers.ActivityHistory(svc.Activity, logg))
	})

	return r
}
