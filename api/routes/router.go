package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/warebase/warehouse-backend/api/controllers"
	"github.com/warebase/warehouse-backend/api/middleware"
	"github.com/warebase/warehouse-backend/internal/inventory"
	"github.com/warebase/warehouse-backend/internal/reconcile"
	"github.com/warebase/warehouse-backend/pkg/config"
	"github.com/warebase/warehouse-backend/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisP controllers.Pinger,
	inventoryService inventory.Service,
	reconcileService reconcile.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisP,
		}))
	})

	r.Route("/api/v1/inventory", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Post("/reserve", controllers.ReserveStock(inventoryService, logg))
		r.Post("/release", controllers.ReleaseStock(inventoryService, logg))
		r.Post("/deduct", controllers.DeductStock(inventoryService, logg))
		r.With(middleware.RequireAdjuster(logg)).Post("/adjust", controllers.AdjustStock(inventoryService, logg))

		r.Get("/transactions", controllers.ListTransactions(inventoryService, logg))
		r.Get("/reconcile/{sku}", controllers.ReconcileSKU(reconcileService, logg))
		r.Get("/sku/{sku}", controllers.GetBySKU(inventoryService, logg))
		r.Get("/{sku}/{bin}", controllers.GetUnit(inventoryService, logg))
	})

	return r
}
