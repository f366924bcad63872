package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jmab/shop-backend/api/controllers"
	ordercontrollers "github.com/jmab/shop-backend/api/controllers/orders"
	webhookcontrollers "github.com/jmab/shop-backend/api/controllers/webhooks"
	"github.com/jmab/shop-backend/api/middleware"
	checkoutsvc "github.com/jmab/shop-backend/internal/checkout"
	internalorders "github.com/jmab/shop-backend/internal/orders"
	"github.com/jmab/shop-backend/internal/refunds"
	"github.com/jmab/shop-backend/pkg/config"
	"github.com/jmab/shop-backend/pkg/enums"
	"github.com/jmab/shop-backend/pkg/logger"
	"github.com/jmab/shop-backend/pkg/metrics"
)

// Deps carries everything the HTTP surface needs.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Database controllers.Pinger
	Cache    controllers.Pinger

	CheckoutService checkoutsvc.Service
	OrdersService   internalorders.Service
	RefundsService  refunds.Service

	WebhookService  webhookcontrollers.PaymongoWebhookService
	WebhookVerifier webhookcontrollers.SignatureVerifier

	Metrics *metrics.OrderMetrics
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.Database, deps.Cache, logg))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paymongo", webhookcontrollers.PaymongoWebhook(deps.WebhookService, deps.WebhookVerifier, deps.Metrics, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/users/{userId}/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Checkout(deps.CheckoutService, deps.Metrics, logg))
			r.Get("/", ordercontrollers.ListUserOrders(deps.OrdersService, logg))
		})

		r.Get("/orders/{orderId}", ordercontrollers.Detail(deps.OrdersService, logg))

		admin := r.With(middleware.RequireRole(string(enums.UserRoleAdmin), logg))
		admin.Get("/orders", ordercontrollers.AdminList(deps.OrdersService, logg))
		admin.Patch("/orders/{orderId}/status", ordercontrollers.UpdateStatus(deps.OrdersService, logg))
		admin.Post("/orders/{orderId}/refund", ordercontrollers.Refund(deps.RefundsService, deps.Metrics, logg))
	})

	return r
}
