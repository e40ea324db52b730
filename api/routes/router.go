package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidbarrios/platerush-backend/api/controllers"
	webhookcontrollers "github.com/davidbarrios/platerush-backend/api/controllers/webhooks"
	"github.com/davidbarrios/platerush-backend/api/middleware"
	checkoutsvc "github.com/davidbarrios/platerush-backend/internal/checkout"
	"github.com/davidbarrios/platerush-backend/internal/notifications"
	"github.com/davidbarrios/platerush-backend/internal/orders"
	"github.com/davidbarrios/platerush-backend/internal/reconcile"
	"github.com/davidbarrios/platerush-backend/internal/wallet"
	"github.com/davidbarrios/platerush-backend/pkg/config"
	"github.com/davidbarrios/platerush-backend/pkg/db"
	"github.com/davidbarrios/platerush-backend/pkg/enums"
	"github.com/davidbarrios/platerush-backend/pkg/logger"
	"github.com/davidbarrios/platerush-backend/pkg/mercadopago"
	"github.com/davidbarrios/platerush-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers. Construction
// happens in cmd/api; the router only connects services to routes.
type Deps struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         db.Pinger
	Redis      *redis.Client
	Gateway    *mercadopago.Client
	Registry   *prometheus.Registry
	Reconcile  *reconcile.Service
	Guard      *reconcile.IdempotencyGuard
	Checkout   checkoutsvc.Service
	Orders     orders.Service
	WalletRepo wallet.Repository
	Wallet     wallet.Service
	Notifier   notifications.Dispatcher
	Hub        *notifications.Hub
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	if deps.Registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/mercadopago", webhookcontrollers.MercadoPagoWebhook(deps.Reconcile, deps.Gateway, deps.Guard, logg))
	})

	// WebSocket upgrades authenticate via query token; browsers cannot
	// attach an Authorization header to the upgrade request.
	r.Get("/api/v1/ws/notifications", controllers.NotificationsWS(cfg.JWT, deps.Hub, logg))

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/v1", func(r chi.Router) {
			r.With(middleware.RequireRole(enums.ActorRoleCustomer, logg)).
				Post("/checkout", controllers.Checkout(deps.Checkout, logg))

			r.Route("/orders", func(r chi.Router) {
				r.With(middleware.RequireRole(enums.ActorRoleCustomer, logg)).
					Get("/", controllers.ListMyOrders(deps.Orders, logg))
				r.Get("/{orderId}", controllers.OrderDetail(deps.Orders, logg))
				r.Post("/{orderId}/status", controllers.UpdateOrderStatus(deps.Orders, logg))
				r.With(middleware.RequireCapability(enums.CapabilityManageOrders, logg)).
					Post("/{orderId}/reject", controllers.RejectOrder(deps.Orders, logg))
			})

			r.With(middleware.RequireCapability(enums.CapabilityPrepareOrders, logg)).
				Get("/branch/orders", controllers.ListBranchOrders(deps.Orders, logg))

			r.Route("/wallets", func(r chi.Router) {
				r.Get("/me", controllers.MyWallet(deps.WalletRepo, cfg.Checkout.Currency, logg))
				r.Get("/me/entries", controllers.MyWalletEntries(deps.WalletRepo, deps.Wallet, cfg.Checkout.Currency, logg))
				r.Get("/{walletId}/entries", controllers.WalletEntries(deps.WalletRepo, deps.Wallet, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifier, logg))
				r.Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifier, logg))
			})
		})
	})

	return r
}
