package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Services are the use cases the router exposes.
type Services struct {
	Auth     AuthService
	Catalog  CatalogService
	Cart     CartService
	Checkout CheckoutService
	Orders   OrderService
}

type RouterConfig struct {
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
}

func NewRouter(svc Services, sess *Sessions, db Pinger, cfg RouterConfig) http.Handler {
	authHandler := NewAuthHandler(svc.Auth, sess, cfg.RequestTimeout)
	productHandler := NewProductHandler(svc.Catalog, cfg.RequestTimeout)
	cartHandler := NewCartHandler(svc.Cart, cfg.RequestTimeout)
	ordersHandler := NewOrdersHandler(svc.Checkout, svc.Orders, cfg.RequestTimeout)
	adminHandler := NewAdminHandler(svc.Catalog, cfg.RequestTimeout)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(EchoRequestID)
	r.Use(middleware.RealIP)
	r.Use(AccessLog)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}
	r.Use(middleware.Compress(5))
	r.Use(sess.Authenticate)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(r.Context()); err != nil {
			slog.ErrorContext(r.Context(), "health check failed", "error", err)
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", authHandler.Register)
			r.Post("/login", authHandler.Login)
			r.Post("/logout", authHandler.Logout)
			r.Get("/me", authHandler.Me)
			r.Get("/check-username", authHandler.CheckUsername)
			r.Get("/check-email", authHandler.CheckEmail)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", productHandler.ListProducts)
			r.Get("/popular", productHandler.Popular)
			r.Get("/categories", productHandler.Categories)
			r.Get("/brands", productHandler.Brands)
			r.Get("/suggestions", productHandler.Suggestions)
			r.Get("/{id}", productHandler.GetProduct)
		})

		r.Group(func(r chi.Router) {
			r.Use(RequireUser)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartHandler.GetCart)
				r.Get("/count", cartHandler.Count)
				r.Get("/validate", cartHandler.Validate)
				r.Post("/add", cartHandler.AddItem)
				r.Put("/update", cartHandler.UpdateQuantity)
				r.Delete("/remove/{cartItemId}", cartHandler.RemoveItem)
				r.Delete("/clear", cartHandler.ClearCart)
			})

			r.Route("/orders", func(r chi.Router) {
				r.Post("/", ordersHandler.Checkout)
				r.Get("/", ordersHandler.ListOrders)
				r.Post("/quick", ordersHandler.QuickOrder)
				r.Get("/{orderNumber}", ordersHandler.GetOrder)
				r.Post("/{orderNumber}/pay", ordersHandler.Pay)
				r.Post("/{orderNumber}/cancel", ordersHandler.Cancel)
				r.Post("/{orderNumber}/confirm", ordersHandler.ConfirmDelivery)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin(svc.Auth))

				r.Get("/orders", ordersHandler.ListAllOrders)
				r.Post("/orders/{orderNumber}/ship", ordersHandler.Ship)
				r.Get("/products/low-stock", adminHandler.LowStock)
				r.Post("/products/{id}/stock", adminHandler.AdjustStock)
				r.Delete("/products/{id}", adminHandler.DeactivateProduct)
			})
		})
	})

	return otelhttp.NewHandler(r, "shop-api")
}
