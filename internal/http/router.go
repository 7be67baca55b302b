package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
)

type RouterConfig struct {
	Logger             *zap.Logger
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// Metrics serves /metrics when set.
	Metrics http.Handler
}

func NewRouter(checkout *CheckoutHandler, payments *PaymentHandler, cfg RouterConfig) chi.Router {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware)
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)
	if cfg.RequestTimeout > 0 {
		r.Use(middleware.Timeout(cfg.RequestTimeout))
	}
	r.Use(MaxBodySize(cfg.MaxRequestBodySize))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/checkout", func(r chi.Router) {
			r.Post("/", checkout.CreateCheckout)
			r.Get("/callback", checkout.Callback)
		})
		r.Route("/payments", func(r chi.Router) {
			r.Get("/", payments.ListPayments)
			r.Get("/{id}", payments.GetPayment)
		})
	})

	return r
}
