package http

import (
	"net/http"
	"time"

	"github.com/averkiev79-droid/avk-pro-sub000/internal/checkout"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/consent"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/logger"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/metrics"
	"github.com/averkiev79-droid/avk-pro-sub000/internal/tab"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Deps are the collaborators of the storefront HTTP surface.
type Deps struct {
	Registry       *tab.Registry
	Orders         checkout.OrderSubmitter
	Consent        *consent.Service
	Checkout       checkout.Options
	Logger         *logger.Logger
	Metrics        *metrics.Metrics
	Gatherer       prometheus.Gatherer
	RequestTimeout time.Duration
	AllowedOrigins []string
	CookieSecure   bool
}

func NewRouter(d Deps) http.Handler {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 30 * time.Second
	}
	if d.Checkout.Logger == nil {
		d.Checkout.Logger = log
	}
	if d.Checkout.Metrics == nil {
		d.Checkout.Metrics = d.Metrics
	}

	cartHandler := NewCartHandler(log, d.Metrics, d.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(d.Orders, d.Checkout, log)
	consentHandler := NewConsentHandler(d.Consent, log)
	eventsHandler := NewEventsHandler(d.AllowedOrigins, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(RequestIDMiddleware(log))
	r.Use(RequestLogger(log))
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(OriginMiddleware(log, d.CookieSecure))

		r.Route("/consent", func(r chi.Router) {
			r.Get("/", consentHandler.Get)
			r.Put("/", consentHandler.Put)
		})

		r.Group(func(r chi.Router) {
			r.Use(TabMiddleware(d.Registry, log))

			// long-lived, so outside the request timeout
			r.Get("/cart/events", eventsHandler.Serve)

			r.Group(func(r chi.Router) {
				r.Use(middleware.Timeout(d.RequestTimeout))

				r.Route("/cart", func(r chi.Router) {
					r.Get("/", cartHandler.GetCart)
					r.Get("/count", cartHandler.GetCount)
					r.Post("/items", cartHandler.AddItem)
					r.Put("/items/{item_id}", cartHandler.UpdateQuantity)
					r.Delete("/items/{item_id}", cartHandler.RemoveItem)
				})
				r.Route("/checkout", func(r chi.Router) {
					r.Get("/", checkoutHandler.Enter)
					r.Post("/", checkoutHandler.Submit)
				})
			})
		})
	})

	return r
}
