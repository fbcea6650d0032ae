package router

import (
	"net/http"

	"hooka/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

// Routes are the endpoints mounted by Handler.
type Routes struct {
	// Dispatcher serves the RPC envelope.
	Dispatcher http.Handler
	// Webhook receives signed payment events.
	Webhook http.HandlerFunc
	// Verifier checks identity tokens; nil leaves every caller anonymous.
	Verifier middleware.TokenVerifier
}

// Handler builds the HTTP surface: the RPC endpoint under its current and
// legacy paths, the payment webhook, health and metrics.
func Handler(rt Routes, logger zerolog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.RequestLogger(logger))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.Handler())

	if rt.Webhook != nil {
		r.Post("/api/stripe-webhook", rt.Webhook)
		r.Post("/.netlify/functions/stripe-webhook", rt.Webhook)
	}

	api := middleware.Identity(rt.Verifier, logger)(rt.Dispatcher)
	r.Method(http.MethodPost, "/api", api)
	r.Method(http.MethodPost, "/.netlify/functions/api", api)

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization", "Stripe-Signature"},
	})
	return c.Handler(r)
}
