package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/ping", h.PingHandler)

	r.Route("/api", func(r chi.Router) {
		r.Post("/frames", h.FrameIngestHandler)
		r.Get("/sessions", h.ListSessionsHandler)
		r.Get("/sessions/{identity}", h.GetSessionHandler)
		r.Post("/sessions/{identity}/checkout", h.CheckoutHandler)
		r.Post("/biometric/scan", h.BiometricScanHandler)
		r.Get("/stats", h.StatsHandler)
	})

	return r
}
