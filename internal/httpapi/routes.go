package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/DoyleJ11/lobby-backend/internal/appearance"
	"github.com/DoyleJ11/lobby-backend/internal/handoff"
	"github.com/DoyleJ11/lobby-backend/internal/hub"
	"github.com/DoyleJ11/lobby-backend/internal/ws"
)

type Deps struct {
	Hub     *hub.Hub
	Catalog *appearance.Catalog
	Handoff handoff.Store

	// Gatherer backs /metrics; the route is omitted when nil.
	Gatherer prometheus.Gatherer
	WS       ws.Options
	Log      *zap.Logger
}

func SetupRoutes(d Deps) http.Handler {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.Catalog == nil {
		d.Catalog = appearance.DefaultCatalog()
	}
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public routes
	r.Post("/lobbies", CreateLobby(d.Hub, d.Log))
	r.Get("/lobbies/{code}", GetLobby(d.Hub))
	r.Get("/catalog", Catalog(d.Catalog))
	if d.Handoff != nil {
		r.Get("/sessions/{code}/participants/{id}", SessionParticipant(d.Handoff, d.Log))
	}
	r.Get("/healthz", Healthz)
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Get("/ws", ws.Handler(d.Hub, d.WS))
	return r
}
