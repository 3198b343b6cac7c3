package rest

import (
	"context"
	"net/http"

	core_port "listing-edge-service/internal/core/port"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

type Server struct {
	httpServer *http.Server
	logger     core_port.LoggerPort
}

// NewServer собирает роутер: API сессий и выдачи под /api/v1,
// все остальное уходит в офлайн-шлюз (gate), который решает
// cache-first / network-first / app shell по типу запроса.
func NewServer(port string,
	sessionHandlers *SessionHandler,
	listingHandlers *ListingHandler,
	gate http.Handler,
	baseLogger core_port.LoggerPort) *Server {

	r := chi.NewRouter()

	r.Use(LoggerMiddleware(baseLogger), middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		// AllowedOrigins - список доменов, с которых разрешены запросы
		AllowedOrigins: []string{"http://localhost:5173"},

		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},

		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Trace-ID"},

		AllowCredentials: true,
	}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", sessionHandlers.CreateSession)
			r.Get("/{sessionID}", sessionHandlers.GetSession)
			r.Delete("/{sessionID}", sessionHandlers.DeleteSession)
			r.Patch("/{sessionID}/filters", sessionHandlers.UpdateFilters)
			r.Patch("/{sessionID}/sort", sessionHandlers.UpdateSort)
			r.Post("/{sessionID}/sentinel", sessionHandlers.ObserveSentinel)
			r.Post("/{sessionID}/next-page", sessionHandlers.FetchNextPage)
			r.Post("/{sessionID}/refetch", sessionHandlers.Refetch)
		})

		r.Get("/listings", listingHandlers.FindListings)
		r.Post("/listings/{listingID}/favorite", listingHandlers.AddFavorite)
		r.Delete("/listings/{listingID}/favorite", listingHandlers.RemoveFavorite)
	})

	// Фолбэк: навигация, статика, картинки и прокси к upstream API
	r.NotFound(gate.ServeHTTP)
	r.MethodNotAllowed(gate.ServeHTTP)

	return &Server{
		httpServer: &http.Server{
			Addr:    ":" + port,
			Handler: r,
		},
		logger: baseLogger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("Starting REST server", core_port.Fields{"address": s.httpServer.Addr})
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping REST server...", nil)
	return s.httpServer.Shutdown(ctx)
}
