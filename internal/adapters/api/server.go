package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"inputbid-service/internal/adapters/ws"
	"inputbid-service/internal/config"
	"inputbid-service/internal/ports/inbound"
	"inputbid-service/internal/ports/outbound"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

type Server struct {
	router     chi.Router
	wsHandler  *ws.WsHandler
	httpServer *http.Server
	config     *config.Config
	logger     zerolog.Logger
}

type ServerParams struct {
	Config      *config.Config
	Requests    inbound.RequestService
	Offers      inbound.OfferService
	Acceptance  inbound.AcceptanceService
	Broadcaster outbound.Broadcaster
	Logger      zerolog.Logger
}

func NewServer(params ServerParams) *Server {
	logger := params.Logger.With().Str("component", "http_server").Logger()

	wsHandler := ws.NewHandler(ws.WsHandlerParams{
		Upgrader: websocket.Upgrader{
			ReadBufferSize:  params.Config.WebSocket.ReadBufferSize,
			WriteBufferSize: params.Config.WebSocket.WriteBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		Offers:      params.Offers,
		Broadcaster: params.Broadcaster,
		Logger:      params.Logger,
	})

	api := NewHandler(HandlerParams{
		Requests:   params.Requests,
		Offers:     params.Offers,
		Acceptance: params.Acceptance,
		Logger:     params.Logger,
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)

	r.Get("/health", handleHealth)
	r.Get("/ws", wsHandler.HandleWebSocket)
	r.Group(func(r chi.Router) {
		if timeout := params.Config.Server.RequestTimeout; timeout > 0 {
			r.Use(middleware.Timeout(timeout))
		}
		r.Mount("/api/v1", api.Routes())
	})

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", params.Config.Server.Host, params.Config.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Minute,
	}

	return &Server{
		router:     r,
		wsHandler:  wsHandler,
		httpServer: httpServer,
		config:     params.Config,
		logger:     logger,
	}
}

// Handler exposes the routed handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("Starting HTTP server")

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	return nil
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info().Int("ws_clients", s.wsHandler.GetConnectedClients()).Msg("Stopping HTTP server...")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("Handled request")
		})
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "inputbid-service"})
}
