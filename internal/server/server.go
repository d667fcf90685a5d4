package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexbrain/internal/config"
	"github.com/dgnsrekt/gexbrain/internal/gex"
	"github.com/dgnsrekt/gexbrain/internal/squeeze"
	"github.com/dgnsrekt/gexbrain/internal/ws"
)

// Server is a read-only view over the running engines. It never mutates
// engine state; mutation stays with the poll loop and the CLI.
type Server struct {
	gexEngine     *gex.Engine
	squeezeEngine *squeeze.Engine
	hub           *ws.Hub
	cfg           config.ServerConfig
	logger        *zap.Logger

	httpServer *http.Server
}

func NewServer(gexEngine *gex.Engine, squeezeEngine *squeeze.Engine, hub *ws.Hub, cfg config.ServerConfig, logger *zap.Logger) *Server {
	return &Server{
		gexEngine:     gexEngine,
		squeezeEngine: squeezeEngine,
		hub:           hub,
		cfg:           cfg,
		logger:        logger,
	}
}

// NewRouter builds the HTTP surface.
func NewRouter(s *Server, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(zapLoggerMiddleware(logger))

	r.Get("/health", s.healthHandler)
	r.Get("/gex/{ticker}", s.gexHandler)
	r.Get("/squeeze", s.squeezeListHandler)
	r.Get("/squeeze/{ticker}", s.squeezeHandler)
	r.Get("/signal/{ticker}", s.signalHandler)

	if s.cfg.WSEnabled && s.hub != nil {
		r.Get("/ws", s.hub.HandleWS(func(ticker string) bool {
			return config.ValidTickers[ticker]
		}))
	}

	return r
}

// Start begins serving in a background goroutine.
func (s *Server) Start() {
	s.httpServer = &http.Server{
		Addr:              ":" + s.cfg.Port,
		Handler:           NewRouter(s, s.logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		s.logger.Info("http server listening", zap.String("port", s.cfg.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
			)
			next.ServeHTTP(w, r)
		})
	}
}
