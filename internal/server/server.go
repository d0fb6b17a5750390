package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/freemoonfaucet/gas-faucet/internal/faucet"
	"github.com/rs/cors"
	"go.uber.org/zap"
)

type HttpServerConfig struct {
	Port int
}

// HttpServer exposes the claim coordinator over the original faucet API
// surface: POST /api/v1/retrieve plus a liveness probe. All faucet logic
// lives behind the coordinator; this layer only parses and translates.
type HttpServer struct {
	config      *HttpServerConfig
	coordinator *faucet.Coordinator
	logger      *zap.Logger

	httpServer *http.Server
}

func NewHttpServer(cfg *HttpServerConfig, coordinator *faucet.Coordinator, l *zap.Logger) *HttpServer {
	server := &HttpServer{
		config:      cfg,
		coordinator: coordinator,
		logger:      l,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/retrieve", server.handleRetrieve)
	mux.HandleFunc("/health", server.handleHealth)

	server.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           cors.Default().Handler(mux),
		ReadHeaderTimeout: time.Second * 10,
	}

	return server
}

func (s *HttpServer) Start(gracefulShutdown chan bool) {
	go func() {
		for range gracefulShutdown {
			s.logger.Sugar().Info("Shutting down http server")
			if err := s.httpServer.Shutdown(context.Background()); err != nil {
				s.logger.Sugar().Errorw("Failed to shutdown http server", zap.Error(err))
			}
		}
	}()
	go func() {
		s.logger.Sugar().Infow("Starting http server", zap.Int("port", s.config.Port))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Sugar().Fatal("Failed to start http server", zap.Error(err))
		}
	}()
}

// Handler exposes the routing stack for tests.
func (s *HttpServer) Handler() http.Handler {
	return s.httpServer.Handler
}
