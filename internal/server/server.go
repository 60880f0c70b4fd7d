package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/berfenger/ecusolar/internal/config"
	"github.com/berfenger/ecusolar/internal/core/port"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"
)

type Server struct {
	port    uint
	httpLog bool
	solar   port.SolarMetricsService
	logger  *zap.Logger
}

func NewServer(cfg config.Config, solar port.SolarMetricsService, logger *zap.Logger) *http.Server {
	NewServer := &Server{
		port:    cfg.Port,
		httpLog: cfg.HttpLog,
		solar:   solar,
		logger:  logger.With(zap.String("component", "http")),
	}

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", NewServer.port),
		Handler:      NewServer.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	return server
}

// NewMetricsServer serves the Prometheus handler on its own port.
func NewMetricsServer(port uint, metrics http.Handler) *http.Server {
	return &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      RegisterMetricsRoutes(metrics),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}
