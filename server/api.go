package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"suteravr/internal/wire"
	"suteravr/server/store"
)

// APIServer provides HTTP endpoints for health checking, instance state, and
// metrics. It runs on a separate TCP port from the clocking listener.
type APIServer struct {
	mgr   *Manager
	store *store.Store
	echo  *echo.Echo
}

// NewAPIServer constructs an APIServer and registers all routes.
func NewAPIServer(mgr *Manager, st *store.Store) *APIServer {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[api] %s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())

	s := &APIServer{mgr: mgr, store: st, echo: e}
	s.registerRoutes()
	return s
}

func (s *APIServer) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.GET("/api/version", s.handleVersion)
	s.echo.GET("/api/instances", s.handleInstances)
	s.echo.GET("/api/settings", s.handleGetSettings)
	s.echo.PUT("/api/settings", s.handlePutSettings)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))
}

// Run starts the Echo HTTP server on addr and blocks until ctx is cancelled.
func (s *APIServer) Run(ctx context.Context, addr string) {
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Printf("[api] server error: %v", err)
		}
	}()
	<-ctx.Done()
	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.echo.Shutdown(shutCtx); err != nil {
		log.Printf("[api] shutdown: %v", err)
	}
}

func (s *APIServer) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// VersionResponse is the payload for GET /api/version.
type VersionResponse struct {
	Version       string `json:"version"`
	SchemaVersion string `json:"schema_version"`
}

func (s *APIServer) handleVersion(c echo.Context) error {
	return c.JSON(http.StatusOK, VersionResponse{
		Version:       Version,
		SchemaVersion: wire.SchemaVersion.String(),
	})
}

func (s *APIServer) handleInstances(c echo.Context) error {
	return c.JSON(http.StatusOK, s.mgr.Snapshot())
}

// SettingsResponse is the payload for GET /api/settings.
type SettingsResponse struct {
	ServerName string `json:"server_name"`
}

// SettingsRequest is the body for PUT /api/settings.
type SettingsRequest struct {
	ServerName string `json:"server_name"`
}

func (s *APIServer) handleGetSettings(c echo.Context) error {
	name, _, err := s.store.GetSetting("server_name")
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, SettingsResponse{ServerName: name})
}

func (s *APIServer) handlePutSettings(c echo.Context) error {
	var req SettingsRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.ServerName == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "server_name is required")
	}
	if err := s.store.SetSetting("server_name", req.ServerName); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, SettingsResponse{ServerName: req.ServerName})
}
