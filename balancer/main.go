// The balancing server is the HTTP front door of the clocking
// infrastructure. Every request must carry a SuteraVR-SchemaVersion header
// matching the server's build version; accepted responses echo the header
// back. The route surface is a placeholder until instance placement moves
// here.
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"suteravr/internal/wire"
)

// schemaVersionHeader is checked on every request and stamped on every
// accepted response.
const schemaVersionHeader = "SuteraVR-SchemaVersion"

// Hello is the placeholder payload for GET /hello.
type Hello struct {
	Hello string `json:"hello"`
}

// schemaVersionMiddleware rejects any request whose schema version header
// does not equal the build version, and echoes the header on accepted
// responses.
func schemaVersionMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		if c.Request().Header.Get(schemaVersionHeader) != wire.SchemaVersion.String() {
			return echo.NewHTTPError(http.StatusBadRequest, "schema version mismatch")
		}
		c.Response().Header().Set(schemaVersionHeader, wire.SchemaVersion.String())
		return next(c)
	}
}

func newEcho() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod: true,
		LogURI:    true,
		LogStatus: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			log.Printf("[balancer] %s %s %d", v.Method, v.URI, v.Status)
			return nil
		},
	}))
	e.Use(middleware.Recover())
	e.Use(schemaVersionMiddleware)

	e.GET("/hello", func(c echo.Context) error {
		return c.JSON(http.StatusOK, Hello{Hello: "world"})
	})
	return e
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3500"
	}

	e := newEcho()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("[balancer] shutting down...")
		cancel()
	}()

	go func() {
		<-ctx.Done()
		shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutCancel()
		if err := e.Shutdown(shutCtx); err != nil {
			log.Printf("[balancer] shutdown: %v", err)
		}
	}()

	log.Printf("[balancer] listening on :%s", port)
	if err := e.Start(":" + port); err != nil && err != http.ErrServerClosed {
		log.Fatalf("[balancer] %v", err)
	}
}
