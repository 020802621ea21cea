package api

import (
	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"

	"github.com/mediamirror/mediamirror/internal/accounting"
	"github.com/mediamirror/mediamirror/internal/api/controllers"
	"github.com/mediamirror/mediamirror/internal/infra/logger"
)

// RegisterRoutes wires the status endpoints onto e. The server is optional
// and read-only: it observes the run, it cannot steer it.
func RegisterRoutes(e *echo.Echo, sink *accounting.Sink, log *logger.Logger) {

	// Middleware: Request Logger
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogStatus:  true,
		LogURI:     true,
		LogMethod:  true,
		LogLatency: true,
		LogValuesFunc: func(c *echo.Context, v middleware.RequestLoggerValues) error {
			log.Info("%s %s | %d | %s", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	statusCtrl := &controllers.StatusController{Sink: sink}

	// Live accounting snapshot for operators watching a long run
	e.GET("/status", statusCtrl.Handle)

	// Prometheus scrape endpoint
	e.GET("/metrics", statusCtrl.HandleMetrics)
}
