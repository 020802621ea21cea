package controllers

import (
	"net/http"

	"github.com/labstack/echo/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mediamirror/mediamirror/internal/accounting"
)

type StatusController struct {
	Sink *accounting.Sink
}

// Handle returns the live accounting counters.
func (ctrl *StatusController) Handle(c *echo.Context) error {
	return c.JSON(http.StatusOK, ctrl.Sink.Snapshot())
}

// HandleMetrics serves the Prometheus scrape endpoint.
func (ctrl *StatusController) HandleMetrics(c *echo.Context) error {
	promhttp.Handler().ServeHTTP(c.Response(), c.Request())
	return nil
}
