package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"

	"github.com/font-hub/font-hub/internal/metrics"
)

// RegisterMetricsRoutes 在 /-/metrics 暴露 Prometheus 指标。
func RegisterMetricsRoutes(app *fiber.App, recorder *metrics.Recorder) {
	if app == nil || recorder == nil {
		return
	}
	app.Get("/-/metrics", adaptor.HTTPHandler(recorder.Handler()))
}
