package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/font-hub/font-hub/internal/logging"
)

// AppOptions controls how the Fiber application should behave on a specific port.
type AppOptions struct {
	Logger     *logrus.Logger
	ListenPort int
}

const contextKeyRequestID = "_fonthub_request_id"

// NewApp builds a Fiber application with request-id, access logging and
// structured error handling. Routes are attached by the routes package.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
		ErrorHandler:  errorHandler(opts.Logger),
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware(opts))

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，并在请求结束后输出访问日志。
func requestContextMiddleware(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		started := time.Now()
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		err := c.Next()

		status := c.Response().StatusCode()
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			status = fiberErr.Code
		} else if err != nil {
			status = fiber.StatusInternalServerError
		}
		fields := logging.RequestFields(reqID, c.Method(), c.Path(), status)
		fields["action"] = "http"
		fields["port"] = opts.ListenPort
		fields["elapsed_ms"] = time.Since(started).Milliseconds()
		if err != nil {
			fields["error"] = err.Error()
			opts.Logger.WithFields(fields).Warn("request_failed")
			return err
		}
		opts.Logger.WithFields(fields).Debug("request_complete")
		return nil
	}
}

// errorHandler 把未处理的错误统一渲染为 {"error": "..."}。
func errorHandler(logger *logrus.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "internal_error"
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = errorCodeForStatus(code)
		} else {
			logger.WithFields(logrus.Fields{
				"action":     "http",
				"request_id": RequestID(c),
				"error":      err.Error(),
			}).Error("unhandled_error")
		}
		return c.Status(code).JSON(fiber.Map{"error": message})
	}
}

func errorCodeForStatus(code int) string {
	switch code {
	case fiber.StatusNotFound:
		return "route_not_found"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	case fiber.StatusBadRequest:
		return "bad_request"
	default:
		return "internal_error"
	}
}

// RequestID returns the request identifier stored by the router middleware.
func RequestID(c fiber.Ctx) string {
	if value := c.Locals(contextKeyRequestID); value != nil {
		if reqID, ok := value.(string); ok {
			return reqID
		}
	}
	return ""
}
