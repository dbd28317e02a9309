package http

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-service/internal/observability"
)

// maxBodyBytes leaves room for base64 attachments on ticket creation.
const maxBodyBytes = 64 << 20

// NewApp builds the fiber application with the JSON error handler and the
// global middleware chain installed. Routes are added by RegisterRoutes.
func NewApp(appName string, logger *zap.Logger, metrics *observability.Metrics, cfg MiddlewareConfig) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               appName,
		BodyLimit:             maxBodyBytes,
		DisableStartupMessage: true,
		ErrorHandler:          ErrorHandler(logger, metrics),
	})
	RegisterMiddlewares(app, logger, metrics, cfg)
	return app
}
