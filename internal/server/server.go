package server

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"productsapi/docs"
	"productsapi/internal/handlers"
	"productsapi/internal/middleware"
)

const requestIDKey = "requestid"

// Options configures the HTTP shell.
type Options struct {
	// FrontendURL is the only origin admitted by the CORS gate.
	FrontendURL string
	// AccessLog receives one line per request; nil disables access logging.
	AccessLog io.Writer
}

// New builds the Fiber app: recover, request id, access log, health check,
// CORS gate, product routes and API docs, in that order.
func New(opts Options, productHandler *handlers.ProductHandler) (*fiber.App, error) {
	openAPIJSON, err := docs.JSON()
	if err != nil {
		return nil, fmt.Errorf("failed to load api docs: %w", err)
	}

	app := fiber.New(fiber.Config{
		AppName:      "products-api",
		ErrorHandler: errorHandler,
	})

	app.Use(recover.New())
	app.Use(requestid.New(requestid.Config{
		Generator:  uuid.NewString,
		ContextKey: requestIDKey,
	}))
	if opts.AccessLog != nil {
		app.Use(logger.New(logger.Config{
			Format: "${time} ${locals:" + requestIDKey + "} ${ip} ${method} ${url} ${status} ${bytesSent} - ${latency}\n",
			Output: opts.AccessLog,
		}))
	}

	// Registered before the CORS gate so probes without an Origin header pass.
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	app.Use(middleware.CORS(middleware.NewOriginPolicy(opts.FrontendURL)))

	api := app.Group("/api")
	productHandler.RegisterRoutes(api)

	app.Get("/docs", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSONCharsetUTF8)
		return c.Send(openAPIJSON)
	})
	app.Get("/docs/openapi.yaml", func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderContentType, "application/yaml")
		return c.Send(docs.YAML())
	})

	return app, nil
}

// errorHandler renders errors that escaped the handlers.
func errorHandler(c *fiber.Ctx, err error) error {
	var originErr *middleware.OriginError
	if errors.As(err, &originErr) {
		log.Warn().
			Str("origin", originErr.Origin).
			Str("path", c.Path()).
			Msg("request blocked by CORS policy")
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": originErr.Reason})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
	}

	log.Error().
		Err(err).
		Str("request_id", fmt.Sprint(c.Locals(requestIDKey))).
		Str("method", c.Method()).
		Str("path", c.Path()).
		Msg("unhandled request error")
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "Error interno del servidor",
	})
}
