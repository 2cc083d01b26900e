package server

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/asset-hub/asset-hub/internal/asset"
)

// AssetHandler describes the component responsible for serving proxied asset
// requests. It allows injecting fake handlers during tests.
type AssetHandler interface {
	Handle(c fiber.Ctx, id asset.FileID, filename string) error
}

// AssetHandlerFunc adapts a function to the AssetHandler interface.
type AssetHandlerFunc func(fiber.Ctx, asset.FileID, string) error

// Handle makes AssetHandlerFunc satisfy AssetHandler.
func (f AssetHandlerFunc) Handle(c fiber.Ctx, id asset.FileID, filename string) error {
	return f(c, id, filename)
}

// AppOptions controls how the Fiber application should behave.
type AppOptions struct {
	Logger     *logrus.Logger
	Assets     AssetHandler
	ListenPort int
}

const contextKeyRequestID = "_assethub_request_id"

// NewApp builds a Fiber application with the /f/{id}/{filename} asset route
// and structured error handling.
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Assets == nil {
		return nil, errors.New("asset handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(requestContextMiddleware())

	serve := func(c fiber.Ctx) error {
		rawID := c.Params("id")
		filename := c.Params("filename")
		if !asset.ValidFileID(rawID) {
			return renderInvalidPath(c, opts.Logger, rawID)
		}
		return opts.Assets.Handle(c, asset.FileID(rawID), filename)
	}
	app.Get("/f/:id/:filename", serve)
	app.Head("/f/:id/:filename", serve)

	return app, nil
}

// requestContextMiddleware 负责生成请求 ID，供日志与响应头复用。
func requestContextMiddleware() fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)
		return c.Next()
	}
}

func renderInvalidPath(c fiber.Ctx, logger *logrus.Logger, rawID string) error {
	logger.WithFields(logrus.Fields{
		"action":  "asset_lookup",
		"file_id": rawID,
	}).Warn("invalid asset path")

	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "asset_not_found",
	})
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
