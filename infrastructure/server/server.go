// Package server is the development backend's HTTP surface: the REST
// endpoints the client reads and writes, and the broker WebSocket endpoints.
package server

import (
	"classroom-live/auth"
	"classroom-live/errors"
	"classroom-live/infrastructure/broker"
	"classroom-live/infrastructure/wire"
	"classroom-live/services"
	stdErrors "errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/websocket/v2"
)

const (
	ChatBrokerPath         = "/ws/chat"
	NotificationBrokerPath = "/ws/notifications"
	maxPageSize            = 100
)

type Deps struct {
	Log    *slog.Logger
	Auth   services.IAuthService
	Chat   services.IChatService
	Inbox  services.IInboxService
	Broker *broker.Broker
	Tokens auth.TokenIssuer
}

type response struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
	Result  any    `json:"result,omitempty"`
}

// New builds the fiber application with every route mounted.
func New(deps Deps) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "classroom-live",
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(deps.Log),
	})
	app.Use(recover.New())

	h := handlers{deps: deps}
	app.Get("/metrics", h.metrics)

	app.Post("/auth/register", h.register)
	app.Post("/auth/login", h.login)

	guard := auth.Middleware(deps.Tokens)
	for _, path := range []string{ChatBrokerPath, NotificationBrokerPath} {
		app.Get(path+"/websocket", guard, upgradeOnly, deps.Broker.Handler(auth.UsernameKey))
	}

	app.Get("/chat/startChat/:conversationId", guard, h.history)
	app.Post("/chat/startChat", guard, h.post)
	app.Post("/notifications/read-all", guard, h.markAllRead)
	app.Post("/notifications", guard, h.notify)
	app.Get("/notifications/:username", guard, h.notifications)
	return app
}

// OwnTopicsOnly lets a user subscribe to any conversation but only to their
// own notification topic.
func OwnTopicsOnly(username, destination string) error {
	const prefix = "/topic/notifications/"
	if strings.HasPrefix(destination, prefix) && strings.TrimPrefix(destination, prefix) != username {
		return fmt.Errorf("%w: %s may not subscribe to %s", errors.ErrForbidden, username, destination)
	}
	return nil
}

func upgradeOnly(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

func ok(c *fiber.Ctx, result any) error {
	return c.JSON(response{Code: wire.SuccessCode, Result: result})
}

func errorHandler(log *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		var fiberErr *fiber.Error
		switch {
		case stdErrors.As(err, &fiberErr):
			status = fiberErr.Code
		case stdErrors.Is(err, errors.ErrInvalidPayload), stdErrors.Is(err, errors.ErrInvalidPassword):
			status = fiber.StatusBadRequest
		case stdErrors.Is(err, errors.ErrInvalidCredentials):
			status = fiber.StatusUnauthorized
		case stdErrors.Is(err, errors.ErrForbidden):
			status = fiber.StatusForbidden
		case stdErrors.Is(err, errors.ErrUserAlreadyExists):
			status = fiber.StatusConflict
		case stdErrors.Is(err, errors.ErrContentRejected):
			status = fiber.StatusUnprocessableEntity
		}
		if status >= fiber.StatusInternalServerError {
			log.Error("Request failed", "method", c.Method(), "path", c.Path(), "error", err)
		} else {
			log.Debug("Request refused", "method", c.Method(), "path", c.Path(), "status", status, "error", err)
		}
		return c.Status(status).JSON(response{Code: status, Message: err.Error()})
	}
}
