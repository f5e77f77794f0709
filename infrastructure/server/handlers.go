package server

import (
	"classroom-live/auth"
	"classroom-live/domain/chat"
	"classroom-live/domain/notification"
	"classroom-live/errors"
	"classroom-live/infrastructure/wire"
	"classroom-live/observability"
	"classroom-live/projection"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"
)

type handlers struct {
	deps Deps
}

func (h handlers) metrics(c *fiber.Ctx) error {
	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	observability.WritePrometheus(c.Response().BodyWriter())
	return nil
}

func (h handlers) register(c *fiber.Ctx) error {
	var creds wire.Credentials
	if err := parse(c, &creds); err != nil {
		return err
	}
	token, err := h.deps.Auth.Register(creds.Username, creds.Password)
	if err != nil {
		return err
	}
	return ok(c, wire.TokenResult{Token: token.String()})
}

func (h handlers) login(c *fiber.Ctx) error {
	var creds wire.Credentials
	if err := parse(c, &creds); err != nil {
		return err
	}
	token, err := h.deps.Auth.Login(creds.Username, creds.Password)
	if err != nil {
		return err
	}
	return ok(c, wire.TokenResult{Token: token.String()})
}

// history serves GET /chat/startChat/:conversationId?page=&size=, newest first.
func (h handlers) history(c *fiber.Ctx) error {
	page := c.QueryInt("page", 0)
	size := c.QueryInt("size", projection.DefaultPageSize)
	if page < 0 || size <= 0 || size > maxPageSize {
		return fmt.Errorf("%w: page %d of size %d", errors.ErrInvalidPayload, page, size)
	}
	messages, err := h.deps.Chat.GetMessages(c.Params("conversationId"), page, size)
	if err != nil {
		return err
	}
	return ok(c, lo.Map(messages, func(m chat.Message, _ int) wire.ChatMessage {
		return wire.FromChatMessage(m)
	}))
}

func (h handlers) post(c *fiber.Ctx) error {
	var in wire.OutgoingChatMessage
	if err := parse(c, &in); err != nil {
		return err
	}
	if err := sameUser(c, in.Sender); err != nil {
		return err
	}
	msg, err := h.deps.Chat.PostMessage(chat.OutgoingMessage{
		ConversationID: in.ConversationID,
		Sender:         in.Sender,
		Content:        in.Content,
		SentAt:         in.Time.Time(),
	})
	if err != nil {
		return err
	}
	return ok(c, wire.FromChatMessage(msg))
}

func (h handlers) notifications(c *fiber.Ctx) error {
	username := c.Params("username")
	if err := sameUser(c, username); err != nil {
		return err
	}
	list, err := h.deps.Inbox.List(username)
	if err != nil {
		return err
	}
	return ok(c, lo.Map(list, func(n notification.Notification, _ int) wire.Notification {
		return wire.FromNotification(n)
	}))
}

func (h handlers) markAllRead(c *fiber.Ctx) error {
	username := c.Query("username")
	if username == "" {
		return fmt.Errorf("%w: username is required", errors.ErrInvalidPayload)
	}
	if err := sameUser(c, username); err != nil {
		return err
	}
	updated, err := h.deps.Inbox.MarkAllRead(username)
	if err != nil {
		return err
	}
	return ok(c, fiber.Map{"updated": updated})
}

// notify creates a notification for the body's username, sent by the caller.
func (h handlers) notify(c *fiber.Ctx) error {
	var in wire.Notification
	if err := c.BodyParser(&in); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	in.SenderUsername = auth.Username(c)
	if err := wire.Validate(in); err != nil {
		return err
	}
	n, err := h.deps.Inbox.Notify(notification.Notification{
		Username:       in.Username,
		SenderUsername: in.SenderUsername,
		Content:        in.Content,
		Avatar:         in.Avatar,
		At:             in.Timestamp.Time(),
	})
	if err != nil {
		return err
	}
	return ok(c, wire.FromNotification(n))
}

func parse(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return wire.Validate(out)
}

func sameUser(c *fiber.Ctx, username string) error {
	if caller := auth.Username(c); caller != username {
		return fmt.Errorf("%w: %s acting as %s", errors.ErrForbidden, caller, username)
	}
	return nil
}
