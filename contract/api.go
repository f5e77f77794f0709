//go:generate go run go.uber.org/mock/mockgen -source=api.go -destination=../mocks/mock_api.go -package=mocks
package contract

import (
	"classroom-live/domain/chat"
	"classroom-live/domain/notification"
	"context"
)

type ChatAPI interface {
	FetchConversationPage(ctx context.Context, conversationID string, page, size int) ([]chat.Message, error)
	SendMessage(ctx context.Context, msg chat.OutgoingMessage) error
}

type NotificationAPI interface {
	FetchNotifications(ctx context.Context, username string) ([]notification.Notification, error)
	MarkAllRead(ctx context.Context, username string) error
}
