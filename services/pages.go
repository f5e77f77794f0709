package services

import (
	"classroom-live/contract"
	"classroom-live/domain/chat"
	"classroom-live/domain/notification"
	"context"
	"sort"
)

// ConversationPages reads a conversation page by page from the chat API.
type ConversationPages struct {
	api contract.ChatAPI
}

func NewConversationPages(api contract.ChatAPI) *ConversationPages {
	return &ConversationPages{api: api}
}

func (p *ConversationPages) FetchPage(ctx context.Context, conversationID string, cursor, size int) ([]chat.Message, error) {
	return p.api.FetchConversationPage(ctx, conversationID, cursor, size)
}

// NotificationPages windows the unpaginated notification feed into
// newest-first pages so it can be loaded like any other history.
type NotificationPages struct {
	api contract.NotificationAPI
}

func NewNotificationPages(api contract.NotificationAPI) *NotificationPages {
	return &NotificationPages{api: api}
}

func (p *NotificationPages) FetchPage(ctx context.Context, username string, cursor, size int) ([]notification.Notification, error) {
	all, err := p.api.FetchNotifications(ctx, username)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].At.After(all[j].At)
	})
	start := cursor * size
	if start >= len(all) {
		return []notification.Notification{}, nil
	}
	end := min(start+size, len(all))
	return all[start:end], nil
}
