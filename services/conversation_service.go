package services

import (
	"classroom-live/contract"
	"classroom-live/domain/chat"
	"classroom-live/errors"
	"classroom-live/infrastructure/wire"
	"classroom-live/observability"
	"classroom-live/projection"
	"classroom-live/runtime"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

type IConversationService interface {
	Open(ctx context.Context, conversationID string) *runtime.Session[chat.Message]
	Send(ctx context.Context, content string) (string, error)
	Retry(ctx context.Context, tempID string) (string, error)
	Timeline() *projection.Timeline[chat.Message]
	Close()
}

// ConversationService is the chat instance of the timeline pipeline for one viewer.
type ConversationService struct {
	log      *slog.Logger
	api      contract.ChatAPI
	viewer   string
	switcher *runtime.Switcher[chat.Message]
	now      func() time.Time
}

func NewConversationService(log *slog.Logger, api contract.ChatAPI, dialer contract.Dialer,
	viewer string, pageSize int, reconnectDelay time.Duration) *ConversationService {
	cfg := runtime.SessionConfig[chat.Message]{
		ScopeType:      "conversation",
		Loader:         runtime.NewHistoryLoader[chat.Message](log, NewConversationPages(api)),
		Dialer:         dialer,
		Decode:         wire.DecodeChatMessage,
		Topic:          chat.Topic,
		ReconnectDelay: reconnectDelay,
	}
	tl := projection.NewTimeline[chat.Message](pageSize)
	return &ConversationService{
		log:      log,
		api:      api,
		viewer:   viewer,
		switcher: runtime.NewSwitcher(log, tl, cfg),
		now:      time.Now,
	}
}

// Open switches the timeline to conversationID.
func (s *ConversationService) Open(ctx context.Context, conversationID string) *runtime.Session[chat.Message] {
	return s.switcher.Open(ctx, conversationID)
}

// Send shows the message right away as pending and posts it.
// The server echo on the live channel confirms it; a failed post leaves
// the pending entry flagged so it can be retried or discarded.
func (s *ConversationService) Send(ctx context.Context, content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: empty message", errors.ErrSendFailed)
	}
	session := s.switcher.Current()
	if session == nil {
		return "", fmt.Errorf("%w: no open conversation", errors.ErrSendFailed)
	}
	msg := chat.OutgoingMessage{
		ConversationID: session.Scope(),
		Sender:         s.viewer,
		Content:        content,
		// Millisecond precision is what the fallback key compares
		SentAt: s.now().UTC().Truncate(time.Millisecond),
	}
	tempID := s.Timeline().AddPending(msg.Draft())
	return tempID, s.post(ctx, tempID, msg)
}

// Retry posts a failed pending message again under a fresh pending entry.
func (s *ConversationService) Retry(ctx context.Context, tempID string) (string, error) {
	for _, p := range s.Timeline().PendingItems() {
		if p.TempID == tempID && p.Failed {
			s.Timeline().DiscardPending(tempID)
			return s.Send(ctx, p.Item.Content)
		}
	}
	return "", fmt.Errorf("%w: no failed message %s", errors.ErrSendFailed, tempID)
}

func (s *ConversationService) Discard(tempID string) bool {
	return s.Timeline().DiscardPending(tempID)
}

func (s *ConversationService) Timeline() *projection.Timeline[chat.Message] {
	return s.switcher.Timeline()
}

func (s *ConversationService) Current() *runtime.Session[chat.Message] {
	return s.switcher.Current()
}

func (s *ConversationService) Viewer() string {
	return s.viewer
}

func (s *ConversationService) Close() {
	s.switcher.Close()
}

func (s *ConversationService) post(ctx context.Context, tempID string, msg chat.OutgoingMessage) error {
	if err := s.api.SendMessage(ctx, msg); err != nil {
		observability.RecordSend(false)
		s.log.Warn("Message not sent", "conversation", msg.ConversationID, "temp_id", tempID, "error", err)
		wrapped := fmt.Errorf("%w: %w", errors.ErrSendFailed, err)
		s.Timeline().FailPending(tempID, wrapped)
		return wrapped
	}
	observability.RecordSend(true)
	return nil
}
