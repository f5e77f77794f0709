package services

import (
	"classroom-live/contract"
	"classroom-live/domain/chat"
	"classroom-live/errors"
	"classroom-live/infrastructure/wire"
	"classroom-live/moderation"
	"classroom-live/observability"
	"classroom-live/repositories"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IChatService interface {
	PostMessage(msg chat.OutgoingMessage) (chat.Message, error)
	GetMessages(conversationID string, page, size int) ([]chat.Message, error)
}

// ChatService is the development backend side of a conversation: it stores
// posted messages and echoes them on the conversation topic.
type ChatService struct {
	log        *slog.Logger
	repository repositories.IMessageRepository
	moderator  *moderation.Moderator
	publisher  contract.Publisher
	now        func() time.Time
}

func NewChatService(log *slog.Logger, repository repositories.IMessageRepository,
	moderator *moderation.Moderator, publisher contract.Publisher) *ChatService {
	return &ChatService{
		log:        log,
		repository: repository,
		moderator:  moderator,
		publisher:  publisher,
		now:        time.Now,
	}
}

// PostMessage stores msg and publishes it to its conversation topic.
// The echo carries the posted time and content untouched so the sender can
// reconcile it with its optimistic copy; content failing moderation is refused.
func (s *ChatService) PostMessage(msg chat.OutgoingMessage) (chat.Message, error) {
	if strings.TrimSpace(msg.Content) == "" {
		return chat.Message{}, fmt.Errorf("%w: empty content", errors.ErrInvalidPayload)
	}
	if s.moderator != nil {
		if _, words := s.moderator.Censor(msg.Content); len(words) > 0 {
			observability.RecordCensored()
			s.log.Info("Message refused by moderation", "conversation", msg.ConversationID, "sender", msg.Sender, "words", len(words))
			return chat.Message{}, errors.ErrContentRejected
		}
	}
	at := msg.SentAt
	if at.IsZero() {
		at = s.now()
	}

	disk := repositories.DiskMessage{
		ID:             uuid.New(),
		ConversationID: msg.ConversationID,
		Sender:         msg.Sender,
		Content:        msg.Content,
		At:             at.UTC().Truncate(time.Millisecond),
	}
	if err := s.repository.StoreMessage(disk); err != nil {
		return chat.Message{}, err
	}

	stored := toMessage(disk)
	body, err := json.Marshal(wire.FromChatMessage(stored))
	if err != nil {
		return chat.Message{}, err
	}
	s.publisher.Publish(chat.Topic(stored.ConversationID), body)
	s.log.Debug("Message posted", "conversation", stored.ConversationID, "id", stored.ID)
	return stored, nil
}

// GetMessages returns one page of a conversation, newest first.
func (s *ChatService) GetMessages(conversationID string, page, size int) ([]chat.Message, error) {
	disk, err := s.repository.GetPage(conversationID, page, size)
	if err != nil {
		return nil, err
	}
	return lo.Map(disk, func(m repositories.DiskMessage, _ int) chat.Message {
		return toMessage(m)
	}), nil
}

func toMessage(m repositories.DiskMessage) chat.Message {
	return chat.Message{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		Content:        m.Content,
		SentAt:         m.At,
	}
}
