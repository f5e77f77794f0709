package wire

import (
	"classroom-live/domain/chat"
	"classroom-live/domain/notification"
	"classroom-live/errors"
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// SuccessCode is the envelope code of a successful backend call.
const SuccessCode = 1000

type Envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
}

type ChatMessage struct {
	ID             ID        `json:"id" validate:"required"`
	Content        string    `json:"content" validate:"max=4000"`
	Sender         string    `json:"sender" validate:"required"`
	Time           Timestamp `json:"time"`
	ConversationID string    `json:"conversationId,omitempty"`
}

type OutgoingChatMessage struct {
	Content        string    `json:"content" validate:"required,max=4000"`
	Time           Timestamp `json:"time"`
	ConversationID string    `json:"conversationId" validate:"required"`
	Sender         string    `json:"sender" validate:"required"`
}

type Notification struct {
	ID             ID        `json:"id,omitempty"`
	Username       string    `json:"username,omitempty"`
	SenderUsername string    `json:"senderUsername" validate:"required"`
	Content        string    `json:"content" validate:"required"`
	Timestamp      Timestamp `json:"timestamp"`
	Avatar         string    `json:"avatar,omitempty"`
	Read           bool      `json:"read"`
}

type Credentials struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type TokenResult struct {
	Token string `json:"token"`
}

// DecodeChatMessage parses one broker payload of a conversation topic.
func DecodeChatMessage(body []byte) (chat.Message, error) {
	var w ChatMessage
	if err := json.Unmarshal(body, &w); err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return w.ToDomain()
}

// DecodeNotification parses one broker payload of a notification topic.
// Live notifications carry no id and are matched on their fallback key.
func DecodeNotification(body []byte) (notification.Notification, error) {
	var w Notification
	if err := json.Unmarshal(body, &w); err != nil {
		return notification.Notification{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return w.ToDomain()
}

// DecodeResult unwraps a backend envelope into out.
func DecodeResult(body []byte, out any) error {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return fmt.Errorf("%w: empty result (code %d)", errors.ErrMalformedPayload, env.Code)
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	return nil
}

func (w ChatMessage) ToDomain() (chat.Message, error) {
	if err := validate.Struct(w); err != nil {
		return chat.Message{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	if w.Time.Time().IsZero() {
		return chat.Message{}, fmt.Errorf("%w: message %s has no time", errors.ErrMalformedPayload, w.ID)
	}
	return chat.Message{
		ID:             string(w.ID),
		ConversationID: w.ConversationID,
		Sender:         w.Sender,
		Content:        w.Content,
		SentAt:         w.Time.Time().UTC(),
	}, nil
}

func (w Notification) ToDomain() (notification.Notification, error) {
	if err := validate.Struct(w); err != nil {
		return notification.Notification{}, fmt.Errorf("%w: %v", errors.ErrMalformedPayload, err)
	}
	if w.Timestamp.Time().IsZero() {
		return notification.Notification{}, fmt.Errorf("%w: notification has no timestamp", errors.ErrMalformedPayload)
	}
	return notification.Notification{
		ID:             string(w.ID),
		Username:       w.Username,
		SenderUsername: w.SenderUsername,
		Content:        w.Content,
		Avatar:         w.Avatar,
		At:             w.Timestamp.Time().UTC(),
		Read:           w.Read,
	}, nil
}

func FromChatMessage(m chat.Message) ChatMessage {
	return ChatMessage{
		ID:             ID(m.ID),
		Content:        m.Content,
		Sender:         m.Sender,
		Time:           Timestamp(m.SentAt),
		ConversationID: m.ConversationID,
	}
}

func FromOutgoing(o chat.OutgoingMessage) OutgoingChatMessage {
	return OutgoingChatMessage{
		Content:        o.Content,
		Time:           Timestamp(o.SentAt),
		ConversationID: o.ConversationID,
		Sender:         o.Sender,
	}
}

func FromNotification(n notification.Notification) Notification {
	return Notification{
		ID:             ID(n.ID),
		Username:       n.Username,
		SenderUsername: n.SenderUsername,
		Content:        n.Content,
		Timestamp:      Timestamp(n.At),
		Avatar:         n.Avatar,
		Read:           n.Read,
	}
}

// Validate checks a request body decoded by the backend.
func Validate(v any) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrInvalidPayload, err)
	}
	return nil
}
