// Package chat contains the conversation concepts shared by the client
// and the development backend.
package chat

import (
	"classroom-live/projection"
	"fmt"
	"time"
)

// Message is a confirmed chat message. Immutable once received.
type Message struct {
	ID             string
	ConversationID string
	Sender         string
	Content        string
	SentAt         time.Time
}

func (m Message) ItemID() string        { return m.ID }
func (m Message) OccurredAt() time.Time { return m.SentAt }
func (m Message) FallbackKey() string {
	return projection.FallbackKey(m.Sender, m.SentAt, m.Content)
}

// IsOwn reports whether the viewer wrote the message
func (m Message) IsOwn(viewer string) bool {
	return m.Sender == viewer
}

// OutgoingMessage is what the client posts; the server assigns the id.
type OutgoingMessage struct {
	ConversationID string
	Sender         string
	Content        string
	SentAt         time.Time
}

// Draft is the optimistic copy shown while the send is in flight.
func (o OutgoingMessage) Draft() Message {
	return Message{
		ConversationID: o.ConversationID,
		Sender:         o.Sender,
		Content:        o.Content,
		SentAt:         o.SentAt,
	}
}

// Topic is the broker destination carrying a conversation's live messages.
func Topic(conversationID string) string {
	return fmt.Sprintf("/topic/conversations/%s", conversationID)
}
