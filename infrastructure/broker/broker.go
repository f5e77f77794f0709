// Package broker is the development stand-in for the classroom message
// broker. It speaks the subset of STOMP 1.2 the client uses over a
// WebSocket and fans published payloads out to topic subscribers.
package broker

import (
	"bytes"
	"classroom-live/observability"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/go-stomp/stomp/v3/frame"
	"github.com/google/uuid"
)

const DefaultSessionBuffer = 64

// Authorizer decides whether username may subscribe to destination.
type Authorizer func(username, destination string) error

type Broker struct {
	log       *slog.Logger
	buffer    int
	authorize Authorizer

	mu       sync.RWMutex
	sessions map[string]*session
	// destination -> session id -> subscription ids
	topics map[string]map[string][]string
}

func New(log *slog.Logger, buffer int, authorize Authorizer) *Broker {
	if buffer <= 0 {
		buffer = DefaultSessionBuffer
	}
	return &Broker{
		log:       log,
		buffer:    buffer,
		authorize: authorize,
		sessions:  make(map[string]*session),
		topics:    make(map[string]map[string][]string),
	}
}

// Publish sends body as a MESSAGE frame to every subscription of destination.
// A session whose buffer is full misses the frame, the publisher never waits.
func (b *Broker) Publish(destination string, body []byte) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	delivered := 0
	for sessionID, subscriptions := range b.topics[destination] {
		s := b.sessions[sessionID]
		for _, subscriptionID := range subscriptions {
			msg := frame.New(frame.MESSAGE,
				frame.Destination, destination,
				frame.Subscription, subscriptionID,
				frame.MessageId, uuid.NewString(),
				frame.ContentType, "application/json",
				frame.ContentLength, strconv.Itoa(len(body)))
			msg.Body = body
			if s.offer(encode(msg)) {
				delivered++
				continue
			}
			observability.RecordDroppedFrame()
			b.log.Warn("Session buffer full, frame dropped", "session", sessionID, "destination", destination)
		}
	}
	observability.RecordPublished(destinationType(destination), delivered)
	b.log.Debug("Published", "destination", destination, "delivered", delivered)
}

// Subscribers counts the subscriptions of destination.
func (b *Broker) Subscribers(destination string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	count := 0
	for _, subscriptions := range b.topics[destination] {
		count += len(subscriptions)
	}
	return count
}

func (b *Broker) register(username string) *session {
	s := &session{
		id:       uuid.NewString(),
		username: username,
		out:      make(chan []byte, b.buffer),
		subs:     make(map[string]string),
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sessions[s.id] = s
	return s
}

// unregister drops every subscription of s and closes its outbox.
func (b *Broker) unregister(s *session) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for subscriptionID, destination := range s.subs {
		b.removeLocked(s, subscriptionID, destination)
	}
	delete(b.sessions, s.id)
	close(s.out)
}

func (b *Broker) subscribe(s *session, subscriptionID, destination string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if previous, ok := s.subs[subscriptionID]; ok {
		b.removeLocked(s, subscriptionID, previous)
	}
	s.subs[subscriptionID] = destination
	if b.topics[destination] == nil {
		b.topics[destination] = make(map[string][]string)
	}
	b.topics[destination][s.id] = append(b.topics[destination][s.id], subscriptionID)
}

func (b *Broker) unsubscribe(s *session, subscriptionID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	destination, ok := s.subs[subscriptionID]
	if !ok {
		return false
	}
	b.removeLocked(s, subscriptionID, destination)
	return true
}

func (b *Broker) removeLocked(s *session, subscriptionID, destination string) {
	delete(s.subs, subscriptionID)
	ids := b.topics[destination][s.id]
	for i, id := range ids {
		if id == subscriptionID {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(b.topics[destination], s.id)
	} else {
		b.topics[destination][s.id] = ids
	}
	if len(b.topics[destination]) == 0 {
		delete(b.topics, destination)
	}
}

// session is one connected client. Writes to out only happen under the
// broker lock, which is also what guards its closing.
type session struct {
	id       string
	username string
	out      chan []byte
	// subscription id -> destination
	subs map[string]string
}

func (s *session) offer(data []byte) bool {
	select {
	case s.out <- data:
		return true
	default:
		return false
	}
}

func encode(f *frame.Frame) []byte {
	var buf bytes.Buffer
	// Writing to a bytes.Buffer doesn't fail
	_ = frame.NewWriter(&buf).Write(f)
	return buf.Bytes()
}

// destinationType keeps metric cardinality low: "/topic/conversations/c1" -> "conversations".
func destinationType(destination string) string {
	parts := strings.Split(strings.Trim(destination, "/"), "/")
	if len(parts) >= 2 {
		return parts[1]
	}
	return parts[0]
}
