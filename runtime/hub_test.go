package runtime

import (
	"classroom-live/contract"
	"context"
	"fmt"
	"sync"
)

// hub is an in-memory broker: every Dial gets a connection whose
// subscriptions can be fed or dropped by the test.
type hub struct {
	mu      sync.Mutex
	subs    map[string]*hubSubscription
	trace   []string
	refuse  bool
	dialled int
}

func newHub() *hub {
	return &hub{subs: make(map[string]*hubSubscription)}
}

func (h *hub) record(step string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.trace = append(h.trace, step)
}

func (h *hub) steps() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string{}, h.trace...)
}

func (h *hub) dials() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.dialled
}

func (h *hub) Dial(ctx context.Context) (contract.LiveConnection, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.refuse {
		return nil, fmt.Errorf("connection refused")
	}
	h.dialled++
	return &hubConnection{hub: h}, nil
}

// publish delivers body to the current subscriber of topic
func (h *hub) publish(topic string, body string) bool {
	h.mu.Lock()
	sub, ok := h.subs[topic]
	h.mu.Unlock()
	if !ok {
		return false
	}
	sub.ch <- contract.Delivery{Body: []byte(body)}
	return true
}

// drop simulates a transport failure on topic
func (h *hub) drop(topic string) {
	h.mu.Lock()
	sub, ok := h.subs[topic]
	delete(h.subs, topic)
	h.mu.Unlock()
	if ok {
		sub.closeOnce.Do(func() { close(sub.ch) })
	}
}

func (h *hub) subscribed(topic string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.subs[topic]
	return ok
}

type hubConnection struct {
	hub *hub
}

func (c *hubConnection) Subscribe(destination string) (contract.LiveSubscription, error) {
	sub := &hubSubscription{hub: c.hub, topic: destination, ch: make(chan contract.Delivery, 16)}
	c.hub.mu.Lock()
	c.hub.subs[destination] = sub
	c.hub.trace = append(c.hub.trace, "subscribe "+destination)
	c.hub.mu.Unlock()
	return sub, nil
}

func (c *hubConnection) Disconnect() error {
	c.hub.record("disconnect")
	return nil
}

type hubSubscription struct {
	hub       *hub
	topic     string
	ch        chan contract.Delivery
	closeOnce sync.Once
}

func (s *hubSubscription) Deliveries() <-chan contract.Delivery { return s.ch }

func (s *hubSubscription) Unsubscribe() error {
	s.hub.mu.Lock()
	if s.hub.subs[s.topic] == s {
		delete(s.hub.subs, s.topic)
	}
	s.hub.trace = append(s.hub.trace, "unsubscribe "+s.topic)
	s.hub.mu.Unlock()
	return nil
}
