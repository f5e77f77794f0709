package services

import (
	"classroom-live/contract"
	"context"
	"sync"
)

// feed is an in-memory broker used to drive the live side of a service.
type feed struct {
	mu   sync.Mutex
	subs map[string]chan contract.Delivery
}

func newFeed() *feed {
	return &feed{subs: make(map[string]chan contract.Delivery)}
}

func (f *feed) Dial(context.Context) (contract.LiveConnection, error) {
	return f, nil
}

func (f *feed) Subscribe(destination string) (contract.LiveSubscription, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch := make(chan contract.Delivery, 16)
	f.subs[destination] = ch
	return &feedSubscription{feed: f, topic: destination, ch: ch}, nil
}

func (f *feed) Disconnect() error { return nil }

func (f *feed) subscribed(topic string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.subs[topic]
	return ok
}

func (f *feed) publish(topic, body string) bool {
	f.mu.Lock()
	ch, ok := f.subs[topic]
	f.mu.Unlock()
	if ok {
		ch <- contract.Delivery{Body: []byte(body)}
	}
	return ok
}

type feedSubscription struct {
	feed  *feed
	topic string
	ch    chan contract.Delivery
}

func (s *feedSubscription) Deliveries() <-chan contract.Delivery { return s.ch }

func (s *feedSubscription) Unsubscribe() error {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	if s.feed.subs[s.topic] == s.ch {
		delete(s.feed.subs, s.topic)
	}
	return nil
}
