package workers

import (
	"classroom-live/contract"
	"classroom-live/errors"
	"classroom-live/observability"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Decoder turns one raw broker payload into a timeline item.
type Decoder[T any] func(body []byte) (T, error)

// LiveSubscriber keeps one broker subscription open on a single topic and
// hands every decoded delivery to OnItem, in broker order.
//
// It doesn't retry by itself: a lost connection ends Run with
// errors.ErrLiveConnectionLost and the supervisor starts it again.
// OnReconnect runs after every successful connection made by a retry, so a
// gap is closed even when the very first dial failed.
type LiveSubscriber[T any] struct {
	Log         *slog.Logger
	Name        contract.WorkerName
	ScopeType   string
	dialer      contract.Dialer
	topic       string
	decode      Decoder[T]
	onItem      func(T)
	onReconnect func()
	attempted   atomic.Bool
}

func NewLiveSubscriber[T any](log *slog.Logger, scopeType string, dialer contract.Dialer, topic string,
	decode Decoder[T], onItem func(T), onReconnect func()) *LiveSubscriber[T] {
	return &LiveSubscriber[T]{
		Log:         log,
		Name:        contract.WorkerName("live:" + topic),
		ScopeType:   scopeType,
		dialer:      dialer,
		topic:       topic,
		decode:      decode,
		onItem:      onItem,
		onReconnect: onReconnect,
	}
}

func (w *LiveSubscriber[T]) Run(ctx context.Context) error {
	retry := w.attempted.Swap(true)
	conn, err := w.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("%w: dial: %w", errors.ErrLiveConnectionLost, err)
	}
	defer func() {
		if err := conn.Disconnect(); err != nil {
			w.Log.Debug("Disconnect failed", "topic", w.topic, "error", err)
		}
	}()

	sub, err := conn.Subscribe(w.topic)
	if err != nil {
		return fmt.Errorf("%w: subscribe %s: %w", errors.ErrLiveConnectionLost, w.topic, err)
	}
	// Deferred after Disconnect so it runs first
	defer func() {
		if err := sub.Unsubscribe(); err != nil {
			w.Log.Debug("Unsubscribe failed", "topic", w.topic, "error", err)
		}
	}()

	if retry {
		observability.RecordReconnect(w.ScopeType)
		w.Log.Info("Live channel reconnected", "topic", w.topic)
		if w.onReconnect != nil {
			w.onReconnect()
		}
	} else {
		w.Log.Info("Live channel connected", "topic", w.topic)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-sub.Deliveries():
			if !ok {
				return fmt.Errorf("%w: %s closed", errors.ErrLiveConnectionLost, w.topic)
			}
			if delivery.Err != nil {
				return fmt.Errorf("%w: %w", errors.ErrLiveConnectionLost, delivery.Err)
			}
			w.handle(delivery.Body)
		}
	}
}

func (w *LiveSubscriber[T]) handle(body []byte) {
	item, err := w.decode(body)
	if err != nil {
		observability.RecordDecodeFailure(w.ScopeType)
		w.Log.Warn("Dropping undecodable live payload", "topic", w.topic, "error", err)
		return
	}
	observability.RecordLiveDelivery(w.ScopeType)
	w.onItem(item)
}
