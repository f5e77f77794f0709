package runtime

import (
	"classroom-live/contract"
	"classroom-live/observability"
	"classroom-live/projection"
	"classroom-live/runtime/workers"
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionConfig describes how one scope is fed.
type SessionConfig[T projection.Item] struct {
	// ScopeType labels logs and metrics ("conversation", "notification")
	ScopeType      string
	Loader         *HistoryLoader[T]
	Dialer         contract.Dialer
	Decode         workers.Decoder[T]
	Topic          func(scope string) string
	ReconnectDelay time.Duration
}

// Session owns the resources of one open scope: its history requests and its
// live connection. Closing it releases both; the timeline itself is shared.
type Session[T projection.Item] struct {
	log        *slog.Logger
	cfg        SessionConfig[T]
	scope      string
	generation uint64
	timeline   *projection.Timeline[T]

	ctx        context.Context
	cancel     context.CancelFunc
	supervisor *workers.Supervisor
	done       chan struct{}
	fetches    sync.WaitGroup
	closeOnce  sync.Once
}

// OpenSession resets the timeline to scope, requests the most recent page and
// connects the live channel.
func OpenSession[T projection.Item](parent context.Context, log *slog.Logger, timeline *projection.Timeline[T],
	cfg SessionConfig[T], scope string) *Session[T] {
	ctx, cancel := context.WithCancel(parent)
	ticket := timeline.Reset(scope)
	s := &Session[T]{
		log:        log.With("scope_type", cfg.ScopeType, "scope", scope),
		cfg:        cfg,
		scope:      scope,
		generation: ticket.Generation,
		timeline:   timeline,
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}

	s.RequestMoreHistory()

	live := workers.NewLiveSubscriber(s.log, cfg.ScopeType, cfg.Dialer, cfg.Topic(scope), cfg.Decode, s.appendLive, s.resync)
	s.supervisor = workers.NewSupervisor(s.log, cfg.ReconnectDelay).Add(live)
	go func() {
		defer close(s.done)
		s.supervisor.Run(ctx)
	}()
	return s
}

func (s *Session[T]) Scope() string {
	return s.scope
}

func (s *Session[T]) Generation() uint64 {
	return s.generation
}

func (s *Session[T]) Timeline() *projection.Timeline[T] {
	return s.timeline
}

// RequestMoreHistory dispatches the next history page in the background.
// It is a no-op while a fetch is in flight or once history is exhausted.
func (s *Session[T]) RequestMoreHistory() bool {
	if s.ctx.Err() != nil {
		return false
	}
	ticket, ok := s.timeline.BeginFetch()
	if !ok {
		return false
	}
	s.fetches.Add(1)
	go func() {
		defer s.fetches.Done()
		_ = s.load(ticket)
	}()
	return true
}

// LoadMoreHistory fetches the next history page and waits for it.
// dispatched is false when the guards refused the request.
func (s *Session[T]) LoadMoreHistory() (dispatched bool, err error) {
	if s.ctx.Err() != nil {
		return false, nil
	}
	ticket, ok := s.timeline.BeginFetch()
	if !ok {
		return false, nil
	}
	return true, s.load(ticket)
}

// OnViewport is called by the renderer with the first visible absolute index.
func (s *Session[T]) OnViewport(firstVisible, threshold int) bool {
	if !s.timeline.WantsMore(firstVisible, threshold) {
		return false
	}
	return s.RequestMoreHistory()
}

// WaitHistory blocks until the background history requests returned.
func (s *Session[T]) WaitHistory() {
	s.fetches.Wait()
}

// Close cancels in-flight requests, unsubscribes and disconnects the live
// channel, and returns once the connection is released.
func (s *Session[T]) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		s.supervisor.Stop()
		<-s.done
		s.log.Debug("Session closed")
	})
}

func (s *Session[T]) load(ticket projection.Ticket) error {
	page, err := s.cfg.Loader.Load(s.ctx, s.scope, ticket.Cursor, s.timeline.PageSize())
	if err != nil {
		observability.RecordHistoryFetch(s.cfg.ScopeType, false)
		if failErr := s.timeline.FailFetch(ticket, err); failErr != nil {
			s.stale(ticket.Generation)
		}
		return err
	}
	observability.RecordHistoryFetch(s.cfg.ScopeType, true)
	if _, err := s.timeline.PrependPage(ticket, page); err != nil {
		s.stale(ticket.Generation)
		return err
	}
	return nil
}

func (s *Session[T]) appendLive(item T) {
	if _, err := s.timeline.AppendLive(s.generation, item); err != nil {
		s.stale(s.generation)
	}
}

// resync closes the gap left by a reconnect with a fresh most recent page.
func (s *Session[T]) resync() {
	page, err := s.cfg.Loader.Load(s.ctx, s.scope, 0, s.timeline.PageSize())
	if err != nil {
		observability.RecordHistoryFetch(s.cfg.ScopeType, false)
		s.log.Warn("Resync after reconnect failed", "error", err)
		return
	}
	observability.RecordHistoryFetch(s.cfg.ScopeType, true)
	added, err := s.timeline.MergeLatest(s.generation, page)
	if err != nil {
		s.stale(s.generation)
		return
	}
	s.log.Debug("Resynced after reconnect", "added", added)
}

func (s *Session[T]) stale(generation uint64) {
	observability.RecordStaleResponse(s.cfg.ScopeType)
	s.log.Debug("Discarded response of a previous scope", "generation", generation)
}
