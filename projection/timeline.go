package projection

import (
	"classroom-live/errors"
	"sync"

	"github.com/google/uuid"
)

// Ticket authorizes exactly one history response.
// A response is only applied while its generation is still current.
type Ticket struct {
	Scope      string
	Generation uint64
	Cursor     int
}

// Pending is a locally sent item waiting for its server echo.
type Pending[T Item] struct {
	TempID string
	Item   T
	Failed bool
	Err    error
}

// Entry is a renderable row: a confirmed item or a pending one.
type Entry[T Item] struct {
	Index   int
	Item    T
	TempID  string
	Pending bool
	Failed  bool
}

// State is a consistent snapshot of the pagination bookkeeping.
type State struct {
	Scope             string
	Generation        uint64
	AnchorIndex       int
	NextCursor        int
	Len               int
	Pending           int
	HasMoreHistory    bool
	IsFetchingHistory bool
	InitialLoaded     bool
	HistoryErr        error
}

// Timeline is the ordered, deduplicated, oldest-first list of items of one
// scope. History is prepended, live items are appended.
// All methods are safe for concurrent use. Sinks are called outside the
// state lock, one event at a time and in commit order, and may read or
// mutate the timeline.
type Timeline[T Item] struct {
	mu sync.Mutex

	pageSize   int
	scope      string
	generation uint64

	items []T
	ids   map[string]struct{}
	// fallback keys of the confirmed items
	keys    map[string]struct{}
	pending []Pending[T]

	anchorIndex    int
	nextCursor     int
	hasMoreHistory bool
	isFetching     bool
	initialLoaded  bool
	historyErr     error

	sinks    []Sink
	queue    []Event
	emitting bool
}

func NewTimeline[T Item](pageSize int) *Timeline[T] {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Timeline[T]{
		pageSize:    pageSize,
		ids:         make(map[string]struct{}),
		keys:        make(map[string]struct{}),
		anchorIndex: FirstIndex,
	}
}

func (t *Timeline[T]) Subscribe(sink ...Sink) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sinks = append(t.sinks, sink...)
}

func (t *Timeline[T]) PageSize() int {
	return t.pageSize
}

// Reset clears the timeline for a new scope and invalidates every response
// requested for the previous one. Resetting twice to the same scope yields
// the same state.
func (t *Timeline[T]) Reset(scope string) Ticket {
	t.mu.Lock()
	t.generation++
	t.scope = scope
	t.items = nil
	t.ids = make(map[string]struct{})
	t.keys = make(map[string]struct{})
	t.pending = nil
	t.anchorIndex = FirstIndex
	t.nextCursor = 0
	t.hasMoreHistory = true
	t.isFetching = false
	t.initialLoaded = false
	t.historyErr = nil
	ticket := Ticket{Scope: scope, Generation: t.generation}
	t.commit(t.event(EventReset, 0, nil))
	return ticket
}

// BeginFetch reserves the next history page.
// It refuses while a fetch is in flight or once history is exhausted.
func (t *Timeline[T]) BeginFetch() (Ticket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isFetching || !t.hasMoreHistory {
		return Ticket{}, false
	}
	t.isFetching = true
	return Ticket{Scope: t.scope, Generation: t.generation, Cursor: t.nextCursor}, true
}

// PrependPage inserts an oldest-first page before the current items.
// Items already present are dropped, and the anchor moves back by the number
// of items actually inserted. A page shorter than the page size ends history.
func (t *Timeline[T]) PrependPage(ticket Ticket, page []T) (int, error) {
	t.mu.Lock()
	if ticket.Generation != t.generation {
		t.mu.Unlock()
		return 0, errors.ErrStaleScope
	}
	t.isFetching = false

	fresh := make([]T, 0, len(page))
	for _, item := range page {
		if !t.admit(item) {
			continue
		}
		fresh = append(fresh, item)
		t.resolvePending(item)
	}
	t.items = append(fresh, t.items...)
	t.anchorIndex -= len(fresh)
	t.nextCursor = ticket.Cursor + 1
	if len(page) < t.pageSize {
		t.hasMoreHistory = false
	}

	kind := EventPrepended
	if !t.initialLoaded {
		t.initialLoaded = true
		kind = EventInitialLoaded
	}
	t.commit(t.event(kind, len(fresh), nil))
	return len(fresh), nil
}

// FailFetch records a failed history request. Pagination stops for the scope
// and items already loaded stay untouched.
func (t *Timeline[T]) FailFetch(ticket Ticket, cause error) error {
	t.mu.Lock()
	if ticket.Generation != t.generation {
		t.mu.Unlock()
		return errors.ErrStaleScope
	}
	t.isFetching = false
	t.hasMoreHistory = false
	t.historyErr = cause
	t.commit(t.event(EventHistoryFailed, 0, cause))
	return nil
}

// AppendLive appends a live item at the tail.
// An item whose identity is already known is dropped and existing items are
// never modified. A matching optimistic entry is resolved.
func (t *Timeline[T]) AppendLive(generation uint64, item T) (bool, error) {
	t.mu.Lock()
	if generation != t.generation {
		t.mu.Unlock()
		return false, errors.ErrStaleScope
	}
	resolved := t.resolvePending(item)
	if !t.admit(item) {
		if resolved {
			t.commit(t.event(EventPendingChanged, 0, nil))
			return false, nil
		}
		t.mu.Unlock()
		return false, nil
	}
	t.items = append(t.items, item)

	events := []Event{t.event(EventAppended, 1, nil)}
	if resolved {
		events = append(events, t.event(EventPendingChanged, 0, nil))
	}
	t.commit(events...)
	return true, nil
}

// MergeLatest appends the items of a freshly fetched most recent page
// (oldest-first) that are newer than the current tail and not yet present.
// It is used to catch up after the live channel reconnected.
func (t *Timeline[T]) MergeLatest(generation uint64, page []T) (int, error) {
	t.mu.Lock()
	if generation != t.generation {
		t.mu.Unlock()
		return 0, errors.ErrStaleScope
	}
	resolved := false
	added := 0
	for _, item := range page {
		if t.known(item) {
			t.admit(item)
			continue
		}
		if n := len(t.items); n > 0 && item.OccurredAt().Before(t.items[n-1].OccurredAt()) {
			continue
		}
		t.admit(item)
		t.items = append(t.items, item)
		added++
		if t.resolvePending(item) {
			resolved = true
		}
	}
	var events []Event
	if added > 0 {
		events = append(events, t.event(EventAppended, added, nil))
	}
	if resolved {
		events = append(events, t.event(EventPendingChanged, 0, nil))
	}
	if len(events) == 0 {
		t.mu.Unlock()
		return 0, nil
	}
	t.commit(events...)
	return added, nil
}

// AddPending registers an optimistic item shown after the confirmed ones.
// It never enters the confirmed list; the server echo replaces it.
func (t *Timeline[T]) AddPending(item T) string {
	t.mu.Lock()
	tempID := "local-" + uuid.NewString()
	t.pending = append(t.pending, Pending[T]{TempID: tempID, Item: item})
	t.commit(t.event(EventPendingChanged, 0, nil))
	return tempID
}

// FailPending marks an optimistic item as failed. It stays visible until
// discarded so the user can retry it.
func (t *Timeline[T]) FailPending(tempID string, cause error) bool {
	t.mu.Lock()
	for i := range t.pending {
		if t.pending[i].TempID == tempID {
			t.pending[i].Failed = true
			t.pending[i].Err = cause
			t.commit(t.event(EventPendingChanged, 0, cause))
			return true
		}
	}
	t.mu.Unlock()
	return false
}

func (t *Timeline[T]) DiscardPending(tempID string) bool {
	t.mu.Lock()
	for i := range t.pending {
		if t.pending[i].TempID == tempID {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			t.commit(t.event(EventPendingChanged, 0, nil))
			return true
		}
	}
	t.mu.Unlock()
	return false
}

// Mutate applies fn to the confirmed items in place.
// fn must not change item identities.
func (t *Timeline[T]) Mutate(generation uint64, fn func(items []T)) error {
	t.mu.Lock()
	if generation != t.generation {
		t.mu.Unlock()
		return errors.ErrStaleScope
	}
	fn(t.items)
	t.commit(t.event(EventUpdated, 0, nil))
	return nil
}

func (t *Timeline[T]) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.generation
}

func (t *Timeline[T]) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return State{
		Scope:             t.scope,
		Generation:        t.generation,
		AnchorIndex:       t.anchorIndex,
		NextCursor:        t.nextCursor,
		Len:               len(t.items),
		Pending:           len(t.pending),
		HasMoreHistory:    t.hasMoreHistory,
		IsFetchingHistory: t.isFetching,
		InitialLoaded:     t.initialLoaded,
		HistoryErr:        t.historyErr,
	}
}

// Items returns a copy of the confirmed items, oldest first.
func (t *Timeline[T]) Items() []T {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]T, len(t.items))
	copy(out, t.items)
	return out
}

func (t *Timeline[T]) PendingItems() []Pending[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Pending[T], len(t.pending))
	copy(out, t.pending)
	return out
}

// Entries returns every renderable row with its absolute index.
// Pending rows follow the confirmed ones.
func (t *Timeline[T]) Entries() []Entry[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window(t.anchorIndex, t.anchorIndex+len(t.items)+len(t.pending))
}

// Window returns the rows whose absolute index is in [from, to).
func (t *Timeline[T]) Window(from, to int) []Entry[T] {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window(from, to)
}

// NearTop reports whether the first visible absolute index is within
// threshold rows of the oldest loaded item.
func (t *Timeline[T]) NearTop(firstVisible, threshold int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return firstVisible-t.anchorIndex <= threshold
}

// WantsMore reports whether scrolling to firstVisible should load an older page.
func (t *Timeline[T]) WantsMore(firstVisible, threshold int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.initialLoaded && t.hasMoreHistory && !t.isFetching &&
		firstVisible-t.anchorIndex <= threshold
}

func (t *Timeline[T]) window(from, to int) []Entry[T] {
	end := t.anchorIndex + len(t.items) + len(t.pending)
	from = max(from, t.anchorIndex)
	to = min(to, end)
	if from >= to {
		return nil
	}
	out := make([]Entry[T], 0, to-from)
	for idx := from; idx < to; idx++ {
		offset := idx - t.anchorIndex
		if offset < len(t.items) {
			out = append(out, Entry[T]{Index: idx, Item: t.items[offset]})
			continue
		}
		p := t.pending[offset-len(t.items)]
		out = append(out, Entry[T]{Index: idx, Item: p.Item, TempID: p.TempID, Pending: true, Failed: p.Failed})
	}
	return out
}

// resolvePending drops the first optimistic entry matching item.
// Caller holds t.mu.
func (t *Timeline[T]) resolvePending(item T) bool {
	if len(t.pending) == 0 {
		return false
	}
	key := item.FallbackKey()
	for i := range t.pending {
		if t.pending[i].Item.FallbackKey() == key {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			return true
		}
	}
	return false
}

func (t *Timeline[T]) event(kind EventKind, count int, err error) Event {
	return Event{
		Kind:        kind,
		Scope:       t.scope,
		Generation:  t.generation,
		AnchorIndex: t.anchorIndex,
		Count:       count,
		Err:         err,
	}
}

// known reports whether item is already confirmed. An item carrying a
// server id also matches a copy delivered earlier without one.
// Caller holds t.mu.
func (t *Timeline[T]) known(item T) bool {
	if _, ok := t.ids[identity(item)]; ok {
		return true
	}
	key := item.FallbackKey()
	if item.ItemID() == "" {
		_, ok := t.keys[key]
		return ok
	}
	_, ok := t.ids["key:"+key]
	return ok
}

// admit records the identities of item and reports whether it is new.
// Caller holds t.mu.
func (t *Timeline[T]) admit(item T) bool {
	fresh := !t.known(item)
	t.ids[identity(item)] = struct{}{}
	t.keys[item.FallbackKey()] = struct{}{}
	return fresh
}

// commit queues the events for the sinks. Caller holds t.mu; commit
// releases it. The first committer drains the queue outside the lock while
// later ones only enqueue, so sinks may call back into the timeline.
func (t *Timeline[T]) commit(events ...Event) {
	t.queue = append(t.queue, events...)
	if t.emitting {
		t.mu.Unlock()
		return
	}
	t.emitting = true
	for len(t.queue) > 0 {
		batch, sinks := t.queue, t.sinks
		t.queue = nil
		t.mu.Unlock()
		for _, evt := range batch {
			for _, sink := range sinks {
				sink.Consume(evt)
			}
		}
		t.mu.Lock()
	}
	t.emitting = false
	t.mu.Unlock()
}

func identity(item Item) string {
	if id := item.ItemID(); id != "" {
		return id
	}
	return "key:" + item.FallbackKey()
}
