package runtime

import (
	"classroom-live/domain/chat"
	"classroom-live/errors"
	"classroom-live/infrastructure/wire"
	"classroom-live/mocks"
	"classroom-live/projection"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var epoch = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

// server stores conversations oldest-first and serves them newest-first
type server struct {
	mu    sync.Mutex
	convs map[string][]chat.Message
}

func newServer() *server {
	return &server{convs: make(map[string][]chat.Message)}
}

func (s *server) post(conv string, n int) []chat.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var added []chat.Message
	for i := 0; i < n; i++ {
		seq := len(s.convs[conv]) + 1
		msg := chat.Message{
			ID:             fmt.Sprintf("%s-%d", conv, seq),
			ConversationID: conv,
			Sender:         "alice",
			Content:        fmt.Sprintf("message %d", seq),
			SentAt:         epoch.Add(time.Duration(seq) * time.Minute),
		}
		s.convs[conv] = append(s.convs[conv], msg)
		added = append(added, msg)
	}
	return added
}

func (s *server) fetch(_ context.Context, conv string, cursor, size int) ([]chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.convs[conv]
	end := len(all) - cursor*size
	if end <= 0 {
		return []chat.Message{}, nil
	}
	start := max(end-size, 0)
	page := slices.Clone(all[start:end])
	slices.Reverse(page)
	return page, nil
}

func livePayload(msg chat.Message) string {
	return fmt.Sprintf(`{"id":%q,"content":%q,"sender":%q,"time":%q}`,
		msg.ID, msg.Content, msg.Sender, msg.SentAt.Format(time.RFC3339Nano))
}

func chatConfig(log *slog.Logger, fetcher *mocks.MockPageFetcher[chat.Message], h *hub) SessionConfig[chat.Message] {
	return SessionConfig[chat.Message]{
		ScopeType:      "conversation",
		Loader:         NewHistoryLoader[chat.Message](log, fetcher),
		Dialer:         h,
		Decode:         wire.DecodeChatMessage,
		Topic:          chat.Topic,
		ReconnectDelay: 20 * time.Millisecond,
	}
}

func itemIDs(items []chat.Message) []string {
	out := make([]string, 0, len(items))
	for _, m := range items {
		out = append(out, m.ID)
	}
	return out
}

func TestSession_HistoryAndLive(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher[chat.Message](ctrl)
	srv := newServer()
	h := newHub()

	srv.post("c1", 25)
	fetcher.EXPECT().FetchPage(gomock.Any(), "c1", gomock.Any(), 10).DoAndReturn(srv.fetch).Times(3)

	tl := projection.NewTimeline[chat.Message](10)
	switcher := NewSwitcher(log, tl, chatConfig(log, fetcher, h))
	session := switcher.Open(context.Background(), "c1")
	defer switcher.Close()

	// Given the most recent page loaded and the live channel subscribed
	session.WaitHistory()
	req.Equal(10, tl.Snapshot().Len)
	req.Eventually(func() bool { return h.subscribed(chat.Topic("c1")) }, time.Second, 5*time.Millisecond)

	// When a new message is published
	live := srv.post("c1", 1)[0]
	req.True(h.publish(chat.Topic("c1"), livePayload(live)))
	req.Eventually(func() bool { return tl.Snapshot().Len == 11 }, time.Second, 5*time.Millisecond)

	// And the user scrolls to the top twice
	dispatched, err := session.LoadMoreHistory()
	req.True(dispatched)
	req.NoError(err)
	dispatched, err = session.LoadMoreHistory()
	req.True(dispatched)
	req.NoError(err)

	// Then the whole conversation is in order and history is exhausted
	items := tl.Items()
	req.Len(items, 26)
	req.Equal("c1-1", items[0].ID)
	req.Equal("c1-26", items[25].ID)
	state := tl.Snapshot()
	req.False(state.HasMoreHistory)
	req.Equal(projection.FirstIndex-25, state.AnchorIndex)

	dispatched, err = session.LoadMoreHistory()
	req.False(dispatched)
	req.NoError(err)
}

func TestSession_SingleFetchInFlight(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher[chat.Message](ctrl)
	srv := newServer()
	srv.post("c1", 30)

	release := make(chan struct{})
	fetcher.EXPECT().FetchPage(gomock.Any(), "c1", 0, 10).
		DoAndReturn(func(ctx context.Context, conv string, cursor, size int) ([]chat.Message, error) {
			<-release
			return srv.fetch(ctx, conv, cursor, size)
		}).
		Times(1)

	tl := projection.NewTimeline[chat.Message](10)
	session := OpenSession(context.Background(), log, tl, chatConfig(log, fetcher, newHub()), "c1")
	defer session.Close()

	// When the viewport asks for more while the first page is pending
	req.False(session.RequestMoreHistory())
	req.False(session.OnViewport(projection.FirstIndex, 3))

	close(release)
	session.WaitHistory()
	req.Equal(10, tl.Snapshot().Len)
}

func TestSession_ScopeSwitchDiscardsStaleHistory(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher[chat.Message](ctrl)
	srv := newServer()
	h := newHub()
	srv.post("conv-a", 10)
	srv.post("conv-b", 4)

	// Given the first page of A still in flight when the user switches
	release := make(chan struct{})
	fetcher.EXPECT().FetchPage(gomock.Any(), "conv-a", 0, 10).
		DoAndReturn(func(ctx context.Context, conv string, cursor, size int) ([]chat.Message, error) {
			<-release
			return srv.fetch(ctx, conv, cursor, size)
		})
	fetcher.EXPECT().FetchPage(gomock.Any(), "conv-b", 0, 10).DoAndReturn(srv.fetch)

	tl := projection.NewTimeline[chat.Message](10)
	switcher := NewSwitcher(log, tl, chatConfig(log, fetcher, h))
	defer switcher.Close()

	sessionA := switcher.Open(context.Background(), "conv-a")
	req.Eventually(func() bool { return h.subscribed(chat.Topic("conv-a")) }, time.Second, 5*time.Millisecond)

	sessionB := switcher.Open(context.Background(), "conv-b")
	sessionB.WaitHistory()

	// When A's response finally arrives
	close(release)
	sessionA.WaitHistory()

	// Then it never reaches B's timeline
	req.Equal([]string{"conv-b-1", "conv-b-2", "conv-b-3", "conv-b-4"}, itemIDs(tl.Items()))
	req.Equal("conv-b", tl.Snapshot().Scope)
	req.False(tl.Snapshot().HasMoreHistory)

	// And A's live channel was released before B's was opened
	req.Eventually(func() bool { return h.subscribed(chat.Topic("conv-b")) }, time.Second, 5*time.Millisecond)
	steps := h.steps()
	unsubscribed := slices.Index(steps, "unsubscribe "+chat.Topic("conv-a"))
	disconnected := slices.Index(steps, "disconnect")
	subscribedB := slices.Index(steps, "subscribe "+chat.Topic("conv-b"))
	req.NotEqual(-1, unsubscribed)
	req.Less(unsubscribed, disconnected)
	req.Less(disconnected, subscribedB)

	// And a late delivery for A has nowhere to go
	req.False(h.publish(chat.Topic("conv-a"), livePayload(srv.post("conv-a", 1)[0])))
}

func TestSession_ReconnectResynchronizes(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher[chat.Message](ctrl)
	srv := newServer()
	h := newHub()
	srv.post("c1", 10)

	fetcher.EXPECT().FetchPage(gomock.Any(), "c1", gomock.Any(), 10).DoAndReturn(srv.fetch).AnyTimes()

	tl := projection.NewTimeline[chat.Message](10)
	session := OpenSession(context.Background(), log, tl, chatConfig(log, fetcher, h), "c1")
	defer session.Close()

	session.WaitHistory()
	req.Eventually(func() bool { return h.subscribed(chat.Topic("c1")) }, time.Second, 5*time.Millisecond)

	// When the connection drops and two messages are posted meanwhile
	h.drop(chat.Topic("c1"))
	srv.post("c1", 2)

	// Then the reconnect re-fetches the latest page and fills the gap
	req.Eventually(func() bool { return tl.Snapshot().Len == 12 }, 2*time.Second, 10*time.Millisecond)
	req.Equal("c1-12", tl.Items()[11].ID)
	req.Equal(2, h.dials())

	// And live delivery resumes on the new connection
	req.Eventually(func() bool { return h.subscribed(chat.Topic("c1")) }, time.Second, 5*time.Millisecond)
	req.True(h.publish(chat.Topic("c1"), livePayload(srv.post("c1", 1)[0])))
	req.Eventually(func() bool { return tl.Snapshot().Len == 13 }, time.Second, 5*time.Millisecond)
}

func TestSession_HistoryFailureKeepsLiveFlowing(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher[chat.Message](ctrl)
	h := newHub()

	fetcher.EXPECT().FetchPage(gomock.Any(), "c1", 0, 10).Return(nil, fmt.Errorf("status 502")).Times(1)

	tl := projection.NewTimeline[chat.Message](10)
	session := OpenSession(context.Background(), log, tl, chatConfig(log, fetcher, h), "c1")
	defer session.Close()
	session.WaitHistory()

	// Then pagination stops without retry
	state := tl.Snapshot()
	req.False(state.HasMoreHistory)
	req.ErrorIs(state.HistoryErr, errors.ErrHistoryUnavailable)
	req.False(session.RequestMoreHistory())

	// And live messages are still appended
	req.Eventually(func() bool { return h.subscribed(chat.Topic("c1")) }, time.Second, 5*time.Millisecond)
	msg := chat.Message{ID: "x1", Sender: "bob", Content: "still here", SentAt: epoch}
	req.True(h.publish(chat.Topic("c1"), livePayload(msg)))
	req.Eventually(func() bool { return tl.Snapshot().Len == 1 }, time.Second, 5*time.Millisecond)
}

func TestSession_UndecodablePayloadIsDropped(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	fetcher := mocks.NewMockPageFetcher[chat.Message](ctrl)
	h := newHub()
	fetcher.EXPECT().FetchPage(gomock.Any(), "c1", 0, 10).Return([]chat.Message{}, nil)

	tl := projection.NewTimeline[chat.Message](10)
	session := OpenSession(context.Background(), log, tl, chatConfig(log, fetcher, h), "c1")
	defer session.Close()

	req.Eventually(func() bool { return h.subscribed(chat.Topic("c1")) }, time.Second, 5*time.Millisecond)
	req.True(h.publish(chat.Topic("c1"), `{"content":"no id"}`))
	msg := chat.Message{ID: "ok", Sender: "bob", Content: "fine", SentAt: epoch}
	req.True(h.publish(chat.Topic("c1"), livePayload(msg)))

	req.Eventually(func() bool { return tl.Snapshot().Len == 1 }, time.Second, 5*time.Millisecond)
	req.Equal("ok", tl.Items()[0].ID)
	req.Equal(1, h.dials())
}
