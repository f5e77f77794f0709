package server

import (
	"classroom-live/domain/chat"
	"classroom-live/domain/notification"
	"classroom-live/infrastructure/live"
	"classroom-live/infrastructure/rest"
	"classroom-live/services"
	"context"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

// listen serves the stack on a loopback port and returns its base URL.
func (s stack) listen(t *testing.T) string {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = s.app.Listener(ln) }()
	t.Cleanup(func() { _ = s.app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestEndToEnd_ConversationSendIsEchoed(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	s := newStack(t)
	baseURL := s.listen(t)
	token := s.token(t, "alice")

	api, err := rest.NewClient(log, baseURL, token, 5*time.Second)
	req.NoError(err)
	dialer, err := live.NewDialer(log, baseURL+ChatBrokerPath, token, 0)
	req.NoError(err)

	svc := services.NewConversationService(log, api, dialer, "alice", 10, 50*time.Millisecond)
	defer svc.Close()

	// Given an open conversation with its live channel subscribed
	session := svc.Open(context.Background(), "c1")
	session.WaitHistory()
	topic := chat.Topic("c1")
	req.Eventually(func() bool { return s.broker.Subscribers(topic) == 1 }, 5*time.Second, 10*time.Millisecond)

	// When alice sends a message
	_, err = svc.Send(context.Background(), "hello class")
	req.NoError(err)

	// Then the broker echo replaces the pending entry
	req.Eventually(func() bool {
		return len(svc.Timeline().Items()) == 1 && len(svc.Timeline().PendingItems()) == 0
	}, 5*time.Second, 10*time.Millisecond)
	msg := svc.Timeline().Items()[0]
	req.Equal("hello class", msg.Content)
	req.NotEmpty(msg.ID)

	// Then closing the conversation releases the subscription
	svc.Close()
	req.Eventually(func() bool { return s.broker.Subscribers(topic) == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestEndToEnd_NotificationBadge(t *testing.T) {
	req := require.New(t)
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	s := newStack(t)
	baseURL := s.listen(t)
	token := s.token(t, "bob")

	api, err := rest.NewClient(log, baseURL, token, 5*time.Second)
	req.NoError(err)
	dialer, err := live.NewDialer(log, baseURL+NotificationBrokerPath, token, 0)
	req.NoError(err)

	svc := services.NewNotificationService(log, api, dialer, "bob", 10, 50*time.Millisecond)
	defer svc.Close()
	session := svc.Start(context.Background())
	session.WaitHistory()
	req.Eventually(func() bool { return s.broker.Subscribers(notification.Topic("bob")) == 1 }, 5*time.Second, 10*time.Millisecond)

	// When the teacher notifies bob
	teacher, err := rest.NewClient(log, baseURL, s.token(t, "teacher"), 5*time.Second)
	req.NoError(err)
	_, err = teacher.Notify(context.Background(), notification.Notification{Username: "bob", Content: "quiz at 10"})
	req.NoError(err)

	// Then the badge counts it, and mark-all-read clears it
	req.Eventually(func() bool { return svc.Unread() == 1 }, 5*time.Second, 10*time.Millisecond)
	req.NoError(svc.MarkAllRead(context.Background()))
	req.Zero(svc.Unread())

	reloaded, err := api.FetchNotifications(context.Background(), "bob")
	req.NoError(err)
	req.Len(reloaded, 1)
	req.True(reloaded[0].Read)
}
