package services

import (
	"classroom-live/domain/notification"
	"classroom-live/mocks"
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var notifiedAt = time.Date(2026, 3, 5, 14, 0, 0, 0, time.UTC)

func unreadNotifications(n int) []notification.Notification {
	out := make([]notification.Notification, 0, n)
	for i := 1; i <= n; i++ {
		out = append(out, notification.Notification{
			ID:             fmt.Sprintf("n%d", i),
			Username:       "bob",
			SenderUsername: "teacher",
			Content:        fmt.Sprintf("Exam %d graded", i),
			At:             notifiedAt.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func newNotificationService(t *testing.T, api *mocks.MockNotificationAPI, live *feed) *NotificationService {
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	svc := NewNotificationService(log, api, live, "bob", 10, 20*time.Millisecond)
	t.Cleanup(svc.Close)
	return svc
}

func TestNotificationService_MarkAllReadThenLive(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockNotificationAPI(ctrl)
	live := newFeed()

	api.EXPECT().FetchNotifications(gomock.Any(), "bob").Return(unreadNotifications(5), nil)
	api.EXPECT().MarkAllRead(gomock.Any(), "bob").Return(nil)

	svc := newNotificationService(t, api, live)
	svc.Start(context.Background()).WaitHistory()
	req.Equal(5, svc.Unread())

	// When every notification is marked read
	req.NoError(svc.MarkAllRead(context.Background()))

	// Then the badge is reset and each item is read
	req.Zero(svc.Unread())
	for _, n := range svc.Timeline().Items() {
		req.True(n.Read)
	}

	// When a new notification arrives live
	req.Eventually(func() bool { return live.subscribed(notification.Topic("bob")) }, time.Second, 5*time.Millisecond)
	body := `{"senderUsername":"teacher","content":"New exam","timestamp":"2026-03-05T15:00:00","avatar":"t.png"}`
	req.True(live.publish(notification.Topic("bob"), body))

	// Then the badge goes from 0 to 1 without a readback
	req.Eventually(func() bool { return svc.Unread() == 1 }, time.Second, 5*time.Millisecond)
	req.Len(svc.Timeline().Items(), 6)
}

func TestNotificationService_MarkAllReadFailureKeepsBadge(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockNotificationAPI(ctrl)

	api.EXPECT().FetchNotifications(gomock.Any(), "bob").Return(unreadNotifications(3), nil)
	api.EXPECT().MarkAllRead(gomock.Any(), "bob").Return(fmt.Errorf("status 500"))

	svc := newNotificationService(t, api, newFeed())
	svc.Start(context.Background()).WaitHistory()

	req.Error(svc.MarkAllRead(context.Background()))
	req.Equal(3, svc.Unread())
}

func TestNotificationService_MarkAllReadKeepsArrivalsDuringRequest(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockNotificationAPI(ctrl)
	live := newFeed()
	api.EXPECT().FetchNotifications(gomock.Any(), "bob").Return(unreadNotifications(2), nil)

	svc := newNotificationService(t, api, live)
	svc.Start(context.Background()).WaitHistory()
	req.Eventually(func() bool { return live.subscribed(notification.Topic("bob")) }, time.Second, 5*time.Millisecond)

	// Given a notification delivered while the request is in flight
	api.EXPECT().MarkAllRead(gomock.Any(), "bob").DoAndReturn(func(context.Context, string) error {
		body := `{"senderUsername":"teacher","content":"Late","timestamp":"2026-03-05T16:00:00"}`
		req.True(live.publish(notification.Topic("bob"), body))
		req.Eventually(func() bool { return len(svc.Timeline().Items()) == 3 }, time.Second, 5*time.Millisecond)
		return nil
	})

	req.NoError(svc.MarkAllRead(context.Background()))

	// Then only the notifications shown before the request are read
	req.Equal(1, svc.Unread())
	items := svc.Timeline().Items()
	req.True(items[0].Read)
	req.True(items[1].Read)
	req.False(items[2].Read)
	req.Equal("Late", items[2].Content)
}

func TestNotificationService_LiveCopyOfStoredNotification(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockNotificationAPI(ctrl)
	live := newFeed()

	// Given a feed whose newest notification is also delivered live, without id
	stored := unreadNotifications(2)
	api.EXPECT().FetchNotifications(gomock.Any(), "bob").Return(stored, nil)

	svc := newNotificationService(t, api, live)
	svc.Start(context.Background()).WaitHistory()
	req.Eventually(func() bool { return live.subscribed(notification.Topic("bob")) }, time.Second, 5*time.Millisecond)

	body := fmt.Sprintf(`{"senderUsername":"teacher","content":"Exam 2 graded","timestamp":%d}`, stored[1].At.UnixMilli())
	req.True(live.publish(notification.Topic("bob"), body))
	req.True(live.publish(notification.Topic("bob"), `{"senderUsername":"teacher","content":"Fresh","timestamp":"2026-03-05T16:00:00"}`))

	// Then the badge counts it once
	req.Eventually(func() bool { return len(svc.Timeline().Items()) == 3 }, time.Second, 5*time.Millisecond)
	req.Never(func() bool { return len(svc.Timeline().Items()) > 3 }, 100*time.Millisecond, 10*time.Millisecond)
	req.Equal(3, svc.Unread())
	req.Equal([]string{"n1", "n2", ""}, []string{svc.Timeline().Items()[0].ID, svc.Timeline().Items()[1].ID, svc.Timeline().Items()[2].ID})
}

func TestNotificationService_DuplicateLiveDelivery(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockNotificationAPI(ctrl)
	live := newFeed()
	api.EXPECT().FetchNotifications(gomock.Any(), "bob").Return([]notification.Notification{}, nil)

	svc := newNotificationService(t, api, live)
	svc.Start(context.Background()).WaitHistory()
	req.Eventually(func() bool { return live.subscribed(notification.Topic("bob")) }, time.Second, 5*time.Millisecond)

	body := `{"senderUsername":"teacher","content":"Reminder","timestamp":1772719200000}`
	req.True(live.publish(notification.Topic("bob"), body))
	req.True(live.publish(notification.Topic("bob"), body))
	req.True(live.publish(notification.Topic("bob"), `{"senderUsername":"teacher","content":"Other","timestamp":1772719260000}`))

	req.Eventually(func() bool { return len(svc.Timeline().Items()) == 2 }, time.Second, 5*time.Millisecond)
	req.Equal(2, svc.Unread())
}

func TestNotificationPages_WindowsNewestFirst(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	api := mocks.NewMockNotificationAPI(ctrl)

	// Given 25 notifications returned oldest first
	api.EXPECT().FetchNotifications(gomock.Any(), "bob").DoAndReturn(
		func(context.Context, string) ([]notification.Notification, error) {
			return unreadNotifications(25), nil
		}).Times(3)

	pages := NewNotificationPages(api)

	first, err := pages.FetchPage(context.Background(), "bob", 0, 10)
	req.NoError(err)
	req.Len(first, 10)
	req.Equal("n25", first[0].ID)
	req.Equal("n16", first[9].ID)

	last, err := pages.FetchPage(context.Background(), "bob", 2, 10)
	req.NoError(err)
	req.Len(last, 5)
	req.Equal("n5", last[0].ID)

	empty, err := pages.FetchPage(context.Background(), "bob", 3, 10)
	req.NoError(err)
	req.Empty(empty)
}
