package services

import (
	"classroom-live/contract"
	"classroom-live/domain/notification"
	"classroom-live/errors"
	"classroom-live/infrastructure/wire"
	"classroom-live/projection"
	"classroom-live/runtime"
	"context"
	"fmt"
	"log/slog"
	"time"
)

type INotificationService interface {
	Start(ctx context.Context) *runtime.Session[notification.Notification]
	MarkAllRead(ctx context.Context) error
	Unread() int
	Timeline() *projection.Timeline[notification.Notification]
	Close()
}

// NotificationService is the notification feed of one user.
type NotificationService struct {
	log      *slog.Logger
	api      contract.NotificationAPI
	username string
	switcher *runtime.Switcher[notification.Notification]
}

func NewNotificationService(log *slog.Logger, api contract.NotificationAPI, dialer contract.Dialer,
	username string, pageSize int, reconnectDelay time.Duration) *NotificationService {
	cfg := runtime.SessionConfig[notification.Notification]{
		ScopeType:      "notification",
		Loader:         runtime.NewHistoryLoader[notification.Notification](log, NewNotificationPages(api)),
		Dialer:         dialer,
		Decode:         wire.DecodeNotification,
		Topic:          notification.Topic,
		ReconnectDelay: reconnectDelay,
	}
	tl := projection.NewTimeline[notification.Notification](pageSize)
	return &NotificationService{
		log:      log,
		api:      api,
		username: username,
		switcher: runtime.NewSwitcher(log, tl, cfg),
	}
}

func (s *NotificationService) Start(ctx context.Context) *runtime.Session[notification.Notification] {
	return s.switcher.Open(ctx, s.username)
}

// MarkAllRead flags the notifications loaded when it was called as read once
// the server agreed. Notifications arriving during or after the request stay
// unread.
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	generation := s.Timeline().Generation()
	seen := notification.Identities(s.Timeline().Items())
	if err := s.api.MarkAllRead(ctx, s.username); err != nil {
		s.log.Warn("Mark all read failed", "username", s.username, "error", err)
		return err
	}
	if err := s.Timeline().Mutate(generation, notification.MarkReadAmong(seen)); err != nil {
		return fmt.Errorf("mark all read for %s: %w", s.username, errors.ErrStaleScope)
	}
	return nil
}

// Unread is the badge count.
func (s *NotificationService) Unread() int {
	return notification.Unread(s.Timeline().Items())
}

func (s *NotificationService) Timeline() *projection.Timeline[notification.Notification] {
	return s.switcher.Timeline()
}

func (s *NotificationService) Current() *runtime.Session[notification.Notification] {
	return s.switcher.Current()
}

func (s *NotificationService) Close() {
	s.switcher.Close()
}
