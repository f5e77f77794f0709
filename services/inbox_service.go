package services

import (
	"classroom-live/contract"
	"classroom-live/domain/notification"
	"classroom-live/errors"
	"classroom-live/infrastructure/wire"
	"classroom-live/moderation"
	"classroom-live/observability"
	"classroom-live/repositories"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

type IInboxService interface {
	Notify(n notification.Notification) (notification.Notification, error)
	List(username string) ([]notification.Notification, error)
	MarkAllRead(username string) (int, error)
}

// InboxService is the development backend side of the notification feed.
type InboxService struct {
	log        *slog.Logger
	repository repositories.INotificationRepository
	moderator  *moderation.Moderator
	publisher  contract.Publisher
	now        func() time.Time
}

func NewInboxService(log *slog.Logger, repository repositories.INotificationRepository,
	moderator *moderation.Moderator, publisher contract.Publisher) *InboxService {
	return &InboxService{
		log:        log,
		repository: repository,
		moderator:  moderator,
		publisher:  publisher,
		now:        time.Now,
	}
}

// Notify stores a notification for n.Username and pushes it on the user's
// topic. The live payload carries no id, like the production broker's.
func (s *InboxService) Notify(n notification.Notification) (notification.Notification, error) {
	if n.Username == "" || n.SenderUsername == "" || n.Content == "" {
		return notification.Notification{}, fmt.Errorf("%w: username, sender and content are required", errors.ErrInvalidPayload)
	}
	if s.moderator != nil {
		censored, words := s.moderator.Censor(n.Content)
		if len(words) > 0 {
			observability.RecordCensored()
			n.Content = censored
		}
	}
	if n.At.IsZero() {
		n.At = s.now()
	}
	n.At = n.At.UTC().Truncate(time.Millisecond)
	n.Read = false

	disk := repositories.DiskNotification{
		ID:             uuid.New(),
		Username:       n.Username,
		SenderUsername: n.SenderUsername,
		Content:        n.Content,
		Avatar:         n.Avatar,
		At:             n.At,
	}
	if err := s.repository.StoreNotification(disk); err != nil {
		return notification.Notification{}, err
	}
	n.ID = disk.ID.String()

	live := wire.FromNotification(n)
	live.ID = ""
	live.Username = ""
	body, err := json.Marshal(live)
	if err != nil {
		return notification.Notification{}, err
	}
	s.publisher.Publish(notification.Topic(n.Username), body)
	s.log.Debug("Notification sent", "username", n.Username, "id", n.ID)
	return n, nil
}

// List returns the whole feed of username, newest first.
func (s *InboxService) List(username string) ([]notification.Notification, error) {
	disk, err := s.repository.ListNotifications(username)
	if err != nil {
		return nil, err
	}
	return lo.Map(disk, func(d repositories.DiskNotification, _ int) notification.Notification {
		return notification.Notification{
			ID:             d.ID.String(),
			Username:       d.Username,
			SenderUsername: d.SenderUsername,
			Content:        d.Content,
			Avatar:         d.Avatar,
			At:             d.At,
			Read:           d.Read,
		}
	}), nil
}

func (s *InboxService) MarkAllRead(username string) (int, error) {
	return s.repository.MarkAllRead(username)
}
