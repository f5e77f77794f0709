//go:generate go run go.uber.org/mock/mockgen -source=notification.go -destination=../mocks/mock_notification_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

type INotificationRepository interface {
	StoreNotification(n DiskNotification) error
	ListNotifications(username string) ([]DiskNotification, error)
	MarkAllRead(username string) (int, error)
}

type NotificationRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewNotificationRepository(db *badger.DB, log *slog.Logger) NotificationRepository {
	return NotificationRepository{db: db, log: log}
}

type DiskNotification struct {
	ID             uuid.UUID
	Username       string
	SenderUsername string
	Content        string
	Avatar         string
	At             time.Time
	Read           bool
}

const (
	notificationFieldID protowire.Number = iota + 1
	notificationFieldUsername
	notificationFieldSender
	notificationFieldContent
	notificationFieldAvatar
	notificationFieldAt
	notificationFieldRead
)

func notificationKey(n DiskNotification) []byte {
	return []byte(fmt.Sprintf("notif:%s:%019d:%s", n.Username, n.At.UnixNano(), n.ID))
}

func (r NotificationRepository) StoreNotification(n DiskNotification) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(notificationKey(n), encodeNotification(n))
	})
}

// ListNotifications returns every notification of username, newest first.
func (r NotificationRepository) ListNotifications(username string) ([]DiskNotification, error) {
	var out []DiskNotification
	err := r.db.View(func(txn *badger.Txn) error {
		return r.scan(txn, username, func(n DiskNotification) error {
			out = append(out, n)
			return nil
		})
	})
	return out, err
}

// MarkAllRead flags every unread notification of username and returns how many changed.
func (r NotificationRepository) MarkAllRead(username string) (int, error) {
	changed := 0
	err := r.db.Update(func(txn *badger.Txn) error {
		var unread []DiskNotification
		err := r.scan(txn, username, func(n DiskNotification) error {
			if !n.Read {
				unread = append(unread, n)
			}
			return nil
		})
		if err != nil {
			return err
		}
		for _, n := range unread {
			n.Read = true
			if err := txn.Set(notificationKey(n), encodeNotification(n)); err != nil {
				return err
			}
			changed++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	r.log.Debug("Notifications marked read", "username", username, "count", changed)
	return changed, nil
}

func (r NotificationRepository) scan(txn *badger.Txn, username string, fn func(DiskNotification) error) error {
	prefix := []byte(fmt.Sprintf("notif:%s:", username))
	options := badger.DefaultIteratorOptions
	options.Reverse = true
	it := txn.NewIterator(options)
	defer it.Close()

	seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
	for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
		var n DiskNotification
		err := it.Item().Value(func(value []byte) error {
			var err error
			n, err = decodeNotification(value)
			return err
		})
		if err != nil {
			return err
		}
		if err := fn(n); err != nil {
			return err
		}
	}
	return nil
}

func encodeNotification(n DiskNotification) []byte {
	w := &recordWriter{}
	return w.string(notificationFieldID, n.ID.String()).
		string(notificationFieldUsername, n.Username).
		string(notificationFieldSender, n.SenderUsername).
		string(notificationFieldContent, n.Content).
		string(notificationFieldAvatar, n.Avatar).
		int64(notificationFieldAt, n.At.UnixNano()).
		bool(notificationFieldRead, n.Read).
		bytes()
}

func decodeNotification(b []byte) (DiskNotification, error) {
	fields, err := readRecord(b)
	if err != nil {
		return DiskNotification{}, err
	}
	parsedID, err := uuid.Parse(fields[notificationFieldID].Str)
	if err != nil {
		return DiskNotification{}, err
	}
	return DiskNotification{
		ID:             parsedID,
		Username:       fields[notificationFieldUsername].Str,
		SenderUsername: fields[notificationFieldSender].Str,
		Content:        fields[notificationFieldContent].Str,
		Avatar:         fields[notificationFieldAvatar].Str,
		At:             time.Unix(0, int64(fields[notificationFieldAt].Int)).UTC(),
		Read:           protowire.DecodeBool(fields[notificationFieldRead].Int),
	}, nil
}
