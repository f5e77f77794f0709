//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

type IMessageRepository interface {
	StoreMessage(message DiskMessage) error
	GetPage(conversationID string, page, size int) ([]DiskMessage, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

type DiskMessage struct {
	ID             uuid.UUID
	ConversationID string
	Sender         string
	Content        string
	At             time.Time
}

const (
	messageFieldID protowire.Number = iota + 1
	messageFieldConversation
	messageFieldSender
	messageFieldContent
	messageFieldAt
)

// StoreMessage persists a message in BadgerDB.
// The key is formatted as "msg:{conversation}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Keep two messages of the same nanosecond apart thanks to the UUID.
func (m MessageRepository) StoreMessage(message DiskMessage) error {
	key := fmt.Sprintf("msg:%s:%019d:%s",
		message.ConversationID,
		message.At.UnixNano(),
		message.ID,
	)
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), encodeMessage(message))
	})
}

// GetPage returns the page-th group of size messages, newest first.
// Page 0 holds the most recent messages.
func (m MessageRepository) GetPage(conversationID string, page, size int) ([]DiskMessage, error) {
	if page < 0 || size <= 0 {
		return nil, fmt.Errorf("invalid page %d of size %d", page, size)
	}
	var messages []DiskMessage
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(fmt.Sprintf("msg:%s:", conversationID))
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Reverse iteration starts past the newest key of the prefix
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		skip := page * size
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if skip > 0 {
				skip--
				continue
			}
			if len(messages) == size {
				break
			}
			err := it.Item().Value(func(value []byte) error {
				message, err := decodeMessage(value)
				if err != nil {
					return err
				}
				messages = append(messages, message)
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	m.log.Debug("Messages page read", "conversation", conversationID, "page", page, "count", len(messages))
	return messages, nil
}

func encodeMessage(message DiskMessage) []byte {
	w := &recordWriter{}
	return w.string(messageFieldID, message.ID.String()).
		string(messageFieldConversation, message.ConversationID).
		string(messageFieldSender, message.Sender).
		string(messageFieldContent, message.Content).
		int64(messageFieldAt, message.At.UnixNano()).
		bytes()
}

func decodeMessage(b []byte) (DiskMessage, error) {
	fields, err := readRecord(b)
	if err != nil {
		return DiskMessage{}, err
	}
	parsedID, err := uuid.Parse(fields[messageFieldID].Str)
	if err != nil {
		return DiskMessage{}, err
	}
	return DiskMessage{
		ID:             parsedID,
		ConversationID: fields[messageFieldConversation].Str,
		Sender:         fields[messageFieldSender].Str,
		Content:        fields[messageFieldContent].Str,
		At:             time.Unix(0, int64(fields[messageFieldAt].Int)).UTC(),
	}, nil
}
