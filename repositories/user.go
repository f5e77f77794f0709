//go:generate go run go.uber.org/mock/mockgen -source=user.go -destination=../mocks/mock_user_repository.go -package=mocks
package repositories

import (
	"classroom-live/errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"
)

type IUserRepository interface {
	CreateUser(username, hashedPassword string) (string, error)
	GetUserByUsername(username string) (User, error)
}

type UserRepository struct {
	db *badger.DB
}

func NewUserRepository(db *badger.DB) IUserRepository {
	return &UserRepository{db: db}
}

// User is the repository view of an account. Passwords only exist hashed.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

const (
	userFieldID protowire.Number = iota + 1
	userFieldUsername
	userFieldPasswordHash
	userFieldCreatedAt
)

// CreateUser persists a new account and returns its generated id.
// Usernames are unique.
func (u *UserRepository) CreateUser(username, hashedPassword string) (string, error) {
	user := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hashedPassword,
		CreatedAt:    time.Now().UTC(),
	}
	err := u.db.Update(func(txn *badger.Txn) error {
		key := []byte("user:" + username)
		if _, err := txn.Get(key); err == nil {
			return errors.ErrUserAlreadyExists
		}
		return txn.Set(key, encodeUser(user))
	})
	if err != nil {
		return "", err
	}
	return user.ID, nil
}

func (u *UserRepository) GetUserByUsername(username string) (User, error) {
	var user User
	err := u.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("user:" + username))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			user, err = decodeUser(val)
			return err
		})
	})
	return user, err
}

func encodeUser(user User) []byte {
	w := &recordWriter{}
	return w.string(userFieldID, user.ID).
		string(userFieldUsername, user.Username).
		string(userFieldPasswordHash, user.PasswordHash).
		int64(userFieldCreatedAt, user.CreatedAt.Unix()).
		bytes()
}

func decodeUser(b []byte) (User, error) {
	fields, err := readRecord(b)
	if err != nil {
		return User{}, err
	}
	return User{
		ID:           fields[userFieldID].Str,
		Username:     fields[userFieldUsername].Str,
		PasswordHash: fields[userFieldPasswordHash].Str,
		CreatedAt:    time.Unix(int64(fields[userFieldCreatedAt].Int), 0).UTC(),
	}, nil
}
