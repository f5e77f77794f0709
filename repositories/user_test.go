package repositories

import (
	"classroom-live/errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func TestUserRepository(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openDB(t))

	id, err := repository.CreateUser("alice", "salt$hash")
	req.NoError(err)
	req.NotEmpty(id)

	user, err := repository.GetUserByUsername("alice")
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal("salt$hash", user.PasswordHash)
	req.False(user.CreatedAt.IsZero())

	_, err = repository.CreateUser("alice", "other")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	_, err = repository.GetUserByUsername("nobody")
	req.ErrorIs(err, badger.ErrKeyNotFound)
}
