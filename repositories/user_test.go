package repositories

import (
	"activity-hub/errors"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func Test_Create_And_Get_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	email := "alice@example.com"
	id, err := repository.CreateUser(email, "Alice", "$argon2id$fake-hash")
	req.NoError(err)
	req.NotEmpty(id)

	user, err := repository.GetUserByEmail(email)
	req.NoError(err)
	req.Equal(id, user.ID)
	req.Equal(email, user.Email)
	req.Equal("Alice", user.DisplayName)
	req.Equal("$argon2id$fake-hash", user.PasswordHash)
	req.False(user.CreatedAt.IsZero())
}

func Test_Create_User_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	email := "duplicate@example.com"
	_, err := repository.CreateUser(email, "First", "hash-1")
	req.NoError(err)

	_, err = repository.CreateUser(email, "Second", "hash-2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)

	// The original account is untouched
	user, err := repository.GetUserByEmail(email)
	req.NoError(err)
	req.Equal("First", user.DisplayName)
}

func Test_Get_Unknown_User(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUserByEmail("nobody@example.com")
	req.ErrorIs(err, badger.ErrKeyNotFound)
}
