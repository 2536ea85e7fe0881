package repositories

import (
	"activity-hub/domain"
	huberrors "activity-hub/errors"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func Test_Save_And_List_Messages(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	activity := domain.ActivityID("activity-42")
	alice := domain.Identity{UserID: "alice-id", DisplayName: "Alice"}

	bodies := []string{"first", "second", "third"}
	var saved []domain.Message
	for _, body := range bodies {
		msg, err := repository.SaveMessage(ctx, activity, alice, body)
		req.NoError(err)
		req.NotEqual(uuid.Nil, msg.ID)
		req.Equal(activity, msg.Activity)
		req.Equal("alice-id", msg.SenderID)
		req.Equal("Alice", msg.SenderName)
		saved = append(saved, msg)
	}

	fetched, err := repository.ListRecent(ctx, activity, 10)
	req.NoError(err)
	req.Equal(saved, fetched)
}

func Test_Colon_In_Activity_Cannot_Alias_Another_Activity(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	alice := domain.Identity{UserID: "alice-id", DisplayName: "Alice"}

	// "act:0priv" would sort under the "msg:act:" prefix and surface in
	// "act" listings, so the store refuses the identifier outright.
	_, err := repository.SaveMessage(ctx, "act:0priv", alice, "other room secret")
	req.ErrorIs(err, huberrors.ErrInvalidActivity)

	_, err = repository.ListRecent(ctx, "act:0priv", 10)
	req.ErrorIs(err, huberrors.ErrInvalidActivity)

	_, err = repository.CountMessages("act:0priv")
	req.ErrorIs(err, huberrors.ErrInvalidActivity)

	msg, err := repository.SaveMessage(ctx, "act", alice, "hello")
	req.NoError(err)

	fetched, err := repository.ListRecent(ctx, "act", 10)
	req.NoError(err)
	req.Equal([]domain.Message{msg}, fetched)
}

func Test_List_Messages_Newest_Last_With_Limit(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	activity := domain.ActivityID("activity-42")
	sender := domain.Identity{UserID: "bob-id", DisplayName: "Bob"}

	total, limit := 5, 2
	var saved []domain.Message
	for i := 0; i < total; i++ {
		msg, err := repository.SaveMessage(ctx, activity, sender, fmt.Sprintf("message %d", i))
		req.NoError(err)
		saved = append(saved, msg)
	}

	fetched, err := repository.ListRecent(ctx, activity, limit)
	req.NoError(err)
	req.Len(fetched, limit)
	// The limit keeps the newest messages, ordered oldest to newest
	req.Equal(saved[total-limit:], fetched)
}

func Test_List_Messages_Scoped_Per_Activity(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())
	ctx := context.Background()

	sender := domain.Identity{UserID: "alice-id", DisplayName: "Alice"}
	_, err := repository.SaveMessage(ctx, "activity-42", sender, "for the first room")
	req.NoError(err)
	_, err = repository.SaveMessage(ctx, "activity-7", sender, "for the second room")
	req.NoError(err)

	fetched, err := repository.ListRecent(ctx, "activity-42", 10)
	req.NoError(err)
	req.Len(fetched, 1)
	req.Equal("for the first room", fetched[0].Body)

	count, err := repository.CountMessages("activity-7")
	req.NoError(err)
	req.Equal(1, count)
}

func Test_List_Messages_Empty_Activity(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openTestDB(t), slog.Default())

	fetched, err := repository.ListRecent(context.Background(), "activity-empty", 10)
	req.NoError(err)
	req.Empty(fetched)

	fetched, err = repository.ListRecent(context.Background(), "activity-empty", 0)
	req.NoError(err)
	req.Nil(fetched)
}
