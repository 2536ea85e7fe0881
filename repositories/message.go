//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"activity-hub/domain"
	huberrors "activity-hub/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

type IMessageRepository interface {
	SaveMessage(ctx context.Context, activity domain.ActivityID, sender domain.Identity, body string) (domain.Message, error)
	ListRecent(ctx context.Context, activity domain.ActivityID, limit int) ([]domain.Message, error)
}

type MessageRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewMessageRepository(db *badger.DB, log *slog.Logger) MessageRepository {
	return MessageRepository{db: db, log: log}
}

// activityPrefix builds the key prefix scoping one activity's messages.
// The key layout uses ':' as its segment separator, so an activity carrying
// one would alias another activity's prefix and leak its history into scans.
func activityPrefix(activity domain.ActivityID) ([]byte, error) {
	if strings.ContainsRune(activity.String(), ':') {
		return nil, huberrors.ErrInvalidActivity
	}
	return []byte(fmt.Sprintf("msg:%s:", activity)), nil
}

// diskMessage is the stored shape of a message.
type diskMessage struct {
	ID         string `json:"id"`
	Activity   string `json:"activity"`
	SenderID   string `json:"sender_id"`
	SenderName string `json:"sender_name"`
	Body       string `json:"body"`
	At         int64  `json:"at"`
}

// SaveMessage assigns the message identifier and timestamp, then persists it.
// The key is formatted as "msg:{activity}:{timestamp_padded}:{uuid}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using UUID as a collision disconnector if two messages
//     arrive at the same nanosecond.
func (m MessageRepository) SaveMessage(ctx context.Context, activity domain.ActivityID,
	sender domain.Identity, body string) (domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return domain.Message{}, err
	}
	if _, err := activityPrefix(activity); err != nil {
		return domain.Message{}, err
	}

	msg := domain.Message{
		ID:         uuid.New(),
		Activity:   activity,
		SenderID:   sender.UserID,
		SenderName: sender.DisplayName,
		Body:       body,
		CreatedAt:  time.Now().UTC(),
	}

	key := fmt.Sprintf("msg:%s:%019d:%s", msg.Activity, msg.CreatedAt.UnixNano(), msg.ID)
	bytes, err := json.Marshal(toDiskMessage(msg))
	if err != nil {
		return domain.Message{}, err
	}

	err = m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
	if err != nil {
		return domain.Message{}, err
	}
	return msg, nil
}

// ListRecent returns up to limit messages of an activity, newest last.
// Thanks to the padded timestamp in the key, a reverse prefix scan yields the
// newest messages first; the result is flipped before returning.
func (m MessageRepository) ListRecent(ctx context.Context, activity domain.ActivityID, limit int) ([]domain.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, nil
	}
	prefix, err := activityPrefix(activity)
	if err != nil {
		return nil, err
	}

	var byteMessages [][]byte
	err = m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		// Seek past the newest possible key for this activity, then walk
		// backwards through the prefix.
		seekKey := append(append([]byte{}, prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if len(byteMessages) == limit {
				m.log.Debug(fmt.Sprintf("Maximum of %d messages reached", limit))
				break
			}
			err := it.Item().Value(func(value []byte) error {
				byteMessages = append(byteMessages, append([]byte{}, value...))
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

	messages := make([]domain.Message, 0, len(byteMessages))
	// Reverse scan collected newest first; prepend to end up newest last.
	for _, b := range byteMessages {
		var dm diskMessage
		if err = json.Unmarshal(b, &dm); err != nil {
			return nil, err
		}
		msg, err := fromDiskMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append([]domain.Message{msg}, messages...)
	}
	return messages, nil
}

// CountMessages reports how many messages an activity holds, for the debug UI.
func (m MessageRepository) CountMessages(activity domain.ActivityID) (int, error) {
	prefix, err := activityPrefix(activity)
	if err != nil {
		return 0, err
	}
	count := 0
	err = m.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.PrefetchValues = false
		it := txn.NewIterator(options)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			count++
		}
		return nil
	})
	return count, err
}

func toDiskMessage(msg domain.Message) diskMessage {
	return diskMessage{
		ID:         msg.ID.String(),
		Activity:   msg.Activity.String(),
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Body:       msg.Body,
		At:         msg.CreatedAt.UnixNano(),
	}
}

func fromDiskMessage(dm diskMessage) (domain.Message, error) {
	parsedID, err := uuid.Parse(dm.ID)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:         parsedID,
		Activity:   domain.ActivityID(dm.Activity),
		SenderID:   dm.SenderID,
		SenderName: dm.SenderName,
		Body:       dm.Body,
		CreatedAt:  time.Unix(0, dm.At).UTC(),
	}, nil
}

// FromDiskValue decodes a raw stored value, for the viewer and debug surfaces.
func FromDiskValue(value []byte) (domain.Message, error) {
	var dm diskMessage
	if err := json.Unmarshal(value, &dm); err != nil {
		return domain.Message{}, err
	}
	return fromDiskMessage(dm)
}
