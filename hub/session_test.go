package hub_test

import (
	"activity-hub/contract"
	"activity-hub/domain"
	"activity-hub/domain/event"
	"activity-hub/errors"
	"activity-hub/hub"
	"activity-hub/mocks"
	"activity-hub/observability"
	"activity-hub/sink"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type hubFixture struct {
	hub      *hub.Hub
	resolver *mocks.MockIdentityResolver
	store    *mocks.MockMessageStore
	stats    *observability.Stats
}

func newHubFixture(t *testing.T, historyLimit int) *hubFixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	resolver := mocks.NewMockIdentityResolver(ctrl)
	store := mocks.NewMockMessageStore(ctrl)
	stats := observability.NewStats()
	return &hubFixture{
		hub:      hub.New(discardLogger(), resolver, store, nil, stats, historyLimit),
		resolver: resolver,
		store:    store,
		stats:    stats,
	}
}

// openSession dials a fake transport into the hub and authenticates it.
func (f *hubFixture) openSession(t *testing.T, userID string) (*hub.Session, *sink.ConnSink) {
	t.Helper()
	req := require.New(t)
	ctx := context.Background()

	connSink := sink.NewConnSink(64, 50*time.Millisecond)
	session := f.hub.NewSession(connSink)

	identity := domain.Identity{UserID: userID, DisplayName: userID}
	f.resolver.EXPECT().
		ResolveIdentity(gomock.Any(), gomock.Any()).
		Return(identity, nil).
		Times(1)

	resolved, err := session.Authenticate(ctx, contract.Handshake{BearerToken: "token-" + userID})
	req.NoError(err)
	req.Equal(identity, resolved)
	return session, connSink
}

func drainOne(t *testing.T, s *sink.ConnSink) event.DomainEvent {
	t.Helper()
	select {
	case e := <-s.Events():
		return e
	case <-time.After(time.Second):
		t.Fatal("no event delivered")
		return nil
	}
}

func TestSession_Authenticate(t *testing.T) {
	ctx := context.Background()

	t.Run("should disconnect path when resolver rejects the token", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, 0)
		session := f.hub.NewSession(sink.NewConnSink(16, 50*time.Millisecond))

		f.resolver.EXPECT().
			ResolveIdentity(gomock.Any(), gomock.Any()).
			Return(domain.Identity{}, fmt.Errorf("signature mismatch")).
			Times(1)

		_, err := session.Authenticate(ctx, contract.Handshake{BearerToken: "garbage"})
		req.ErrorIs(err, errors.ErrUnauthenticated)
		req.Equal(hub.StateConnected, session.State())
	})

	t.Run("should refuse a second authentication", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, 0)
		session, _ := f.openSession(t, "alice")

		_, err := session.Authenticate(ctx, contract.Handshake{BearerToken: "again"})
		req.ErrorIs(err, errors.ErrIdentityBound)
		req.Equal(hub.StateAuthenticated, session.State())
	})

	t.Run("should refuse authentication after close", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, 0)
		session := f.hub.NewSession(sink.NewConnSink(16, 50*time.Millisecond))
		session.Close()

		_, err := session.Authenticate(ctx, contract.Handshake{BearerToken: "late"})
		req.ErrorIs(err, errors.ErrConnectionClosed)
	})
}

func TestSession_RequiresAuthentication(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newHubFixture(t, 0)
	session := f.hub.NewSession(sink.NewConnSink(16, 50*time.Millisecond))
	activity := domain.ActivityID("activity-42")

	_, err := session.Join(ctx, activity)
	req.ErrorIs(err, errors.ErrNotAuthenticated)

	_, err = session.Leave(ctx, activity)
	req.ErrorIs(err, errors.ErrNotAuthenticated)

	_, err = session.PostMessage(ctx, activity, "hello")
	req.ErrorIs(err, errors.ErrNotAuthenticated)
}

func TestSession_Join(t *testing.T) {
	ctx := context.Background()
	activity := domain.ActivityID("activity-42")

	t.Run("fresh join backfills history then announces the participant", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, 50)
		session, connSink := f.openSession(t, "alice")

		history := []domain.Message{
			{ID: uuid.New(), Activity: activity, SenderID: "bob", Body: "first", CreatedAt: time.Now().UTC().Add(-2 * time.Minute)},
			{ID: uuid.New(), Activity: activity, SenderID: "bob", Body: "second", CreatedAt: time.Now().UTC().Add(-1 * time.Minute)},
		}
		f.store.EXPECT().
			ListRecent(gomock.Any(), activity, 50).
			Return(history, nil).
			Times(1)

		status, err := session.Join(ctx, activity)
		req.NoError(err)
		req.Equal(hub.Joined, status)

		// History arrives before the join announcement, newest last
		replay, ok := drainOne(t, connSink).(event.HistoryReplayed)
		req.True(ok)
		req.Equal(history, replay.Messages)

		joined, ok := drainOne(t, connSink).(event.ParticipantJoined)
		req.True(ok)
		req.Equal("alice", joined.UserID)
	})

	t.Run("duplicate join reports AlreadyMember and stays silent", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, 0)
		session, connSink := f.openSession(t, "alice")

		status, err := session.Join(ctx, activity)
		req.NoError(err)
		req.Equal(hub.Joined, status)
		drainOne(t, connSink) // the join announcement

		status, err = session.Join(ctx, activity)
		req.NoError(err)
		req.Equal(hub.AlreadyMember, status)

		select {
		case e := <-connSink.Events():
			t.Fatalf("unexpected event after duplicate join: %#v", e)
		default:
		}
	})

	t.Run("join succeeds even when the history read fails", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, 50)
		session, connSink := f.openSession(t, "alice")

		f.store.EXPECT().
			ListRecent(gomock.Any(), activity, 50).
			Return(nil, fmt.Errorf("level read failed")).
			Times(1)

		status, err := session.Join(ctx, activity)
		req.NoError(err)
		req.Equal(hub.Joined, status)

		// Only the announcement shows up
		_, ok := drainOne(t, connSink).(event.ParticipantJoined)
		req.True(ok)
	})
}

func TestSession_PostMessage(t *testing.T) {
	ctx := context.Background()
	activity := domain.ActivityID("activity-42")

	t.Run("should refuse posting without membership", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, 0)
		session, _ := f.openSession(t, "alice")

		// The store must never see the message
		f.store.EXPECT().SaveMessage(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

		_, err := session.PostMessage(ctx, activity, "hello")
		req.ErrorIs(err, errors.ErrNotMember)
	})

	t.Run("broadcast carries the store-assigned identity and timestamp", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, 0)
		session, connSink := f.openSession(t, "alice")

		_, err := session.Join(ctx, activity)
		req.NoError(err)
		drainOne(t, connSink) // join announcement

		storedID := uuid.New()
		storedAt := time.Now().UTC()
		f.store.EXPECT().
			SaveMessage(gomock.Any(), activity, domain.Identity{UserID: "alice", DisplayName: "alice"}, "hello room").
			Return(domain.Message{ID: storedID, Activity: activity, SenderID: "alice", SenderName: "alice", Body: "hello room", CreatedAt: storedAt}, nil).
			Times(1)

		msg, err := session.PostMessage(ctx, activity, "hello room")
		req.NoError(err)
		req.Equal(storedID, msg.ID)

		// The sender is a member too and receives its own message back
		stored, ok := drainOne(t, connSink).(event.MessageStored)
		req.True(ok)
		req.Equal(storedID, stored.ID)
		req.Equal(storedAt, stored.At)
	})

	t.Run("a persistence failure reaches the sender and nothing is broadcast", func(t *testing.T) {
		req := require.New(t)
		f := newHubFixture(t, 0)
		alice, aliceSink := f.openSession(t, "alice")
		bob, bobSink := f.openSession(t, "bob")

		_, err := alice.Join(ctx, activity)
		req.NoError(err)
		_, err = bob.Join(ctx, activity)
		req.NoError(err)
		drainOne(t, aliceSink) // alice joined
		drainOne(t, aliceSink) // bob joined
		drainOne(t, bobSink)   // bob joined

		f.store.EXPECT().
			SaveMessage(gomock.Any(), activity, gomock.Any(), "doomed").
			Return(domain.Message{}, fmt.Errorf("disk full")).
			Times(1)

		_, err = alice.PostMessage(ctx, activity, "doomed")
		req.ErrorIs(err, errors.ErrPersistence)

		for _, s := range []*sink.ConnSink{aliceSink, bobSink} {
			select {
			case e := <-s.Events():
				t.Fatalf("broadcast happened despite persistence failure: %#v", e)
			default:
			}
		}
		req.Equal(uint64(0), f.stats.Snapshot().MessagesStored)
	})
}

func TestSession_Close(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newHubFixture(t, 0)

	activity := domain.ActivityID("activity-42")
	other := domain.ActivityID("activity-7")

	alice, aliceSink := f.openSession(t, "alice")
	bob, bobSink := f.openSession(t, "bob")

	_, err := alice.Join(ctx, activity)
	req.NoError(err)
	_, err = alice.Join(ctx, other)
	req.NoError(err)
	_, err = bob.Join(ctx, activity)
	req.NoError(err)
	drainOne(t, aliceSink) // alice joined activity
	drainOne(t, aliceSink) // alice joined other
	drainOne(t, aliceSink) // bob joined activity
	drainOne(t, bobSink)   // bob joined activity

	// When alice's transport drops
	alice.Close()
	alice.Close() // transports may report disconnect twice

	req.Equal(hub.StateDisconnected, alice.State())
	req.Equal(1, f.hub.Registry().Len())

	// Bob is told alice left their shared activity
	left, ok := drainOne(t, bobSink).(event.ParticipantLeft)
	req.True(ok)
	req.Equal("alice", left.UserID)
	req.Equal(activity, left.ActivityID())

	// The single-member room alice had to herself is gone with her
	req.Empty(f.hub.Rooms().MembersOf(other))
	req.ElementsMatch([]hub.ConnID{bob.ConnID()}, f.hub.Rooms().MembersOf(activity))

	// Operations on the dead session fail cleanly
	_, err = alice.PostMessage(ctx, activity, "ghost")
	req.ErrorIs(err, errors.ErrNotAuthenticated)
}

// The canonical two-party exchange: alice and bob share a room, a posted
// message reaches both with the same identifier, and leaving stops delivery.
func TestSession_TwoPartyExchange(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newHubFixture(t, 0)
	activity := domain.ActivityID("activity-42")

	alice, aliceSink := f.openSession(t, "alice")
	bob, bobSink := f.openSession(t, "bob")

	_, err := alice.Join(ctx, activity)
	req.NoError(err)
	_, err = bob.Join(ctx, activity)
	req.NoError(err)
	drainOne(t, aliceSink) // alice joined
	drainOne(t, aliceSink) // bob joined
	drainOne(t, bobSink)   // bob joined

	f.store.EXPECT().
		SaveMessage(gomock.Any(), activity, gomock.Any(), "hi bob").
		DoAndReturn(func(_ context.Context, a domain.ActivityID, sender domain.Identity, body string) (domain.Message, error) {
			return domain.Message{ID: uuid.New(), Activity: a, SenderID: sender.UserID, SenderName: sender.DisplayName, Body: body, CreatedAt: time.Now().UTC()}, nil
		}).
		Times(1)

	posted, err := alice.PostMessage(ctx, activity, "hi bob")
	req.NoError(err)

	aliceCopy, ok := drainOne(t, aliceSink).(event.MessageStored)
	req.True(ok)
	bobCopy, ok := drainOne(t, bobSink).(event.MessageStored)
	req.True(ok)

	// Both copies carry the same store-assigned identifier
	req.Equal(posted.ID, aliceCopy.ID)
	req.Equal(posted.ID, bobCopy.ID)
	req.Equal("alice", bobCopy.SenderID)

	// After bob leaves, alice's next message no longer reaches him
	status, err := bob.Leave(ctx, activity)
	req.NoError(err)
	req.Equal(hub.Left, status)
	drainOne(t, aliceSink) // bob left

	f.store.EXPECT().
		SaveMessage(gomock.Any(), activity, gomock.Any(), "still there?").
		DoAndReturn(func(_ context.Context, a domain.ActivityID, sender domain.Identity, body string) (domain.Message, error) {
			return domain.Message{ID: uuid.New(), Activity: a, SenderID: sender.UserID, Body: body, CreatedAt: time.Now().UTC()}, nil
		}).
		Times(1)

	_, err = alice.PostMessage(ctx, activity, "still there?")
	req.NoError(err)

	drainOne(t, aliceSink) // alice's own copy
	select {
	case e := <-bobSink.Events():
		t.Fatalf("bob received an event after leaving: %#v", e)
	default:
	}

	snap := f.stats.Snapshot()
	req.Equal(uint64(2), snap.MessagesStored)
	req.Equal(uint64(2), snap.Joins)
	req.Equal(uint64(1), snap.Leaves)
}

func TestSession_CensorAppliedBeforePersistence(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	ctrl := gomock.NewController(t)

	resolver := mocks.NewMockIdentityResolver(ctrl)
	store := mocks.NewMockMessageStore(ctrl)
	filter := mocks.NewMockBodyFilter(ctrl)
	h := hub.New(discardLogger(), resolver, store, filter, observability.NewStats(), 0)

	connSink := sink.NewConnSink(16, 50*time.Millisecond)
	session := h.NewSession(connSink)
	resolver.EXPECT().
		ResolveIdentity(gomock.Any(), gomock.Any()).
		Return(domain.Identity{UserID: "alice", DisplayName: "Alice"}, nil)
	_, err := session.Authenticate(ctx, contract.Handshake{BearerToken: "token"})
	req.NoError(err)

	activity := domain.ActivityID("activity-42")
	_, err = session.Join(ctx, activity)
	req.NoError(err)
	drainOne(t, connSink)

	// The store only ever sees the censored body
	filter.EXPECT().Censor("raw body").Return("*** body").Times(1)
	store.EXPECT().
		SaveMessage(gomock.Any(), activity, gomock.Any(), "*** body").
		Return(domain.Message{ID: uuid.New(), Activity: activity, Body: "*** body", CreatedAt: time.Now().UTC()}, nil).
		Times(1)

	msg, err := session.PostMessage(ctx, activity, "raw body")
	req.NoError(err)
	req.Equal("*** body", msg.Body)
}
