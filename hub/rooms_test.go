package hub_test

import (
	"activity-hub/domain"
	"activity-hub/errors"
	"activity-hub/hub"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func authedConn(t *testing.T, registry *hub.Registry, userID string) *hub.Connection {
	t.Helper()
	conn := registry.Register(newTestSink())
	require.NoError(t, registry.BindIdentity(conn.ID, domain.Identity{UserID: userID, DisplayName: userID}))
	return conn
}

func TestRooms_Join(t *testing.T) {
	activity := domain.ActivityID("activity-42")

	t.Run("should create the room on first join", func(t *testing.T) {
		req := require.New(t)
		registry := hub.NewRegistry()
		rooms := hub.NewRooms(registry)
		alice := authedConn(t, registry, "alice")

		status, err := rooms.Join(activity, alice.ID)

		req.NoError(err)
		req.Equal(hub.Joined, status)
		req.Equal(1, rooms.Len())
		req.True(alice.Member(activity))
		req.ElementsMatch([]hub.ConnID{alice.ID}, rooms.MembersOf(activity))
	})

	t.Run("should report AlreadyMember on a duplicate join", func(t *testing.T) {
		req := require.New(t)
		registry := hub.NewRegistry()
		rooms := hub.NewRooms(registry)
		alice := authedConn(t, registry, "alice")

		_, err := rooms.Join(activity, alice.ID)
		req.NoError(err)

		status, err := rooms.Join(activity, alice.ID)
		req.NoError(err)
		req.Equal(hub.AlreadyMember, status)
		req.Len(rooms.MembersOf(activity), 1)
	})

	t.Run("should refuse a connection without identity", func(t *testing.T) {
		req := require.New(t)
		registry := hub.NewRegistry()
		rooms := hub.NewRooms(registry)
		anonymous := registry.Register(newTestSink())

		_, err := rooms.Join(activity, anonymous.ID)
		req.ErrorIs(err, errors.ErrNotAuthenticated)

		_, err = rooms.Join(activity, "no-such-connection")
		req.ErrorIs(err, errors.ErrNotAuthenticated)
	})
}

func TestRooms_Leave(t *testing.T) {
	activity := domain.ActivityID("activity-42")

	t.Run("round trip leaves no trace", func(t *testing.T) {
		req := require.New(t)
		registry := hub.NewRegistry()
		rooms := hub.NewRooms(registry)
		alice := authedConn(t, registry, "alice")

		// Given a join followed by a leave
		_, err := rooms.Join(activity, alice.ID)
		req.NoError(err)
		status, err := rooms.Leave(activity, alice.ID)
		req.NoError(err)
		req.Equal(hub.Left, status)

		// Then both membership views are clean and the empty room is gone
		req.False(alice.Member(activity))
		req.Empty(alice.Activities())
		req.Equal(0, rooms.Len())
	})

	t.Run("should report NotMember when never joined", func(t *testing.T) {
		req := require.New(t)
		registry := hub.NewRegistry()
		rooms := hub.NewRooms(registry)
		alice := authedConn(t, registry, "alice")

		status, err := rooms.Leave(activity, alice.ID)
		req.NoError(err)
		req.Equal(hub.NotMember, status)
	})

	t.Run("should keep the room while members remain", func(t *testing.T) {
		req := require.New(t)
		registry := hub.NewRegistry()
		rooms := hub.NewRooms(registry)
		alice := authedConn(t, registry, "alice")
		bob := authedConn(t, registry, "bob")

		_, err := rooms.Join(activity, alice.ID)
		req.NoError(err)
		_, err = rooms.Join(activity, bob.ID)
		req.NoError(err)

		_, err = rooms.Leave(activity, alice.ID)
		req.NoError(err)

		req.Equal(1, rooms.Len())
		req.ElementsMatch([]hub.ConnID{bob.ID}, rooms.MembersOf(activity))
	})
}

func TestRooms_ConcurrentJoinLeave(t *testing.T) {
	req := require.New(t)
	registry := hub.NewRegistry()
	rooms := hub.NewRooms(registry)
	activity := domain.ActivityID("activity-42")

	// Hammer the same room with join/leave cycles to exercise the
	// empty-room deletion race.
	numWorkers := 8
	cycles := 50

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		conn := authedConn(t, registry, "user")
		wg.Add(1)
		go func(id hub.ConnID) {
			defer wg.Done()
			for i := 0; i < cycles; i++ {
				if _, err := rooms.Join(activity, id); err != nil {
					t.Error(err)
					return
				}
				if _, err := rooms.Leave(activity, id); err != nil {
					t.Error(err)
					return
				}
			}
		}(conn.ID)
	}
	wg.Wait()

	req.Equal(0, rooms.Len())
	req.Empty(rooms.MembersOf(activity))
}
