package hub

import (
	"sync"

	"activity-hub/domain"
	"activity-hub/errors"

	"github.com/alphadose/haxmap"
)

// JoinStatus and LeaveStatus are informational results, not failures.
// Joining twice or leaving a room never entered is reported, not raised.
type JoinStatus int

const (
	Joined JoinStatus = iota
	AlreadyMember
)

type LeaveStatus int

const (
	Left LeaveStatus = iota
	NotMember
)

// room holds one activity's member set behind its own lock, so contention
// stays scoped per activity and unrelated rooms proceed independently.
type room struct {
	mu      sync.Mutex
	members map[ConnID]struct{}
	// removed marks a room deleted from the shard map while a concurrent
	// GetOrCompute may still hold a reference to it.
	removed bool
}

func newRoom() *room {
	return &room{members: make(map[ConnID]struct{})}
}

// Rooms maps activity identifiers to member sets. Rooms are created lazily on
// first join and deleted when their member set empties. Membership updates
// also maintain the connection's own activity set, under the room lock, so
// the two views never disagree.
type Rooms struct {
	registry *Registry
	shards   *haxmap.Map[string, *room]
}

func NewRooms(registry *Registry) *Rooms {
	return &Rooms{
		registry: registry,
		shards:   haxmap.New[string, *room](),
	}
}

// Join subscribes a registered, identity-bound connection to an activity.
func (rm *Rooms) Join(activity domain.ActivityID, id ConnID) (JoinStatus, error) {
	conn, err := rm.authorized(id)
	if err != nil {
		return 0, err
	}

	for {
		r, _ := rm.shards.GetOrCompute(activity.String(), newRoom)

		r.mu.Lock()
		if r.removed {
			// Lost a race with the last leaver deleting the room. Retry
			// against a fresh room.
			r.mu.Unlock()
			continue
		}
		if _, member := r.members[id]; member {
			r.mu.Unlock()
			return AlreadyMember, nil
		}
		r.members[id] = struct{}{}
		conn.addActivity(activity)
		r.mu.Unlock()
		return Joined, nil
	}
}

// Leave unsubscribes the connection. The last leaver deletes the room.
func (rm *Rooms) Leave(activity domain.ActivityID, id ConnID) (LeaveStatus, error) {
	conn, err := rm.authorized(id)
	if err != nil {
		return 0, err
	}

	r, ok := rm.shards.Get(activity.String())
	if !ok {
		return NotMember, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, member := r.members[id]; !member {
		return NotMember, nil
	}
	delete(r.members, id)
	conn.removeActivity(activity)
	if len(r.members) == 0 {
		r.removed = true
		rm.shards.Del(activity.String())
	}
	return Left, nil
}

// MembersOf returns a point-in-time snapshot of the activity's member set.
// Callers must not assume it reflects concurrent joins and leaves.
func (rm *Rooms) MembersOf(activity domain.ActivityID) []ConnID {
	r, ok := rm.shards.Get(activity.String())
	if !ok {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	members := make([]ConnID, 0, len(r.members))
	for id := range r.members {
		members = append(members, id)
	}
	return members
}

// Len returns the number of live rooms.
func (rm *Rooms) Len() int {
	return int(rm.shards.Len())
}

func (rm *Rooms) authorized(id ConnID) (*Connection, error) {
	conn, ok := rm.registry.Get(id)
	if !ok {
		return nil, errors.ErrNotAuthenticated
	}
	if _, bound := conn.Identity(); !bound {
		return nil, errors.ErrNotAuthenticated
	}
	return conn, nil
}
