package hub

import (
	"sync"

	"activity-hub/contract"
	"activity-hub/domain"
	"activity-hub/errors"

	"github.com/google/uuid"
)

// ConnID identifies one transport connection for its whole lifetime.
// Reconnecting yields a brand-new ConnID.
type ConnID string

// Connection is the registry's record of one live transport connection:
// the identity bound to it (nil until authenticated), the activities it
// currently belongs to, and the sink its events are delivered through.
type Connection struct {
	ID   ConnID
	Sink contract.EventSink

	mu         sync.Mutex
	identity   *domain.Identity
	activities map[domain.ActivityID]struct{}
}

// Identity returns the bound identity, if any.
func (c *Connection) Identity() (domain.Identity, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity == nil {
		return domain.Identity{}, false
	}
	return *c.identity, true
}

// Activities returns a snapshot of the activities this connection belongs to.
func (c *Connection) Activities() []domain.ActivityID {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.ActivityID, 0, len(c.activities))
	for a := range c.activities {
		out = append(out, a)
	}
	return out
}

// Member reports whether the connection currently belongs to the activity.
func (c *Connection) Member(activity domain.ActivityID) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.activities[activity]
	return ok
}

func (c *Connection) addActivity(activity domain.ActivityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.activities[activity] = struct{}{}
}

func (c *Connection) removeActivity(activity domain.ActivityID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.activities, activity)
}

func (c *Connection) bind(identity domain.Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.identity != nil {
		return errors.ErrIdentityBound
	}
	c.identity = &identity
	return nil
}

// Registry owns every live connection. It has no dependency on the room
// layer: the session controller drives the membership cascade on disconnect.
type Registry struct {
	mu    sync.RWMutex
	conns map[ConnID]*Connection
}

func NewRegistry() *Registry {
	return &Registry{conns: make(map[ConnID]*Connection)}
}

// Register tracks a fresh transport connection and hands back its record.
func (r *Registry) Register(sink contract.EventSink) *Connection {
	conn := &Connection{
		ID:         ConnID(uuid.NewString()),
		Sink:       sink,
		activities: make(map[domain.ActivityID]struct{}),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.conns[conn.ID] = conn
	return conn
}

func (r *Registry) Get(id ConnID) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[id]
	return conn, ok
}

// BindIdentity attaches a resolved identity to a registered connection.
// The binding is immutable: a second call fails with ErrIdentityBound.
func (r *Registry) BindIdentity(id ConnID, identity domain.Identity) error {
	if identity.Zero() {
		return errors.ErrUnauthenticated
	}

	conn, ok := r.Get(id)
	if !ok {
		return errors.ErrUnknownConnection
	}
	return conn.bind(identity)
}

// Unregister removes the connection and returns its record so the caller can
// finish the membership cascade. Transport layers may signal disconnect more
// than once: unknown IDs are a no-op.
func (r *Registry) Unregister(id ConnID) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	delete(r.conns, id)
	return conn, true
}

// Len returns the number of live connections.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
