// Package hub implements the real-time core mounted at /chat: it tracks live
// connections, groups them by activity, and fans stored messages out to every
// member of the activity's room.
package hub

import (
	"log/slog"

	"activity-hub/contract"
	"activity-hub/observability"
)

// Hub wires the connection registry, room manager and broadcast dispatcher
// together with the two external collaborators (identity resolution and
// message persistence). It produces one Session per transport connection.
type Hub struct {
	log          *slog.Logger
	registry     *Registry
	rooms        *Rooms
	dispatcher   *Dispatcher
	resolver     contract.IdentityResolver
	store        contract.MessageStore
	filter       contract.BodyFilter
	stats        *observability.Stats
	historyLimit int
}

func New(log *slog.Logger, resolver contract.IdentityResolver, store contract.MessageStore,
	filter contract.BodyFilter, stats *observability.Stats, historyLimit int) *Hub {
	registry := NewRegistry()
	rooms := NewRooms(registry)
	return &Hub{
		log:          log,
		registry:     registry,
		rooms:        rooms,
		dispatcher:   NewDispatcher(log, registry, rooms, stats),
		resolver:     resolver,
		store:        store,
		filter:       filter,
		stats:        stats,
		historyLimit: historyLimit,
	}
}

// NewSession registers a fresh transport connection and returns the session
// state machine that will drive it.
func (h *Hub) NewSession(sink contract.EventSink) *Session {
	conn := h.registry.Register(sink)
	h.stats.ConnectionOpened()
	h.log.Debug("Connection registered", "connection", conn.ID)
	return &Session{hub: h, conn: conn, state: StateConnected}
}

// Registry exposes the connection registry, mainly for the debug surface.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Rooms exposes the room manager, mainly for the debug surface.
func (h *Hub) Rooms() *Rooms {
	return h.rooms
}
