package hub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"activity-hub/contract"
	"activity-hub/domain"
	"activity-hub/domain/event"
	"activity-hub/errors"
)

// State of one connection's session. Room membership is not a state of its
// own: an authenticated connection holds a set of activities, possibly empty.
type State int

const (
	StateConnected State = iota
	StateAuthenticated
	StateDisconnected
)

// Session is the per-connection state machine. The transport read loop is its
// single driver, so events from one connection are processed in order;
// sessions of different connections run fully in parallel. Close is the only
// method that may be called from another goroutine.
type Session struct {
	hub  *Hub
	conn *Connection

	mu        sync.Mutex
	state     State
	closeOnce sync.Once
}

func (s *Session) ConnID() ConnID {
	return s.conn.ID
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Identity returns the identity bound to the session, if any.
func (s *Session) Identity() (domain.Identity, bool) {
	return s.conn.Identity()
}

// Authenticate resolves an identity for the connection through the
// authentication collaborator and binds it. Called exactly once at session
// start; on failure the transport must forcibly disconnect.
func (s *Session) Authenticate(ctx context.Context, hs contract.Handshake) (domain.Identity, error) {
	switch s.State() {
	case StateDisconnected:
		return domain.Identity{}, errors.ErrConnectionClosed
	case StateAuthenticated:
		return domain.Identity{}, errors.ErrIdentityBound
	}

	identity, err := s.hub.resolver.ResolveIdentity(ctx, hs)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", errors.ErrUnauthenticated, err)
	}
	if identity.Zero() {
		return domain.Identity{}, errors.ErrUnauthenticated
	}

	if err = s.hub.registry.BindIdentity(s.conn.ID, identity); err != nil {
		return domain.Identity{}, err
	}

	s.mu.Lock()
	s.state = StateAuthenticated
	s.mu.Unlock()

	s.hub.log.Info("Session authenticated",
		"connection", s.conn.ID,
		"user", identity.UserID)
	return identity, nil
}

// Join subscribes the session to an activity. A fresh join backfills recent
// history to this connection only and announces the participant to the room.
// Joining the same activity twice reports AlreadyMember and does nothing else.
func (s *Session) Join(ctx context.Context, activity domain.ActivityID) (JoinStatus, error) {
	if s.State() != StateAuthenticated {
		return 0, errors.ErrNotAuthenticated
	}

	status, err := s.hub.rooms.Join(activity, s.conn.ID)
	if err != nil || status == AlreadyMember {
		return status, err
	}
	s.hub.stats.IncrJoins()

	s.backfillHistory(ctx, activity)

	identity, _ := s.conn.Identity()
	s.hub.dispatcher.Broadcast(ctx, activity, event.ParticipantJoined{
		Activity:    activity,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		At:          time.Now().UTC(),
	})
	return Joined, nil
}

// Leave unsubscribes the session from an activity and, when it was actually
// a member, announces the departure to the remaining room members.
func (s *Session) Leave(ctx context.Context, activity domain.ActivityID) (LeaveStatus, error) {
	if s.State() != StateAuthenticated {
		return 0, errors.ErrNotAuthenticated
	}

	status, err := s.hub.rooms.Leave(activity, s.conn.ID)
	if err != nil || status == NotMember {
		return status, err
	}
	s.hub.stats.IncrLeaves()

	identity, _ := s.conn.Identity()
	s.hub.dispatcher.Broadcast(ctx, activity, event.ParticipantLeft{
		Activity:    activity,
		UserID:      identity.UserID,
		DisplayName: identity.DisplayName,
		At:          time.Now().UTC(),
	})
	return Left, nil
}

// PostMessage stores the message and, only after the store confirmed the
// write, fans it out to the room. A persistence failure is surfaced to the
// sender alone and nothing is broadcast; a delivery failure stays inside the
// dispatcher's report and never reaches the sender.
func (s *Session) PostMessage(ctx context.Context, activity domain.ActivityID, body string) (domain.Message, error) {
	if s.State() != StateAuthenticated {
		return domain.Message{}, errors.ErrNotAuthenticated
	}
	if !s.conn.Member(activity) {
		return domain.Message{}, errors.ErrNotMember
	}

	if s.hub.filter != nil {
		body = s.hub.filter.Censor(body)
	}

	identity, _ := s.conn.Identity()
	msg, err := s.hub.store.SaveMessage(ctx, activity, identity, body)
	if err != nil {
		return domain.Message{}, fmt.Errorf("%w: %v", errors.ErrPersistence, err)
	}
	s.hub.stats.IncrMessagesStored()

	report := s.hub.dispatcher.Broadcast(ctx, activity, event.NewMessageStored(msg))
	if !report.AllDelivered() {
		s.hub.log.Warn("Broadcast finished with failed recipients",
			"activity", activity,
			"attempted", report.Attempted,
			"failed", len(report.Failures))
	}
	return msg, nil
}

// Close handles the transport-closed event. Safe to call more than once;
// cleanup runs exactly once: every room membership is removed, departures are
// announced, and the registry entry is released.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.state = StateDisconnected
		s.mu.Unlock()

		identity, bound := s.conn.Identity()
		for _, activity := range s.conn.Activities() {
			status, err := s.hub.rooms.Leave(activity, s.conn.ID)
			if err != nil || status != Left {
				continue
			}
			if bound {
				s.hub.dispatcher.Broadcast(context.Background(), activity, event.ParticipantLeft{
					Activity:    activity,
					UserID:      identity.UserID,
					DisplayName: identity.DisplayName,
					At:          time.Now().UTC(),
				})
			}
		}

		s.hub.registry.Unregister(s.conn.ID)
		s.hub.stats.ConnectionClosed()
		s.hub.log.Debug("Connection unregistered", "connection", s.conn.ID)
	})
}

// backfillHistory replays recent messages, newest last, to the joining
// connection only. History is best effort: the join already succeeded, a
// storage hiccup here must not undo it.
func (s *Session) backfillHistory(ctx context.Context, activity domain.ActivityID) {
	if s.hub.historyLimit <= 0 {
		return
	}

	messages, err := s.hub.store.ListRecent(ctx, activity, s.hub.historyLimit)
	if err != nil {
		s.hub.log.Warn("History backfill failed", "activity", activity, "error", err)
		return
	}
	if len(messages) == 0 {
		return
	}

	if err = s.conn.Sink.Consume(ctx, event.HistoryReplayed{Activity: activity, Messages: messages}); err != nil {
		s.hub.log.Warn("History delivery failed", "connection", s.conn.ID, "error", err)
	}
}
