// Package projection builds local timelines from observed events.
// Handles ordering, deduplication, and projections.
// Does not emit events or interact with UI directly.
package projection

import (
	"sort"

	"activity-hub/domain"
	"activity-hub/domain/event"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Timeline holds one activity's message history as a client observed it.
// History backfills and live broadcasts can overlap; messages are
// deduplicated by their store-assigned identifier and kept in timestamp
// order.
type Timeline struct {
	Activity domain.ActivityID
	messages []domain.Message
	seen     map[uuid.UUID]struct{}
}

func NewTimeline(activity domain.ActivityID) *Timeline {
	return &Timeline{
		Activity: activity,
		seen:     make(map[uuid.UUID]struct{}),
	}
}

// Consume folds a hub event into the timeline. Events of other activities
// and non-message events are ignored.
func (t *Timeline) Consume(e event.DomainEvent) {
	if e == nil || e.ActivityID() != t.Activity {
		return
	}

	switch evt := e.(type) {
	case event.MessageStored:
		t.add(fromEvent(evt))
	case event.HistoryReplayed:
		for _, msg := range evt.Messages {
			t.add(msg)
		}
	}
}

// Messages returns the projected history, oldest first.
func (t *Timeline) Messages() []domain.Message {
	return t.messages
}

func (t *Timeline) Len() int {
	return len(t.messages)
}

func (t *Timeline) add(msg domain.Message) {
	if _, dup := t.seen[msg.ID]; dup {
		return
	}
	t.seen[msg.ID] = struct{}{}

	t.messages = append(t.messages, msg)
	// Backfills arrive behind live messages; keep the view chronological.
	sort.SliceStable(t.messages, func(i, j int) bool {
		return t.messages[i].CreatedAt.Before(t.messages[j].CreatedAt)
	})
}

func fromEvent(evt event.MessageStored) domain.Message {
	return domain.Message{
		ID:         evt.ID,
		Activity:   evt.Activity,
		SenderID:   evt.SenderID,
		SenderName: evt.SenderName,
		Body:       evt.Body,
		CreatedAt:  evt.At,
	}
}

// Senders lists the distinct user IDs seen in the timeline, in order of
// first appearance.
func (t *Timeline) Senders() []string {
	return lo.Uniq(lo.Map(t.messages, func(m domain.Message, _ int) string {
		return m.SenderID
	}))
}
