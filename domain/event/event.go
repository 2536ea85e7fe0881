package event

import (
	"time"

	"activity-hub/domain"

	"github.com/google/uuid"
)

// DomainEvent is anything the hub fans out to the members of one activity.
type DomainEvent interface {
	ActivityID() domain.ActivityID
}

// MessageStored is emitted after the persistence layer confirmed the write.
// The ID and At fields therefore always carry store-assigned values.
type MessageStored struct {
	ID         uuid.UUID
	Activity   domain.ActivityID
	SenderID   string
	SenderName string
	Body       string
	At         time.Time
}

func NewMessageStored(m domain.Message) MessageStored {
	return MessageStored{
		ID:         m.ID,
		Activity:   m.Activity,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Body:       m.Body,
		At:         m.CreatedAt,
	}
}

func (e MessageStored) ActivityID() domain.ActivityID {
	return e.Activity
}

// HistoryReplayed backfills a freshly joined connection with recent messages,
// newest last. Delivered to the joining connection only, never broadcast.
type HistoryReplayed struct {
	Activity domain.ActivityID
	Messages []domain.Message
}

func (e HistoryReplayed) ActivityID() domain.ActivityID {
	return e.Activity
}

// ParticipantJoined notifies a room that a new member subscribed.
type ParticipantJoined struct {
	Activity    domain.ActivityID
	UserID      string
	DisplayName string
	At          time.Time
}

func (e ParticipantJoined) ActivityID() domain.ActivityID {
	return e.Activity
}

// ParticipantLeft notifies a room that a member unsubscribed or disconnected.
type ParticipantLeft struct {
	Activity    domain.ActivityID
	UserID      string
	DisplayName string
	At          time.Time
}

func (e ParticipantLeft) ActivityID() domain.ActivityID {
	return e.Activity
}
