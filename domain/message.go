// Package domain contains core concepts of the activity hub.
// This file defines Message and related rules.
// Messages are immutable once the store has assigned their identifier.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Message represents an immutable chat entry inside one activity.
// ID and CreatedAt are assigned by the persistence layer; a message without
// an ID has not been durably stored and must never reach a second client.
type Message struct {
	ID         uuid.UUID
	Activity   ActivityID
	SenderID   string
	SenderName string
	Body       string
	CreatedAt  time.Time
}
