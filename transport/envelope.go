package transport

import (
	"fmt"
	"time"

	"activity-hub/domain"
	"activity-hub/domain/event"

	"github.com/goccy/go-json"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"
)

var validate = validator.New()

// Inbound is the client-to-server envelope read off the websocket.
type Inbound struct {
	Action   string `json:"action" validate:"required,oneof=join leave message"`
	Activity string `json:"activity" validate:"required,max=128,excludesall=0x3A"`
	Body     string `json:"body" validate:"required_if=Action message,max=4096"`
}

// wireMessage is the payload of a messageReceived push.
type wireMessage struct {
	ID         string    `json:"id"`
	Activity   string    `json:"activity"`
	Sender     string    `json:"sender"`
	SenderName string    `json:"sender_name"`
	Body       string    `json:"body"`
	At         time.Time `json:"at"`
}

type messageFrame struct {
	Type    string      `json:"type"`
	Message wireMessage `json:"message"`
}

type historyFrame struct {
	Type     string        `json:"type"`
	Activity string        `json:"activity"`
	Messages []wireMessage `json:"messages"`
}

type presenceFrame struct {
	Type        string    `json:"type"`
	Activity    string    `json:"activity"`
	User        string    `json:"user"`
	DisplayName string    `json:"display_name"`
	At          time.Time `json:"at"`
}

type ackFrame struct {
	Type     string `json:"type"`
	Action   string `json:"action"`
	Activity string `json:"activity"`
	Status   string `json:"status"`
}

type errorFrame struct {
	Type   string `json:"type"`
	Code   string `json:"code"`
	Detail string `json:"detail"`
}

type welcomeFrame struct {
	Type        string `json:"type"`
	User        string `json:"user"`
	DisplayName string `json:"display_name"`
}

func toWireMessage(m domain.Message) wireMessage {
	return wireMessage{
		ID:         m.ID.String(),
		Activity:   m.Activity.String(),
		Sender:     m.SenderID,
		SenderName: m.SenderName,
		Body:       m.Body,
		At:         m.CreatedAt,
	}
}

// encodeEvent turns a hub event into its client-facing frame.
func encodeEvent(e event.DomainEvent) ([]byte, error) {
	switch evt := e.(type) {
	case event.MessageStored:
		return json.Marshal(messageFrame{
			Type: "message",
			Message: wireMessage{
				ID:         evt.ID.String(),
				Activity:   evt.Activity.String(),
				Sender:     evt.SenderID,
				SenderName: evt.SenderName,
				Body:       evt.Body,
				At:         evt.At,
			},
		})
	case event.HistoryReplayed:
		return json.Marshal(historyFrame{
			Type:     "history",
			Activity: evt.Activity.String(),
			Messages: lo.Map(evt.Messages, func(m domain.Message, _ int) wireMessage {
				return toWireMessage(m)
			}),
		})
	case event.ParticipantJoined:
		return json.Marshal(presenceFrame{
			Type:        "joined",
			Activity:    evt.Activity.String(),
			User:        evt.UserID,
			DisplayName: evt.DisplayName,
			At:          evt.At,
		})
	case event.ParticipantLeft:
		return json.Marshal(presenceFrame{
			Type:        "left",
			Activity:    evt.Activity.String(),
			User:        evt.UserID,
			DisplayName: evt.DisplayName,
			At:          evt.At,
		})
	default:
		return nil, fmt.Errorf("unknown event type %T", e)
	}
}

func encodeError(code, detail string) []byte {
	data, _ := json.Marshal(errorFrame{Type: "error", Code: code, Detail: detail})
	return data
}
