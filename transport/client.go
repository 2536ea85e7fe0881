package transport

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"activity-hub/domain"
	huberrors "activity-hub/errors"
	"activity-hub/hub"
	"activity-hub/sink"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

const (
	// writeTimeout is the deadline for a single write to a client.
	writeTimeout = 10 * time.Second

	// pongWait is how long to wait for a pong response before treating the
	// connection as dead.
	pongWait = 60 * time.Second

	// pingPeriod controls how often the server sends WebSocket ping frames.
	// Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// frameBufSize is the buffer for acks and errors produced by the read
	// loop; the write pump is the single websocket writer.
	frameBufSize = 16

	maxInboundSize = 8 * 1024
)

// client binds one websocket connection to its hub session. The read pump
// drives the session state machine; the write pump drains the session's sink
// so every push leaves in the order the hub accepted it.
type client struct {
	log     *slog.Logger
	conn    *websocket.Conn
	session *hub.Session
	sink    *sink.ConnSink
	frames  chan []byte
}

func newClient(log *slog.Logger, conn *websocket.Conn, session *hub.Session, connSink *sink.ConnSink) *client {
	conn.SetReadLimit(maxInboundSize)
	return &client{
		log:     log,
		conn:    conn,
		session: session,
		sink:    connSink,
		frames:  make(chan []byte, frameBufSize),
	}
}

// readPump processes inbound envelopes until the connection dies. It is the
// session's single driver, which keeps one connection's events in order.
func (c *client) readPump(ctx context.Context) {
	defer func() {
		c.session.Close()
		c.sink.Close()
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadEnd(err)
			return
		}

		var in Inbound
		if err = json.Unmarshal(data, &in); err != nil {
			c.reply(encodeError("invalid_payload", "malformed envelope"))
			continue
		}
		if err = validate.Struct(in); err != nil {
			c.reply(encodeError("invalid_payload", err.Error()))
			continue
		}

		c.handle(ctx, in)
	}
}

func (c *client) handle(ctx context.Context, in Inbound) {
	activity := domain.ActivityID(in.Activity)

	switch in.Action {
	case "join":
		status, err := c.session.Join(ctx, activity)
		if err != nil {
			c.replyErr(err)
			return
		}
		c.ack(in.Action, in.Activity, joinStatusLabel(status))

	case "leave":
		status, err := c.session.Leave(ctx, activity)
		if err != nil {
			c.replyErr(err)
			return
		}
		c.ack(in.Action, in.Activity, leaveStatusLabel(status))

	case "message":
		// The sender receives its own message through the broadcast like
		// every other member: one source of truth for IDs and timestamps.
		if _, err := c.session.PostMessage(ctx, activity, in.Body); err != nil {
			c.replyErr(err)
		}
	}
}

// writePump is the single websocket writer: hub pushes, acks and pings all
// leave through here.
func (c *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.sink.Done():
			_ = c.write(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
			return
		case e := <-c.sink.Events():
			data, err := encodeEvent(e)
			if err != nil {
				c.log.Warn("Dropping unencodable event", "error", err)
				continue
			}
			if err = c.write(websocket.TextMessage, data); err != nil {
				return
			}
		case frame := <-c.frames:
			if err := c.write(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *client) write(messageType int, data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteMessage(messageType, data)
}

func (c *client) ack(action, activity, status string) {
	data, _ := json.Marshal(ackFrame{Type: "ack", Action: action, Activity: activity, Status: status})
	c.reply(data)
}

func (c *client) reply(frame []byte) {
	select {
	case c.frames <- frame:
	default:
		c.log.Warn("Reply buffer full, dropping frame", "connection", c.session.ConnID())
	}
}

func (c *client) replyErr(err error) {
	switch {
	case errors.Is(err, huberrors.ErrNotAuthenticated):
		c.reply(encodeError("not_authenticated", "authenticate before joining rooms"))
	case errors.Is(err, huberrors.ErrNotMember):
		c.reply(encodeError("not_member", "join the activity before posting"))
	case errors.Is(err, huberrors.ErrPersistence):
		c.reply(encodeError("persistence_failed", "message was not stored, please retry"))
	default:
		c.reply(encodeError("internal", "operation failed"))
	}
}

func (c *client) logReadEnd(err error) {
	switch {
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.log.Debug("Client disconnected", "connection", c.session.ConnID())
	case errors.Is(err, io.EOF):
		c.log.Debug("Client connection closed", "connection", c.session.ConnID())
	default:
		c.log.Warn("Websocket read error", "connection", c.session.ConnID(), "error", err)
	}
}

func joinStatusLabel(s hub.JoinStatus) string {
	if s == hub.AlreadyMember {
		return "already_member"
	}
	return "joined"
}

func leaveStatusLabel(s hub.LeaveStatus) string {
	if s == hub.NotMember {
		return "not_member"
	}
	return "left"
}
