// Package transport exposes the hub over a websocket endpoint mounted at
// /chat, plus the register/login handlers that mint the tokens the handshake
// carries. The hub core never sees a websocket: it consumes sessions, sinks
// and handshakes only.
package transport

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"activity-hub/contract"
	"activity-hub/hub"
	"activity-hub/sink"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Origin policy is applied at the reverse-proxy level.
	CheckOrigin: func(r *http.Request) bool { return true },
}

type Handler struct {
	log         *slog.Logger
	hub         *hub.Hub
	sinkBuffer  int
	sinkTimeout time.Duration
}

func NewHandler(log *slog.Logger, h *hub.Hub, sinkBuffer int, sinkTimeout time.Duration) *Handler {
	return &Handler{log: log, hub: h, sinkBuffer: sinkBuffer, sinkTimeout: sinkTimeout}
}

// ServeHTTP upgrades the connection, authenticates it exactly once, then
// hands it to the read/write pumps. Authentication failure forcibly
// disconnects: an unauthenticated session never reaches the room layer.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// upgrader has already written the error response.
		return
	}

	connSink := sink.NewConnSink(h.sinkBuffer, h.sinkTimeout)
	session := h.hub.NewSession(connSink)

	identity, err := session.Authenticate(r.Context(), handshakeFrom(r))
	if err != nil {
		h.log.Warn("Handshake rejected", "remote", r.RemoteAddr, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "authentication required"),
			time.Now().Add(writeTimeout))
		_ = conn.Close()
		session.Close()
		connSink.Close()
		return
	}

	c := newClient(h.log, conn, session, connSink)

	welcome, _ := json.Marshal(welcomeFrame{Type: "welcome", User: identity.UserID, DisplayName: identity.DisplayName})
	c.reply(welcome)

	go c.writePump(r.Context())
	c.readPump(r.Context()) // blocks until the connection closes
}

// handshakeFrom extracts the bearer token from the Authorization header or,
// for browser clients that cannot set websocket headers, the token query
// parameter.
func handshakeFrom(r *http.Request) contract.Handshake {
	var token string
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token = strings.TrimPrefix(header, "Bearer ")
	} else {
		token = r.URL.Query().Get("token")
	}
	return contract.Handshake{
		BearerToken: token,
		RemoteAddr:  r.RemoteAddr,
	}
}
