package main

import (
	"activity-hub/domain"
	"activity-hub/domain/event"
	"activity-hub/projection"
	"activity-hub/transport"
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

const outboundBufSize = 16

// Config defines the client-side environment variables.
type Config struct {
	ServerURL string `env:"CHAT_SERVER_URL,default=ws://localhost:8080/chat"`
	Token     string `env:"CHAT_TOKEN,required=true"`
	Activity  string `env:"CHAT_ACTIVITY,default=activity-1"`
}

func main() {
	// The main function manages the OS exit code based on run()'s return.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles the websocket client lifecycle: connect, join one activity,
// print everything the hub pushes, and forward stdin lines as messages.
func run() (int, error) {
	// 1. Load configuration from environment variables.
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	// 2. Setup context to handle termination signals (Ctrl+C).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Establish the websocket connection, token in the query because
	// browser-style clients cannot set headers.
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, config.ServerURL+"?token="+config.Token, nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to server at %s: %w", config.ServerURL, err)
	}
	defer func() {
		fmt.Println("Closing connection...")
		_ = conn.Close()
	}()

	// 4. Start the single writer. Gorilla connections allow one concurrent
	// writer, so the join frame, stdin messages and the closing handshake
	// all funnel through the outbound channel.
	outbound := make(chan []byte, outboundBufSize)
	writerDone := make(chan struct{})
	go writeLoop(ctx, conn, outbound, writerDone)

	join, _ := json.Marshal(transport.Inbound{Action: "join", Activity: config.Activity})
	outbound <- join

	fmt.Printf(">>> Connected to %s! Listening %s (Ctrl+C to quit)...\n", config.ServerURL, config.Activity)

	// 5. Forward stdin lines as chat messages.
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			body := scanner.Text()
			if body == "" {
				continue
			}
			data, _ := json.Marshal(transport.Inbound{Action: "message", Activity: config.Activity, Body: body})
			select {
			case outbound <- data:
			case <-ctx.Done():
				return
			}
		}
	}()

	// 6. Reception loop: project history and live messages into one local
	// timeline and print everything else as it comes.
	timeline := projection.NewTimeline(domain.ActivityID(config.Activity))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				<-writerDone // closing handshake has been sent
				fmt.Println("Stopping client...")
				return exitOK, nil
			}
			return exitRuntime, fmt.Errorf("connection error: %w", err)
		}
		printFrame(timeline, data)
	}
}

// writeLoop is the only goroutine that writes to the connection. On context
// cancellation it performs the closing handshake and closes the socket, which
// unblocks the reception loop in run.
func writeLoop(ctx context.Context, conn *websocket.Conn, outbound <-chan []byte, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case frame := <-outbound:
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
		case <-ctx.Done():
			_ = conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			_ = conn.Close()
			return
		}
	}
}

func printFrame(timeline *projection.Timeline, data []byte) {
	var envelope struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return
	}

	switch envelope.Type {
	case "welcome":
		var f struct {
			DisplayName string `json:"display_name"`
		}
		_ = json.Unmarshal(data, &f)
		fmt.Printf("*** Authenticated as %s\n", f.DisplayName)

	case "message":
		var f struct {
			Message struct {
				ID         string    `json:"id"`
				Activity   string    `json:"activity"`
				Sender     string    `json:"sender"`
				SenderName string    `json:"sender_name"`
				Body       string    `json:"body"`
				At         time.Time `json:"at"`
			} `json:"message"`
		}
		if err := json.Unmarshal(data, &f); err != nil {
			return
		}
		before := timeline.Len()
		timeline.Consume(toStoredEvent(f.Message.ID, f.Message.Activity, f.Message.Sender, f.Message.SenderName, f.Message.Body, f.Message.At))
		if timeline.Len() > before {
			fmt.Printf("[%s] %s: %s\n", f.Message.At.Format(time.TimeOnly), f.Message.SenderName, f.Message.Body)
		}

	case "history":
		var f struct {
			Messages []struct {
				ID         string    `json:"id"`
				Activity   string    `json:"activity"`
				Sender     string    `json:"sender"`
				SenderName string    `json:"sender_name"`
				Body       string    `json:"body"`
				At         time.Time `json:"at"`
			} `json:"messages"`
		}
		if err := json.Unmarshal(data, &f); err != nil {
			return
		}
		for _, m := range f.Messages {
			timeline.Consume(toStoredEvent(m.ID, m.Activity, m.Sender, m.SenderName, m.Body, m.At))
		}
		for _, m := range timeline.Messages() {
			fmt.Printf("[%s] %s: %s\n", m.CreatedAt.Format(time.TimeOnly), m.SenderName, m.Body)
		}

	case "joined", "left":
		var f struct {
			User        string `json:"user"`
			DisplayName string `json:"display_name"`
		}
		_ = json.Unmarshal(data, &f)
		verb := "joined"
		if envelope.Type == "left" {
			verb = "left"
		}
		fmt.Printf("*** %s %s\n", f.DisplayName, verb)

	case "error":
		var f struct {
			Code   string `json:"code"`
			Detail string `json:"detail"`
		}
		_ = json.Unmarshal(data, &f)
		fmt.Printf("!!! %s: %s\n", f.Code, f.Detail)
	}
}

func toStoredEvent(id, activity, sender, senderName, body string, at time.Time) event.DomainEvent {
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil
	}
	return event.MessageStored{
		ID:         parsed,
		Activity:   domain.ActivityID(activity),
		SenderID:   sender,
		SenderName: senderName,
		Body:       body,
		At:         at,
	}
}
