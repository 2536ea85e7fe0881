package main

import (
	"activity-hub/auth"
	"activity-hub/hub"
	"activity-hub/internal"
	"activity-hub/moderation"
	"activity-hub/observability"
	"activity-hub/repositories"
	"activity-hub/runtime/workers"
	"activity-hub/services"
	"activity-hub/transport"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/joho/godotenv"
)

// Exit codes to provide meaningful status to the operating system or service manager (e.g., systemd).
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	// The main function acts as a thin wrapper.
	// Its only responsibility is to call run() and handle the OS exit code.
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Hub terminated with error: %v\n", err)
	}
	os.Exit(code)
}

// run initializes all components, manages the server lifecycle, and centralizes error reporting.
// This pattern is preferred over calling os.Exit or panic directly because:
// 1. It ensures all 'defer' statements (like database cleanup) are executed before the program exits.
// 2. It improves testability by decoupling the initialization logic from the main entry point.
// 3. It provides a structured way to handle graceful shutdowns for the HTTP server and background workers.
func run() (int, error) {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	charReplacement, err := internal.CharacterRune(config.ModerationCharReplacement)
	if err != nil {
		return exitConfig, err
	}

	logger := internal.LoggerFromLevel(config.LogLevel)

	ctx := context.Background()

	// 2. Database (BadgerDB)
	db, err := badger.Open(buildBadgerOpts(config, logger, ctx))
	if err != nil {
		return exitRuntime, fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		// Defer ensures the database lock is released and buffers are flushed before the function returns.
		logger.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	// 3. Moderation
	words, err := moderation.LoadWords(config.ModerationWordsFile)
	if err != nil {
		return exitConfig, fmt.Errorf("loading moderation words: %w", err)
	}
	moderator, err := moderation.NewModerator(words, charReplacement)
	if err != nil {
		return exitConfig, fmt.Errorf("building moderator: %w", err)
	}

	// 4. Auth & Persistence
	issuer := auth.NewTokenIssuer(config.TokenSecret, config.AuthTokenDuration)
	resolver := auth.NewResolver(issuer)
	messageRepository := repositories.NewMessageRepository(db, logger)
	userRepository := repositories.NewUserRepository(db)
	authService := services.NewAuthService(userRepository, issuer)

	// 5. Hub
	stats := observability.NewStats()
	h := hub.New(logger, resolver, messageRepository, moderator, stats, config.HistoryLimit)

	// 6. Context & Signals
	// NotifyContext captures OS signals and cancels the context to trigger a shutdown.
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 7. Background workers under supervision
	sup := workers.NewSupervisor(logger).
		Add(workers.NewBadgerGCWorker(logger, db, config.BadgerGCInterval)).
		Add(workers.NewTelemetryWorker(logger, stats, config.MetricInterval))
	go sup.Run(ctx)

	// 8. Debug surface
	if logger.Enabled(ctx, slog.LevelDebug) {
		endpoint := "/inspect"
		logger.Info("Debug Badger inspector available",
			"url", fmt.Sprintf("http://localhost:%d%s", config.DebugPort, endpoint))
		internal.StartDebugServer(db, config.DebugPort, endpoint, MessageMapper, statsProvider(stats))
	}

	// 9. HTTP Server Setup
	mux := http.NewServeMux()
	accounts := transport.NewAccountsHandler(logger, authService)
	mux.HandleFunc("POST /register", accounts.Register)
	mux.HandleFunc("POST /login", accounts.Login)
	mux.Handle("/chat", transport.NewHandler(logger, h, config.ConnectionBufferSize, config.SinkTimeout))

	address := fmt.Sprintf("%s:%d", config.Host, config.Port)
	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	// Use an error channel to capture ListenAndServe() issues asynchronously.
	errChan := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", "address", address, "at", time.Now().UTC())
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// 10. Wait for Stop or Error
	// The execution blocks here until either a signal is received or the server crashes.
	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errChan:
		return exitRuntime, err
	}

	// 11. Final Cleanup (Graceful Shutdown)
	// We let in-flight handshakes finish; websocket read loops end when their peers go away
	// or when the listener closes under them.
	logger.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("HTTP shutdown did not complete cleanly", "error", err)
	}
	sup.Stop()
	logger.Info("Program stopped cleanly")

	return exitOK, nil
}

func buildBadgerOpts(config internal.Config, logger *slog.Logger, ctx context.Context) badger.Options {
	options := badger.DefaultOptions(config.BadgerFilepath)

	if logger.Enabled(ctx, slog.LevelDebug) {
		options = options.WithLoggingLevel(badger.DEBUG).
			WithBypassLockGuard(true)
	} else {
		options = options.WithLoggingLevel(badger.INFO)
	}

	return options
}

// MessageMapper renders a stored chat message row for the inspector page.
func MessageMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)

	msg, err := repositories.FromDiskValue(val)
	if err != nil {
		row.Detail = "Error: unmarshal failed"
		return row
	}

	row.Activity = msg.Activity.String()
	row.Sender = msg.SenderName
	row.Timestamp = msg.CreatedAt.Format("15:04:05")
	row.Detail = msg.Body
	return row
}

func statsProvider(stats *observability.Stats) internal.StatsProvider {
	return func() map[string]any {
		snap := stats.Snapshot()
		raw, err := json.Marshal(snap)
		if err != nil {
			return map[string]any{"error": err.Error()}
		}
		out := map[string]any{}
		_ = json.Unmarshal(raw, &out)
		return out
	}
}
