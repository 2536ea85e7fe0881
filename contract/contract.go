//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"activity-hub/domain"
	"activity-hub/domain/event"
)

// Handshake carries the transport-level context of a fresh connection,
// before any identity is bound to it.
type Handshake struct {
	BearerToken string
	RemoteAddr  string
}

// IdentityResolver is the authentication collaborator.
// Invoked exactly once per connection, at session start.
type IdentityResolver interface {
	ResolveIdentity(ctx context.Context, hs Handshake) (domain.Identity, error)
}

// MessageStore is the persistence collaborator. SaveMessage assigns the
// message identifier and timestamp; the hub broadcasts only what SaveMessage
// returned, which keeps identifiers stable for late joiners.
type MessageStore interface {
	SaveMessage(ctx context.Context, activity domain.ActivityID, sender domain.Identity, body string) (domain.Message, error)
	ListRecent(ctx context.Context, activity domain.ActivityID, limit int) ([]domain.Message, error)
}

// EventSink receives the events fanned out to one connection.
type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// BodyFilter rewrites a message body before it is persisted.
type BodyFilter interface {
	Censor(body string) string
}

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}
