package errors

import "fmt"

var (
	// ErrUnauthenticated means no identity could be resolved for the connection.
	// Fatal to the session: the transport must close the connection.
	ErrUnauthenticated = fmt.Errorf("identity could not be resolved")

	// ErrNotAuthenticated means a room operation was attempted before
	// authentication. Surfaced to the caller, the connection stays open.
	ErrNotAuthenticated = fmt.Errorf("connection is not authenticated")

	// ErrNotMember means the connection posted to an activity it never joined.
	ErrNotMember = fmt.Errorf("connection has not joined this activity")

	// ErrInvalidActivity means the activity identifier contains a character
	// reserved by the storage key layout.
	ErrInvalidActivity = fmt.Errorf("invalid activity identifier")

	// ErrPersistence wraps a storage failure. The message is not broadcast.
	ErrPersistence = fmt.Errorf("message could not be stored")

	ErrConnectionClosed   = fmt.Errorf("connection is closed")
	ErrSinkBackpressure   = fmt.Errorf("connection buffer full")
	ErrIdentityBound      = fmt.Errorf("identity already bound to connection")
	ErrUnknownConnection  = fmt.Errorf("unknown connection")
	ErrUserAlreadyExists  = fmt.Errorf("user already exists")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")
	ErrInvalidPassword    = fmt.Errorf("password does not meet complexity rules")
	ErrTokenGeneration    = fmt.Errorf("token generation failed")
	ErrWorkerPanic        = fmt.Errorf("worker panic")
	ErrEmptyWords         = fmt.Errorf("no words have been found")
)
