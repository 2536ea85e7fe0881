// Package domain contains core concepts of the activity hub.
// This file defines the authenticated Identity bound to a connection.
// No runtime, network, or UI logic should be added here.
package domain

// Identity is the authenticated user behind a connection.
// Immutable once bound to a connection; a single identity may be bound to
// several concurrent connections (multi-device).
type Identity struct {
	UserID      string
	DisplayName string
}

// Zero reports whether the identity carries no user at all.
func (i Identity) Zero() bool {
	return i.UserID == ""
}
