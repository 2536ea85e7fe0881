package domain

// ActivityID keys a room. Every connection subscribed to the same activity
// receives that activity's broadcasts.
type ActivityID string

func (a ActivityID) String() string {
	return string(a)
}
