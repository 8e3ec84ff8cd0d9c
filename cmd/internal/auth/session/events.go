package session

// EventKind names a lifecycle event pushed to an account's live connections.
type EventKind string

const (
	// EventSuperseded means a newer login replaced the account's session.
	EventSuperseded EventKind = "session.superseded"

	// EventRevoked means the account's session was logged out.
	EventRevoked EventKind = "session.revoked"
)

// Notifier receives lifecycle events after they commit. Implementations must not block.
type Notifier interface {
	Notify(accountID string, kind EventKind)
}

type nopNotifier struct{}

func (nopNotifier) Notify(string, EventKind) {}
