package session

import "time"

// Transport carries the session credential between client and server.
// The HTTP cookie carrier lives in the auth api package.
type Transport interface {
	// Credential returns the token presented by the client, if any.
	Credential() (string, bool)

	// SetCredential hands a new token to the client.
	SetCredential(token string, expiresAt time.Time)

	// ClearCredential tells the client to drop its token.
	ClearCredential()
}
