package session

import "errors"

var (
	// ErrInvalidToken is returned by Codec.Decode for malformed, forged or foreign tokens.
	// Manager treats it as an anonymous request, never as a failure.
	ErrInvalidToken = errors.New("invalid token")

	// ErrIntegrity is returned when a just-written session row cannot be read back,
	// or a deleted one still exists.
	ErrIntegrity = errors.New("session integrity check failed")

	// ErrDuplicateToken is returned by stores when a token is inserted twice.
	ErrDuplicateToken = errors.New("duplicate session token")

	// ErrAccountHasSession is returned by stores when an account already owns a row.
	// Manager never hits it because it deletes prior rows in the same unit of work.
	ErrAccountHasSession = errors.New("account already has a session")

	// ErrConfig is returned for invalid configuration.
	ErrConfig = errors.New("invalid session config")
)
