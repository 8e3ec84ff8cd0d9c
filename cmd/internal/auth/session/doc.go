// Package session implements the account session lifecycle.
//
// A session is a row binding a signed token to an account and an absolute
// expiry. Each account has at most one session: issuing a new one deletes
// every prior row for the account inside the same atomic unit of work.
//
// Resolve implements a sliding window. A session resolved with less than
// RenewThreshold left is replaced by a fresh one (new token, full duration)
// and the caller is told to hand the new token to the client. Rows are never
// extended in place.
//
// Tokens are HS256 JWTs. The signature proves the token was minted here, but
// only the repository row makes it valid: deleting the row is how a token is
// revoked before its signed expiry.
//
// Transport (cookies, websockets) sits behind the Transport interface.
package session
