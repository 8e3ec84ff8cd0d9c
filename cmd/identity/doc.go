// Package identity owns bank customer accounts: signup validation, the account
// repository (Postgres and in-memory), and credential verification.
//
// Absence is modelled explicitly: repository lookups return (nil, nil) when no
// row matches. Errors carry stable sentinel kinds for mapping to API codes.
//
// Raw SSNs never reach storage; only the last four digits and a keyed digest
// (see cmd/security/digest) are persisted.
package identity
