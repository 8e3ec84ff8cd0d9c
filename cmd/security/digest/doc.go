// Package digest provides keyed one-way digests used to detect duplicate
// sensitive values (for example SSNs) without storing them.
//
// Output is a stable 64-char lowercase hex HMAC-SHA256 so it can be stored in a
// unique column and compared in constant time.
//
// The key is injected by the caller. Rotating it makes every stored digest
// unverifiable, so a deployment must keep one key for the lifetime of its data.
package digest
