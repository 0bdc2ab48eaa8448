// Package internal groups code private to goToken: audit dispatch, the
// per-operation flows and the Redis login throttle live in its
// subpackages, and tokenid mints token identifiers.
package internal
