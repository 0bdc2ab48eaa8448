// Package goToken manages the lifecycle of short-lived signed bearer tokens:
// issuance, validation, introspection against a revocation store, single-use
// rotation on refresh, and revocation on logout.
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// goToken is the public surface. It exposes [Engine], [Builder], [Config], and
// value types ([Introspection], [MetricsSnapshot]). Flow orchestration, login
// throttling and audit dispatch live under internal/. Token encoding lives in
// the jwt package and persistence in the revocation package.
//
// # Rotation guarantee
//
// Refresh revokes the presented token with a single atomic insert-if-absent
// before a successor is signed. Of N concurrent refreshes of one token exactly
// one succeeds; the rest return [ErrTokenReuse]. A token that is revoked stays
// revoked until it would have expired anyway.
//
// # Performance contract
//
// Validate is CPU-only and never touches the store. Introspect, Refresh and
// Logout make one store round-trip each.
package goToken
