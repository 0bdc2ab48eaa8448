// Package scope handles the role labels carried in a token's scope claim.
//
// On the wire a scope is a space-separated list such as "USER ADMIN". Order
// is preserved as issued and duplicates are dropped. A [Registry] holds the
// labels an engine accepts; it is fixed after construction and never does
// I/O.
package scope
