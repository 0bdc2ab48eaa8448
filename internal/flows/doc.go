// Package flows holds the request logic behind each Engine operation as
// plain functions over explicit dependency sets.
//
// RunIssue, RunValidate, RunIntrospect, RunRefresh, RunLogout and RunLogin
// return results tagged with a failure kind; the root package turns those
// kinds into public errors, metrics and audit events. Flows never own the
// codec, store, user lookup or throttle they call, keep no state between
// calls, and cannot import the root package.
package flows
