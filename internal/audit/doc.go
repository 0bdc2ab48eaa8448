// Package audit carries token lifecycle events from the engine to a sink
// without putting the sink on the request path.
//
// A [Dispatcher] owns one goroutine and one bounded queue. In DropIfFull
// mode a slow sink costs events rather than latency, and the loss is
// visible through [Dispatcher.Dropped].
package audit
