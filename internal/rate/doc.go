// Package rate throttles failed logins with fixed-window Redis counters.
//
// Each failed attempt runs one Lua script per key that increments the
// counter and, on the first hit of a window, sets its expiry. Keys:
//
//	{prefix}:al:{identifier}
//	{prefix}:ali:{ip}
//
// Refresh is never throttled; a throttled refresh would mask token reuse.
package rate
