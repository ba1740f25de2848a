// Package audit asynchronously forwards security events (logins, refresh
// outcomes, MFA lifecycle, auth failures) to a host-supplied sink.
//
// # Design
//
// Events flow through a buffered channel drained by one dispatcher
// goroutine, so emitting never blocks the auth hot path when DropIfFull is
// set; dropped events are counted. Sinks are interchangeable: NoOp, a
// channel for tests, JSON lines, or a zap logger.
//
// # What this package must NOT do
//
//   - Carry credentials, raw tokens, or CSRF values in event metadata.
//   - Import any sibling authguard package.
package audit
