// Package password scores candidate passwords for user-facing strength
// feedback.
//
// Evaluate is a pure function: no I/O, no shared state, recomputed per call.
// Errors in a [Result] are hard requirements the password fails; suggestions
// are improvements. Both are returned verbatim for UI display. Actual
// credential hashing and verification happen server-side and are out of
// scope here.
package password
