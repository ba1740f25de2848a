// Package stores holds the session-scoped security state: the per-session
// CSRF token and the short-lived MFA session records.
//
// # Design
//
// Each store owns its state exclusively; other components read through the
// store's methods and never mutate it directly. Every expiry decision uses
// the injected clock, so time-based behavior is deterministic in tests.
// Absent or expired records always fail closed.
//
// # What this package must NOT do
//
//   - Perform network I/O. The CSRF value persists through the storage
//     port; MFA sessions are purely in-process.
//   - Import any sibling authguard package other than storage.
package stores
