// Package tokens owns the access/refresh token pair and the refresh
// discipline around it.
//
// # Design
//
// The [Coordinator] is the only writer of the pair. Concurrent callers that
// discover an expired or rejected access token share one in-flight network
// refresh (single-flight): the first caller creates the operation, everyone
// else awaits the same pending result, and the slot clears once it resolves.
// Callers therefore observe either the pre-refresh pair or the fully updated
// one, never an intermediate state.
//
// Access tokens are inspected structurally only (segment count, exp claim);
// signature verification is the server's job.
//
// # What this package must NOT do
//
//   - Issue more than one refresh call at a time.
//   - Leave a half-authenticated state behind: a failed refresh clears the
//     pair and its persisted copy.
package tokens
