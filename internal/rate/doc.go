// Package rate enforces the fixed-window login-attempt budget.
//
// # Design
//
// A Check call both records the attempt and decides it: the first sight of
// an identifier opens a window with count 1, further calls within a live
// window increment, and a full window denies until it naturally elapses or
// Reset clears it after a successful authentication. Denials never touch the
// counter, so the reported reset time stays anchored to the first attempt of
// the window.
//
// Two implementations share the [Limiter] contract: [MemoryLimiter] for the
// in-process case and [RedisLimiter] for multi-instance deployments.
//
// # What this package must NOT do
//
//   - Return errors to callers. A limiter decision is always a [Result];
//     backend failures fail closed.
//   - Import any sibling authguard package.
package rate
