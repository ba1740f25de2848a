// Package storage defines the narrow key/value port the auth layer persists
// through, plus in-memory and Redis-backed implementations.
//
// # Design
//
// Core logic never touches a storage mechanism directly; it writes through
// [Store] so the same code runs against browser-like session storage, an
// in-memory fake in tests, or Redis in a multi-instance BFF deployment.
//
// # What this package must NOT do
//
//   - Interpret the values it stores. Keys and values are opaque strings.
//   - Import any authguard package (leaf package, no cycles).
package storage
