// Package storage persists the latest draw result and the subscriber set.
//
// Drivers:
//   - "sqlite": SQLite database file (default)
//   - "file": single JSON snapshot rewritten atomically on every change
//
// Writes are synchronous and visible to the next read in the same process.
package storage
