// Package store provides persistence for relay-gateway.
//
// Two storage contracts live here:
//
//   - HistoryStore: append-only connection-count samples with a prune
//     operation, backed by SQLite (SQLiteStore).
//   - ServiceStore: the whole-document service configuration map, backed by a
//     JSON file rewritten atomically on every save (FileServiceStore).
//
// In-memory implementations of both (MemoryHistoryStore, MemoryServiceStore)
// are provided for tests.
package store
