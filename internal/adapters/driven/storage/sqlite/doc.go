// Package sqlite provides a SQLite-backed implementation of driven.CredentialStore.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. Each identity is one row in the
// credentials table; the credential itself is stored as a JSON payload so the
// schema does not change when the credential gains fields.
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.gphotos/data/credentials.db
//
// # Thread Safety
//
// All operations are thread-safe. Saves are a single upsert statement, so a
// reader never sees a partially written credential.
package sqlite
