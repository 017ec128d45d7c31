// Package records persists evaluated calls in an append-only SQLite log.
//
// A CallRecord is immutable once appended: the store offers Append, ordered
// listing, filtered listing, and lookup by call ID, with no update or delete.
// Each record is stored as its full JSON document alongside a few indexed
// columns used for filtering. Writes are serialized in-process and retried
// when SQLite reports the database busy; reads run concurrently and may miss
// a write still in flight.
//
// Schema changes bump schemaVersion in schema.go. Older databases are
// rejected rather than migrated in place.
package records
