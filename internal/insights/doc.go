// Package insights folds stored call records into dashboard statistics and a
// prioritized coaching queue.
//
// Nothing here is persisted. Every query recomputes from the records it is
// handed, so callers pass the full store contents (or a region slice of it)
// and get a fresh value back. Empty input yields a zeroed Insights with empty
// lists, never nil slices, so the JSON shape is stable.
package insights
