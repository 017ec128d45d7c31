package testsupport

import (
	"context"
	"testing"

	"callqa/internal/config"
	"callqa/internal/records"
)

// MustOpenStore opens a records.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *records.Store {
	t.Helper()

	store, err := records.Open(cfg)
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AppendRecord stores rec for tests and returns the stored copy.
func AppendRecord(t testing.TB, store *records.Store, rec records.CallRecord) records.CallRecord {
	t.Helper()

	stored, err := store.Append(context.Background(), rec)
	if err != nil {
		t.Fatalf("store.Append: %v", err)
	}
	return stored
}
