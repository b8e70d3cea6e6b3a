package disk_test

import (
	"context"
	"errors"
	"testing"

	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
	"github.com/EdwinVallejo/SalesforceTMO/internal/storage/disk"
)

func newStore(t *testing.T) *disk.Store {
	t.Helper()
	store, err := disk.New(t.TempDir())
	if err != nil {
		t.Fatalf("new disk store: %v", err)
	}
	return store
}

func TestNewRequiresRoot(t *testing.T) {
	t.Parallel()

	if _, err := disk.New(""); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestPutGetDeleteRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	record := &storage.Record{RecordID: "001xyz", HolderName: "Ana", HolderGroup: "QA", AcquiredAtUnix: 100, ExpiresAtUnix: 7300}
	if err := store.Put(ctx, record.RecordID, record); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := store.Get(ctx, "001xyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if *got != *record {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, record)
	}

	if err := store.Delete(ctx, "001xyz"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get(ctx, "001xyz"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, "001xyz"); err != nil {
		t.Fatalf("second delete should be idempotent: %v", err)
	}
}

func TestRecordIDWithSlashesIsEscaped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	id := "accounts/001 xyz"
	if err := store.Put(ctx, id, &storage.Record{RecordID: id, HolderName: "Ana", HolderGroup: "QA"}); err != nil {
		t.Fatalf("put escaped id: %v", err)
	}
	got, err := store.Get(ctx, id)
	if err != nil {
		t.Fatalf("get escaped id: %v", err)
	}
	if got.RecordID != id {
		t.Fatalf("record id mismatch: got %q want %q", got.RecordID, id)
	}

	ids, err := store.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(ids) != 1 || ids[0] != id {
		t.Fatalf("list returned %v, want [%q]", ids, id)
	}
}

func TestPutOverwritesExistingRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := newStore(t)

	if err := store.Put(ctx, "001xyz", &storage.Record{RecordID: "001xyz", HolderName: "Ana"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Put(ctx, "001xyz", &storage.Record{RecordID: "001xyz", HolderName: "Bruno"}); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := store.Get(ctx, "001xyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HolderName != "Bruno" {
		t.Fatalf("expected last write to win, got holder %q", got.HolderName)
	}
}
