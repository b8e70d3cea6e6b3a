package tmolockd

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/EdwinVallejo/SalesforceTMO/internal/storage"
)

func TestOpenBackendMemory(t *testing.T) {
	t.Parallel()

	for _, store := range []string{"mem://", "memory://"} {
		backend, name, err := openBackend(Config{Store: store})
		if err != nil {
			t.Fatalf("openBackend(%q): %v", store, err)
		}
		if name != "memory" {
			t.Fatalf("backend name = %q, want memory", name)
		}
		backend.Close()
	}
}

func TestOpenBackendDisk(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	backend, name, err := openBackend(Config{Store: "disk://" + dir})
	if err != nil {
		t.Fatalf("openBackend disk: %v", err)
	}
	defer backend.Close()
	if name != "disk" {
		t.Fatalf("backend name = %q, want disk", name)
	}

	ctx := context.Background()
	record := &storage.Record{RecordID: "001xyz", HolderName: "Ana", HolderGroup: "QA"}
	if err := backend.Put(ctx, record.RecordID, record); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := backend.Get(ctx, "001xyz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.HolderName != "Ana" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestOpenBackendBolt(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "locks.db")
	backend, name, err := openBackend(Config{Store: "bolt://" + path})
	if err != nil {
		t.Fatalf("openBackend bolt: %v", err)
	}
	defer backend.Close()
	if name != "bolt" {
		t.Fatalf("backend name = %q, want bolt", name)
	}
}

func TestOpenBackendRejectsUnknownScheme(t *testing.T) {
	t.Parallel()

	if _, _, err := openBackend(Config{Store: "cassandra://nope"}); err == nil {
		t.Fatal("expected error for unsupported scheme")
	}
}

func TestOpenBackendDiskRequiresPath(t *testing.T) {
	t.Parallel()

	if _, _, err := openBackend(Config{Store: "disk://"}); err == nil {
		t.Fatal("expected error for disk store without path")
	}
}
