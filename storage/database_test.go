package storage

import (
	"path/filepath"
	"testing"
)

func TestOpenCreatesDatabase(t *testing.T) {
	dataDir := t.TempDir()

	store, dbPath, err := Open(dataDir)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	if want := filepath.Join(dataDir, DefaultDBFileName); dbPath != want {
		t.Fatalf("unexpected db path %q, want %q", dbPath, want)
	}
}

func TestOpenIsIdempotentAcrossRestarts(t *testing.T) {
	dataDir := t.TempDir()

	store, _, err := Open(dataDir)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	if err := store.RecordRegistered("bob@h2"); err != nil {
		t.Fatalf("RecordRegistered failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	// Reopening must not rerun migrations destructively.
	store, _, err = Open(dataDir)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer store.Close()

	sightings, err := store.RecentSightings(10)
	if err != nil {
		t.Fatalf("RecentSightings failed: %v", err)
	}
	if len(sightings) != 1 || sightings[0].Event != SightingRegistered {
		t.Fatalf("journal not preserved across reopen: %+v", sightings)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	store, _, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("first Close failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
}

func TestResolveDataDirHonorsOverride(t *testing.T) {
	t.Setenv("LANSHARE_DATA_DIR", "/tmp/lanshare-test-override")

	dir, err := ResolveDataDir()
	if err != nil {
		t.Fatalf("ResolveDataDir failed: %v", err)
	}
	if dir != "/tmp/lanshare-test-override" {
		t.Fatalf("override ignored, got %q", dir)
	}
}
