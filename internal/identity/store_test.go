package identity_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"

	"smartattend/internal/identity"
)

// fakeOracle maps image contents to embeddings. Images without an entry
// report zero detected faces.
type fakeOracle struct {
	embeddings map[string][]float32
}

func (o *fakeOracle) Embed(_ context.Context, image []byte) ([][]float32, error) {
	enc, ok := o.embeddings[string(image)]
	if !ok {
		return nil, nil
	}
	return [][]float32{enc}, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.ErrorLevel)
	return log
}

func TestRebuild(t *testing.T) {
	dir := t.TempDir()
	for name, contents := range map[string]string{
		"alice.jpg":  "img-alice",
		"bob.png":    "img-bob",
		"noface.jpg": "img-empty",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	oracle := &fakeOracle{embeddings: map[string][]float32{
		"img-alice": {0.1, 0.2},
		"img-bob":   {0.3, 0.4},
	}}

	store := identity.NewStore()
	if err := store.Rebuild(context.Background(), dir, oracle, testLogger()); err != nil {
		t.Fatalf("Rebuild: %v", err)
	}

	entries := store.Entries()
	if len(entries) != 2 {
		t.Fatalf("expected 2 identities (noface skipped), got %d", len(entries))
	}
	// ReadDir is lexical, so alice enrolls before bob.
	if entries[0].Name != "alice" || entries[1].Name != "bob" {
		t.Errorf("unexpected enrollment order: %q, %q", entries[0].Name, entries[1].Name)
	}
	if entries[0].Encoding[0] != 0.1 {
		t.Errorf("unexpected encoding for alice: %v", entries[0].Encoding)
	}
}

func TestRebuild_MissingDirectory(t *testing.T) {
	store := identity.NewStore()
	err := store.Rebuild(context.Background(), filepath.Join(t.TempDir(), "absent"), &fakeOracle{}, testLogger())
	if err == nil {
		t.Fatal("expected an error for a missing reference directory")
	}
}

func TestPersistLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "encodings.gob")

	store := identity.NewStore()
	store.Add("alice", []float32{0.1, 0.2, 0.3})
	store.Add("bob", []float32{0.4, 0.5, 0.6})
	if err := store.Persist(path); err != nil {
		t.Fatalf("Persist: %v", err)
	}

	loaded := identity.NewStore()
	if err := loaded.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Len() != 2 {
		t.Fatalf("expected 2 identities after load, got %d", loaded.Len())
	}
	entries := loaded.Entries()
	if entries[0].Name != "alice" || entries[1].Name != "bob" {
		t.Errorf("insertion order not preserved: %q, %q", entries[0].Name, entries[1].Name)
	}
	if entries[1].Encoding[2] != 0.6 {
		t.Errorf("unexpected encoding for bob: %v", entries[1].Encoding)
	}
}

func TestLoad_MissingCache(t *testing.T) {
	store := identity.NewStore()
	err := store.Load(filepath.Join(t.TempDir(), "absent.gob"))
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist, got %v", err)
	}
}
