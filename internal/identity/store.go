package identity

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Embedder extracts face embeddings from an encoded image. Zero detected
// faces is reported as an empty result, not an error.
type Embedder interface {
	Embed(ctx context.Context, image []byte) ([][]float32, error)
}

// Entry is one enrolled identity: a name and its reference embedding.
type Entry struct {
	Name     string
	Encoding []float32
}

// Store holds the enrolled identities in insertion order. Order matters:
// the matcher resolves ties by the lowest insertion index, so the order the
// reference directory was scanned in is load-bearing.
type Store struct {
	entries []Entry
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{}
}

// Rebuild scans dir and re-enrolls every image whose embedding extraction
// succeeds. Files yielding zero faces, unreadable files, and extraction
// failures are skipped without surfacing an error; the identity name is the
// filename without its extension. Returns an error only when the directory
// itself cannot be read.
func (s *Store) Rebuild(ctx context.Context, dir string, oracle Embedder, log *logrus.Logger) error {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read reference directory: %w", err)
	}

	s.entries = s.entries[:0]
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		name := strings.TrimSuffix(de.Name(), filepath.Ext(de.Name()))
		image, err := os.ReadFile(filepath.Join(dir, de.Name()))
		if err != nil {
			log.WithFields(logrus.Fields{"file": de.Name(), "error": err}).Debug("skipping unreadable reference image")
			continue
		}
		encodings, err := oracle.Embed(ctx, image)
		if err != nil || len(encodings) == 0 {
			log.WithField("file", de.Name()).Debug("no face found in reference image, skipping")
			continue
		}
		s.entries = append(s.entries, Entry{Name: name, Encoding: encodings[0]})
	}
	return nil
}

// Add enrolls an identity at the end of the table.
func (s *Store) Add(name string, encoding []float32) {
	s.entries = append(s.entries, Entry{Name: name, Encoding: encoding})
}

// Entries returns the enrolled identities in insertion order. Callers must
// not modify the returned slice.
func (s *Store) Entries() []Entry {
	return s.entries
}

// Len returns the number of enrolled identities.
func (s *Store) Len() int {
	return len(s.entries)
}

// cacheBlob is the serialized form of the store: two parallel lists, the
// same shape the extraction produces.
type cacheBlob struct {
	Encodings [][]float32
	Names     []string
}

// Persist writes the table to the cache file so extraction is not repeated
// on the next startup.
func (s *Store) Persist(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create encodings cache: %w", err)
	}
	defer f.Close()

	blob := cacheBlob{}
	for _, e := range s.entries {
		blob.Encodings = append(blob.Encodings, e.Encoding)
		blob.Names = append(blob.Names, e.Name)
	}
	if err := gob.NewEncoder(f).Encode(blob); err != nil {
		return fmt.Errorf("encode encodings cache: %w", err)
	}
	return f.Sync()
}

// Load replaces the table with the cache file contents. A missing cache
// surfaces as an fs.ErrNotExist-wrapping error so the caller can decide to
// rebuild instead.
func (s *Store) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open encodings cache: %w", err)
	}
	defer f.Close()

	var blob cacheBlob
	if err := gob.NewDecoder(f).Decode(&blob); err != nil {
		return fmt.Errorf("decode encodings cache: %w", err)
	}
	if len(blob.Encodings) != len(blob.Names) {
		return fmt.Errorf("corrupt encodings cache: %d encodings, %d names", len(blob.Encodings), len(blob.Names))
	}

	s.entries = s.entries[:0]
	for i := range blob.Names {
		s.entries = append(s.entries, Entry{Name: blob.Names[i], Encoding: blob.Encodings[i]})
	}
	return nil
}
