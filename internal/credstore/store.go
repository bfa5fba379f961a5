package credstore

import (
	"encoding/csv"
	"errors"
	"io"
	"os"
	"strings"
)

// Store answers credential and device-token lookups against two flat CSV
// files. Both files are optional: a missing file means verification fails
// and no token is found, never an error.
type Store struct {
	usersPath  string
	tokensPath string
}

// New creates a store over the given users and tokens CSV paths.
func New(usersPath, tokensPath string) *Store {
	return &Store{usersPath: usersPath, tokensPath: tokensPath}
}

// Verify reports whether a user record matches exactly. Username and
// password are compared byte for byte; the role comparison is
// case-insensitive after trimming. Rows that do not have exactly three
// fields are skipped.
func (s *Store) Verify(username, password, role string) bool {
	match := false
	s.scan(s.usersPath, func(rec []string) bool {
		if len(rec) != 3 {
			return true
		}
		if rec[0] == username && rec[1] == password &&
			strings.EqualFold(strings.TrimSpace(rec[2]), strings.TrimSpace(role)) {
			match = true
			return false
		}
		return true
	})
	return match
}

// TokenFor returns the notification token registered for username. The scan
// is linear and the first matching row wins.
func (s *Store) TokenFor(username string) (string, bool) {
	token := ""
	found := false
	s.scan(s.tokensPath, func(rec []string) bool {
		if len(rec) != 2 {
			return true
		}
		if rec[0] == username {
			token = rec[1]
			found = true
			return false
		}
		return true
	})
	return token, found
}

// scan streams CSV records to fn until fn returns false or the file ends.
// A missing or unreadable file is treated as empty.
func (s *Store) scan(path string, fn func(rec []string) bool) {
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			// Malformed line; keep scanning the rest.
			continue
		}
		if !fn(rec) {
			return
		}
	}
}
