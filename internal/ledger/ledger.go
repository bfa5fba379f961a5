package ledger

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"
)

// TimeLayout is the on-disk timestamp format for attendance records.
const TimeLayout = "2006-01-02 15:04:05"

// Record is one attendance event: who was marked present and when.
type Record struct {
	Identity  string `json:"identity"`
	Timestamp string `json:"timestamp"`
}

// Ledger is the append-only attendance store backed by a CSV file. The
// ledger exclusively owns appends; readers only filter a snapshot. Records
// are never updated or deleted, and nothing deduplicates — marking the same
// identity twice produces two records.
type Ledger struct {
	path string
}

// New creates a ledger over the given CSV path. The file is created on
// first append.
func New(path string) *Ledger {
	return &Ledger{path: path}
}

// Append writes one record and syncs it to disk before returning.
func (l *Ledger) Append(identity string, at time.Time) error {
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{identity, at.Format(TimeLayout)}); err != nil {
		return fmt.Errorf("write record: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush record: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync ledger: %w", err)
	}
	return nil
}

// Query returns the records visible to the requester, in append order. An
// admin sees everything; any other requester sees the records whose
// identity field contains their username as a substring. A ledger file that
// does not exist yet yields an empty result, not an error.
func (l *Ledger) Query(requester, role string) ([]Record, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []Record{}, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	admin := strings.EqualFold(role, "admin")

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records := []Record{}
	for {
		rec, err := r.Read()
		if err != nil {
			break
		}
		if len(rec) < 2 {
			continue
		}
		if admin || strings.Contains(rec[0], requester) {
			records = append(records, Record{Identity: rec[0], Timestamp: rec[1]})
		}
	}
	return records, nil
}
