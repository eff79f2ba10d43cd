// Package runlog keeps an append-only record of simulation runs in
// logs/runs.csv.
package runlog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Entry is one row in the run log.
type Entry struct {
	Timestamp   time.Time
	RunID       string
	Workers     int
	Iterations  int
	Attempts    int
	Applied     int
	Rejected    int
	Failed      int
	AuditErrors int
}

// Clean reports whether the run finished without failures or audit errors.
func (e Entry) Clean() bool {
	return e.Failed == 0 && e.AuditErrors == 0
}

// Header is the CSV header for runs.csv.
const Header = "timestamp,run_id,workers,iterations,attempts,applied,rejected,failed,audit_errors"

const (
	numFields      = 9
	logDir         = "logs"
	logFile        = "logs/runs.csv"
	colTimestamp   = 0
	colRunID       = 1
	colWorkers     = 2
	colIterations  = 3
	colAttempts    = 4
	colApplied     = 5
	colRejected    = 6
	colFailed      = 7
	colAuditErrors = 8
)

// MarshalEntry converts an Entry to a CSV row.
func MarshalEntry(e Entry) []string {
	row := make([]string, numFields)
	row[colTimestamp] = e.Timestamp.UTC().Format(time.RFC3339)
	row[colRunID] = e.RunID
	row[colWorkers] = strconv.Itoa(e.Workers)
	row[colIterations] = strconv.Itoa(e.Iterations)
	row[colAttempts] = strconv.Itoa(e.Attempts)
	row[colApplied] = strconv.Itoa(e.Applied)
	row[colRejected] = strconv.Itoa(e.Rejected)
	row[colFailed] = strconv.Itoa(e.Failed)
	row[colAuditErrors] = strconv.Itoa(e.AuditErrors)
	return row
}

// UnmarshalEntry converts a CSV row to an Entry.
func UnmarshalEntry(record []string) (Entry, error) {
	if len(record) != numFields {
		return Entry{}, fmt.Errorf("expected %d fields, got %d", numFields, len(record))
	}

	ts, err := time.Parse(time.RFC3339, record[colTimestamp])
	if err != nil {
		return Entry{}, fmt.Errorf("parsing timestamp %q: %w", record[colTimestamp], err)
	}

	e := Entry{Timestamp: ts, RunID: record[colRunID]}
	counts := []struct {
		col  int
		name string
		dst  *int
	}{
		{colWorkers, "workers", &e.Workers},
		{colIterations, "iterations", &e.Iterations},
		{colAttempts, "attempts", &e.Attempts},
		{colApplied, "applied", &e.Applied},
		{colRejected, "rejected", &e.Rejected},
		{colFailed, "failed", &e.Failed},
		{colAuditErrors, "audit_errors", &e.AuditErrors},
	}
	for _, c := range counts {
		n, err := strconv.Atoi(record[c.col])
		if err != nil {
			return Entry{}, fmt.Errorf("parsing %s %q: %w", c.name, record[c.col], err)
		}
		*c.dst = n
	}
	return e, nil
}

// Append writes entries to <root>/logs/runs.csv, creating the file and
// header if needed.
func Append(root string, entries ...Entry) error {
	dir := filepath.Join(root, logDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating logs dir: %w", err)
	}

	path := filepath.Join(root, logFile)
	needsHeader := false
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		needsHeader = true
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if needsHeader {
		if err := cw.Write(strings.Split(Header, ",")); err != nil {
			return fmt.Errorf("writing header: %w", err)
		}
	}
	for i, e := range entries {
		if err := cw.Write(MarshalEntry(e)); err != nil {
			return fmt.Errorf("writing entry %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// Read returns all entries from <root>/logs/runs.csv. It returns nil if
// the file does not exist.
func Read(root string) ([]Entry, error) {
	f, err := os.Open(filepath.Join(root, logFile))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening run log: %w", err)
	}
	defer f.Close()

	return readEntries(f)
}

func readEntries(r io.Reader) ([]Entry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = numFields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading run log CSV: %w", err)
	}

	if len(records) <= 1 {
		return nil, nil
	}

	var entries []Entry
	for i, rec := range records[1:] {
		e, err := UnmarshalEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}
