// Package attendance persists per-frame headcounts as rows of a CSV file.
// The file has a single "timestamp,headcount" header and is strictly
// append-only: rows are never rewritten or reordered.
package attendance

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/vizmon/headcount/internal/logger"
)

const moduleName = "Attendance"

// TimeLayout is the wall clock format of the timestamp column.
const TimeLayout = "2006-01-02 15:04:05"

// DefaultFileName is the log file created under the data directory.
const DefaultFileName = "attendance_log.csv"

var header = []string{"timestamp", "headcount"}

// Row is one attendance record: the headcount observed at a point in time.
type Row struct {
	Timestamp time.Time `json:"timestamp"`
	Headcount int       `json:"headcount"`
}

// Log is an append-only CSV attendance log. Methods are safe for concurrent
// use; every operation opens the file, works on it and closes it again, so
// a Log never holds a descriptor between calls.
type Log struct {
	mu   sync.Mutex
	path string
}

// NewLog creates a Log bound to the given file path. The file itself is
// created lazily on first use.
func NewLog(path string) *Log {
	return &Log{path: path}
}

// Path returns the log file path.
func (l *Log) Path() string {
	return l.path
}

// EnsureInitialized creates the log file with its header if it does not
// exist yet. Calling it on an existing file is a no-op: the file is never
// truncated and the header is never duplicated.
func (l *Log) EnsureInitialized() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ensureInitialized()
}

func (l *Log) ensureInitialized() error {
	info, err := os.Stat(l.path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat log file: %w", err)
	}

	if dir := filepath.Dir(l.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create log directory: %w", err)
		}
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Write(header)
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to write log header: %w", err)
	}
	return f.Close()
}

// Append adds one row at the end of the log. The file is initialized first
// if needed, so a deleted log comes back with its header before the row.
func (l *Log) Append(row Row) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureInitialized(); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}

	w := csv.NewWriter(f)
	w.Write([]string{row.Timestamp.Format(TimeLayout), strconv.Itoa(row.Headcount)})
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("failed to append log row: %w", err)
	}
	return f.Close()
}

// ReadAll returns every row currently in the log in file order. A missing,
// empty or header-only file yields zero rows and no error. Rows that do not
// parse are skipped with a warning so one bad line cannot hide the rest.
func (l *Log) ReadAll() ([]Row, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read log file: %w", err)
	}

	rows := make([]Row, 0, len(records))
	for i, record := range records {
		if i == 0 && len(record) > 0 && record[0] == header[0] {
			continue
		}
		row, ok := parseRecord(record)
		if !ok {
			logger.Warn(moduleName, "skipping malformed row %d in %s: %q", i+1, l.path, record)
			continue
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// Tail returns the last n rows in file order. n <= 0 returns all rows.
func (l *Log) Tail(n int) ([]Row, error) {
	rows, err := l.ReadAll()
	if err != nil {
		return nil, err
	}
	if n <= 0 || len(rows) <= n {
		return rows, nil
	}
	return rows[len(rows)-n:], nil
}

func parseRecord(record []string) (Row, bool) {
	if len(record) != 2 {
		return Row{}, false
	}
	ts, err := time.ParseInLocation(TimeLayout, record[0], time.Local)
	if err != nil {
		return Row{}, false
	}
	count, err := strconv.Atoi(record[1])
	if err != nil || count < 0 {
		return Row{}, false
	}
	return Row{Timestamp: ts, Headcount: count}, true
}
