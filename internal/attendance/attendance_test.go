package attendance

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

var base = time.Date(2026, 3, 14, 9, 30, 0, 0, time.Local)

func newTestLog(t *testing.T) *Log {
	t.Helper()
	return NewLog(filepath.Join(t.TempDir(), "data", DefaultFileName))
}

func mustAppend(t *testing.T, l *Log, ts time.Time, count int) {
	t.Helper()
	if err := l.Append(Row{Timestamp: ts, Headcount: count}); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

func TestEnsureInitializedCreatesHeaderOnce(t *testing.T) {
	l := newTestLog(t)

	if err := l.EnsureInitialized(); err != nil {
		t.Fatalf("EnsureInitialized failed: %v", err)
	}
	if got := readFile(t, l.Path()); got != "timestamp,headcount\n" {
		t.Fatalf("fresh log content = %q, want header only", got)
	}

	mustAppend(t, l, base, 3)

	// A second initialization must not truncate or duplicate the header.
	if err := l.EnsureInitialized(); err != nil {
		t.Fatalf("repeat EnsureInitialized failed: %v", err)
	}
	content := readFile(t, l.Path())
	if n := strings.Count(content, "timestamp,headcount"); n != 1 {
		t.Fatalf("header appears %d times, want 1", n)
	}
	if !strings.Contains(content, "2026-03-14 09:30:00,3") {
		t.Fatalf("existing row lost after re-init, content: %q", content)
	}
}

func TestAppendThenReadAllRoundTrip(t *testing.T) {
	l := newTestLog(t)

	counts := []int{0, 2, 5, 4}
	for i, c := range counts {
		mustAppend(t, l, base.Add(time.Duration(i)*time.Second), c)
	}

	rows, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(rows) != len(counts) {
		t.Fatalf("got %d rows, want %d", len(rows), len(counts))
	}
	for i, row := range rows {
		want := base.Add(time.Duration(i) * time.Second)
		if !row.Timestamp.Equal(want) {
			t.Errorf("row %d timestamp = %v, want %v", i, row.Timestamp, want)
		}
		if row.Headcount != counts[i] {
			t.Errorf("row %d headcount = %d, want %d", i, row.Headcount, counts[i])
		}
	}
}

func TestAppendInitializesMissingFile(t *testing.T) {
	l := newTestLog(t)

	// First append on a fresh path writes the header before the row.
	mustAppend(t, l, base, 7)
	content := readFile(t, l.Path())
	if !strings.HasPrefix(content, "timestamp,headcount\n") {
		t.Fatalf("append did not initialize header first, content: %q", content)
	}

	// A log deleted out from under us comes back the same way.
	if err := os.Remove(l.Path()); err != nil {
		t.Fatalf("removing log: %v", err)
	}
	mustAppend(t, l, base.Add(time.Second), 1)
	content = readFile(t, l.Path())
	if content != "timestamp,headcount\n2026-03-14 09:30:01,1\n" {
		t.Fatalf("recreated log content = %q", content)
	}
}

func TestAppendNeverRewritesExistingRows(t *testing.T) {
	l := newTestLog(t)

	mustAppend(t, l, base, 1)
	mustAppend(t, l, base.Add(time.Second), 2)
	before := readFile(t, l.Path())

	mustAppend(t, l, base.Add(2*time.Second), 3)
	after := readFile(t, l.Path())

	if !strings.HasPrefix(after, before) {
		t.Fatalf("append rewrote existing content:\nbefore: %q\nafter:  %q", before, after)
	}
}

func TestReadAllMissingAndEmptyFiles(t *testing.T) {
	l := newTestLog(t)

	rows, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll on missing file: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("missing file returned %d rows", len(rows))
	}

	if err := l.EnsureInitialized(); err != nil {
		t.Fatalf("EnsureInitialized failed: %v", err)
	}
	rows, err = l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll on header-only file: %v", err)
	}
	if len(rows) != 0 {
		t.Fatalf("header-only file returned %d rows", len(rows))
	}
}

func TestReadAllSkipsMalformedRows(t *testing.T) {
	l := newTestLog(t)
	mustAppend(t, l, base, 4)

	f, err := os.OpenFile(l.Path(), os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("opening log: %v", err)
	}
	f.WriteString("not-a-timestamp,9\n")
	f.WriteString("2026-03-14 09:31:00,many\n")
	f.WriteString("2026-03-14 09:32:00,-2\n")
	f.Close()
	mustAppend(t, l, base.Add(3*time.Minute), 6)

	rows, err := l.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2 (malformed rows skipped)", len(rows))
	}
	if rows[0].Headcount != 4 || rows[1].Headcount != 6 {
		t.Fatalf("unexpected rows survived: %+v", rows)
	}
}

func TestTail(t *testing.T) {
	l := newTestLog(t)
	for i := 0; i < 15; i++ {
		mustAppend(t, l, base.Add(time.Duration(i)*time.Second), i)
	}

	rows, err := l.Tail(10)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(rows) != 10 {
		t.Fatalf("Tail(10) returned %d rows", len(rows))
	}
	if rows[0].Headcount != 5 || rows[9].Headcount != 14 {
		t.Fatalf("Tail(10) returned wrong window: first=%d last=%d", rows[0].Headcount, rows[9].Headcount)
	}

	rows, err = l.Tail(100)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(rows) != 15 {
		t.Fatalf("Tail(100) returned %d rows, want all 15", len(rows))
	}

	rows, err = l.Tail(0)
	if err != nil {
		t.Fatalf("Tail failed: %v", err)
	}
	if len(rows) != 15 {
		t.Fatalf("Tail(0) returned %d rows, want all 15", len(rows))
	}
}
