package history

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(seq int, fields ...string) Entry {
	return Entry{Sequence: seq, Fields: fields, Design: []float64{float64(seq), 0.5}}
}

func TestCSVLogAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "temp", "history.csv")
	l, err := OpenCSVLog(path, false)
	require.NoError(t, err)

	require.NoError(t, l.Append(entry(0, "150000000.0", "1200.5")))
	require.NoError(t, l.Append(entry(1, "1.8e+08", "1100")))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "150000000.0,1200.5\n1.8e+08,1100\n", string(data))
}

func TestCSVLogRejectsOutOfOrder(t *testing.T) {
	l, err := OpenCSVLog(filepath.Join(t.TempDir(), "history.csv"), false)
	require.NoError(t, err)
	defer l.Close()

	require.NoError(t, l.Append(entry(0, "1", "2")))
	err = l.Append(entry(2, "1", "2"))
	assert.ErrorIs(t, err, ErrOutOfOrder)
}

func TestCSVLogTruncatesWithoutResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte("1,2\n3,4\n"), 0o644))

	l, err := OpenCSVLog(path, false)
	require.NoError(t, err)
	assert.Equal(t, 0, l.Recorded())
	require.NoError(t, l.Append(entry(0, "5", "6")))
	require.NoError(t, l.Close())

	rows, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"5", "6"}}, rows)
}

func TestCSVLogResume(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	// Rows as written by the older tooling, with a trailing comma.
	require.NoError(t, os.WriteFile(path, []byte("150000000.0,1200.5,\n180000000.0,1100.0,\n"), 0o644))

	l, err := OpenCSVLog(path, true)
	require.NoError(t, err)
	assert.Equal(t, 2, l.Recorded())

	// Same values, different formatting: accepted without rewriting.
	require.NoError(t, l.Append(entry(0, "1.5e+08", "1200.5")))
	require.NoError(t, l.Append(entry(1, "1.8e+08", "1100")))
	require.NoError(t, l.Append(entry(2, "1.7e+08", "1000")))
	assert.Equal(t, 3, l.Len())
	require.NoError(t, l.Close())

	rows, err := ReadCSV(path)
	require.NoError(t, err)
	want := [][]string{
		{"150000000.0", "1200.5"},
		{"180000000.0", "1100.0"},
		{"1.7e+08", "1000"},
	}
	if diff := cmp.Diff(want, rows); diff != "" {
		t.Errorf("history rows mismatch (-want +got):\n%s", diff)
	}
}

func TestCSVLogResumeDivergence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte("150000000.0,1200.5\n"), 0o644))

	l, err := OpenCSVLog(path, true)
	require.NoError(t, err)
	defer l.Close()

	err = l.Append(entry(0, "150000000.0", "999"))
	var div *DivergenceError
	require.True(t, errors.As(err, &div), "expected DivergenceError, got %v", err)
	assert.Equal(t, 0, div.Sequence)
	assert.Equal(t, 1, div.Column)
	assert.Equal(t, "1200.5", div.Recorded)
}

func TestResumeMissingFile(t *testing.T) {
	l, err := OpenCSVLog(filepath.Join(t.TempDir(), "fresh.csv"), true)
	require.NoError(t, err)
	defer l.Close()
	assert.Equal(t, 0, l.Recorded())
}

func TestSQLiteSink(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(ctx, filepath.Join(t.TempDir(), "history.db"), "run-1")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Append(entry(0, "1.5e+08", "1200.5")))
	require.NoError(t, s.Append(entry(1, "1.8e+08", "1100", "42.5")))
	// A replayed evaluation is not stored twice.
	require.NoError(t, s.Append(entry(1, "1.8e+08", "1100", "42.5")))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := s.Entries(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, []string{"1.8e+08", "1100", "42.5"}, entries[1].Fields)
	assert.Equal(t, []float64{1, 0.5}, entries[1].Design)
}

func TestSQLiteRuns(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "history.db")
	a, err := OpenSQLite(ctx, path, "run-b")
	require.NoError(t, err)
	require.NoError(t, a.Append(entry(0, "1", "2")))
	require.NoError(t, a.Close())

	b, err := OpenSQLite(ctx, path, "run-a")
	require.NoError(t, err)
	defer b.Close()
	require.NoError(t, b.Append(entry(0, "1", "2")))

	ids, err := b.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-a", "run-b"}, ids)
}

type failingSink struct{ err error }

func (f failingSink) Append(Entry) error { return f.err }
func (f failingSink) Close() error       { return f.err }

func TestMultiSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	l, err := OpenCSVLog(path, false)
	require.NoError(t, err)

	boom := errors.New("boom")
	m := MultiSink{l, failingSink{err: boom}}
	assert.ErrorIs(t, m.Append(entry(0, "1", "2")), boom)
	assert.ErrorIs(t, m.Close(), boom)

	rows, err := ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
