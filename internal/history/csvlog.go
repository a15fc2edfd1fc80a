package history

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/panelopt/panelopt/internal/solver"
)

// CSVLog appends one comma separated row per evaluation.
//
// In resume mode the rows already on disk are kept. Entries whose sequence
// falls inside the recorded range are checked against the recorded row
// instead of being written again.
type CSVLog struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	recorded [][]string
	next     int
}

// OpenCSVLog opens path for appending. Without resume an existing file is
// truncated.
func OpenCSVLog(path string, resume bool) (*CSVLog, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create history directory: %w", err)
		}
	}

	l := &CSVLog{path: path}
	flags := os.O_CREATE | os.O_WRONLY | os.O_APPEND
	if resume {
		rows, err := ReadCSV(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read existing history: %w", err)
		}
		l.recorded = rows
	} else {
		flags |= os.O_TRUNC
	}

	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	l.file = f
	return l, nil
}

// Recorded returns the number of rows found on disk when the log was opened.
func (l *CSVLog) Recorded() int {
	return len(l.recorded)
}

// Rows returns the rows found on disk when the log was opened.
func (l *CSVLog) Rows() [][]string {
	return l.recorded
}

// Len returns the number of entries accepted so far, recorded or new.
func (l *CSVLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.next
}

// Append implements Sink.
func (l *CSVLog) Append(e Entry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Sequence != l.next {
		return fmt.Errorf("%w: got %d, expected %d", ErrOutOfOrder, e.Sequence, l.next)
	}

	if e.Sequence < len(l.recorded) {
		if err := verify(e, l.recorded[e.Sequence]); err != nil {
			return err
		}
		l.next++
		return nil
	}

	if _, err := l.file.WriteString(strings.Join(e.Fields, ",") + "\n"); err != nil {
		return fmt.Errorf("write history row %d: %w", e.Sequence, err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync history: %w", err)
	}
	l.next++
	return nil
}

func verify(e Entry, row []string) error {
	for i, f := range e.Fields {
		recorded := ""
		if i < len(row) {
			recorded = row[i]
		}
		if !sameField(recorded, f) {
			return &DivergenceError{Sequence: e.Sequence, Column: i, Recorded: recorded, Got: f}
		}
	}
	return nil
}

// Close implements Sink.
func (l *CSVLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// ReadCSV loads every row of a history file. Rows written with a trailing
// comma are accepted.
func ReadCSV(path string) ([][]string, error) {
	lines, err := solver.ReadLines(path)
	if err != nil {
		return nil, err
	}
	rows := make([][]string, 0, len(lines))
	for _, line := range lines {
		fields := solver.SplitRecord(line)
		if len(fields) == 0 {
			continue
		}
		rows = append(rows, fields)
	}
	return rows, nil
}
