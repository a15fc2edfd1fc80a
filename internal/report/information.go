package report

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/panelopt/panelopt/internal/solver"
)

// Parameter is one labelled line of the information file.
type Parameter struct {
	Name  string
	Value any
}

// Information describes a run for the information file.
type Information struct {
	Title      string
	RunID      string
	Start      time.Time
	Parameters []Parameter
}

// WriteInformation creates the information file with the run header.
func WriteInformation(path string, info Information) error {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", info.Title)
	fmt.Fprintf(&b, "Date: %s\n", info.Start.Format("2006-01-02"))
	if info.RunID != "" {
		fmt.Fprintf(&b, "Run ID: %s\n", info.RunID)
	}
	fmt.Fprintf(&b, "Start Time: %s\n", info.Start.Format(time.RFC3339))
	b.WriteString("\nSimulation Parameters\n")
	for _, p := range info.Parameters {
		fmt.Fprintf(&b, "%s: %v\n", p.Name, p.Value)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// ReadRunID returns the run id recorded in an information file, or "" when
// the file has none.
func ReadRunID(path string) (string, error) {
	lines, err := solver.ReadLines(path)
	if err != nil {
		return "", err
	}
	for _, l := range lines {
		if id, ok := strings.CutPrefix(l, "Run ID: "); ok {
			return strings.TrimSpace(id), nil
		}
	}
	return "", nil
}

// AppendCompletion appends the completion time and elapsed hours.
func AppendCompletion(path string, start, end time.Time, outcome string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(f, "\nOutcome: %s\nCompletion Time: %s\nElapsed Time: %.3f hours\n",
		outcome, end.Format(time.RFC3339), end.Sub(start).Hours())
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}
