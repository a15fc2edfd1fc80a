package improvement

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/panelopt/panelopt/internal/history"
	"github.com/panelopt/panelopt/internal/solver"
	"github.com/panelopt/panelopt/pkg/logger"
)

// channelState is what a previous run left in the request channel and the
// history file.
type channelState struct {
	requests []string   // request lines, one per answered evaluation
	rows     [][]string // history rows
}

// loadChannels reads the request channel and history file of a previous run
// and drops request lines that never got an answer, so that line i of the
// channel always pairs with row i of the history.
func loadChannels(inputPath, historyPath string) (*channelState, error) {
	rows, err := history.ReadCSV(historyPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read history: %w", err)
	}
	requests, err := solver.ReadLines(inputPath)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read request channel: %w", err)
	}

	switch {
	case len(requests) > len(rows):
		logger.Warn("dropping unanswered solver requests",
			"path", inputPath, "requests", len(requests), "answered", len(rows))
		requests = requests[:len(rows)]
		if err := writeLines(inputPath, requests); err != nil {
			return nil, fmt.Errorf("truncate request channel: %w", err)
		}
	case len(requests) < len(rows):
		return nil, &ResumeError{
			Reason: fmt.Sprintf("history has %d rows but the request channel only %d lines", len(rows), len(requests)),
		}
	}
	return &channelState{requests: requests, rows: rows}, nil
}

// preload teaches r every recorded answer of a previous run.
func (c *channelState) preload(r *solver.ReplaySolver, outputs int) error {
	for i, req := range c.requests {
		row := c.rows[i]
		if len(row) < outputs {
			return &ResumeError{Reason: fmt.Sprintf("history row %d has %d fields, expected at least %d", i, len(row), outputs)}
		}
		r.Preload(req, row[:outputs])
	}
	return nil
}

// resetChannel empties the request channel for a fresh run.
func resetChannel(path string) error {
	if err := os.Truncate(path, 0); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func writeLines(path string, lines []string) error {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l)
		b.WriteByte('\n')
	}
	return os.WriteFile(path, []byte(b.String()), 0o644)
}

// ResumeError reports a previous run whose files cannot be continued.
type ResumeError struct {
	Reason string
}

func (e *ResumeError) Error() string {
	return "cannot resume run: " + e.Reason
}

// channelRecorder keeps the request channel aligned with the history when a
// request is answered from recorded outputs instead of a solver launch.
// Requests below recorded are already in the channel.
type channelRecorder struct {
	next     solver.ExternalSolver
	path     string
	recorded int
}

func (c *channelRecorder) Run(ctx context.Context, req solver.Request) (solver.Response, error) {
	resp, err := c.next.Run(ctx, req)
	if err != nil || !resp.Replayed || req.Sequence < c.recorded {
		return resp, err
	}
	if err := solver.AppendLine(c.path, req.Record); err != nil {
		return solver.Response{}, fmt.Errorf("%w: write request: %v", solver.ErrProcessFailed, err)
	}
	return resp, nil
}
