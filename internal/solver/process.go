package solver

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/panelopt/panelopt/pkg/config"
	"github.com/panelopt/panelopt/pkg/logger"
)

// ProcessSolver runs the external program once per request and exchanges
// data with it through the file channels.
type ProcessSolver struct {
	Command    string
	Args       []string
	Dir        string
	InputPath  string
	OutputPath string
	LogPath    string

	log *slog.Logger
}

// NewProcessSolver builds a ProcessSolver from the solver section of cfg with
// all paths resolved against the working directory.
func NewProcessSolver(cfg *config.Config) *ProcessSolver {
	return &ProcessSolver{
		Command:    cfg.Solver.Command,
		Args:       append([]string(nil), cfg.Solver.Args...),
		Dir:        cfg.WorkDir,
		InputPath:  cfg.Path(cfg.Solver.InputPath),
		OutputPath: cfg.Path(cfg.Solver.OutputPath),
		LogPath:    cfg.Path(cfg.Solver.LogPath),
		log:        logger.With("component", "solver"),
	}
}

// Run appends the request to the input channel, blocks until the external
// program exits and returns the lines of the output channel.
//
// A stale output file is removed before launch, so the presence of the file
// after exit is the completion signal.
func (p *ProcessSolver) Run(ctx context.Context, req Request) (Response, error) {
	if err := ensureDir(p.InputPath); err != nil {
		return Response{}, fmt.Errorf("%w: %v", ErrProcessFailed, err)
	}
	if err := AppendLine(p.InputPath, req.Record); err != nil {
		return Response{}, fmt.Errorf("%w: write request: %v", ErrProcessFailed, err)
	}
	if err := os.Remove(p.OutputPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Response{}, fmt.Errorf("%w: remove stale output: %v", ErrProcessFailed, err)
	}

	cmd := exec.CommandContext(ctx, p.Command, p.Args...)
	cmd.Dir = p.Dir
	if p.LogPath != "" {
		if err := ensureDir(p.LogPath); err != nil {
			return Response{}, fmt.Errorf("%w: %v", ErrProcessFailed, err)
		}
		logFile, err := os.Create(p.LogPath)
		if err != nil {
			return Response{}, fmt.Errorf("%w: open solver log: %v", ErrProcessFailed, err)
		}
		defer logFile.Close()
		cmd.Stdout = logFile
		cmd.Stderr = logFile
	}

	p.logger().Debug("launching solver", "sequence", req.Sequence, "command", p.Command, "args", p.Args)
	start := time.Now()
	if err := cmd.Run(); err != nil {
		return Response{}, fmt.Errorf("%w: %s: %v", ErrProcessFailed, p.Command, err)
	}
	elapsed := time.Since(start)

	lines, err := ReadLines(p.OutputPath)
	if err != nil {
		return Response{}, fmt.Errorf("%w: read output channel: %v", ErrProcessFailed, err)
	}

	p.logger().Debug("solver finished", "sequence", req.Sequence, "elapsed", elapsed, "lines", len(lines))
	return Response{Lines: lines, Duration: elapsed}, nil
}

func (p *ProcessSolver) logger() *slog.Logger {
	if p.log == nil {
		return logger.Default
	}
	return p.log
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
