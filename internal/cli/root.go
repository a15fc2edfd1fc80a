// Package cli implements the panelopt command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/panelopt/panelopt/pkg/config"
	"github.com/panelopt/panelopt/pkg/logger"
)

const defaultConfigPath = "config/panelopt.yaml"

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configPath string
	logLevel   string
	logFormat  string
	workDir    string

	cfg *config.Config
}

// NewRootCommand builds the panelopt command tree.
func NewRootCommand() *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:   "panelopt",
		Short: "Stiffened panel optimization driver",
		Long: `panelopt - stiffened panel design optimization

Drives an external finite element solver through its file channels and
searches the panel design space with NSGA-II: minimum mass, optionally
minimum weld length, subject to a von Mises stress limit.

Every evaluation is appended to the history file, so an interrupted run
can be resumed and, with replay enabled, continued without re-running the
solver for the designs it already evaluated.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.CompletionOptions.DisableDefaultCmd = true

	pf := root.PersistentFlags()
	pf.StringVarP(&o.configPath, "config", "c", defaultConfigPath, "Run configuration file")
	pf.StringVar(&o.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.StringVar(&o.logFormat, "log-format", "", "Log format override (text, json)")
	pf.StringVar(&o.workDir, "work-dir", "", "Working directory override for the solver and run files")

	root.AddCommand(
		newRunCommand(o),
		newEvaluateCommand(o),
		newSweepCommand(o),
		newReportCommand(o),
		newStatusCommand(),
		newVersionCommand(),
	)
	return root
}

// ExecuteContext runs the command line and returns the process exit code.
func ExecuteContext(ctx context.Context, args []string) int {
	root := NewRootCommand()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

// load reads the configuration, applies flag overrides and installs the
// logger. A missing default configuration file falls back to the built-in
// panel study.
func (o *rootOptions) load(cmd *cobra.Command, apply func(*config.Config)) (*config.Config, error) {
	cfg, err := config.LoadConfig(o.configPath)
	if err != nil {
		if cmd.Flags().Changed("config") || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = config.Default()
	}

	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if o.logFormat != "" {
		cfg.LogFormat = o.logFormat
	}
	if o.workDir != "" {
		cfg.WorkDir = o.workDir
	}
	if apply != nil {
		apply(cfg)
	}
	config.ApplyDefaults(cfg)
	if err := config.Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	logger.SetDefault(logger.NewWithFormat(cfg.LogFormat, cfg.LogLevel, cmd.ErrOrStderr()))
	o.cfg = cfg
	return cfg, nil
}
