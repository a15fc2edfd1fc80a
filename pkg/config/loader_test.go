package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig(t *testing.T) {
	cfg, err := LoadConfig("../../config/panelopt.yaml")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.LogLevel != "info" {
		t.Errorf("Expected log_level 'info', got '%s'", cfg.LogLevel)
	}
	if cfg.Solver.Command != "abaqus" {
		t.Errorf("Expected solver command 'abaqus', got '%s'", cfg.Solver.Command)
	}
	if len(cfg.Solver.Args) != 2 || cfg.Solver.Args[1] != "noGUI=StiffenedPanel.py" {
		t.Errorf("Expected default args with noGUI script, got %v", cfg.Solver.Args)
	}
	if len(cfg.Solver.InputKeys) != 19 {
		t.Errorf("Expected 19 default input keys, got %d", len(cfg.Solver.InputKeys))
	}
	if len(cfg.Problem.Variables) != 11 {
		t.Fatalf("Expected 11 variables, got %d", len(cfg.Problem.Variables))
	}
	if !cfg.Problem.Variables[0].Integer || !cfg.Problem.Variables[1].Integer {
		t.Error("Expected stiffener counts to be integer variables")
	}
	if cfg.Problem.StressLimit != 1.75e8 {
		t.Errorf("Expected stress limit 1.75e8, got %g", cfg.Problem.StressLimit)
	}
	if cfg.Optimizer.Population != 20 || cfg.Optimizer.Offspring != 8 || cfg.Optimizer.Generations != 100 {
		t.Errorf("Unexpected optimizer sizes: %+v", cfg.Optimizer)
	}
	if !cfg.Optimizer.DuplicatesEliminated() {
		t.Error("Expected duplicate elimination to default on")
	}
	if cfg.Monitor == nil || cfg.Monitor.GRPCAddr != ":50051" {
		t.Errorf("Expected monitor grpc address, got %+v", cfg.Monitor)
	}
}

func TestLoadConfigNonExistentFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/panelopt.yaml")
	if err == nil {
		t.Error("Expected error for non-existent file")
	}
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	tmpFile := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(tmpFile, []byte("solver: [unterminated"), 0644); err != nil {
		t.Fatalf("Failed to create temp file: %v", err)
	}

	if _, err := LoadConfig(tmpFile); err == nil {
		t.Error("Expected error for invalid YAML")
	}
}

func TestConfigPath(t *testing.T) {
	cfg := &Config{WorkDir: "/runs/cs3"}
	if got := cfg.Path("temp/history.csv"); got != "/runs/cs3/temp/history.csv" {
		t.Errorf("Path relative = %s", got)
	}
	if got := cfg.Path("/abs/history.csv"); got != "/abs/history.csv" {
		t.Errorf("Path absolute = %s", got)
	}
	if got := (&Config{}).Path("temp/x.csv"); got != "temp/x.csv" {
		t.Errorf("Path without work dir = %s", got)
	}
}
