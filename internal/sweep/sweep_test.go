package sweep

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panelopt/panelopt/internal/simulation"
	"github.com/panelopt/panelopt/internal/solver"
	"github.com/panelopt/panelopt/pkg/config"
)

var seedVector = []float64{
	4, 6, 0.02, 0.5, 0.01, 0.02, 0.2, 0.3, 0.01, 0.015, 0.1,
	1e5, 0.05, 0.05, 0.05, 0.05, 0.05, 3, 6,
}

func sweepConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.Sweep = &config.Sweep{
		Parameter: "mP",
		From:      0.01,
		To:        0.05,
		Step:      0.02,
		Overrides: map[string]float64{"mTS": 0.01, "mLF": 0.01},
	}
	config.ApplyDefaults(cfg)
	require.NoError(t, config.Validate(cfg))
	require.NoError(t, os.WriteFile(cfg.Path(cfg.Files.Seed), []byte(solver.FormatRecord(seedVector)+"\n"), 0o644))
	return cfg
}

func TestValues(t *testing.T) {
	assert.InDeltaSlice(t, []float64{0.005, 0.025, 0.045}, Values(0.005, 0.05, 0.02), 1e-12)
	assert.Len(t, Values(0.1, 0.5, 0.1), 5, "end point is included despite rounding")
	assert.Equal(t, []float64{1}, Values(1, 1, 0.5))
	assert.Nil(t, Values(1, 0, 0.5))
	assert.Nil(t, Values(0, 1, 0))
}

func TestRunSweep(t *testing.T) {
	cfg := sweepConfig(t)
	var requests [][]float64
	fake := solver.FuncSolver(func(_ context.Context, req solver.Request) (solver.Response, error) {
		x, err := solver.ParseRecord(req.Record)
		if err != nil {
			return solver.Response{}, err
		}
		requests = append(requests, x)
		stress := solver.FormatValue(1e8 + 1e9*x[12])
		return solver.Response{Lines: []string{stress, "1500"}}, nil
	})

	points, err := New(cfg).WithSolver(fake).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, points, 3)
	assert.InDelta(t, 0.05, points[2].Value, 1e-12)
	assert.InDelta(t, 1e8+1e9*0.03, points[1].Stress, 1e-3)

	for i, x := range requests {
		assert.InDelta(t, 0.01+0.02*float64(i), x[12], 1e-12, "swept plate mesh")
		assert.Equal(t, 0.01, x[13], "overridden stiffener mesh")
		assert.Equal(t, 0.05, x[14], "seed flange mesh")
		assert.Equal(t, seedVector[:12], x[:12])
	}

	rows, err := solver.ReadLines(cfg.Path(cfg.Sweep.Output))
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.True(t, strings.HasPrefix(rows[0], "0.01,"), rows[0])

	info, err := os.ReadFile(cfg.Path(cfg.Sweep.Information))
	require.NoError(t, err)
	assert.Contains(t, string(info), "Sensitivity Analysis: mP")
	assert.Contains(t, string(info), "Fixed mLF: 0.01")
	assert.Contains(t, string(info), "Outcome: completed")
}

func TestRunSweepStopsOnFailure(t *testing.T) {
	cfg := sweepConfig(t)
	calls := 0
	fake := solver.FuncSolver(func(context.Context, solver.Request) (solver.Response, error) {
		calls++
		if calls == 2 {
			return solver.Response{}, solver.ErrProcessFailed
		}
		return solver.Response{Lines: []string{"1e8", "1500"}}, nil
	})

	points, err := New(cfg).WithSolver(fake).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, simulation.ErrSimulationFailed))
	assert.Len(t, points, 1)

	info, err := os.ReadFile(cfg.Path(cfg.Sweep.Information))
	require.NoError(t, err)
	assert.Contains(t, string(info), "Outcome: failed")
}

func TestRunSweepKeepsRunInformation(t *testing.T) {
	cfg := sweepConfig(t)
	runInfo := cfg.Path(cfg.Files.Information)
	require.NoError(t, os.MkdirAll(filepath.Dir(runInfo), 0o755))
	require.NoError(t, os.WriteFile(runInfo, []byte("Stiffened Panel Optimization\nRun ID: run-1\n"), 0o644))

	fake := solver.FuncSolver(func(context.Context, solver.Request) (solver.Response, error) {
		return solver.Response{Lines: []string{"1e8", "1500"}}, nil
	})
	_, err := New(cfg).WithSolver(fake).Run(context.Background())
	require.NoError(t, err)

	info, err := os.ReadFile(runInfo)
	require.NoError(t, err)
	assert.Equal(t, "Stiffened Panel Optimization\nRun ID: run-1\n", string(info))
}

func TestRunWithoutSweepSection(t *testing.T) {
	cfg := config.Default()
	_, err := New(cfg).Run(context.Background())
	assert.ErrorContains(t, err, "no sweep configured")
}
