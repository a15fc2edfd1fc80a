//go:build integration
// +build integration

package integration_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/panelopt/panelopt/internal/history"
	"github.com/panelopt/panelopt/internal/improvement"
	"github.com/panelopt/panelopt/internal/monitor"
	"github.com/panelopt/panelopt/internal/solver"
	"github.com/panelopt/panelopt/pkg/config"
)

var seedVector = []float64{
	4, 6, 0.02, 0.5, 0.01, 0.02, 0.2, 0.3, 0.01, 0.015, 0.1,
	1e5, 0.05, 0.05, 0.05, 0.05, 0.05, 3, 6,
}

func getJSON(t *testing.T, url string, v any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}

// TestIntegration_OptimizationWithMonitor runs a small optimization with the
// status servers and the SQLite history mirror enabled, pausing the solver
// mid-run to observe progress over HTTP.
func TestIntegration_OptimizationWithMonitor(t *testing.T) {
	cfg := config.Default()
	cfg.WorkDir = t.TempDir()
	cfg.Optimizer.Population = 6
	cfg.Optimizer.Offspring = 3
	cfg.Optimizer.Generations = 4
	cfg.Optimizer.Seed = 99
	cfg.History.SQLitePath = "temp/history.db"
	cfg.Monitor = &config.Monitor{HTTPAddr: "127.0.0.1:0"}
	if err := os.WriteFile(cfg.Path(cfg.Files.Seed), []byte(solver.FormatRecord(seedVector)+"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	paused := make(chan struct{})
	resume := make(chan struct{})
	var calls atomic.Int64
	fake := solver.FuncSolver(func(_ context.Context, req solver.Request) (solver.Response, error) {
		if calls.Add(1) == 8 {
			close(paused)
			<-resume
		}
		x, err := solver.ParseRecord(req.Record)
		if err != nil {
			return solver.Response{}, err
		}
		stress := 3e8 - 6e9*x[2]
		mass := 1000*(x[2]+x[4]+x[8]) + 10*(x[0]+x[1])
		return solver.Response{Lines: []string{solver.FormatValue(stress), solver.FormatValue(mass)}}, nil
	})

	orch := improvement.NewOrchestrator(cfg).WithSolver(fake).WithRunID("run-integration")
	servers, err := monitor.Start(cfg.Monitor, orch.RunStore(), orch.Metrics().Handler())
	if err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer servers.Shutdown(context.Background())
	base := "http://" + servers.HTTPAddr

	type outcome struct {
		res *improvement.ExperimentResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := orch.Run(context.Background())
		done <- outcome{res, err}
	}()

	select {
	case <-paused:
	case <-time.After(10 * time.Second):
		t.Fatal("solver was never called an eighth time")
	}

	var mid struct {
		Run monitor.Run `json:"run"`
	}
	getJSON(t, base+"/v1/run", &mid)
	if mid.Run.Status != monitor.RunStatusRunning || mid.Run.State != "evaluating" {
		t.Errorf("expected a running, evaluating run mid-way, got %+v", mid.Run)
	}
	if mid.Run.Generation != 0 {
		t.Errorf("expected generation 0 complete mid-way, got %d", mid.Run.Generation)
	}
	close(resume)

	var out outcome
	select {
	case out = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
	if out.err != nil {
		t.Fatalf("Run error: %v", out.err)
	}
	if out.res.Evaluations != 6+3*3 {
		t.Errorf("expected 15 evaluations, got %d", out.res.Evaluations)
	}

	var final struct {
		Run monitor.Run `json:"run"`
	}
	getJSON(t, base+"/v1/run", &final)
	if final.Run.Status != monitor.RunStatusCompleted || final.Run.Evaluations != 15 {
		t.Errorf("unexpected final run %+v", final.Run)
	}

	var gens struct {
		Generations []struct {
			Index       int `json:"index"`
			Evaluations int `json:"evaluations"`
		} `json:"generations"`
	}
	getJSON(t, base+"/v1/generations", &gens)
	if len(gens.Generations) != 4 || gens.Generations[3].Evaluations != 15 {
		t.Errorf("unexpected generations %+v", gens.Generations)
	}

	resp, err := http.Get(base + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if !strings.Contains(string(body), `panelopt_evaluations_total{replayed="false"} 15`) {
		t.Errorf("metrics do not report 15 evaluations:\n%s", body)
	}

	mirror, err := history.OpenSQLite(context.Background(), cfg.Path(cfg.History.SQLitePath), "run-integration")
	if err != nil {
		t.Fatalf("OpenSQLite error: %v", err)
	}
	defer mirror.Close()
	n, err := mirror.Count(context.Background())
	if err != nil || n != 15 {
		t.Errorf("expected 15 mirrored evaluations, got %d (%v)", n, err)
	}
}
