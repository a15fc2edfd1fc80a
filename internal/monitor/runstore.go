// Package monitor publishes the status of the running optimization over HTTP
// and gRPC.
package monitor

import (
	"sync"
	"time"

	"github.com/panelopt/panelopt/internal/report"
)

// RunStatus is the lifecycle status of a run.
type RunStatus string

const (
	RunStatusPending   RunStatus = "pending"
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
	RunStatusCancelled RunStatus = "cancelled"
)

// Terminal reports whether no further updates are expected.
func (s RunStatus) Terminal() bool {
	return s == RunStatusCompleted || s == RunStatusFailed || s == RunStatusCancelled
}

// Run is a snapshot of run progress.
type Run struct {
	ID              string    `json:"id"`
	Mode            string    `json:"mode"`
	Status          RunStatus `json:"status"`
	State           string    `json:"state"`
	Generation      int       `json:"generation"`
	Generations     int       `json:"generations"`
	Evaluations     int       `json:"evaluations"`
	Best            []float64 `json:"best,omitempty"`
	BestObjectives  []float64 `json:"best_objectives,omitempty"`
	Feasible        bool      `json:"feasible"`
	Error           string    `json:"error,omitempty"`
	CreatedAtUnixMs int64     `json:"created_at_unix_ms"`
	StartedAtUnixMs int64     `json:"started_at_unix_ms,omitempty"`
	EndedAtUnixMs   int64     `json:"ended_at_unix_ms,omitempty"`
}

// RunStore holds the progress of the single run of this process. The
// optimizer writes it; the servers read snapshots.
type RunStore struct {
	mu          sync.RWMutex
	run         Run
	generations []report.Generation
}

func nowUnixMs() int64 {
	return time.Now().UTC().UnixMilli()
}

// NewRunStore creates a pending run.
func NewRunStore(runID, mode string, generations int) *RunStore {
	return &RunStore{
		run: Run{
			ID:              runID,
			Mode:            mode,
			Status:          RunStatusPending,
			Generation:      -1,
			Generations:     generations,
			CreatedAtUnixMs: nowUnixMs(),
		},
	}
}

// Snapshot returns a copy of the run.
func (s *RunStore) Snapshot() Run {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r := s.run
	r.Best = append([]float64(nil), s.run.Best...)
	r.BestObjectives = append([]float64(nil), s.run.BestObjectives...)
	return r
}

// SetStatus moves the run to status, stamping start and end times.
func (s *RunStore) SetStatus(status RunStatus, errMsg string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.run.Status = status
	if errMsg != "" {
		s.run.Error = errMsg
	}
	switch {
	case status == RunStatusRunning:
		if s.run.StartedAtUnixMs == 0 {
			s.run.StartedAtUnixMs = nowUnixMs()
		}
	case status.Terminal():
		s.run.EndedAtUnixMs = nowUnixMs()
	}
}

// SetState records the optimizer state.
func (s *RunStore) SetState(state string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.State = state
}

// SetEvaluations records the evaluation count.
func (s *RunStore) SetEvaluations(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.run.Evaluations = n
}

// RecordGeneration stores a generation summary and updates the best design.
func (s *RunStore) RecordGeneration(g report.Generation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generations = append(s.generations, g)
	s.run.Generation = g.Index
	s.run.Evaluations = g.Evaluations
	s.run.Best = append([]float64(nil), g.Best...)
	s.run.BestObjectives = append([]float64(nil), g.BestObjectives...)
	s.run.Feasible = g.Feasible
}

// Generations returns the most recent limit generations, oldest first.
// A limit <= 0 returns all of them.
func (s *RunStore) Generations(limit int) []report.Generation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	gens := s.generations
	if limit > 0 && len(gens) > limit {
		gens = gens[len(gens)-limit:]
	}
	return append([]report.Generation(nil), gens...)
}
