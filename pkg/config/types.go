package config

import "path/filepath"

// Config represents a complete optimization run configuration
type Config struct {
	LogLevel  string    `yaml:"log_level"`
	LogFormat string    `yaml:"log_format"` // text or json
	WorkDir   string    `yaml:"work_dir"`
	Solver    Solver    `yaml:"solver"`
	Problem   Problem   `yaml:"problem"`
	Optimizer Optimizer `yaml:"optimizer"`
	Files     Files     `yaml:"files"`
	History   History   `yaml:"history"`
	Monitor   *Monitor  `yaml:"monitor,omitempty"`
	Tracing   *Tracing  `yaml:"tracing,omitempty"`
	Sweep     *Sweep    `yaml:"sweep,omitempty"`
}

// Solver describes how the external FEA program is launched and where
// its file channels live.
type Solver struct {
	Command    string   `yaml:"command"` // e.g. "abaqus"
	Args       []string `yaml:"args"`    // defaults to ["cae", "noGUI=<script>"]
	Script     string   `yaml:"script"`
	InputPath  string   `yaml:"input_path"`
	OutputPath string   `yaml:"output_path"`
	LogPath    string   `yaml:"log_path"`
	InputKeys  []string `yaml:"input_keys"`
	OutputKeys []string `yaml:"output_keys"`
	// Replay answers requests already present in the history file from the
	// recorded outputs instead of launching the solver again.
	Replay bool `yaml:"replay"`
}

// Variable is one decision variable of the design vector
type Variable struct {
	Name    string  `yaml:"name"`
	Lower   float64 `yaml:"lower"`
	Upper   float64 `yaml:"upper"`
	Integer bool    `yaml:"integer,omitempty"`
}

// Coupling names two variables where Below must stay strictly under Above
type Coupling struct {
	Below string `yaml:"below"`
	Above string `yaml:"above"`
}

// Problem holds the optimization problem definition
type Problem struct {
	Mode          string     `yaml:"mode"` // mass or mass_weld
	Variables     []Variable `yaml:"variables"`
	Coupled       Coupling   `yaml:"coupled"`
	StressLimit   float64    `yaml:"stress_limit"`   // Pa
	RepairEpsilon float64    `yaml:"repair_epsilon"` // m
	StressKey     string     `yaml:"stress_key"`
	MassKey       string     `yaml:"mass_key"`
}

// Optimizer holds NSGA-II parameters
type Optimizer struct {
	Population          int     `yaml:"population"`
	Offspring           int     `yaml:"offspring"`
	Generations         int     `yaml:"generations"`
	CrossoverProb       float64 `yaml:"crossover_prob"`
	CrossoverEta        float64 `yaml:"crossover_eta"`
	MutationEta         float64 `yaml:"mutation_eta"`
	MutationProb        float64 `yaml:"mutation_prob,omitempty"` // per variable; 0 means 1/n
	Seed                uint64  `yaml:"seed"`                    // 0 picks a time based seed
	EliminateDuplicates *bool   `yaml:"eliminate_duplicates,omitempty"`
	IncludeSeedDesign   bool    `yaml:"include_seed_design"`
}

// Files lists the flat files of a run. Relative paths resolve against WorkDir.
type Files struct {
	Seed        string `yaml:"seed"`
	History     string `yaml:"history"`
	Generations string `yaml:"generations"`
	Results     string `yaml:"results"`
	Information string `yaml:"information"`
}

// History configures the durable evaluation log
type History struct {
	// Resume keeps existing history rows and verifies replayed evaluations against them.
	Resume     bool   `yaml:"resume"`
	SQLitePath string `yaml:"sqlite_path,omitempty"`
	// RunID names the run in the SQLite mirror and the status surfaces. When
	// empty a resumed run reuses the id recorded in the information file.
	RunID string `yaml:"run_id,omitempty"`
}

// Monitor configures the optional status servers
type Monitor struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// Tracing configures OTLP span export
type Tracing struct {
	Endpoint   string  `yaml:"endpoint"`
	Insecure   bool    `yaml:"insecure"`
	SampleRate float64 `yaml:"sample_rate"`
}

// Sweep configures a one-parameter sensitivity study
type Sweep struct {
	Parameter string  `yaml:"parameter"`
	From      float64 `yaml:"from"`
	To        float64 `yaml:"to"`
	Step      float64 `yaml:"step"`
	Output    string  `yaml:"output"`
	// Information is the sweep's own information file, kept apart from the
	// optimization run's.
	Information string `yaml:"information"`
	// Overrides replace seed values for the whole sweep, e.g. fixing the
	// stiffener mesh sizes while the plate mesh varies.
	Overrides map[string]float64 `yaml:"overrides,omitempty"`
}

// Path resolves p against the configured working directory
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) || c.WorkDir == "" {
		return p
	}
	return filepath.Join(c.WorkDir, p)
}

// DuplicatesEliminated reports whether identical decision vectors are removed
func (o Optimizer) DuplicatesEliminated() bool {
	return o.EliminateDuplicates == nil || *o.EliminateDuplicates
}

// VariableIndex returns the position of the named design variable, or -1
func (p Problem) VariableIndex(name string) int {
	for i, v := range p.Variables {
		if v.Name == name {
			return i
		}
	}
	return -1
}

// KeyIndex returns the position of key in keys, or -1
func KeyIndex(keys []string, key string) int {
	for i, k := range keys {
		if k == key {
			return i
		}
	}
	return -1
}
