package config

const (
	ModeMass     = "mass"
	ModeMassWeld = "mass_weld"
)

// DefaultInputKeys is the column order of the panel script's request line.
var DefaultInputKeys = []string{
	"nTS", "nLS", "tP", "hTS", "tTS", "tTF", "wTF", "hLS", "tLS", "tLF", "wLF",
	"P", "mP", "mTS", "mTF", "mLS", "mLF", "W", "L",
}

// DefaultOutputKeys is the line order of the panel script's result file.
var DefaultOutputKeys = []string{"sVM", "m"}

// DefaultVariables returns the 11 panel design variables and their bounds.
func DefaultVariables() []Variable {
	return []Variable{
		{Name: "nTS", Lower: 2, Upper: 9, Integer: true},
		{Name: "nLS", Lower: 2, Upper: 14, Integer: true},
		{Name: "tP", Lower: 0.005, Upper: 0.075},
		{Name: "hTS", Lower: 0.05, Upper: 1.00},
		{Name: "tTS", Lower: 0.005, Upper: 0.075},
		{Name: "tTF", Lower: 0.005, Upper: 0.050},
		{Name: "wTF", Lower: 0.010, Upper: 0.750},
		{Name: "hLS", Lower: 0.010, Upper: 0.950},
		{Name: "tLS", Lower: 0.005, Upper: 0.075},
		{Name: "tLF", Lower: 0.005, Upper: 0.075},
		{Name: "wLF", Lower: 0.010, Upper: 0.500},
	}
}

// ApplyDefaults fills every unset field with the values used for the
// stiffened panel study.
func ApplyDefaults(cfg *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}

	s := &cfg.Solver
	if s.Command == "" {
		s.Command = "abaqus"
	}
	if s.Script == "" {
		s.Script = "StiffenedPanel.py"
	}
	if len(s.Args) == 0 {
		s.Args = []string{"cae", "noGUI=" + s.Script}
	}
	if s.InputPath == "" {
		s.InputPath = "temp/input.csv"
	}
	if s.OutputPath == "" {
		s.OutputPath = "temp/output.csv"
	}
	if s.LogPath == "" {
		s.LogPath = "abaqus_log.txt"
	}
	if len(s.InputKeys) == 0 {
		s.InputKeys = append([]string(nil), DefaultInputKeys...)
	}
	if len(s.OutputKeys) == 0 {
		s.OutputKeys = append([]string(nil), DefaultOutputKeys...)
	}

	p := &cfg.Problem
	if p.Mode == "" {
		p.Mode = ModeMass
	}
	if len(p.Variables) == 0 {
		p.Variables = DefaultVariables()
	}
	if p.Coupled.Below == "" && p.Coupled.Above == "" {
		p.Coupled = Coupling{Below: "hLS", Above: "hTS"}
	}
	if p.StressLimit == 0 {
		p.StressLimit = 1.75e8
	}
	if p.RepairEpsilon == 0 {
		p.RepairEpsilon = 1e-4
	}
	if p.StressKey == "" {
		p.StressKey = "sVM"
	}
	if p.MassKey == "" {
		p.MassKey = "m"
	}

	o := &cfg.Optimizer
	if o.Population == 0 {
		o.Population = 20
	}
	if o.Offspring == 0 {
		o.Offspring = 8
	}
	if o.Generations == 0 {
		o.Generations = 100
	}
	if o.CrossoverProb == 0 {
		o.CrossoverProb = 0.7
	}
	if o.CrossoverEta == 0 {
		o.CrossoverEta = 40
	}
	if o.MutationEta == 0 {
		o.MutationEta = 140
	}

	f := &cfg.Files
	if f.Seed == "" {
		f.Seed = "initial.csv"
	}
	if f.History == "" {
		f.History = "temp/history.csv"
	}
	if f.Generations == "" {
		f.Generations = "temp/generations.csv"
	}
	if f.Results == "" {
		f.Results = "temp/results.csv"
	}
	if f.Information == "" {
		f.Information = "temp/information.txt"
	}

	if cfg.Tracing != nil && cfg.Tracing.SampleRate == 0 {
		cfg.Tracing.SampleRate = 1
	}
	if cfg.Sweep != nil {
		if cfg.Sweep.Output == "" {
			cfg.Sweep.Output = "temp/sweep.csv"
		}
		if cfg.Sweep.Information == "" {
			cfg.Sweep.Information = "temp/sweep_information.txt"
		}
	}
}

// Default returns a fully defaulted configuration.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
