package config

import (
	"fmt"
	"os"
)

// LoadConfig loads and parses a configuration file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	cfg, err := ParseConfigYAML(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// Validate re-checks a configuration built or modified in code
func Validate(cfg *Config) error {
	return validateConfig(cfg)
}

// validateConfig performs validation on the configuration
func validateConfig(cfg *Config) error {
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[cfg.LogLevel] {
		return fmt.Errorf("invalid log_level: %s (must be debug, info, warn, or error)", cfg.LogLevel)
	}
	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", cfg.LogFormat)
	}

	if err := validateSolver(&cfg.Solver); err != nil {
		return fmt.Errorf("solver validation failed: %w", err)
	}
	if err := validateProblem(&cfg.Problem, &cfg.Solver); err != nil {
		return fmt.Errorf("problem validation failed: %w", err)
	}
	if err := validateOptimizer(&cfg.Optimizer); err != nil {
		return fmt.Errorf("optimizer validation failed: %w", err)
	}

	if cfg.Tracing != nil {
		if cfg.Tracing.SampleRate < 0 || cfg.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing sample_rate must be between 0 and 1, got %f", cfg.Tracing.SampleRate)
		}
	}

	if cfg.Sweep != nil {
		if err := validateSweep(cfg.Sweep, &cfg.Solver, &cfg.Files); err != nil {
			return fmt.Errorf("sweep validation failed: %w", err)
		}
	}

	return nil
}

func validateSolver(s *Solver) error {
	if s.Command == "" {
		return fmt.Errorf("command cannot be empty")
	}
	if s.InputPath == "" || s.OutputPath == "" {
		return fmt.Errorf("input_path and output_path are required")
	}
	if err := validateKeys("input_keys", s.InputKeys); err != nil {
		return err
	}
	return validateKeys("output_keys", s.OutputKeys)
}

func validateKeys(field string, keys []string) error {
	if len(keys) == 0 {
		return fmt.Errorf("%s cannot be empty", field)
	}
	seen := make(map[string]bool, len(keys))
	for _, k := range keys {
		if k == "" {
			return fmt.Errorf("%s contains an empty key", field)
		}
		if seen[k] {
			return fmt.Errorf("%s: duplicate key %s", field, k)
		}
		seen[k] = true
	}
	return nil
}

// validateProblem checks the design variables against the solver request
// layout: the variables are the leading columns of the input record.
func validateProblem(p *Problem, s *Solver) error {
	if p.Mode != ModeMass && p.Mode != ModeMassWeld {
		return fmt.Errorf("invalid mode: %s (must be %s or %s)", p.Mode, ModeMass, ModeMassWeld)
	}
	if len(p.Variables) == 0 {
		return fmt.Errorf("at least one variable must be defined")
	}
	if len(p.Variables) > len(s.InputKeys) {
		return fmt.Errorf("%d variables but only %d input keys", len(p.Variables), len(s.InputKeys))
	}
	for i, v := range p.Variables {
		if v.Name != s.InputKeys[i] {
			return fmt.Errorf("variable %d: name %s does not match input key %s", i, v.Name, s.InputKeys[i])
		}
		if v.Lower >= v.Upper {
			return fmt.Errorf("variable %s: lower bound %g must be below upper bound %g", v.Name, v.Lower, v.Upper)
		}
	}

	below, above := p.VariableIndex(p.Coupled.Below), p.VariableIndex(p.Coupled.Above)
	if below < 0 || above < 0 {
		return fmt.Errorf("coupled variables %s/%s must both be design variables", p.Coupled.Below, p.Coupled.Above)
	}
	if below == above {
		return fmt.Errorf("coupled variables must differ")
	}

	if p.StressLimit <= 0 {
		return fmt.Errorf("stress_limit must be positive, got %g", p.StressLimit)
	}
	if p.RepairEpsilon <= 0 {
		return fmt.Errorf("repair_epsilon must be positive, got %g", p.RepairEpsilon)
	}
	if KeyIndex(s.OutputKeys, p.StressKey) < 0 {
		return fmt.Errorf("stress_key %s is not an output key", p.StressKey)
	}
	if KeyIndex(s.OutputKeys, p.MassKey) < 0 {
		return fmt.Errorf("mass_key %s is not an output key", p.MassKey)
	}

	if p.Mode == ModeMassWeld {
		for _, k := range []string{"nTS", "nLS", "hLS", "wLF", "W", "L"} {
			if KeyIndex(s.InputKeys, k) < 0 {
				return fmt.Errorf("mode %s needs input key %s", ModeMassWeld, k)
			}
		}
	}
	return nil
}

func validateOptimizer(o *Optimizer) error {
	if o.Population < 2 {
		return fmt.Errorf("population must be at least 2, got %d", o.Population)
	}
	if o.Offspring < 1 {
		return fmt.Errorf("offspring must be positive, got %d", o.Offspring)
	}
	if o.Generations < 1 {
		return fmt.Errorf("generations must be positive, got %d", o.Generations)
	}
	if o.CrossoverProb < 0 || o.CrossoverProb > 1 {
		return fmt.Errorf("crossover_prob must be between 0 and 1, got %f", o.CrossoverProb)
	}
	if o.MutationProb < 0 || o.MutationProb > 1 {
		return fmt.Errorf("mutation_prob must be between 0 and 1, got %f", o.MutationProb)
	}
	if o.CrossoverEta < 0 || o.MutationEta < 0 {
		return fmt.Errorf("distribution indices cannot be negative")
	}
	return nil
}

func validateSweep(sw *Sweep, s *Solver, files *Files) error {
	if KeyIndex(s.InputKeys, sw.Parameter) < 0 {
		return fmt.Errorf("parameter %s is not an input key", sw.Parameter)
	}
	if sw.Step <= 0 {
		return fmt.Errorf("step must be positive, got %g", sw.Step)
	}
	if sw.Information != "" && sw.Information == files.Information {
		return fmt.Errorf("information file %s is the optimization run's information file", sw.Information)
	}
	if sw.To < sw.From {
		return fmt.Errorf("to (%g) must not be below from (%g)", sw.To, sw.From)
	}
	for name := range sw.Overrides {
		if KeyIndex(s.InputKeys, name) < 0 {
			return fmt.Errorf("override %s is not an input key", name)
		}
		if name == sw.Parameter {
			return fmt.Errorf("override %s is the swept parameter", name)
		}
	}
	return nil
}
