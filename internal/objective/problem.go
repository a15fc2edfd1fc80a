// Package objective turns raw search vectors into panel evaluations: it
// repairs the design, runs the simulation and derives objectives and
// constraint values.
package objective

import (
	"fmt"
	"math"

	"github.com/panelopt/panelopt/pkg/config"
)

// Problem is the immutable definition of the panel problem.
type Problem struct {
	Mode        string
	Names       []string
	Lower       []float64
	Upper       []float64
	Integer     []int
	Below       int // index that must stay strictly under Above
	Above       int
	StressLimit float64
	Epsilon     float64
	StressKey   string
	MassKey     string

	inputKeys []string
	weld      weldColumns
}

// weldColumns are positions in the full solver input vector.
type weldColumns struct {
	nTS, nLS, hLS, wLF, width, length int
}

// NewProblem builds the problem from a validated configuration.
func NewProblem(cfg *config.Config) (*Problem, error) {
	pc := cfg.Problem
	p := &Problem{
		Mode:        pc.Mode,
		Names:       make([]string, len(pc.Variables)),
		Lower:       make([]float64, len(pc.Variables)),
		Upper:       make([]float64, len(pc.Variables)),
		Below:       pc.VariableIndex(pc.Coupled.Below),
		Above:       pc.VariableIndex(pc.Coupled.Above),
		StressLimit: pc.StressLimit,
		Epsilon:     pc.RepairEpsilon,
		StressKey:   pc.StressKey,
		MassKey:     pc.MassKey,
		inputKeys:   append([]string(nil), cfg.Solver.InputKeys...),
	}
	for i, v := range pc.Variables {
		p.Names[i] = v.Name
		p.Lower[i] = v.Lower
		p.Upper[i] = v.Upper
		if v.Integer {
			p.Integer = append(p.Integer, i)
		}
	}
	if p.Below < 0 || p.Above < 0 {
		return nil, fmt.Errorf("coupled variables %s/%s are not design variables", pc.Coupled.Below, pc.Coupled.Above)
	}
	if p.Lower[p.Above]-p.Epsilon < p.Lower[p.Below] {
		return nil, fmt.Errorf("lower bound of %s must be at least %g above the lower bound of %s",
			p.Names[p.Above], p.Epsilon, p.Names[p.Below])
	}

	if p.Mode == config.ModeMassWeld {
		keys := cfg.Solver.InputKeys
		p.weld = weldColumns{
			nTS:    config.KeyIndex(keys, "nTS"),
			nLS:    config.KeyIndex(keys, "nLS"),
			hLS:    config.KeyIndex(keys, "hLS"),
			wLF:    config.KeyIndex(keys, "wLF"),
			width:  config.KeyIndex(keys, "W"),
			length: config.KeyIndex(keys, "L"),
		}
	}
	return p, nil
}

// Dimension returns the number of design variables.
func (p *Problem) Dimension() int { return len(p.Names) }

// InputCount returns the length of a full solver request.
func (p *Problem) InputCount() int { return len(p.inputKeys) }

// NumObjectives is 1 for mass and 2 when weld length is minimised as well.
func (p *Problem) NumObjectives() int {
	if p.Mode == config.ModeMassWeld {
		return 2
	}
	return 1
}

// NumConstraints returns the number of inequality constraints.
func (p *Problem) NumConstraints() int { return 2 }

// ObjectiveNames labels the objective vector.
func (p *Problem) ObjectiveNames() []string {
	if p.Mode == config.ModeMassWeld {
		return []string{"mass", "weld_length"}
	}
	return []string{"mass"}
}

// Snap returns a copy of x clamped to its bounds with the count components
// rounded to the nearest integer.
func (p *Problem) Snap(x []float64) []float64 {
	y := append([]float64(nil), x...)
	for i := range y {
		y[i] = clamp(y[i], p.Lower[i], p.Upper[i])
	}
	for _, i := range p.Integer {
		r := math.Round(y[i])
		if r > p.Upper[i] {
			r = math.Floor(p.Upper[i])
		}
		if r < p.Lower[i] {
			r = math.Ceil(p.Lower[i])
		}
		y[i] = r
	}
	return y
}

// Repair snaps x and pulls the coupled component under its partner by
// Epsilon. coupled reports whether the ordering had to be corrected.
func (p *Problem) Repair(x []float64) (y []float64, coupled bool) {
	y = p.Snap(x)
	if y[p.Below] >= y[p.Above] {
		y[p.Below] = math.Max(y[p.Above]-p.Epsilon, p.Lower[p.Below])
		coupled = true
	}
	return y, coupled
}

// WeldLength estimates the total fillet weld length of the panel: the
// stiffener webs along the plate plus the flange and web joints where
// longitudinal stiffeners cross transverse ones.
func WeldLength(nTS, nLS, hLS, wLF, width, length float64) float64 {
	return 4*nTS*width + 4*nLS*length + 4*nLS*hLS*nTS + 4*nLS*wLF*nTS
}

func (p *Problem) weldLength(input []float64) float64 {
	c := p.weld
	return WeldLength(input[c.nTS], input[c.nLS], input[c.hLS], input[c.wLF], input[c.width], input[c.length])
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
