package report

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary condenses a history file. Column 0 is stress and column 1 mass,
// an optional column 2 is weld length.
type Summary struct {
	Evaluations   int
	Feasible      int
	BestIndex     int // -1 when no evaluation is feasible
	BestMass      float64
	BestStress    float64
	MeanMass      float64
	StdDevMass    float64
	MeanStress    float64
	MaxStress     float64
	HasWeldLength bool
	MinWeldLength float64
}

// Summarize computes a Summary of history rows for the given stress limit.
func Summarize(rows [][]string, stressLimit float64) (Summary, error) {
	s := Summary{BestIndex: -1, BestMass: math.NaN(), BestStress: math.NaN()}
	if len(rows) == 0 {
		return s, nil
	}

	stress := make([]float64, len(rows))
	mass := make([]float64, len(rows))
	var weld []float64
	for i, row := range rows {
		if len(row) < 2 {
			return s, fmt.Errorf("history row %d has %d columns, expected at least 2", i, len(row))
		}
		var err error
		if stress[i], err = strconv.ParseFloat(row[0], 64); err != nil {
			return s, fmt.Errorf("history row %d stress: %w", i, err)
		}
		if mass[i], err = strconv.ParseFloat(row[1], 64); err != nil {
			return s, fmt.Errorf("history row %d mass: %w", i, err)
		}
		if len(row) > 2 {
			w, err := strconv.ParseFloat(row[2], 64)
			if err != nil {
				return s, fmt.Errorf("history row %d weld length: %w", i, err)
			}
			weld = append(weld, w)
		}
	}

	s.Evaluations = len(rows)
	s.MeanMass, s.StdDevMass = stat.MeanStdDev(mass, nil)
	s.MeanStress = stat.Mean(stress, nil)
	s.MaxStress = floats.Max(stress)
	if len(weld) == len(rows) {
		s.HasWeldLength = true
		s.MinWeldLength = floats.Min(weld)
	}

	for i := range rows {
		if stress[i] > stressLimit {
			continue
		}
		s.Feasible++
		if s.BestIndex < 0 || mass[i] < s.BestMass {
			s.BestIndex = i
			s.BestMass = mass[i]
			s.BestStress = stress[i]
		}
	}
	return s, nil
}
