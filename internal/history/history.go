// Package history keeps the durable log of evaluations.
//
// The flat file is the ground truth of a run: one row per evaluation, in
// evaluation order, never rewritten. Other sinks mirror it.
package history

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Entry is one evaluation as it is persisted.
type Entry struct {
	Sequence int
	// Fields are the row values in column order: the solver outputs in
	// declared key order followed by derived values.
	Fields []string
	Design []float64
}

// Sink receives entries in evaluation order.
type Sink interface {
	Append(e Entry) error
	Close() error
}

// DivergenceError reports that a resumed run produced a different value than
// the one recorded for the same evaluation.
type DivergenceError struct {
	Sequence int
	Column   int
	Recorded string
	Got      string
}

func (e *DivergenceError) Error() string {
	return fmt.Sprintf("history diverged at evaluation %d column %d: recorded %q, got %q",
		e.Sequence, e.Column, e.Recorded, e.Got)
}

// ErrOutOfOrder is returned when an entry does not continue the log.
var ErrOutOfOrder = errors.New("history entry out of order")

// sameField compares two cells numerically when both parse, textually otherwise.
func sameField(a, b string) bool {
	a, b = strings.TrimSpace(a), strings.TrimSpace(b)
	if a == b {
		return true
	}
	fa, errA := strconv.ParseFloat(a, 64)
	fb, errB := strconv.ParseFloat(b, 64)
	if errA != nil || errB != nil {
		return false
	}
	if fa == fb {
		return true
	}
	scale := math.Max(math.Abs(fa), math.Abs(fb))
	return math.Abs(fa-fb) <= 1e-12*scale
}

// MultiSink fans entries out to several sinks. The first error stops the fan-out.
type MultiSink []Sink

func (m MultiSink) Append(e Entry) error {
	for _, s := range m {
		if err := s.Append(e); err != nil {
			return err
		}
	}
	return nil
}

func (m MultiSink) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
