package simulation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Value is one output channel entry. Number is only meaningful when Numeric
// is set; Raw always holds the text as read.
type Value struct {
	Number  float64
	Raw     string
	Numeric bool
}

// ParseValue interprets one output line.
func ParseValue(raw string) Value {
	raw = strings.TrimSpace(raw)
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return Value{Number: f, Raw: raw, Numeric: true}
	}
	return Value{Raw: raw}
}

func (v Value) String() string {
	return v.Raw
}

// Result maps the declared output keys, in declared order, to their values.
type Result struct {
	keys   []string
	values []Value
}

// NewResult pairs keys with values. Both slices are copied.
func NewResult(keys []string, values []Value) Result {
	return Result{
		keys:   append([]string(nil), keys...),
		values: append([]Value(nil), values...),
	}
}

// Keys returns the output keys in declared order.
func (r Result) Keys() []string {
	return append([]string(nil), r.keys...)
}

// Values returns the values in declared order.
func (r Result) Values() []Value {
	return append([]Value(nil), r.values...)
}

// Len returns the number of keys.
func (r Result) Len() int { return len(r.keys) }

// Get looks up a value by key.
func (r Result) Get(key string) (Value, bool) {
	for i, k := range r.keys {
		if k == key {
			return r.values[i], true
		}
	}
	return Value{}, false
}

// Float returns the numeric value of key, failing when the key is absent or
// its text did not parse.
func (r Result) Float(key string) (float64, error) {
	v, ok := r.Get(key)
	if !ok {
		return 0, fmt.Errorf("%w: no output key %q", ErrMalformedOutput, key)
	}
	if !v.Numeric {
		return 0, fmt.Errorf("%w: output %s=%q is not numeric", ErrMalformedOutput, key, v.Raw)
	}
	return v.Number, nil
}

// Record is one completed evaluation. Sequence is its position in arrival order.
type Record struct {
	Sequence int
	Design   []float64
	Result   Result
	Duration time.Duration
	Replayed bool
}
