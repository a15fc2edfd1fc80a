package solver

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrEmptyChannel is returned when a channel file holds no records.
var ErrEmptyChannel = errors.New("channel file is empty")

// FormatValue renders v with the shortest representation that parses back
// to the same float64.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// FormatRecord renders a vector as one comma separated request line without
// the trailing newline.
func FormatRecord(values []float64) string {
	var b strings.Builder
	for i, v := range values {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(FormatValue(v))
	}
	return b.String()
}

// SplitRecord splits a comma separated line into trimmed fields. A trailing
// empty field, left by writers that terminate every value with a comma, is dropped.
func SplitRecord(line string) []string {
	line = strings.TrimRight(line, "\r\n")
	if strings.TrimSpace(line) == "" {
		return nil
	}
	fields := strings.Split(line, ",")
	for i := range fields {
		fields[i] = strings.TrimSpace(fields[i])
	}
	if n := len(fields); n > 1 && fields[n-1] == "" {
		fields = fields[:n-1]
	}
	return fields
}

// ParseRecord parses a request line back into a vector.
func ParseRecord(line string) ([]float64, error) {
	fields := SplitRecord(line)
	if len(fields) == 0 {
		return nil, ErrEmptyChannel
	}
	values := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d: %w", i, err)
		}
		values[i] = v
	}
	return values, nil
}

// ReadLines returns the lines of path with trailing whitespace removed.
// Trailing blank lines are dropped; blank lines in the middle are kept so
// positions still line up with declared keys.
func ReadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

// LastLine returns the most recent record of an append-only channel file.
func LastLine(path string) (string, error) {
	lines, err := ReadLines(path)
	if err != nil {
		return "", err
	}
	if len(lines) == 0 {
		return "", fmt.Errorf("%s: %w", path, ErrEmptyChannel)
	}
	return lines[len(lines)-1], nil
}

// LoadSeed reads the baseline vector from the last line of a seed file.
func LoadSeed(path string) ([]float64, error) {
	line, err := LastLine(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read seed file: %w", err)
	}
	values, err := ParseRecord(line)
	if err != nil {
		return nil, fmt.Errorf("failed to parse seed file %s: %w", path, err)
	}
	return values, nil
}

// AppendLine appends line plus a newline to path, creating it if needed.
func AppendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line + "\n"); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
