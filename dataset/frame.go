package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrFormat reports a dataset that cannot be parsed or lacks a required column.
var ErrFormat = errors.New("dataset format error")

var missingMarkers = map[string]struct{}{
	"":     {},
	"NA":   {},
	"N/A":  {},
	"NaN":  {},
	"nan":  {},
	"null": {},
	"NULL": {},
}

// IsMissing reports whether a raw cell denotes a missing value.
func IsMissing(cell string) bool {
	_, ok := missingMarkers[strings.TrimSpace(cell)]
	return ok
}

// Frame is an in-memory table of raw string cells with named columns.
type Frame struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

func newFrame(columns []string, rows [][]string) *Frame {
	index := make(map[string]int, len(columns))
	for i, name := range columns {
		index[name] = i
	}
	return &Frame{columns: columns, index: index, rows: rows}
}

// NewFrame builds a frame from a header and rows. Every row must match the header width.
func NewFrame(columns []string, rows [][]string) (*Frame, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: no columns", ErrFormat)
	}
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("%w: row %d has %d fields, expected %d", ErrFormat, i+1, len(row), len(columns))
		}
	}
	return newFrame(dedupeColumns(columns), rows), nil
}

func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

func (f *Frame) Len() int {
	return len(f.rows)
}

func (f *Frame) Column(name string) (int, bool) {
	idx, ok := f.index[name]
	return idx, ok
}

func (f *Frame) Value(row, col int) string {
	return f.rows[row][col]
}

// Float parses a cell as float64. Missing cells yield NaN.
func (f *Frame) Float(row, col int) (float64, error) {
	cell := f.rows[row][col]
	if IsMissing(cell) {
		return math.NaN(), nil
	}
	return strconv.ParseFloat(strings.TrimSpace(cell), 64)
}

// Drop returns a copy of the frame without the named columns, keeping the order of the rest.
func (f *Frame) Drop(names ...string) *Frame {
	drop := make(map[string]struct{}, len(names))
	for _, name := range names {
		drop[name] = struct{}{}
	}
	keep := make([]int, 0, len(f.columns))
	columns := make([]string, 0, len(f.columns))
	for i, name := range f.columns {
		if _, ok := drop[name]; ok {
			continue
		}
		keep = append(keep, i)
		columns = append(columns, name)
	}
	rows := make([][]string, len(f.rows))
	for r, row := range f.rows {
		out := make([]string, len(keep))
		for i, idx := range keep {
			out[i] = row[idx]
		}
		rows[r] = out
	}
	return newFrame(columns, rows)
}

// SplitTarget separates the numeric target column from the remaining feature columns.
func (f *Frame) SplitTarget(name string) ([]float64, *Frame, error) {
	col, ok := f.Column(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: missing target column %q", ErrFormat, name)
	}
	target := make([]float64, len(f.rows))
	for i := range f.rows {
		cell := f.rows[i][col]
		if IsMissing(cell) {
			return nil, nil, fmt.Errorf("%w: row %d: missing %s value", ErrFormat, i+1, name)
		}
		value, err := strconv.ParseFloat(strings.TrimSpace(cell), 64)
		if err != nil || math.IsInf(value, 0) {
			return nil, nil, fmt.Errorf("%w: row %d: invalid %s value %q", ErrFormat, i+1, name, cell)
		}
		target[i] = value
	}
	return target, f.Drop(name), nil
}

// dedupeColumns renames repeated header names to name.1, name.2, ...
func dedupeColumns(columns []string) []string {
	seen := make(map[string]int, len(columns))
	taken := make(map[string]struct{}, len(columns))
	for _, name := range columns {
		taken[name] = struct{}{}
	}
	out := make([]string, len(columns))
	for i, name := range columns {
		count, dup := seen[name]
		seen[name] = count + 1
		if !dup {
			out[i] = name
			continue
		}
		for {
			candidate := fmt.Sprintf("%s.%d", name, count)
			count++
			if _, exists := taken[candidate]; !exists {
				seen[name] = count
				taken[candidate] = struct{}{}
				out[i] = candidate
				break
			}
		}
	}
	return out
}
