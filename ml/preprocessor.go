package ml

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"regeval/dataset"
)

const (
	KindNumeric     = "numeric"
	KindOneHot      = "onehot"
	KindPassthrough = "passthrough"

	RemainderDrop        = "drop"
	RemainderPassthrough = "passthrough"

	ScaleStandard = "standard"
	ScaleMinMax   = "minmax"
)

// TransformerSpec is the serialized form of one column transformer step.
type TransformerSpec struct {
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Columns []string `json:"columns"`

	// numeric
	FillValues []float64    `json:"fill_values,omitempty"`
	Scaling    *ScalingSpec `json:"scaling,omitempty"`

	// onehot
	Categories   [][]string `json:"categories,omitempty"`
	FillCategory string     `json:"fill_category,omitempty"`
}

type ScalingSpec struct {
	Method string    `json:"method"`
	Means  []float64 `json:"means,omitempty"`
	Scales []float64 `json:"scales,omitempty"`
	Mins   []float64 `json:"mins,omitempty"`
	Maxs   []float64 `json:"maxs,omitempty"`
}

type ColumnTransformerSpec struct {
	Transformers []TransformerSpec `json:"transformers"`
	Remainder    string            `json:"remainder,omitempty"`
}

type columnStep interface {
	Columns() []string
	Width() int
	encode(values []string, out []float64) error
}

// ColumnTransformer selects dataset columns by name and encodes them into one feature vector per row.
type ColumnTransformer struct {
	steps     []columnStep
	remainder string
}

func NewColumnTransformer(spec ColumnTransformerSpec) (*ColumnTransformer, error) {
	remainder := spec.Remainder
	if remainder == "" {
		remainder = RemainderDrop
	}
	if remainder != RemainderDrop && remainder != RemainderPassthrough {
		return nil, fmt.Errorf("unsupported remainder %q", spec.Remainder)
	}

	steps := make([]columnStep, 0, len(spec.Transformers))
	for _, ts := range spec.Transformers {
		if len(ts.Columns) == 0 {
			return nil, fmt.Errorf("transformer %q has no columns", ts.Name)
		}
		var (
			step columnStep
			err  error
		)
		switch ts.Kind {
		case KindNumeric:
			step, err = newNumericStep(ts)
		case KindOneHot:
			step, err = newOneHotStep(ts)
		case KindPassthrough:
			step = &numericStep{columns: ts.Columns}
		default:
			err = fmt.Errorf("unsupported transformer kind %q", ts.Kind)
		}
		if err != nil {
			return nil, fmt.Errorf("transformer %q: %w", ts.Name, err)
		}
		steps = append(steps, step)
	}
	return &ColumnTransformer{steps: steps, remainder: remainder}, nil
}

// Transform encodes every row of the frame. Columns the transformer needs but the frame lacks are an ErrInference.
func (ct *ColumnTransformer) Transform(frame *dataset.Frame) ([][]float64, error) {
	used := make(map[string]struct{})
	indices := make([][]int, len(ct.steps))
	width := 0
	for i, step := range ct.steps {
		cols := step.Columns()
		indices[i] = make([]int, len(cols))
		for j, name := range cols {
			idx, ok := frame.Column(name)
			if !ok {
				return nil, fmt.Errorf("%w: column %q not found in dataset", ErrInference, name)
			}
			indices[i][j] = idx
			used[name] = struct{}{}
		}
		width += step.Width()
	}

	var rest []int
	if ct.remainder == RemainderPassthrough {
		for idx, name := range frame.Columns() {
			if _, ok := used[name]; !ok {
				rest = append(rest, idx)
			}
		}
		width += len(rest)
	}

	out := make([][]float64, frame.Len())
	for row := 0; row < frame.Len(); row++ {
		vector := make([]float64, width)
		offset := 0
		for i, step := range ct.steps {
			values := make([]string, len(indices[i]))
			for j, idx := range indices[i] {
				values[j] = frame.Value(row, idx)
			}
			if err := step.encode(values, vector[offset:offset+step.Width()]); err != nil {
				return nil, fmt.Errorf("row %d: %w", row+1, err)
			}
			offset += step.Width()
		}
		for _, idx := range rest {
			value, err := frame.Float(row, idx)
			if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
				return nil, fmt.Errorf("%w: row %d: column %q is not a finite number", ErrInference, row+1, frame.Columns()[idx])
			}
			vector[offset] = value
			offset++
		}
		out[row] = vector
	}
	return out, nil
}

type numericStep struct {
	columns []string
	fill    []float64
	scaling *ScalingSpec
}

func newNumericStep(ts TransformerSpec) (*numericStep, error) {
	n := len(ts.Columns)
	if ts.FillValues != nil && len(ts.FillValues) != n {
		return nil, fmt.Errorf("expected %d fill values, got %d", n, len(ts.FillValues))
	}
	if s := ts.Scaling; s != nil {
		switch s.Method {
		case ScaleStandard:
			if len(s.Means) != n || len(s.Scales) != n {
				return nil, errors.New("standard scaling needs one mean and one scale per column")
			}
		case ScaleMinMax:
			if len(s.Mins) != n || len(s.Maxs) != n {
				return nil, errors.New("minmax scaling needs one min and one max per column")
			}
		default:
			return nil, fmt.Errorf("unsupported scaling method %q", s.Method)
		}
	}
	return &numericStep{columns: ts.Columns, fill: ts.FillValues, scaling: ts.Scaling}, nil
}

func (s *numericStep) Columns() []string { return s.columns }

func (s *numericStep) Width() int { return len(s.columns) }

func (s *numericStep) encode(values []string, out []float64) error {
	for i, raw := range values {
		var value float64
		if dataset.IsMissing(raw) {
			if s.fill == nil {
				return fmt.Errorf("%w: missing value in column %q", ErrInference, s.columns[i])
			}
			value = s.fill[i]
		} else {
			parsed, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
			if err != nil || math.IsInf(parsed, 0) {
				return fmt.Errorf("%w: column %q: %q is not a finite number", ErrInference, s.columns[i], raw)
			}
			value = parsed
		}
		out[i] = s.scale(i, value)
	}
	return nil
}

func (s *numericStep) scale(i int, value float64) float64 {
	if s.scaling == nil {
		return value
	}
	switch s.scaling.Method {
	case ScaleStandard:
		if s.scaling.Scales[i] == 0 {
			return value - s.scaling.Means[i]
		}
		return (value - s.scaling.Means[i]) / s.scaling.Scales[i]
	default:
		return NormalizeFeature(value, s.scaling.Mins[i], s.scaling.Maxs[i])
	}
}

// NormalizeFeature maps value into [0,1] relative to min and max. A constant column maps to 0.
func NormalizeFeature(value, min, max float64) float64 {
	if max == min {
		return 0
	}
	return (value - min) / (max - min)
}

type oneHotStep struct {
	columns    []string
	categories []map[string]int
	offsets    []int
	width      int
	fill       string
}

func newOneHotStep(ts TransformerSpec) (*oneHotStep, error) {
	if len(ts.Categories) != len(ts.Columns) {
		return nil, fmt.Errorf("expected categories for %d columns, got %d", len(ts.Columns), len(ts.Categories))
	}
	step := &oneHotStep{
		columns:    ts.Columns,
		categories: make([]map[string]int, len(ts.Columns)),
		offsets:    make([]int, len(ts.Columns)),
		fill:       ts.FillCategory,
	}
	for i, cats := range ts.Categories {
		if len(cats) == 0 {
			return nil, fmt.Errorf("column %q has no categories", ts.Columns[i])
		}
		lookup := make(map[string]int, len(cats))
		for j, cat := range cats {
			if _, dup := lookup[cat]; dup {
				return nil, fmt.Errorf("column %q: duplicate category %q", ts.Columns[i], cat)
			}
			lookup[cat] = j
		}
		step.categories[i] = lookup
		step.offsets[i] = step.width
		step.width += len(cats)
	}
	return step, nil
}

func (s *oneHotStep) Columns() []string { return s.columns }

func (s *oneHotStep) Width() int { return s.width }

// encode leaves an all-zero block for categories unseen during fitting.
func (s *oneHotStep) encode(values []string, out []float64) error {
	for i := range out {
		out[i] = 0
	}
	for i, raw := range values {
		value := raw
		if dataset.IsMissing(raw) {
			value = s.fill
		}
		if j, ok := s.categories[i][value]; ok {
			out[s.offsets[i]+j] = 1
		}
	}
	return nil
}
