package types

import "fmt"

// TraceFrame is a column-oriented block of dense time-series rows for one
// dataset. T is required; the remaining columns are optional and a nil slice
// means the column is absent (written as NULL). NaN entries in present
// columns are also written as NULL.
type TraceFrame struct {
	T         []float64
	InnerDiam []float64
	OuterDiam []float64
	PAvg      []float64
	P1        []float64
	P2        []float64
}

// Len returns the number of rows.
func (f *TraceFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.T)
}

// Validate checks that all present columns have the same length as T.
func (f *TraceFrame) Validate() error {
	if f == nil {
		return nil
	}
	n := len(f.T)
	cols := map[string][]float64{
		"inner_diam": f.InnerDiam,
		"outer_diam": f.OuterDiam,
		"p_avg":      f.PAvg,
		"p1":         f.P1,
		"p2":         f.P2,
	}
	for name, col := range cols {
		if col != nil && len(col) != n {
			return fmt.Errorf("trace column %s has %d rows, want %d", name, len(col), n)
		}
	}
	return nil
}

// EventFrame is a column-oriented block of sparse, user-editable event rows.
// T and Label are required; other columns are optional (nil = absent). Extra
// carries per-row structured metadata not in the fixed schema; a null Value
// writes NULL.
type EventFrame struct {
	T     []float64
	Label []string
	Frame []int64
	PAvg  []float64
	P1    []float64
	P2    []float64
	Temp  []float64
	Extra []Value
}

// Len returns the number of rows.
func (f *EventFrame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.T)
}

// Validate checks that all present columns have the same length as T.
func (f *EventFrame) Validate() error {
	if f == nil {
		return nil
	}
	n := len(f.T)
	if len(f.Label) != n {
		return fmt.Errorf("event column label has %d rows, want %d", len(f.Label), n)
	}
	if f.Frame != nil && len(f.Frame) != n {
		return fmt.Errorf("event column frame has %d rows, want %d", len(f.Frame), n)
	}
	fcols := map[string][]float64{
		"p_avg": f.PAvg,
		"p1":    f.P1,
		"p2":    f.P2,
		"temp":  f.Temp,
	}
	for name, col := range fcols {
		if col != nil && len(col) != n {
			return fmt.Errorf("event column %s has %d rows, want %d", name, len(col), n)
		}
	}
	if f.Extra != nil && len(f.Extra) != n {
		return fmt.Errorf("event column extra has %d rows, want %d", len(f.Extra), n)
	}
	return nil
}

// ResultTable is the row/column split representation used to round-trip
// tabular analysis results through result payloads.
type ResultTable struct {
	Columns []string
	Rows    [][]Value
}

// Validate checks that every row has one cell per column.
func (t *ResultTable) Validate() error {
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("result row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}
