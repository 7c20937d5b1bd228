package types

// Tabular result payloads are tagged with a marker key so readers can tell a
// table apart from a plain object.
const tableMarker = "table"

// Value returns the tagged object form of the table, suitable for storing as
// a result payload.
func (t *ResultTable) Value() Value {
	cols := make([]Value, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = String(c)
	}
	rows := make([]Value, len(t.Rows))
	for i, row := range t.Rows {
		rows[i] = Array(append([]Value(nil), row...)...)
	}
	return Object(map[string]Value{
		"__type__": String(tableMarker),
		"columns":  Array(cols...),
		"rows":     Array(rows...),
	})
}

// TableFromValue decodes a tagged table payload. The second return is false
// when v does not carry the table marker.
func TableFromValue(v Value) (*ResultTable, bool) {
	if v.Kind() != KindObject || v.Get("__type__").Str() != tableMarker {
		return nil, false
	}
	t := &ResultTable{}
	for _, c := range v.Get("columns").Elems() {
		t.Columns = append(t.Columns, c.Str())
	}
	for _, row := range v.Get("rows").Elems() {
		t.Rows = append(t.Rows, append([]Value(nil), row.Elems()...))
	}
	return t, true
}
