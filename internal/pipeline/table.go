package pipeline

// Schema describes the fields shared by every record of a run
type Schema struct {
	ID    string            // identifier field, a metadata field of every record
	Meta  []string          // metadata fields in header order, ID excluded
	Obs   []string          // observation fields in photometry order
	Types map[string]string // field -> int64, float64, string or bool
}

// FlatTable holds one row per (object, observation index). Observation
// columns are stored per row; metadata columns are stored once per object and
// reached through Object, which is equivalent to duplicating them per row.
type FlatTable struct {
	Schema Schema
	IDs    []int64                // identifier of each row
	Object []int                  // object ordinal of each row
	Index  []int                  // original observation index of each row within its object
	Meta   map[string]interface{} // typed column per metadata field, one value per object
	Obs    map[string]interface{} // typed column per observation field, one value per row
}

// Len returns the number of rows
func (t *FlatTable) Len() int {
	return len(t.IDs)
}

// Row returns row i as a map holding the identifier, the metadata of its
// object and its observation values.
func (t *FlatTable) Row(i int) map[string]interface{} {
	row := make(map[string]interface{}, 1+len(t.Meta)+len(t.Obs))
	row[t.Schema.ID] = t.IDs[i]
	for name, col := range t.Meta {
		row[name] = valueAt(col, t.Object[i])
	}
	for name, col := range t.Obs {
		row[name] = valueAt(col, i)
	}
	return row
}

// Select returns a new table holding the given rows in the given order.
// Metadata columns are shared with t.
func (t *FlatTable) Select(rows []int) *FlatTable {
	out := &FlatTable{
		Schema: t.Schema,
		IDs:    make([]int64, len(rows)),
		Object: make([]int, len(rows)),
		Index:  make([]int, len(rows)),
		Meta:   t.Meta,
		Obs:    make(map[string]interface{}, len(t.Obs)),
	}
	for i, r := range rows {
		out.IDs[i] = t.IDs[r]
		out.Object[i] = t.Object[r]
		out.Index[i] = t.Index[r]
	}
	for name, col := range t.Obs {
		out.Obs[name] = take(col, rows)
	}
	return out
}

// Table is the aggregated output: one row per surviving object with scalar
// metadata columns and list-valued observation columns.
type Table struct {
	Schema Schema
	IDs    []int64
	NObs   []int                  // observations per object
	Meta   map[string]interface{} // typed scalar column per metadata field
	Obs    map[string]interface{} // [][]T column per observation field
}

// Len returns the number of objects
func (t *Table) Len() int {
	return len(t.IDs)
}

// Select returns a new table holding the given objects in the given order
func (t *Table) Select(objects []int) *Table {
	out := &Table{
		Schema: t.Schema,
		IDs:    make([]int64, len(objects)),
		NObs:   make([]int, len(objects)),
		Meta:   make(map[string]interface{}, len(t.Meta)),
		Obs:    make(map[string]interface{}, len(t.Obs)),
	}
	for i, o := range objects {
		out.IDs[i] = t.IDs[o]
		out.NObs[i] = t.NObs[o]
	}
	for name, col := range t.Meta {
		out.Meta[name] = take(col, objects)
	}
	for name, col := range t.Obs {
		out.Obs[name] = takeListRows(col, objects)
	}
	return out
}

// takeListRows gathers whole lists from a list column
func takeListRows(col interface{}, idx []int) interface{} {
	switch c := col.(type) {
	case [][]int64:
		out := make([][]int64, len(idx))
		for i, j := range idx {
			out[i] = c[j]
		}
		return out
	case [][]float64:
		out := make([][]float64, len(idx))
		for i, j := range idx {
			out[i] = c[j]
		}
		return out
	case [][]string:
		out := make([][]string, len(idx))
		for i, j := range idx {
			out[i] = c[j]
		}
		return out
	case [][]bool:
		out := make([][]bool, len(idx))
		for i, j := range idx {
			out[i] = c[j]
		}
		return out
	}
	return nil
}
