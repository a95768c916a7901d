package pipeline

import "sort"

// Aggregate groups rows by identifier. Groups appear in order of first
// appearance; rows inside a group are ordered by their original observation
// index so that all list columns stay positionally aligned. Metadata is taken
// once per group.
func Aggregate(t *FlatTable) *Table {
	order := make(map[int64]int)
	var groups [][]int
	for row, id := range t.IDs {
		g, ok := order[id]
		if !ok {
			g = len(groups)
			order[id] = g
			groups = append(groups, nil)
		}
		groups[g] = append(groups[g], row)
	}

	out := &Table{
		Schema: t.Schema,
		IDs:    make([]int64, len(groups)),
		NObs:   make([]int, len(groups)),
		Meta:   make(map[string]interface{}, len(t.Meta)),
		Obs:    make(map[string]interface{}, len(t.Obs)),
	}

	objects := make([]int, len(groups))
	for g, rows := range groups {
		sort.SliceStable(rows, func(i, j int) bool {
			return t.Index[rows[i]] < t.Index[rows[j]]
		})
		out.IDs[g] = t.IDs[rows[0]]
		out.NObs[g] = len(rows)
		objects[g] = t.Object[rows[0]]
	}

	for name, col := range t.Meta {
		out.Meta[name] = take(col, objects)
	}
	for name, col := range t.Obs {
		out.Obs[name] = takeLists(col, groups)
	}

	return out
}

// FilterMinObservations drops objects with fewer than min observations.
// It must run after Aggregate so that it counts rows that survived filtering.
// min <= 0 disables it.
func FilterMinObservations(t *Table, min int) *Table {
	if min <= 0 {
		return t
	}
	keep := make([]int, 0, t.Len())
	for i, n := range t.NObs {
		if n >= min {
			keep = append(keep, i)
		}
	}
	if len(keep) == t.Len() {
		return t
	}
	return t.Select(keep)
}
