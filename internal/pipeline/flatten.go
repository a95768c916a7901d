package pipeline

import (
	"fmt"
	"sort"

	"github.com/basekick-labs/lcparquet/pkg/models"
)

// Flatten explodes records into one row per observation, in record order and
// then observation order. The identifier field is coerced to int64 and every
// record must share the schema of the first one.
func Flatten(records []*models.LightCurve, idField string) (*FlatTable, error) {
	if len(records) == 0 {
		return &FlatTable{
			Schema: Schema{ID: idField, Types: map[string]string{idField: "int64"}},
			Meta:   map[string]interface{}{},
			Obs:    map[string]interface{}{},
		}, nil
	}

	schema, err := inferSchema(records[0], idField)
	if err != nil {
		return nil, fmt.Errorf("record 0: %w", err)
	}

	lengths := make([]int, len(records))
	total := 0
	for i, rec := range records {
		if err := checkSchema(schema, rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
		n, err := rec.Len()
		if err != nil {
			return nil, fmt.Errorf("record %d: %w: %v", i, ErrRaggedObservations, err)
		}
		lengths[i] = n
		total += n
	}

	t := &FlatTable{
		Schema: schema,
		IDs:    make([]int64, 0, total),
		Object: make([]int, 0, total),
		Index:  make([]int, 0, total),
		Meta:   make(map[string]interface{}, len(schema.Meta)),
		Obs:    make(map[string]interface{}, len(schema.Obs)),
	}
	for _, name := range schema.Meta {
		col, err := newColumn(records[0].Meta[name], len(records))
		if err != nil {
			return nil, fmt.Errorf("metadata %s: %w", name, err)
		}
		t.Meta[name] = col
	}
	for _, name := range schema.Obs {
		col, err := newColumn(records[0].Obs[name], total)
		if err != nil {
			return nil, fmt.Errorf("observation %s: %w", name, err)
		}
		t.Obs[name] = col
	}

	seen := make(map[int64]int, len(records))
	for i, rec := range records {
		raw := rec.Meta[idField]
		id, ok := coerceID(raw)
		if !ok {
			return nil, &TypeConversionError{Field: idField, Object: i, Value: raw}
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: %s=%d in records %d and %d", ErrDuplicateIdentifier, idField, id, prev, i)
		}
		seen[id] = i

		for _, name := range schema.Meta {
			t.Meta[name], _ = appendScalar(t.Meta[name], rec.Meta[name])
		}
		for _, name := range schema.Obs {
			t.Obs[name], _ = appendColumn(t.Obs[name], rec.Obs[name])
		}
		for j := 0; j < lengths[i]; j++ {
			t.IDs = append(t.IDs, id)
			t.Object = append(t.Object, i)
			t.Index = append(t.Index, j)
		}
	}

	return t, nil
}

// inferSchema takes the field names and types of the first record
func inferSchema(rec *models.LightCurve, idField string) (Schema, error) {
	if _, ok := rec.Meta[idField]; !ok {
		return Schema{}, fmt.Errorf("%w: identifier %s", ErrMissingColumn, idField)
	}

	schema := Schema{ID: idField, Types: map[string]string{idField: "int64"}}
	for _, name := range rec.MetaNames {
		if name == idField {
			continue
		}
		v, ok := rec.Meta[name]
		if !ok {
			return Schema{}, fmt.Errorf("%w: metadata %s", ErrMissingColumn, name)
		}
		typ := typeName(v)
		if typ == "unknown" {
			return Schema{}, fmt.Errorf("metadata %s: %w: %T", name, ErrColumnType, v)
		}
		schema.Meta = append(schema.Meta, name)
		schema.Types[name] = typ
	}
	for _, name := range rec.ObsNames {
		if _, clash := schema.Types[name]; clash {
			return Schema{}, fmt.Errorf("%w: %s is both metadata and observation", ErrSchemaMismatch, name)
		}
		col, ok := rec.Obs[name]
		if !ok {
			return Schema{}, fmt.Errorf("%w: observation %s", ErrMissingColumn, name)
		}
		typ := typeName(col)
		if typ == "unknown" {
			return Schema{}, fmt.Errorf("observation %s: %w: %T", name, ErrColumnType, col)
		}
		schema.Obs = append(schema.Obs, name)
		schema.Types[name] = typ
	}
	return schema, nil
}

// checkSchema verifies rec carries exactly the fields of schema with the same types
func checkSchema(schema Schema, rec *models.LightCurve) error {
	if _, ok := rec.Meta[schema.ID]; !ok {
		return fmt.Errorf("%w: identifier %s", ErrMissingColumn, schema.ID)
	}

	metaNames := make([]string, 0, len(rec.Meta))
	for name := range rec.Meta {
		if name != schema.ID {
			metaNames = append(metaNames, name)
		}
	}
	if err := sameFields("metadata", schema.Meta, metaNames); err != nil {
		return err
	}
	obsNames := make([]string, 0, len(rec.Obs))
	for name := range rec.Obs {
		obsNames = append(obsNames, name)
	}
	if err := sameFields("observation", schema.Obs, obsNames); err != nil {
		return err
	}

	for _, name := range schema.Meta {
		if got := typeName(rec.Meta[name]); got != schema.Types[name] {
			return fmt.Errorf("%w: metadata %s is %s, want %s", ErrSchemaMismatch, name, got, schema.Types[name])
		}
	}
	for _, name := range schema.Obs {
		if got := typeName(rec.Obs[name]); got != schema.Types[name] {
			return fmt.Errorf("%w: observation %s is %s, want %s", ErrSchemaMismatch, name, got, schema.Types[name])
		}
	}
	return nil
}

func sameFields(kind string, want, got []string) error {
	w := append([]string(nil), want...)
	g := append([]string(nil), got...)
	sort.Strings(w)
	sort.Strings(g)
	if len(w) != len(g) {
		return fmt.Errorf("%w: %s fields %v, want %v", ErrSchemaMismatch, kind, g, w)
	}
	for i := range w {
		if w[i] != g[i] {
			return fmt.Errorf("%w: %s fields %v, want %v", ErrSchemaMismatch, kind, g, w)
		}
	}
	return nil
}
