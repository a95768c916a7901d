package pipeline

import (
	"errors"
	"fmt"
)

// Schema errors. All of them abort the run.
var (
	// ErrSchemaMismatch indicates records of one run do not share the same fields.
	ErrSchemaMismatch = errors.New("schema mismatch between records")

	// ErrRaggedObservations indicates a record whose observation arrays differ in length.
	ErrRaggedObservations = errors.New("observation arrays differ in length")

	// ErrMissingColumn indicates a column required by the identifier or a filter is absent.
	ErrMissingColumn = errors.New("missing column")

	// ErrColumnType indicates a column exists but has a type the consumer cannot use.
	ErrColumnType = errors.New("unexpected column type")

	// ErrDuplicateIdentifier indicates two records share the same identifier.
	ErrDuplicateIdentifier = errors.New("duplicate object identifier")

	// ErrTypeConversion is matched by every TypeConversionError.
	ErrTypeConversion = errors.New("type conversion failed")
)

// TypeConversionError reports an identifier that cannot be coerced to int64
type TypeConversionError struct {
	Field  string
	Object int // position of the record in the input
	Value  interface{}
}

func (e *TypeConversionError) Error() string {
	return fmt.Sprintf("cannot convert %s=%v (%T) of record %d to int64", e.Field, e.Value, e.Value, e.Object)
}

// Is makes errors.Is(err, ErrTypeConversion) true
func (e *TypeConversionError) Is(target error) bool {
	return target == ErrTypeConversion
}
