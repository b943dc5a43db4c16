// Package frame provides a minimal column-oriented local table: named
// columns with a declared storage kind and equal length. It is the
// client-side input shape for callers that already hold data by column.
package frame

import (
	perrors "github.com/ekrich/spark/pkg/errors"
)

// Kind is the native storage type of a column's values.
type Kind int

const (
	// KindObject holds untyped values; the target type is derived from
	// the declared or inferred schema.
	KindObject Kind = iota
	// KindBool holds bool values.
	KindBool
	// KindInt64 holds int64 values.
	KindInt64
	// KindFloat64 holds float64 values.
	KindFloat64
	// KindString holds string values.
	KindString
	// KindBinary holds []byte values.
	KindBinary
	// KindDatetime holds time.Time values (datetime-like storage).
	KindDatetime
	// KindTimedelta holds time.Duration values (timedelta-like storage).
	KindTimedelta
)

// String returns the storage kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindString:
		return "string"
	case KindBinary:
		return "binary"
	case KindDatetime:
		return "datetime"
	case KindTimedelta:
		return "timedelta"
	default:
		return "object"
	}
}

// Column is one named column. Values may contain nils; non-nil values
// must match the declared kind.
type Column struct {
	Name   string
	Kind   Kind
	Values []interface{}
}

// Frame is an ordered collection of equal-length columns.
type Frame struct {
	columns []Column
}

// New builds a frame, validating that all columns share one length.
func New(columns ...Column) (*Frame, error) {
	if len(columns) > 1 {
		n := len(columns[0].Values)
		for _, c := range columns[1:] {
			if len(c.Values) != n {
				return nil, perrors.Newf(perrors.ErrorTypeValidation,
					"column %q has %d rows, want %d", c.Name, len(c.Values), n)
			}
		}
	}
	return &Frame{columns: columns}, nil
}

// NumRows returns the shared column length.
func (f *Frame) NumRows() int {
	if len(f.columns) == 0 {
		return 0
	}
	return len(f.columns[0].Values)
}

// NumCols returns the number of columns.
func (f *Frame) NumCols() int {
	return len(f.columns)
}

// Column returns the i-th column.
func (f *Frame) Column(i int) Column {
	return f.columns[i]
}

// Names returns the column labels in order.
func (f *Frame) Names() []string {
	names := make([]string, len(f.columns))
	for i, c := range f.columns {
		names[i] = c.Name
	}
	return names
}
