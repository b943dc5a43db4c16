package ingest

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ekrich/spark/pkg/config"
	perrors "github.com/ekrich/spark/pkg/errors"
	"github.com/ekrich/spark/pkg/schema"
)

// NDArray is a dense numeric array with an explicit shape. Storage is
// either int64 or float64, flattened in row-major order.
type NDArray struct {
	shape  []int
	ints   []int64
	floats []float64
}

// NewInt64NDArray builds an integer array from flat row-major data.
func NewInt64NDArray(data []int64, shape ...int) (*NDArray, error) {
	if err := checkShape(len(data), shape); err != nil {
		return nil, err
	}
	return &NDArray{shape: shape, ints: data}, nil
}

// NewFloat64NDArray builds a floating-point array from flat row-major data.
func NewFloat64NDArray(data []float64, shape ...int) (*NDArray, error) {
	if err := checkShape(len(data), shape); err != nil {
		return nil, err
	}
	return &NDArray{shape: shape, floats: data}, nil
}

func checkShape(n int, shape []int) error {
	if len(shape) == 0 {
		return perrors.New(perrors.ErrorTypeValidation, "ndarray shape must not be empty")
	}
	size := 1
	for _, dim := range shape {
		if dim < 0 {
			return perrors.Newf(perrors.ErrorTypeValidation, "ndarray dimension %d is negative", dim)
		}
		size *= dim
	}
	if size != n {
		return perrors.Newf(perrors.ErrorTypeValidation,
			"ndarray shape %v requires %d values, got %d", shape, size, n)
	}
	return nil
}

// Rank returns the number of dimensions.
func (a *NDArray) Rank() int { return len(a.shape) }

// Shape returns the dimension sizes.
func (a *NDArray) Shape() []int { return a.shape }

// NumRows returns the length of the leading axis.
func (a *NDArray) NumRows() int { return a.shape[0] }

func (a *NDArray) isFloat() bool { return a.floats != nil }

// fromNDArray converts a rank-1 or rank-2 numeric array. Single-column
// input becomes a column named "value"; wider input becomes one column
// per trailing-axis position named "_1".."_k". A caller-supplied name
// list must match the column count exactly and is applied here, not in
// the rename step.
func (p *Pipeline) fromNDArray(a *NDArray, declared schema.DataType, cols []string, cfg config.Ingest) (*Table, *schema.StructType, error) {
	width := 1
	if a.Rank() == 2 {
		width = a.shape[1]
	}

	names := make([]string, width)
	if width == 1 {
		names[0] = "value"
	} else {
		for i := range names {
			names[i] = fmt.Sprintf("_%d", i+1)
		}
	}
	if cols != nil {
		if len(cols) != width {
			return nil, nil, axisLengthMismatch(len(cols), width)
		}
		copy(names, cols)
	}

	var elem schema.DataType = schema.LongType{}
	if a.isFloat() {
		elem = schema.DoubleType{}
	}

	resolved := declaredOrStorage(declared, names, elem)

	fields := make([]schema.StructField, width)
	for i := range fields {
		fields[i] = schema.StructField{Name: names[i], Type: elem, Nullable: false}
	}
	arrowSchema, err := schema.ToArrowSchema(&schema.StructType{Fields: fields}, cfg.SessionTimeZone)
	if err != nil {
		return nil, nil, err
	}

	rb := array.NewRecordBuilder(p.alloc, arrowSchema)
	defer rb.Release()

	rows := a.NumRows()
	for c := 0; c < width; c++ {
		if a.isFloat() {
			fb := rb.Field(c).(*array.Float64Builder)
			for r := 0; r < rows; r++ {
				fb.Append(a.floats[r*width+c])
			}
		} else {
			ib := rb.Field(c).(*array.Int64Builder)
			for r := 0; r < rows; r++ {
				ib.Append(a.ints[r*width+c])
			}
		}
	}

	return &Table{rec: rb.NewRecord()}, resolved, nil
}

// declaredOrStorage picks the declared schema when one was given, else a
// schema derived from the storage type.
func declaredOrStorage(declared schema.DataType, names []string, elem schema.DataType) *schema.StructType {
	if declared != nil {
		return structOrWrap(declared)
	}
	fields := make([]schema.StructField, len(names))
	for i, name := range names {
		fields[i] = schema.StructField{Name: name, Type: elem, Nullable: false}
	}
	return &schema.StructType{Fields: fields}
}
