package ingest

import (
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekrich/spark/pkg/config"
	perrors "github.com/ekrich/spark/pkg/errors"
	"github.com/ekrich/spark/pkg/frame"
	"github.com/ekrich/spark/pkg/schema"
	"github.com/ekrich/spark/pkg/testutil"
)

func newTestPipeline(t *testing.T, overrides map[string]string) *Pipeline {
	t.Helper()
	return NewPipeline(NewLocalSession(testutil.Configs(overrides)), testutil.TestLogger(t))
}

func createTable(t *testing.T, data interface{}, schemaArg interface{}) (*Table, *schema.StructType) {
	t.Helper()
	tbl, st, err := newTestPipeline(t, nil).CreateTable(data, schemaArg)
	require.NoError(t, err)
	t.Cleanup(tbl.Release)
	return tbl, st
}

func TestCreateTableScalarsWrapped(t *testing.T) {
	tbl, st := createTable(t, []int64{1, 2, 3}, nil)

	assert.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, 1, tbl.NumCols())
	require.Equal(t, []string{"value"}, st.FieldNames())
	assert.Equal(t, schema.LongType{}, st.Fields[0].Type)

	col := tbl.Record().Column(0).(*array.Int64)
	assert.Equal(t, int64(1), col.Value(0))
	assert.Equal(t, int64(3), col.Value(2))
}

func TestCreateTableMapKeysSorted(t *testing.T) {
	tbl, st := createTable(t, []interface{}{
		map[string]interface{}{"b": int64(1), "a": "x"},
		map[string]interface{}{"b": int64(2), "a": "y"},
	}, nil)

	assert.Equal(t, []string{"a", "b"}, st.FieldNames())
	assert.Equal(t, "a", tbl.ArrowSchema().Field(0).Name)
	assert.Equal(t, "b", tbl.ArrowSchema().Field(1).Name)

	names := tbl.Record().Column(0).(*array.String)
	assert.Equal(t, "x", names.Value(0))
	assert.Equal(t, "y", names.Value(1))
}

func TestCreateTableColumnCountMatchesSchema(t *testing.T) {
	tbl, st := createTable(t, []interface{}{
		[]interface{}{int64(1), "x", 2.5},
	}, []string{"id", "name", "score"})

	assert.Equal(t, len(st.Fields), tbl.NumCols())
	assert.Equal(t, []string{"id", "name", "score"}, st.FieldNames())
}

func TestCreateTableDeclaredSchema(t *testing.T) {
	tbl, st := createTable(t, []interface{}{
		[]interface{}{int64(1), "Alice"},
		[]interface{}{int64(2), "Bob"},
	}, "id bigint, name string")

	assert.Equal(t, int64(2), tbl.NumRows())
	assert.Equal(t, []string{"id", "name"}, st.FieldNames())
	assert.Equal(t, schema.LongType{}, st.Fields[0].Type)
}

func TestCreateTableAtomicSchemaWrapped(t *testing.T) {
	tbl, st := createTable(t, []int64{1, 2, 3}, "bigint")

	assert.Equal(t, 1, tbl.NumCols())
	require.Equal(t, []string{"value"}, st.FieldNames())
	assert.Equal(t, schema.LongType{}, st.Fields[0].Type)
}

func TestCreateTableRenameAppliesPositionally(t *testing.T) {
	tbl, st := createTable(t, []interface{}{
		map[string]interface{}{"b": int64(1), "a": "x"},
	}, []string{"first", "second"})

	assert.Equal(t, []string{"first", "second"}, st.FieldNames())
	assert.Equal(t, "first", tbl.ArrowSchema().Field(0).Name)
	// Values stay with their positions.
	assert.Equal(t, "x", tbl.Record().Column(0).(*array.String).Value(0))
}

func TestCreateTableEmptyWithSchema(t *testing.T) {
	tbl, st := createTable(t, []interface{}{}, "a bigint, b string")

	assert.Equal(t, int64(0), tbl.NumRows())
	assert.Equal(t, 2, tbl.NumCols())
	assert.Equal(t, []string{"a", "b"}, st.FieldNames())
}

func TestCreateTableEmptyWithoutSchema(t *testing.T) {
	_, _, err := newTestPipeline(t, nil).CreateTable([]interface{}{}, nil)
	testutil.RequireCode(t, err, perrors.CodeCannotInferEmptySchema)

	_, _, err = newTestPipeline(t, nil).CreateTable([]interface{}{}, []string{"a"})
	testutil.RequireCode(t, err, perrors.CodeCannotInferEmptySchema)
}

func TestCreateTableNilData(t *testing.T) {
	_, _, err := newTestPipeline(t, nil).CreateTable(nil, nil)
	testutil.RequireCode(t, err, perrors.CodeInvalidType)
}

func TestCreateTableRejectsTableInput(t *testing.T) {
	tbl, _ := createTable(t, []int64{1}, nil)

	_, _, err := newTestPipeline(t, nil).CreateTable(tbl, nil)
	testutil.RequireCode(t, err, perrors.CodeInvalidType)

	_, _, err = newTestPipeline(t, nil).CreateTable(tbl.Record(), nil)
	testutil.RequireCode(t, err, perrors.CodeInvalidType)
}

func TestCreateTableUndeterminedType(t *testing.T) {
	_, _, err := newTestPipeline(t, nil).CreateTable([]interface{}{
		[]interface{}{"Alice", nil, 80.1},
	}, nil)
	testutil.RequireCode(t, err, perrors.CodeCannotDetermineType)
}

func TestCreateTableNullsAcrossRecords(t *testing.T) {
	tbl, st := createTable(t, []interface{}{
		map[string]interface{}{"a": nil, "b": int64(1)},
		map[string]interface{}{"a": "x", "b": nil},
	}, nil)

	assert.Equal(t, schema.StringType{}, st.Fields[0].Type)
	col := tbl.Record().Column(0).(*array.String)
	assert.True(t, col.IsNull(0))
	assert.Equal(t, "x", col.Value(1))
}

func TestCreateTableNestedValues(t *testing.T) {
	tbl, st := createTable(t, []interface{}{
		map[string]interface{}{
			"tags":  []interface{}{"a", "b"},
			"attrs": map[string]interface{}{"k": int64(1)},
		},
	}, nil)

	require.Equal(t, []string{"attrs", "tags"}, st.FieldNames())
	assert.Equal(t, int64(1), tbl.NumRows())

	tags := tbl.Record().Column(1).(*array.List)
	strs := tags.ListValues().(*array.String)
	assert.Equal(t, "a", strs.Value(0))
	assert.Equal(t, "b", strs.Value(1))
}

func TestCreateTableStructRecords(t *testing.T) {
	type person struct {
		Name string
		Age  int64
	}
	tbl, st := createTable(t, []interface{}{
		person{Name: "Alice", Age: 30},
		person{Name: "Bob", Age: 25},
	}, nil)

	assert.Equal(t, []string{"Name", "Age"}, st.FieldNames())
	assert.Equal(t, "Alice", tbl.Record().Column(0).(*array.String).Value(0))
	assert.Equal(t, int64(25), tbl.Record().Column(1).(*array.Int64).Value(1))
}

func TestCreateTableStructRecordsWithDeclaredSchema(t *testing.T) {
	type person struct {
		Name string
		Age  int64
	}
	tbl, st := createTable(t, []interface{}{
		person{Name: "Alice", Age: 30},
	}, "name string, age bigint")

	assert.Equal(t, []string{"name", "age"}, st.FieldNames())
	assert.Equal(t, "Alice", tbl.Record().Column(0).(*array.String).Value(0))
	assert.Equal(t, int64(30), tbl.Record().Column(1).(*array.Int64).Value(0))
}

func TestCreateTableStructPointerFields(t *testing.T) {
	type person struct {
		Name string
		Age  *int64
	}
	age := int64(42)
	tbl, st := createTable(t, []interface{}{
		person{Name: "Alice", Age: &age},
		person{Name: "Bob"},
	}, nil)

	assert.Equal(t, []string{"Name", "Age"}, st.FieldNames())
	assert.Equal(t, schema.LongType{}, st.Fields[1].Type)
	assert.True(t, st.Fields[1].Nullable)

	ages := tbl.Record().Column(1).(*array.Int64)
	assert.Equal(t, int64(42), ages.Value(0))
	assert.True(t, ages.IsNull(1))
}

func TestCreateTableTypedRowWidthMismatch(t *testing.T) {
	_, _, err := newTestPipeline(t, nil).CreateTable([]interface{}{
		[]int64{1, 2},
		[]int64{3},
	}, "a bigint, b bigint")
	testutil.RequireCode(t, err, perrors.CodeAxisLengthMismatch)
	testutil.RequireDetail(t, err, "expected_length", 2)
	testutil.RequireDetail(t, err, "actual_length", 1)

	// Typed rows of the declared width build like []interface{} rows.
	tbl, _ := createTable(t, []interface{}{
		[]int64{1, 2},
		[]int64{3, 4},
	}, "a bigint, b bigint")
	assert.Equal(t, int64(2), tbl.NumRows())
	assert.Equal(t, int64(4), tbl.Record().Column(1).(*array.Int64).Value(1))
}

func TestCreateTableTypedMapKeys(t *testing.T) {
	p := newTestPipeline(t, map[string]string{
		config.KeySafeArrowCast: "true",
	})
	tbl, st, err := p.CreateTable([]interface{}{
		map[string]interface{}{"m": map[int64]string{7: "x", 3: "y"}},
	}, nil)
	require.NoError(t, err)
	defer tbl.Release()

	mt, ok := st.Fields[0].Type.(schema.MapType)
	require.True(t, ok)
	assert.Equal(t, schema.LongType{}, mt.Key)
	assert.Equal(t, schema.StringType{}, mt.Value)
	assert.Equal(t, int64(1), tbl.NumRows())
}

func TestCreateTableSchemaCountMismatch(t *testing.T) {
	_, _, err := newTestPipeline(t, nil).CreateTable([]interface{}{
		[]interface{}{int64(1), "x"},
	}, "a bigint, b string, c double")
	testutil.RequireCode(t, err, perrors.CodeAxisLengthMismatch)
	testutil.RequireDetail(t, err, "expected_length", 3)
	testutil.RequireDetail(t, err, "actual_length", 2)
}

func TestCreateTableColumnNamesCountMismatch(t *testing.T) {
	_, _, err := newTestPipeline(t, nil).CreateTable([]interface{}{
		[]interface{}{int64(1), "x"},
	}, []string{"a", "b", "c"})
	testutil.RequireCode(t, err, perrors.CodeAxisLengthMismatch)
	testutil.RequireDetail(t, err, "expected_length", 3)
	testutil.RequireDetail(t, err, "actual_length", 2)
}

func TestCreateTableTimestampNTZConfig(t *testing.T) {
	p := newTestPipeline(t, map[string]string{
		config.KeyTimestampType: config.TimestampNTZ,
	})
	tbl, st, err := p.CreateTable([]interface{}{
		map[string]interface{}{"ts": time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}, nil)
	require.NoError(t, err)
	defer tbl.Release()

	assert.Equal(t, schema.TimestampNTZType{}, st.Fields[0].Type)
}

func TestCreateTableDictAsStructConfig(t *testing.T) {
	p := newTestPipeline(t, map[string]string{
		config.KeyInferDictAsStruct: "true",
	})
	tbl, st, err := p.CreateTable([]interface{}{
		map[string]interface{}{"m": map[string]interface{}{"k": int64(1)}},
	}, nil)
	require.NoError(t, err)
	defer tbl.Release()

	_, isStruct := st.Fields[0].Type.(*schema.StructType)
	assert.True(t, isStruct)
}

func TestCreateTableSafeCastRejectsFraction(t *testing.T) {
	safe := newTestPipeline(t, map[string]string{
		config.KeySafeArrowCast: "true",
	})
	_, _, err := safe.CreateTable([]interface{}{
		[]interface{}{1.5},
	}, "a bigint")
	require.Error(t, err)
	assert.True(t, perrors.IsType(err, perrors.ErrorTypeData))

	// Without safe casting the value is truncated.
	tbl, _ := createTable(t, []interface{}{[]interface{}{1.5}}, "a bigint")
	assert.Equal(t, int64(1), tbl.Record().Column(0).(*array.Int64).Value(0))
}

func TestNDArrayRankOne(t *testing.T) {
	a, err := NewInt64NDArray([]int64{1, 2, 3}, 3)
	require.NoError(t, err)

	tbl, st := createTable(t, a, nil)
	assert.Equal(t, int64(3), tbl.NumRows())
	assert.Equal(t, []string{"value"}, st.FieldNames())
	assert.Equal(t, schema.LongType{}, st.Fields[0].Type)
}

func TestNDArrayRankTwo(t *testing.T) {
	a, err := NewFloat64NDArray([]float64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	tbl, st := createTable(t, a, nil)
	assert.Equal(t, int64(2), tbl.NumRows())
	assert.Equal(t, 3, tbl.NumCols())
	assert.Equal(t, []string{"_1", "_2", "_3"}, st.FieldNames())

	// Row-major layout: second row of the middle column.
	col := tbl.Record().Column(1).(*array.Float64)
	assert.Equal(t, 5.0, col.Value(1))
}

func TestNDArraySingleColumnRankTwo(t *testing.T) {
	a, err := NewInt64NDArray([]int64{1, 2, 3}, 3, 1)
	require.NoError(t, err)

	_, st := createTable(t, a, nil)
	assert.Equal(t, []string{"value"}, st.FieldNames())
}

func TestNDArrayColumnNamesApplied(t *testing.T) {
	a, err := NewInt64NDArray([]int64{1, 2, 3, 4}, 2, 2)
	require.NoError(t, err)

	tbl, st := createTable(t, a, []string{"x", "y"})
	assert.Equal(t, []string{"x", "y"}, st.FieldNames())
	assert.Equal(t, "x", tbl.ArrowSchema().Field(0).Name)
}

func TestNDArrayColumnCountMismatch(t *testing.T) {
	a, err := NewInt64NDArray([]int64{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)

	_, _, err = newTestPipeline(t, nil).CreateTable(a, []string{"x", "y"})
	testutil.RequireCode(t, err, perrors.CodeAxisLengthMismatch)
	testutil.RequireDetail(t, err, "expected_length", 2)
	testutil.RequireDetail(t, err, "actual_length", 3)
}

func TestNDArrayInvalidRank(t *testing.T) {
	a, err := NewInt64NDArray([]int64{1, 2, 3, 4, 5, 6, 7, 8}, 2, 2, 2)
	require.NoError(t, err)

	_, _, err = newTestPipeline(t, nil).CreateTable(a, nil)
	testutil.RequireCode(t, err, perrors.CodeInvalidNDArrayDimension)
}

func TestNDArrayShapeValidation(t *testing.T) {
	_, err := NewInt64NDArray([]int64{1, 2, 3}, 2, 2)
	require.Error(t, err)

	_, err = NewFloat64NDArray([]float64{1}, -1)
	require.Error(t, err)
}

func newTestFrame(t *testing.T) *frame.Frame {
	t.Helper()
	f, err := frame.New(
		frame.Column{Name: "id", Kind: frame.KindInt64, Values: []interface{}{int64(1), int64(2)}},
		frame.Column{Name: "name", Kind: frame.KindString, Values: []interface{}{"Alice", "Bob"}},
		frame.Column{Name: "score", Kind: frame.KindFloat64, Values: []interface{}{80.5, nil}},
	)
	require.NoError(t, err)
	return f
}

func TestFrameInferred(t *testing.T) {
	tbl, st := createTable(t, newTestFrame(t), nil)

	assert.Equal(t, int64(2), tbl.NumRows())
	assert.Equal(t, []string{"id", "name", "score"}, st.FieldNames())
	assert.Equal(t, schema.LongType{}, st.Fields[0].Type)
	assert.Equal(t, schema.DoubleType{}, st.Fields[2].Type)

	scores := tbl.Record().Column(2).(*array.Float64)
	assert.Equal(t, 80.5, scores.Value(0))
	assert.True(t, scores.IsNull(1))
}

func TestFrameDeclaredSchema(t *testing.T) {
	tbl, st := createTable(t, newTestFrame(t), "a bigint, b string, c double")

	assert.Equal(t, []string{"a", "b", "c"}, st.FieldNames())
	assert.Equal(t, "a", tbl.ArrowSchema().Field(0).Name)
}

func TestFrameAtomicSchemaRejected(t *testing.T) {
	_, _, err := newTestPipeline(t, nil).CreateTable(newTestFrame(t), "bigint")
	testutil.RequireCode(t, err, perrors.CodeUnsupportedDataTypeForArrow)
}

func TestFrameObjectColumnInferred(t *testing.T) {
	f, err := frame.New(
		frame.Column{Name: "v", Kind: frame.KindObject, Values: []interface{}{int64(1), nil, int64(3)}},
	)
	require.NoError(t, err)

	tbl, st := createTable(t, f, nil)
	assert.Equal(t, schema.LongType{}, st.Fields[0].Type)
	assert.True(t, tbl.Record().Column(0).(*array.Int64).IsNull(1))
}

func TestFrameDatetimeColumns(t *testing.T) {
	ts := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)
	f, err := frame.New(
		frame.Column{Name: "ts", Kind: frame.KindDatetime, Values: []interface{}{ts}},
		frame.Column{Name: "d", Kind: frame.KindTimedelta, Values: []interface{}{2 * time.Second}},
	)
	require.NoError(t, err)

	tbl, st := createTable(t, f, nil)
	assert.Equal(t, schema.TimestampType{}, st.Fields[0].Type)
	assert.Equal(t, schema.DayTimeIntervalType{}, st.Fields[1].Type)
	assert.Equal(t, int64(1), tbl.NumRows())
}

func TestFrameEmptyWithSchema(t *testing.T) {
	f, err := frame.New(
		frame.Column{Name: "id", Kind: frame.KindInt64, Values: nil},
		frame.Column{Name: "name", Kind: frame.KindString, Values: nil},
	)
	require.NoError(t, err)

	tbl, st := createTable(t, f, "id bigint, name string")
	assert.Equal(t, int64(0), tbl.NumRows())
	assert.Equal(t, 2, tbl.NumCols())
	assert.Equal(t, []string{"id", "name"}, st.FieldNames())
}

// A short name list is padded with synthetic names, but a long one is a
// count mismatch. The two directions are intentionally not symmetric.
func TestFrameSchemaCountAsymmetry(t *testing.T) {
	tbl, st := createTable(t, newTestFrame(t), []string{"x"})
	assert.Equal(t, []string{"x", "_2", "_3"}, st.FieldNames())
	assert.Equal(t, 3, tbl.NumCols())

	_, _, err := newTestPipeline(t, nil).CreateTable(newTestFrame(t), []string{"a", "b", "c", "d"})
	testutil.RequireCode(t, err, perrors.CodeAxisLengthMismatch)
	testutil.RequireDetail(t, err, "expected_length", 4)
	testutil.RequireDetail(t, err, "actual_length", 3)
}

// Reconciling an already-consistent pair must not change it.
func TestReconcileIdempotent(t *testing.T) {
	p := newTestPipeline(t, nil)
	tbl, st := createTable(t, []interface{}{
		map[string]interface{}{"a": int64(1), "b": "x"},
	}, nil)

	again, stAgain, err := p.reconcile(tbl, st, len(st.Fields), st.FieldNames())
	require.NoError(t, err)
	assert.Same(t, tbl, again)
	assert.Same(t, st, stAgain)
}

func TestCreateTableInvalidSchemaArg(t *testing.T) {
	_, _, err := newTestPipeline(t, nil).CreateTable([]int64{1}, 42)
	testutil.RequireCode(t, err, perrors.CodeInvalidType)
}

func TestCreateTableInvalidData(t *testing.T) {
	_, _, err := newTestPipeline(t, nil).CreateTable("not a sequence", nil)
	testutil.RequireCode(t, err, perrors.CodeInvalidType)
}
