package schema

import (
	"testing"
	"time"

	gojson "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	perrors "github.com/ekrich/spark/pkg/errors"
)

func inferSchema(t *testing.T, opts InferOptions, records []interface{}, names []string) *StructType {
	t.Helper()
	st, err := NewInferencer(opts, nil).InferSchema(records, names)
	require.NoError(t, err)
	return st
}

func TestInferEmptyDataset(t *testing.T) {
	_, err := NewInferencer(InferOptions{}, nil).InferSchema(nil, nil)
	require.Error(t, err)
	assert.True(t, perrors.IsCode(err, perrors.CodeCannotInferEmptySchema))
}

func TestInferMapKeysSorted(t *testing.T) {
	st := inferSchema(t, InferOptions{}, []interface{}{
		map[string]interface{}{"b": int64(1), "a": "x"},
	}, nil)
	assert.Equal(t, []string{"a", "b"}, st.FieldNames())
	assert.Equal(t, StringType{}, st.Fields[0].Type)
	assert.Equal(t, LongType{}, st.Fields[1].Type)
}

func TestInferSequenceNaming(t *testing.T) {
	rec := []interface{}{int64(1), "x", 2.5}

	st := inferSchema(t, InferOptions{}, []interface{}{rec}, nil)
	assert.Equal(t, []string{"_1", "_2", "_3"}, st.FieldNames())

	st = inferSchema(t, InferOptions{}, []interface{}{rec}, []string{"id", "name"})
	assert.Equal(t, []string{"id", "name", "_3"}, st.FieldNames())
}

func TestInferScalarWrapped(t *testing.T) {
	st := inferSchema(t, InferOptions{}, []interface{}{int64(1), int64(2)}, nil)
	require.Equal(t, []string{"value"}, st.FieldNames())
	assert.Equal(t, LongType{}, st.Fields[0].Type)
}

func TestInferNamedFields(t *testing.T) {
	type person struct {
		Name string
		Age  int64
	}
	st := inferSchema(t, InferOptions{}, []interface{}{person{Name: "Alice", Age: 30}}, nil)
	assert.Equal(t, []string{"Name", "Age"}, st.FieldNames())
	assert.Equal(t, StringType{}, st.Fields[0].Type)
	assert.Equal(t, LongType{}, st.Fields[1].Type)
}

func TestInferPointerFields(t *testing.T) {
	type person struct {
		Name string
		Age  *int64
	}
	age := int64(42)
	st := inferSchema(t, InferOptions{}, []interface{}{
		person{Name: "Alice", Age: &age},
		person{Name: "Bob"},
	}, nil)
	assert.Equal(t, []string{"Name", "Age"}, st.FieldNames())
	assert.Equal(t, LongType{}, st.Fields[1].Type)
	assert.True(t, st.Fields[1].Nullable)

	// A nil pointer on its own carries no type.
	st = inferSchema(t, InferOptions{}, []interface{}{
		map[string]interface{}{"v": (*int64)(nil)},
	}, nil)
	assert.Equal(t, NullType{}, st.Fields[0].Type)
}

func TestInferTypedMapKeys(t *testing.T) {
	st := inferSchema(t, InferOptions{}, []interface{}{
		map[string]interface{}{"m": map[int64]string{7: "x"}},
	}, nil)
	mt, ok := st.Fields[0].Type.(MapType)
	require.True(t, ok)
	assert.Equal(t, LongType{}, mt.Key)
	assert.Equal(t, StringType{}, mt.Value)
}

func TestInferScalarTypes(t *testing.T) {
	tests := []struct {
		name  string
		value interface{}
		want  DataType
	}{
		{"bool", true, BooleanType{}},
		{"int8", int8(1), ByteType{}},
		{"int16", int16(1), ShortType{}},
		{"int32", int32(1), IntegerType{}},
		{"int64", int64(1), LongType{}},
		{"int", 1, LongType{}},
		{"float32", float32(1.5), FloatType{}},
		{"float64", 1.5, DoubleType{}},
		{"integral json number", gojson.Number("42"), LongType{}},
		{"fractional json number", gojson.Number("4.2"), DoubleType{}},
		{"string", "x", StringType{}},
		{"binary", []byte{1, 2}, BinaryType{}},
		{"duration", time.Second, DayTimeIntervalType{}},
		{"time", time.Now(), TimestampType{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := inferSchema(t, InferOptions{}, []interface{}{
				map[string]interface{}{"v": tt.value},
			}, nil)
			assert.Equal(t, tt.want, st.Fields[0].Type)
		})
	}
}

func TestInferTimestampNTZPreference(t *testing.T) {
	records := []interface{}{map[string]interface{}{"ts": time.Now()}}

	st := inferSchema(t, InferOptions{PreferTimestampNTZ: true}, records, nil)
	assert.Equal(t, TimestampNTZType{}, st.Fields[0].Type)
}

func TestInferNestedMap(t *testing.T) {
	records := []interface{}{
		map[string]interface{}{
			"m": map[string]interface{}{"k": int64(1)},
		},
	}

	st := inferSchema(t, InferOptions{}, records, nil)
	assert.True(t, Equal(
		MapType{Key: StringType{}, Value: LongType{}, ValueContainsNull: true},
		st.Fields[0].Type))

	st = inferSchema(t, InferOptions{InferDictAsStruct: true}, records, nil)
	assert.True(t, Equal(
		NewStructType(StructField{Name: "k", Type: LongType{}, Nullable: false}),
		st.Fields[0].Type))
}

func TestInferArrayElementMerging(t *testing.T) {
	records := []interface{}{
		map[string]interface{}{"xs": []interface{}{int32(1), int64(2)}},
	}

	st := inferSchema(t, InferOptions{}, records, nil)
	assert.True(t, Equal(ArrayType{Element: LongType{}, ContainsNull: true}, st.Fields[0].Type))

	st = inferSchema(t, InferOptions{InferArrayFromFirstElement: true}, records, nil)
	assert.True(t, Equal(ArrayType{Element: IntegerType{}, ContainsNull: true}, st.Fields[0].Type))
}

func TestInferNullsMergeAcrossRecords(t *testing.T) {
	st := inferSchema(t, InferOptions{}, []interface{}{
		map[string]interface{}{"a": nil, "b": int64(1)},
		map[string]interface{}{"a": "x", "b": nil},
	}, nil)

	assert.Equal(t, StringType{}, st.Fields[0].Type)
	assert.True(t, st.Fields[0].Nullable)
	assert.Equal(t, LongType{}, st.Fields[1].Type)
	assert.True(t, st.Fields[1].Nullable)
}

func TestInferAllNullFieldStaysNull(t *testing.T) {
	st := inferSchema(t, InferOptions{}, []interface{}{
		map[string]interface{}{"a": nil},
		map[string]interface{}{"a": nil},
	}, nil)
	assert.True(t, HasNullType(st))
}

func TestInferUnsupportedValue(t *testing.T) {
	_, err := NewInferencer(InferOptions{}, nil).InferSchema([]interface{}{
		map[string]interface{}{"ch": make(chan int)},
	}, nil)
	require.Error(t, err)
	assert.True(t, perrors.IsCode(err, perrors.CodeInvalidType))
}
