package schema

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	gojson "github.com/goccy/go-json"
	"go.uber.org/zap"

	perrors "github.com/ekrich/spark/pkg/errors"
)

// InferOptions controls the shape-sensitive inference rules.
type InferOptions struct {
	// InferDictAsStruct infers nested maps as struct types instead of
	// map types.
	InferDictAsStruct bool
	// InferArrayFromFirstElement takes an array's element type from its
	// first element instead of merging across all elements.
	InferArrayFromFirstElement bool
	// PreferTimestampNTZ infers timestamp values as timezone-naive.
	PreferTimestampNTZ bool
}

// Inferencer derives a unified schema from a sequence of heterogeneous
// records by merging per-record schemas left to right.
type Inferencer struct {
	opts   InferOptions
	logger *zap.Logger
}

// NewInferencer creates an inferencer with the given options.
func NewInferencer(opts InferOptions, logger *zap.Logger) *Inferencer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inferencer{opts: opts, logger: logger}
}

// InferSchema infers a single unified schema from records. Records may be
// maps (keys sorted lexicographically), ordered sequences (named from
// names, else "_1".."_k"), named-field Go structs, or bare scalars
// (wrapped as a single field "value"). Inference over zero records fails
// with CANNOT_INFER_EMPTY_SCHEMA.
func (in *Inferencer) InferSchema(records []interface{}, names []string) (*StructType, error) {
	if len(records) == 0 {
		return nil, perrors.NewCoded(perrors.ErrorTypeValidation,
			perrors.CodeCannotInferEmptySchema,
			"can not infer schema from empty dataset")
	}

	acc, err := in.inferRecord(records[0], names)
	if err != nil {
		return nil, err
	}
	for _, rec := range records[1:] {
		next, err := in.inferRecord(rec, names)
		if err != nil {
			return nil, err
		}
		merged, err := Merge(acc, next)
		if err != nil {
			return nil, err
		}
		acc = merged.(*StructType)
	}

	in.logger.Debug("inferred schema from records",
		zap.Int("records", len(records)),
		zap.String("schema", acc.TypeName()))
	return acc, nil
}

// inferRecord derives the per-record schema using shape-sensitive rules.
func (in *Inferencer) inferRecord(rec interface{}, names []string) (*StructType, error) {
	if rec == nil {
		return &StructType{}, nil
	}

	switch r := rec.(type) {
	case map[string]interface{}:
		return in.inferSortedMap(r)
	case []interface{}:
		return in.inferSequence(r, names)
	}

	v := reflect.ValueOf(rec)
	switch v.Kind() {
	case reflect.Map:
		return in.inferSortedMap(toStringMap(v))
	case reflect.Slice, reflect.Array:
		seq := make([]interface{}, v.Len())
		for i := 0; i < v.Len(); i++ {
			seq[i] = v.Index(i).Interface()
		}
		return in.inferSequence(seq, names)
	case reflect.Struct, reflect.Pointer:
		if fields, ok := namedFields(rec); ok {
			return in.inferNamedFields(fields)
		}
	}

	// Bare scalar: wrap as a single-field record.
	dt, err := in.inferValue(rec)
	if err != nil {
		return nil, err
	}
	return NewStructType(StructField{Name: "value", Type: dt, Nullable: isNull(dt)}), nil
}

func (in *Inferencer) inferSortedMap(m map[string]interface{}) (*StructType, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]StructField, 0, len(keys))
	for _, k := range keys {
		dt, err := in.inferValue(m[k])
		if err != nil {
			return nil, err
		}
		fields = append(fields, StructField{Name: k, Type: dt, Nullable: isNull(dt)})
	}
	return &StructType{Fields: fields}, nil
}

func (in *Inferencer) inferSequence(seq []interface{}, names []string) (*StructType, error) {
	fields := make([]StructField, 0, len(seq))
	for i, v := range seq {
		name := fmt.Sprintf("_%d", i+1)
		if i < len(names) {
			name = names[i]
		}
		dt, err := in.inferValue(v)
		if err != nil {
			return nil, err
		}
		fields = append(fields, StructField{Name: name, Type: dt, Nullable: isNull(dt)})
	}
	return &StructType{Fields: fields}, nil
}

func (in *Inferencer) inferNamedFields(fields []namedField) (*StructType, error) {
	out := make([]StructField, 0, len(fields))
	for _, f := range fields {
		dt, err := in.inferValue(f.value)
		if err != nil {
			return nil, err
		}
		out = append(out, StructField{Name: f.name, Type: dt, Nullable: isNull(dt)})
	}
	return &StructType{Fields: out}, nil
}

// inferValue maps one value to its semantic type.
func (in *Inferencer) inferValue(v interface{}) (DataType, error) {
	if v == nil {
		return NullType{}, nil
	}

	switch val := v.(type) {
	case bool:
		return BooleanType{}, nil
	case int8:
		return ByteType{}, nil
	case int16:
		return ShortType{}, nil
	case int32:
		return IntegerType{}, nil
	case int, int64:
		return LongType{}, nil
	case uint8:
		return ShortType{}, nil
	case uint16:
		return IntegerType{}, nil
	case uint32, uint, uint64:
		return LongType{}, nil
	case float32:
		return FloatType{}, nil
	case float64:
		return DoubleType{}, nil
	case gojson.Number:
		if _, err := val.Int64(); err == nil {
			return LongType{}, nil
		}
		return DoubleType{}, nil
	case string:
		return StringType{}, nil
	case []byte:
		return BinaryType{}, nil
	case time.Duration:
		return DayTimeIntervalType{}, nil
	case time.Time:
		if in.opts.PreferTimestampNTZ {
			return TimestampNTZType{}, nil
		}
		return TimestampType{}, nil
	case map[string]interface{}:
		return in.inferNestedMap(sortedEntries(reflect.ValueOf(val)))
	case []interface{}:
		return in.inferArray(val)
	}

	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		// A pointer field is the Go encoding of a nullable column.
		if rv.IsNil() {
			return NullType{}, nil
		}
		return in.inferValue(rv.Elem().Interface())
	}
	switch rv.Kind() {
	case reflect.Map:
		return in.inferNestedMap(sortedEntries(rv))
	case reflect.Slice, reflect.Array:
		seq := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			seq[i] = rv.Index(i).Interface()
		}
		return in.inferArray(seq)
	case reflect.Struct:
		if fields, ok := namedFields(v); ok {
			return in.inferNamedFields(fields)
		}
	}

	return nil, perrors.NewCoded(perrors.ErrorTypeValidation, perrors.CodeInvalidType,
		"value type is not supported for inference").
		WithDetail("go_type", fmt.Sprintf("%T", v))
}

// inferNestedMap infers a nested mapping as a struct when
// InferDictAsStruct is set, else as a map keyed by the original key type
// with the value type taken from the first entry holding a non-null value
// (entries visited in sorted order for determinism).
func (in *Inferencer) inferNestedMap(entries []mapEntry) (DataType, error) {
	if in.opts.InferDictAsStruct {
		fields := make([]StructField, 0, len(entries))
		for _, e := range entries {
			dt, err := in.inferValue(e.value)
			if err != nil {
				return nil, err
			}
			fields = append(fields, StructField{Name: e.name, Type: dt, Nullable: isNull(dt)})
		}
		return &StructType{Fields: fields}, nil
	}

	var keyType, valueType DataType = NullType{}, NullType{}
	if len(entries) > 0 {
		kt, err := in.inferValue(entries[0].key)
		if err != nil {
			return nil, err
		}
		keyType = kt
	}
	for _, e := range entries {
		if e.value == nil {
			continue
		}
		vt, err := in.inferValue(e.value)
		if err != nil {
			return nil, err
		}
		valueType = vt
		break
	}
	return MapType{Key: keyType, Value: valueType, ValueContainsNull: true}, nil
}

// inferArray infers an array's element type from its first element when
// InferArrayFromFirstElement is set, else by merging across all elements.
func (in *Inferencer) inferArray(seq []interface{}) (DataType, error) {
	if len(seq) == 0 {
		return ArrayType{Element: NullType{}, ContainsNull: true}, nil
	}

	if in.opts.InferArrayFromFirstElement {
		elem, err := in.inferValue(seq[0])
		if err != nil {
			return nil, err
		}
		return ArrayType{Element: elem, ContainsNull: true}, nil
	}

	var elem DataType = NullType{}
	for _, v := range seq {
		dt, err := in.inferValue(v)
		if err != nil {
			return nil, err
		}
		merged, err := Merge(elem, dt)
		if err != nil {
			return nil, err
		}
		elem = merged
	}
	return ArrayType{Element: elem, ContainsNull: true}, nil
}

// namedField is one exported field of a named-field object.
type namedField struct {
	name  string
	value interface{}
}

// namedFields enumerates the exported fields of a struct or pointer to
// struct, in declaration order. time.Time is handled as a scalar before
// reaching here.
func namedFields(v interface{}) ([]namedField, bool) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, false
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, false
	}

	rt := rv.Type()
	fields := make([]namedField, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		fields = append(fields, namedField{name: sf.Name, value: rv.Field(i).Interface()})
	}
	if len(fields) == 0 {
		return nil, false
	}
	return fields, true
}

// mapEntry pairs a nested-map key with its value, keeping the original
// key alongside the string form used for ordering and struct field names.
type mapEntry struct {
	name  string
	key   interface{}
	value interface{}
}

func sortedEntries(rv reflect.Value) []mapEntry {
	entries := make([]mapEntry, 0, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := iter.Key().Interface()
		entries = append(entries, mapEntry{name: fmt.Sprint(k), key: k, value: iter.Value().Interface()})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].name < entries[j].name })
	return entries
}

func toStringMap(rv reflect.Value) map[string]interface{} {
	out := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		out[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
	}
	return out
}
