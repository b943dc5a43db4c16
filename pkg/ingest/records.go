package ingest

import (
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/decimal128"
	gojson "github.com/goccy/go-json"

	"github.com/ekrich/spark/pkg/config"
	perrors "github.com/ekrich/spark/pkg/errors"
	"github.com/ekrich/spark/pkg/schema"
)

// fromRecords converts a generic sequence of records. Each record may be
// a map, a positional slice, a named-field struct, or a bare scalar.
// Scalars are normalized to single-element rows so "a list of ints"
// becomes a one-column table.
func (p *Pipeline) fromRecords(records []interface{}, declared schema.DataType, cols []string, cfg config.Ingest) (*Table, *schema.StructType, error) {
	var st *schema.StructType
	if declared != nil {
		st = structOrWrap(declared)
	} else {
		inf := schema.NewInferencer(schema.InferOptions{
			InferDictAsStruct:          cfg.InferDictAsStruct,
			InferArrayFromFirstElement: cfg.InferArrayFromFirstElement,
			PreferTimestampNTZ:         cfg.PreferTimestampNTZ,
		}, p.logger)
		inferred, err := inf.InferSchema(records, cols)
		if err != nil {
			return nil, nil, err
		}
		if schema.HasNullType(inferred) {
			return nil, nil, perrors.NewCoded(perrors.ErrorTypeData,
				perrors.CodeCannotDetermineType,
				"some of types cannot be determined after inferring").
				WithDetail("schema", inferred.TypeName())
		}
		st = inferred
	}

	// Normalize rows for building. Bare scalars become single-element rows
	// (the inferencer has already seen them unwrapped and named the field)
	// and typed slices become []interface{} so every positional row goes
	// through the same width check.
	for i, rec := range records {
		if rec == nil {
			continue
		}
		if isScalarRecord(rec) {
			records[i] = []interface{}{rec}
			continue
		}
		if row, ok := elementsOf(rec); ok {
			records[i] = row
		}
	}

	tbl, err := p.buildTable(records, st, cfg)
	if err != nil {
		return nil, nil, err
	}
	return tbl, st, nil
}

// isScalarRecord reports whether a record has no field structure of its
// own and must be wrapped as a single-column row.
func isScalarRecord(rec interface{}) bool {
	if rec == nil {
		return true
	}
	switch rec.(type) {
	case time.Time, time.Duration, []byte, gojson.Number:
		return true
	}
	rv := reflect.ValueOf(rec)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return true
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return false
	}
	return true
}

// buildTable encodes row-shaped records into an Arrow record batch that
// matches st exactly.
func (p *Pipeline) buildTable(records []interface{}, st *schema.StructType, cfg config.Ingest) (*Table, error) {
	arrowSchema, err := schema.ToArrowSchema(st, cfg.SessionTimeZone)
	if err != nil {
		return nil, err
	}

	rb := array.NewRecordBuilder(p.alloc, arrowSchema)
	defer rb.Release()

	for _, rec := range records {
		if row, ok := rec.([]interface{}); ok && len(row) != len(st.Fields) {
			return nil, axisLengthMismatch(len(st.Fields), len(row))
		}
		for i, field := range st.Fields {
			v := fieldValue(rec, i, field.Name)
			if v == nil && !field.Nullable {
				return nil, perrors.Newf(perrors.ErrorTypeData,
					"field %q does not allow null values", field.Name)
			}
			if err := appendValue(rb.Field(i), field.Type, v, cfg.SafeArrowCast); err != nil {
				return nil, perrors.Wrap(err, perrors.ErrorTypeData,
					fmt.Sprintf("field %q", field.Name))
			}
		}
	}

	return &Table{rec: rb.NewRecord()}, nil
}

// fieldValue extracts the value for one schema field from a record.
// Maps are accessed by field name, sequences by position, and structs by
// exported field name (case-insensitively, so declared lower-case names
// match Go conventions).
func fieldValue(rec interface{}, idx int, name string) interface{} {
	if rec == nil {
		return nil
	}
	switch r := rec.(type) {
	case map[string]interface{}:
		return r[name]
	case []interface{}:
		if idx < len(r) {
			return r[idx]
		}
		return nil
	}

	rv := reflect.ValueOf(rec)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		for _, k := range rv.MapKeys() {
			if fmt.Sprint(k.Interface()) == name {
				return rv.MapIndex(k).Interface()
			}
		}
		return nil
	case reflect.Slice, reflect.Array:
		if idx < rv.Len() {
			return rv.Index(idx).Interface()
		}
		return nil
	case reflect.Struct:
		rt := rv.Type()
		for i := 0; i < rt.NumField(); i++ {
			f := rt.Field(i)
			if !f.IsExported() {
				continue
			}
			if f.Name == name || strings.EqualFold(f.Name, name) {
				fv := rv.Field(i)
				if fv.Kind() == reflect.Pointer {
					if fv.IsNil() {
						return nil
					}
					fv = fv.Elem()
				}
				return fv.Interface()
			}
		}
		return nil
	}
	return nil
}

// appendValue coerces v into the builder for the declared type dt. When
// safe is true, lossy conversions (fractional floats into integers,
// overflow, implicit stringification) are rejected instead of truncated.
func appendValue(b array.Builder, dt schema.DataType, v interface{}, safe bool) error {
	if v == nil {
		b.AppendNull()
		return nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			b.AppendNull()
			return nil
		}
		return appendValue(b, dt, rv.Elem().Interface(), safe)
	}

	switch bld := b.(type) {
	case *array.NullBuilder:
		bld.AppendNull()
		return nil

	case *array.BooleanBuilder:
		bv, ok := v.(bool)
		if !ok {
			return conversionError(v, dt)
		}
		bld.Append(bv)
		return nil

	case *array.Int8Builder:
		iv, err := coerceInt(v, math.MinInt8, math.MaxInt8, safe, dt)
		if err != nil {
			return err
		}
		bld.Append(int8(iv))
		return nil

	case *array.Int16Builder:
		iv, err := coerceInt(v, math.MinInt16, math.MaxInt16, safe, dt)
		if err != nil {
			return err
		}
		bld.Append(int16(iv))
		return nil

	case *array.Int32Builder:
		iv, err := coerceInt(v, math.MinInt32, math.MaxInt32, safe, dt)
		if err != nil {
			return err
		}
		bld.Append(int32(iv))
		return nil

	case *array.Int64Builder:
		iv, err := coerceInt(v, math.MinInt64, math.MaxInt64, safe, dt)
		if err != nil {
			return err
		}
		bld.Append(iv)
		return nil

	case *array.Float32Builder:
		fv, ok := coerceFloat(v)
		if !ok {
			return conversionError(v, dt)
		}
		bld.Append(float32(fv))
		return nil

	case *array.Float64Builder:
		fv, ok := coerceFloat(v)
		if !ok {
			return conversionError(v, dt)
		}
		bld.Append(fv)
		return nil

	case *array.StringBuilder:
		if sv, ok := v.(string); ok {
			bld.Append(sv)
			return nil
		}
		if safe {
			return conversionError(v, dt)
		}
		bld.Append(fmt.Sprint(v))
		return nil

	case *array.BinaryBuilder:
		switch bv := v.(type) {
		case []byte:
			bld.Append(bv)
		case string:
			bld.Append([]byte(bv))
		default:
			return conversionError(v, dt)
		}
		return nil

	case *array.Date32Builder:
		tv, ok := v.(time.Time)
		if !ok {
			return conversionError(v, dt)
		}
		bld.Append(arrow.Date32FromTime(tv))
		return nil

	case *array.TimestampBuilder:
		tv, ok := v.(time.Time)
		if !ok {
			return conversionError(v, dt)
		}
		if _, isNTZ := dt.(schema.TimestampNTZType); isNTZ {
			// Keep the wall clock, drop the zone.
			tv = time.Date(tv.Year(), tv.Month(), tv.Day(),
				tv.Hour(), tv.Minute(), tv.Second(), tv.Nanosecond(), time.UTC)
		}
		bld.Append(arrow.Timestamp(tv.UnixMicro()))
		return nil

	case *array.DurationBuilder:
		dv, ok := v.(time.Duration)
		if !ok {
			return conversionError(v, dt)
		}
		bld.Append(arrow.Duration(dv.Microseconds()))
		return nil

	case *array.Decimal128Builder:
		dec, ok := dt.(schema.DecimalType)
		if !ok {
			return conversionError(v, dt)
		}
		num, err := coerceDecimal(v, dec)
		if err != nil {
			return err
		}
		bld.Append(num)
		return nil

	case *array.ListBuilder:
		at, ok := dt.(schema.ArrayType)
		if !ok {
			return conversionError(v, dt)
		}
		elems, ok := elementsOf(v)
		if !ok {
			return conversionError(v, dt)
		}
		bld.Append(true)
		vb := bld.ValueBuilder()
		for _, e := range elems {
			if err := appendValue(vb, at.Element, e, safe); err != nil {
				return err
			}
		}
		return nil

	case *array.MapBuilder:
		mt, ok := dt.(schema.MapType)
		if !ok {
			return conversionError(v, dt)
		}
		keys, vals, ok := entriesOf(v)
		if !ok {
			return conversionError(v, dt)
		}
		bld.Append(true)
		for i := range keys {
			if err := appendValue(bld.KeyBuilder(), mt.Key, keys[i], safe); err != nil {
				return err
			}
			if err := appendValue(bld.ItemBuilder(), mt.Value, vals[i], safe); err != nil {
				return err
			}
		}
		return nil

	case *array.StructBuilder:
		st, ok := dt.(*schema.StructType)
		if !ok {
			return conversionError(v, dt)
		}
		bld.Append(true)
		for i, field := range st.Fields {
			fv := fieldValue(v, i, field.Name)
			if err := appendValue(bld.FieldBuilder(i), field.Type, fv, safe); err != nil {
				return err
			}
		}
		return nil
	}

	return conversionError(v, dt)
}

// coerceInt accepts integers, integral floats, and decoded JSON numbers.
func coerceInt(v interface{}, min, max int64, safe bool, dt schema.DataType) (int64, error) {
	var iv int64
	switch n := v.(type) {
	case int:
		iv = int64(n)
	case int8:
		iv = int64(n)
	case int16:
		iv = int64(n)
	case int32:
		iv = int64(n)
	case int64:
		iv = n
	case uint:
		iv = int64(n)
	case uint8:
		iv = int64(n)
	case uint16:
		iv = int64(n)
	case uint32:
		iv = int64(n)
	case uint64:
		if safe && n > math.MaxInt64 {
			return 0, overflowError(v, dt)
		}
		iv = int64(n)
	case float32:
		return coerceIntFromFloat(float64(n), min, max, safe, dt)
	case float64:
		return coerceIntFromFloat(n, min, max, safe, dt)
	case gojson.Number:
		parsed, err := strconv.ParseInt(string(n), 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(string(n), 64)
			if ferr != nil {
				return 0, conversionError(v, dt)
			}
			return coerceIntFromFloat(f, min, max, safe, dt)
		}
		iv = parsed
	default:
		return 0, conversionError(v, dt)
	}
	if safe && (iv < min || iv > max) {
		return 0, overflowError(v, dt)
	}
	return iv, nil
}

func coerceIntFromFloat(f float64, min, max int64, safe bool, dt schema.DataType) (int64, error) {
	if safe {
		if f != math.Trunc(f) {
			return 0, perrors.Newf(perrors.ErrorTypeData,
				"cannot convert fractional value %v to %s with safe casting enabled",
				f, dt.TypeName())
		}
		if f < float64(min) || f > float64(max) {
			return 0, overflowError(f, dt)
		}
	}
	return int64(f), nil
}

func coerceFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case gojson.Number:
		f, err := strconv.ParseFloat(string(n), 64)
		return f, err == nil
	}
	return 0, false
}

func coerceDecimal(v interface{}, dec schema.DecimalType) (decimal128.Num, error) {
	switch n := v.(type) {
	case string:
		num, err := decimal128.FromString(n, int32(dec.Precision), int32(dec.Scale))
		if err != nil {
			return decimal128.Num{}, perrors.Wrap(err, perrors.ErrorTypeData,
				fmt.Sprintf("cannot convert %q to %s", n, dec.TypeName()))
		}
		return num, nil
	case gojson.Number:
		return coerceDecimal(string(n), dec)
	case float32:
		return decimalFromFloat(float64(n), dec)
	case float64:
		return decimalFromFloat(n, dec)
	}
	if iv, err := coerceInt(v, math.MinInt64, math.MaxInt64, false, dec); err == nil {
		return coerceDecimal(strconv.FormatInt(iv, 10), dec)
	}
	return decimal128.Num{}, conversionError(v, dec)
}

func decimalFromFloat(f float64, dec schema.DecimalType) (decimal128.Num, error) {
	num, err := decimal128.FromFloat64(f, int32(dec.Precision), int32(dec.Scale))
	if err != nil {
		return decimal128.Num{}, perrors.Wrap(err, perrors.ErrorTypeData,
			fmt.Sprintf("cannot convert %v to %s", f, dec.TypeName()))
	}
	return num, nil
}

// elementsOf flattens any slice or array value into []interface{}.
func elementsOf(v interface{}) ([]interface{}, bool) {
	if elems, ok := v.([]interface{}); ok {
		return elems, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// entriesOf returns map entries in sorted key order so encoded output is
// deterministic.
func entriesOf(v interface{}) ([]interface{}, []interface{}, bool) {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, nil, false
	}
	type entry struct {
		key string
		k   interface{}
		v   interface{}
	}
	entries := make([]entry, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		entries = append(entries, entry{
			key: fmt.Sprint(k.Interface()),
			k:   k.Interface(),
			v:   rv.MapIndex(k).Interface(),
		})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].key < entries[j].key })
	keys := make([]interface{}, len(entries))
	vals := make([]interface{}, len(entries))
	for i, e := range entries {
		keys[i] = e.k
		vals[i] = e.v
	}
	return keys, vals, true
}

func conversionError(v interface{}, dt schema.DataType) *perrors.Error {
	return perrors.Newf(perrors.ErrorTypeData,
		"cannot convert value of type %T to %s", v, dt.TypeName())
}

func overflowError(v interface{}, dt schema.DataType) *perrors.Error {
	return perrors.Newf(perrors.ErrorTypeData,
		"value %v overflows %s with safe casting enabled", v, dt.TypeName())
}
