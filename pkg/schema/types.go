// Package schema defines the semantic type system used by the local data
// ingestion pipeline: the tagged type variant, structural equality, type
// merging, the canonical DDL string form, and the Arrow encoding of every
// type.
package schema

import (
	"fmt"
	"strings"
)

// DataType is the closed variant of semantic types. Implementations are
// immutable values; compare them with Equal, not ==, since nested types
// carry slices.
type DataType interface {
	// TypeName returns the canonical DDL name of the type.
	TypeName() string
}

// NullType is the type of an all-null observation. It only appears during
// inference and merging; a schema containing it is unresolved.
type NullType struct{}

// BooleanType represents boolean values.
type BooleanType struct{}

// ByteType represents 8-bit signed integers.
type ByteType struct{}

// ShortType represents 16-bit signed integers.
type ShortType struct{}

// IntegerType represents 32-bit signed integers.
type IntegerType struct{}

// LongType represents 64-bit signed integers.
type LongType struct{}

// FloatType represents 32-bit floating point values.
type FloatType struct{}

// DoubleType represents 64-bit floating point values.
type DoubleType struct{}

// DecimalType represents fixed-precision decimal values.
type DecimalType struct {
	Precision int
	Scale     int
}

// StringType represents UTF-8 strings.
type StringType struct{}

// BinaryType represents raw byte sequences.
type BinaryType struct{}

// DateType represents calendar dates without time of day.
type DateType struct{}

// TimestampType represents an instant, rendered in the session time zone.
type TimestampType struct{}

// TimestampNTZType represents a wall-clock timestamp without a time zone.
type TimestampNTZType struct{}

// DayTimeIntervalType represents day-to-second intervals.
type DayTimeIntervalType struct{}

// ArrayType represents a sequence of elements of one type.
type ArrayType struct {
	Element      DataType
	ContainsNull bool
}

// MapType represents key-value pairs with homogeneous key and value types.
type MapType struct {
	Key               DataType
	Value             DataType
	ValueContainsNull bool
}

// StructField is a named, typed member of a StructType. Name uniqueness is
// not enforced; downstream consumers disambiguate duplicates by position.
type StructField struct {
	Name     string
	Type     DataType
	Nullable bool
}

// StructType is an ordered sequence of fields. A schema is a StructType at
// the top level.
type StructType struct {
	Fields []StructField
}

func (NullType) TypeName() string            { return "void" }
func (BooleanType) TypeName() string         { return "boolean" }
func (ByteType) TypeName() string            { return "tinyint" }
func (ShortType) TypeName() string           { return "smallint" }
func (IntegerType) TypeName() string         { return "int" }
func (LongType) TypeName() string            { return "bigint" }
func (FloatType) TypeName() string           { return "float" }
func (DoubleType) TypeName() string          { return "double" }
func (StringType) TypeName() string          { return "string" }
func (BinaryType) TypeName() string          { return "binary" }
func (DateType) TypeName() string            { return "date" }
func (TimestampType) TypeName() string       { return "timestamp" }
func (TimestampNTZType) TypeName() string    { return "timestamp_ntz" }
func (DayTimeIntervalType) TypeName() string { return "interval day to second" }

func (t DecimalType) TypeName() string {
	return fmt.Sprintf("decimal(%d,%d)", t.Precision, t.Scale)
}

func (t ArrayType) TypeName() string {
	return fmt.Sprintf("array<%s>", t.Element.TypeName())
}

func (t MapType) TypeName() string {
	return fmt.Sprintf("map<%s,%s>", t.Key.TypeName(), t.Value.TypeName())
}

func (t *StructType) TypeName() string {
	var sb strings.Builder
	sb.WriteString("struct<")
	for i, f := range t.Fields {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(f.Name)
		sb.WriteByte(':')
		sb.WriteString(f.Type.TypeName())
	}
	sb.WriteByte('>')
	return sb.String()
}

// NewStructType builds a StructType from fields.
func NewStructType(fields ...StructField) *StructType {
	return &StructType{Fields: fields}
}

// FieldNames returns the field names in declaration order.
func (t *StructType) FieldNames() []string {
	names := make([]string, len(t.Fields))
	for i, f := range t.Fields {
		names[i] = f.Name
	}
	return names
}

// Equal reports structural equality of two types.
func Equal(a, b DataType) bool {
	switch at := a.(type) {
	case ArrayType:
		bt, ok := b.(ArrayType)
		return ok && at.ContainsNull == bt.ContainsNull && Equal(at.Element, bt.Element)
	case MapType:
		bt, ok := b.(MapType)
		return ok && at.ValueContainsNull == bt.ValueContainsNull &&
			Equal(at.Key, bt.Key) && Equal(at.Value, bt.Value)
	case *StructType:
		bt, ok := b.(*StructType)
		if !ok || len(at.Fields) != len(bt.Fields) {
			return false
		}
		for i := range at.Fields {
			af, bf := at.Fields[i], bt.Fields[i]
			if af.Name != bf.Name || af.Nullable != bf.Nullable || !Equal(af.Type, bf.Type) {
				return false
			}
		}
		return true
	default:
		// Atomic types are empty or comparable structs.
		return a == b
	}
}

// HasNullType reports whether any part of the type is still the
// unresolved NullType.
func HasNullType(dt DataType) bool {
	switch t := dt.(type) {
	case NullType:
		return true
	case ArrayType:
		return HasNullType(t.Element)
	case MapType:
		return HasNullType(t.Key) || HasNullType(t.Value)
	case *StructType:
		for _, f := range t.Fields {
			if HasNullType(f.Type) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
