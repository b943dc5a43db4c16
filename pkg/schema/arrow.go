package schema

import (
	"github.com/apache/arrow-go/v18/arrow"

	perrors "github.com/ekrich/spark/pkg/errors"
)

// ToArrowType converts a semantic type to its canonical Arrow encoding.
// TimestampType carries the session time zone; TimestampNTZType encodes
// with no zone. Types without an Arrow encoding fail with
// UNSUPPORTED_DATA_TYPE_FOR_ARROW.
func ToArrowType(dt DataType, timezone string) (arrow.DataType, error) {
	switch t := dt.(type) {
	case NullType:
		return arrow.Null, nil
	case BooleanType:
		return arrow.FixedWidthTypes.Boolean, nil
	case ByteType:
		return arrow.PrimitiveTypes.Int8, nil
	case ShortType:
		return arrow.PrimitiveTypes.Int16, nil
	case IntegerType:
		return arrow.PrimitiveTypes.Int32, nil
	case LongType:
		return arrow.PrimitiveTypes.Int64, nil
	case FloatType:
		return arrow.PrimitiveTypes.Float32, nil
	case DoubleType:
		return arrow.PrimitiveTypes.Float64, nil
	case DecimalType:
		return &arrow.Decimal128Type{Precision: int32(t.Precision), Scale: int32(t.Scale)}, nil
	case StringType:
		return arrow.BinaryTypes.String, nil
	case BinaryType:
		return arrow.BinaryTypes.Binary, nil
	case DateType:
		return arrow.FixedWidthTypes.Date32, nil
	case TimestampType:
		return &arrow.TimestampType{Unit: arrow.Microsecond, TimeZone: timezone}, nil
	case TimestampNTZType:
		return &arrow.TimestampType{Unit: arrow.Microsecond}, nil
	case DayTimeIntervalType:
		return &arrow.DurationType{Unit: arrow.Microsecond}, nil
	case ArrayType:
		elem, err := ToArrowType(t.Element, timezone)
		if err != nil {
			return nil, err
		}
		return arrow.ListOfField(arrow.Field{
			Name:     "item",
			Type:     elem,
			Nullable: t.ContainsNull,
		}), nil
	case MapType:
		key, err := ToArrowType(t.Key, timezone)
		if err != nil {
			return nil, err
		}
		value, err := ToArrowType(t.Value, timezone)
		if err != nil {
			return nil, err
		}
		m := arrow.MapOf(key, value)
		m.SetItemNullable(t.ValueContainsNull)
		return m, nil
	case *StructType:
		fields, err := toArrowFields(t, timezone)
		if err != nil {
			return nil, err
		}
		return arrow.StructOf(fields...), nil
	default:
		return nil, perrors.NewCoded(perrors.ErrorTypeCapability,
			perrors.CodeUnsupportedDataTypeForArrow,
			"data type has no Arrow encoding").
			WithDetail("data_type", dt.TypeName())
	}
}

// ToArrowSchema converts a struct schema to an Arrow schema.
func ToArrowSchema(st *StructType, timezone string) (*arrow.Schema, error) {
	fields, err := toArrowFields(st, timezone)
	if err != nil {
		return nil, err
	}
	return arrow.NewSchema(fields, nil), nil
}

func toArrowFields(st *StructType, timezone string) ([]arrow.Field, error) {
	fields := make([]arrow.Field, 0, len(st.Fields))
	for _, f := range st.Fields {
		at, err := ToArrowType(f.Type, timezone)
		if err != nil {
			return nil, perrors.Wrap(err, perrors.ErrorTypeCapability,
				"field "+f.Name+" cannot be encoded")
		}
		fields = append(fields, arrow.Field{Name: f.Name, Type: at, Nullable: f.Nullable})
	}
	return fields, nil
}
