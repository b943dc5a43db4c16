package schema

import (
	perrors "github.com/ekrich/spark/pkg/errors"
)

// numericClass partitions the numeric atomics for promotion.
type numericClass int

const (
	classNone numericClass = iota
	classInteger
	classFloat
	classDecimal
)

func classify(dt DataType) (numericClass, int) {
	switch dt.(type) {
	case ByteType:
		return classInteger, 8
	case ShortType:
		return classInteger, 16
	case IntegerType:
		return classInteger, 32
	case LongType:
		return classInteger, 64
	case FloatType:
		return classFloat, 32
	case DoubleType:
		return classFloat, 64
	case DecimalType:
		return classDecimal, 0
	default:
		return classNone, 0
	}
}

func integerOfWidth(width int) DataType {
	switch {
	case width <= 8:
		return ByteType{}
	case width <= 16:
		return ShortType{}
	case width <= 32:
		return IntegerType{}
	default:
		return LongType{}
	}
}

// Merge combines two observed types for the same logical field into one
// type compatible with both observations. The operation is commutative for
// every pair it accepts: NullType is absorbed by the other side, numerics
// promote to the wider class, and struct/array/map merge recursively. Any
// other combination fails with CANNOT_MERGE_TYPE.
func Merge(a, b DataType) (DataType, error) {
	if Equal(a, b) {
		return a, nil
	}

	if _, ok := a.(NullType); ok {
		return b, nil
	}
	if _, ok := b.(NullType); ok {
		return a, nil
	}

	if dt, ok := mergeNumeric(a, b); ok {
		return dt, nil
	}

	switch at := a.(type) {
	case *StructType:
		if bt, ok := b.(*StructType); ok {
			return mergeStruct(at, bt)
		}
	case ArrayType:
		if bt, ok := b.(ArrayType); ok {
			elem, err := Merge(at.Element, bt.Element)
			if err != nil {
				return nil, err
			}
			return ArrayType{Element: elem, ContainsNull: at.ContainsNull || bt.ContainsNull}, nil
		}
	case MapType:
		if bt, ok := b.(MapType); ok {
			key, err := Merge(at.Key, bt.Key)
			if err != nil {
				return nil, err
			}
			value, err := Merge(at.Value, bt.Value)
			if err != nil {
				return nil, err
			}
			return MapType{
				Key:               key,
				Value:             value,
				ValueContainsNull: at.ValueContainsNull || bt.ValueContainsNull,
			}, nil
		}
	}

	return nil, perrors.NewCoded(perrors.ErrorTypeData, perrors.CodeCannotMergeType,
		"types cannot be merged").
		WithDetail("left", a.TypeName()).
		WithDetail("right", b.TypeName())
}

// mergeNumeric promotes two unequal numeric types. Integer pairs widen to
// the larger width; float pairs widen likewise. A mixed integer/float pair
// promotes to double so the result is independent of argument order and
// cannot silently lose 64-bit integer precision to a 32-bit float.
// Decimal absorbs integers; decimal against float promotes to double.
func mergeNumeric(a, b DataType) (DataType, bool) {
	ca, wa := classify(a)
	cb, wb := classify(b)
	if ca == classNone || cb == classNone {
		return nil, false
	}

	switch {
	case ca == classInteger && cb == classInteger:
		if wa > wb {
			return integerOfWidth(wa), true
		}
		return integerOfWidth(wb), true
	case ca == classFloat && cb == classFloat:
		if wa == 64 || wb == 64 {
			return DoubleType{}, true
		}
		return FloatType{}, true
	case ca == classDecimal && cb == classDecimal:
		da := a.(DecimalType)
		db := b.(DecimalType)
		scale := max(da.Scale, db.Scale)
		intDigits := max(da.Precision-da.Scale, db.Precision-db.Scale)
		return DecimalType{Precision: intDigits + scale, Scale: scale}, true
	case (ca == classDecimal && cb == classInteger) || (ca == classInteger && cb == classDecimal):
		if ca == classDecimal {
			return a, true
		}
		return b, true
	default:
		// Mixed integer/float, or decimal/float.
		return DoubleType{}, true
	}
}

// mergeStruct merges field-by-field by name. Field order is the left
// side's order with right-only fields appended in the order first seen; a
// field present on one side only, or null-typed on either side, becomes
// nullable.
func mergeStruct(a, b *StructType) (*StructType, error) {
	rightIdx := make(map[string]int, len(b.Fields))
	for i, f := range b.Fields {
		rightIdx[f.Name] = i
	}

	fields := make([]StructField, 0, len(a.Fields))
	for _, af := range a.Fields {
		bi, shared := rightIdx[af.Name]
		if !shared {
			fields = append(fields, StructField{Name: af.Name, Type: af.Type, Nullable: true})
			continue
		}
		bf := b.Fields[bi]
		merged, err := Merge(af.Type, bf.Type)
		if err != nil {
			return nil, err
		}
		nullable := af.Nullable || bf.Nullable || isNull(af.Type) || isNull(bf.Type)
		fields = append(fields, StructField{Name: af.Name, Type: merged, Nullable: nullable})
		delete(rightIdx, af.Name)
	}

	leftNames := make(map[string]struct{}, len(a.Fields))
	for _, f := range a.Fields {
		leftNames[f.Name] = struct{}{}
	}
	for _, bf := range b.Fields {
		if _, seen := leftNames[bf.Name]; seen {
			continue
		}
		fields = append(fields, StructField{Name: bf.Name, Type: bf.Type, Nullable: true})
	}

	return &StructType{Fields: fields}, nil
}

func isNull(dt DataType) bool {
	_, ok := dt.(NullType)
	return ok
}
