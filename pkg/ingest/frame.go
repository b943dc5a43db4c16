package ingest

import (
	"fmt"

	"github.com/apache/arrow-go/v18/arrow/array"

	"github.com/ekrich/spark/pkg/config"
	perrors "github.com/ekrich/spark/pkg/errors"
	"github.com/ekrich/spark/pkg/frame"
	"github.com/ekrich/spark/pkg/schema"
)

// fromFrame converts a column-oriented frame. Column names are taken
// from the declared schema when present, otherwise from the caller's
// name list (padded with synthetic names when short), otherwise from the
// frame itself. Returns the possibly padded name list so the caller can
// track the final expected column count.
func (p *Pipeline) fromFrame(f *frame.Frame, declared schema.DataType, cols []string, cfg config.Ingest) (*Table, *schema.StructType, []string, error) {
	var declaredStruct *schema.StructType
	if declared != nil {
		st, ok := declared.(*schema.StructType)
		if !ok {
			return nil, nil, nil, perrors.NewCoded(perrors.ErrorTypeCapability,
				perrors.CodeUnsupportedDataTypeForArrow,
				"single data type is not supported with frame input").
				WithDetail("data_type", declared.TypeName())
		}
		if len(st.Fields) != f.NumCols() {
			return nil, nil, nil, axisLengthMismatch(len(st.Fields), f.NumCols())
		}
		declaredStruct = st
	}

	if cols != nil {
		cols = padColumnNames(cols, f.NumCols())
	}

	resolved, err := p.resolveFrameSchema(f, declaredStruct, cols, cfg)
	if err != nil {
		return nil, nil, nil, err
	}
	if declaredStruct == nil && schema.HasNullType(resolved) {
		return nil, nil, nil, perrors.NewCoded(perrors.ErrorTypeData,
			perrors.CodeCannotDetermineType,
			"some of types cannot be determined after inferring").
			WithDetail("schema", resolved.TypeName())
	}

	arrowSchema, err := schema.ToArrowSchema(resolved, cfg.SessionTimeZone)
	if err != nil {
		return nil, nil, nil, err
	}

	rb := array.NewRecordBuilder(p.alloc, arrowSchema)
	defer rb.Release()

	for i, field := range resolved.Fields {
		col := f.Column(i)
		for _, v := range col.Values {
			if v == nil && !field.Nullable {
				return nil, nil, nil, perrors.Newf(perrors.ErrorTypeData,
					"field %q does not allow null values", field.Name)
			}
			if err := appendValue(rb.Field(i), field.Type, v, cfg.SafeArrowCast); err != nil {
				return nil, nil, nil, perrors.Wrap(err, perrors.ErrorTypeData,
					fmt.Sprintf("column %q", col.Name))
			}
		}
	}

	return &Table{rec: rb.NewRecord()}, resolved, cols, nil
}

// padColumnNames extends a short name list with "_<k>" fillers, counting
// from the first unused 1-based position.
func padColumnNames(cols []string, width int) []string {
	out := make([]string, 0, width)
	out = append(out, cols...)
	for i := len(cols); i < width; i++ {
		out = append(out, fmt.Sprintf("_%d", i+1))
	}
	return out
}

// resolveFrameSchema determines the target type of every frame column.
// Typed storage maps directly; object columns go through value-level
// inference over their non-null values.
func (p *Pipeline) resolveFrameSchema(f *frame.Frame, declared *schema.StructType, cols []string, cfg config.Ingest) (*schema.StructType, error) {
	if declared != nil {
		return declared, nil
	}

	fields := make([]schema.StructField, f.NumCols())
	for i := 0; i < f.NumCols(); i++ {
		col := f.Column(i)
		name := col.Name
		if cols != nil {
			name = cols[i]
		}
		dt, err := p.frameColumnType(col, cfg)
		if err != nil {
			return nil, perrors.Wrap(err, perrors.ErrorTypeData,
				fmt.Sprintf("column %q", col.Name))
		}
		fields[i] = schema.StructField{Name: name, Type: dt, Nullable: true}
	}
	return &schema.StructType{Fields: fields}, nil
}

func (p *Pipeline) frameColumnType(col frame.Column, cfg config.Ingest) (schema.DataType, error) {
	switch col.Kind {
	case frame.KindBool:
		return schema.BooleanType{}, nil
	case frame.KindInt64:
		return schema.LongType{}, nil
	case frame.KindFloat64:
		return schema.DoubleType{}, nil
	case frame.KindString:
		return schema.StringType{}, nil
	case frame.KindBinary:
		return schema.BinaryType{}, nil
	case frame.KindDatetime:
		if cfg.PreferTimestampNTZ {
			return schema.TimestampNTZType{}, nil
		}
		return schema.TimestampType{}, nil
	case frame.KindTimedelta:
		return schema.DayTimeIntervalType{}, nil
	}

	// Object storage: infer from the values themselves.
	inf := schema.NewInferencer(schema.InferOptions{
		InferDictAsStruct:          cfg.InferDictAsStruct,
		InferArrayFromFirstElement: cfg.InferArrayFromFirstElement,
		PreferTimestampNTZ:         cfg.PreferTimestampNTZ,
	}, p.logger)
	rows := make([]interface{}, len(col.Values))
	for i, v := range col.Values {
		rows[i] = []interface{}{v}
	}
	st, err := inf.InferSchema(rows, []string{col.Name})
	if err != nil {
		return nil, err
	}
	return st.Fields[0].Type, nil
}
