// Package ingest converts local in-memory data into a single Arrow record
// batch with a resolved schema. It accepts a column-oriented frame, a
// rank-1/2 numeric array, or a generic sequence of records, reconciles any
// caller-declared schema against the produced columns, and hands the
// resulting (table, schema) pair to the caller. The pipeline is a pure,
// synchronous, client-side transform: it performs no I/O and holds no
// state across calls.
package ingest

import (
	"reflect"
	"strconv"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"go.uber.org/zap"

	"github.com/ekrich/spark/pkg/config"
	perrors "github.com/ekrich/spark/pkg/errors"
	"github.com/ekrich/spark/pkg/frame"
	"github.com/ekrich/spark/pkg/schema"
)

// Session provides the two capabilities the pipeline consumes from the
// surrounding connection layer: configuration lookup and DDL parsing.
type Session interface {
	GetConfigs(keys ...string) ([]string, error)
	ParseDDL(ddl string) (schema.DataType, error)
}

// localSession backs Session with an in-memory config source and the
// client-side DDL parser. Tests and the CLI use it; a remote session can
// substitute its own analyzer.
type localSession struct {
	configs config.Source
}

// NewLocalSession creates a Session backed by the given config source.
func NewLocalSession(configs config.Source) Session {
	if configs == nil {
		configs = config.Defaults()
	}
	return &localSession{configs: configs}
}

func (s *localSession) GetConfigs(keys ...string) ([]string, error) {
	return s.configs.GetConfigs(keys...)
}

func (s *localSession) ParseDDL(ddl string) (schema.DataType, error) {
	return schema.ParseDDL(ddl)
}

// Table is the columnar result of ingestion: an Arrow record batch whose
// columns all share one length. It is owned exclusively by the caller
// once returned.
type Table struct {
	rec arrow.Record
}

// Record returns the underlying Arrow record batch.
func (t *Table) Record() arrow.Record { return t.rec }

// NumRows returns the row count.
func (t *Table) NumRows() int64 { return t.rec.NumRows() }

// NumCols returns the column count.
func (t *Table) NumCols() int { return int(t.rec.NumCols()) }

// ArrowSchema returns the Arrow schema of the table.
func (t *Table) ArrowSchema() *arrow.Schema { return t.rec.Schema() }

// Release releases the underlying Arrow buffers.
func (t *Table) Release() { t.rec.Release() }

// Pipeline is the ingestion entry point. It is stateless across calls and
// safe for concurrent use.
type Pipeline struct {
	session Session
	logger  *zap.Logger
	alloc   memory.Allocator
}

// NewPipeline creates a pipeline bound to a session.
func NewPipeline(session Session, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		session: session,
		logger:  logger,
		alloc:   memory.NewGoAllocator(),
	}
}

// CreateTable converts data into a columnar table plus a resolved schema.
//
// data must be one of *frame.Frame, *NDArray, or a slice of records
// (maps, positional slices, named-field structs, or bare scalars).
// schemaArg is optional and may be a schema.DataType (atomic or struct),
// a DDL string, or a []string of column names.
func (p *Pipeline) CreateTable(data interface{}, schemaArg interface{}) (*Table, *schema.StructType, error) {
	if data == nil {
		return nil, nil, perrors.NewCoded(perrors.ErrorTypeValidation, perrors.CodeInvalidType,
			"data must not be nil")
	}

	// A produced table fed back in is always a caller bug.
	switch data.(type) {
	case *Table, Table, arrow.Record:
		return nil, nil, perrors.NewCoded(perrors.ErrorTypeValidation, perrors.CodeInvalidType,
			"data must not be an already-created table").
			WithDetail("arg_name", "data")
	}

	declared, cols, numCols, err := p.resolveSchemaArg(schemaArg)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.ResolveIngest(p.session)
	if err != nil {
		return nil, nil, err
	}

	if nd, ok := data.(*NDArray); ok {
		if r := nd.Rank(); r != 1 && r != 2 {
			return nil, nil, perrors.NewCoded(perrors.ErrorTypeValidation,
				perrors.CodeInvalidNDArrayDimension,
				"NDArray input should have dimensions 1 or 2").
				WithDetail("dimensions", strconv.Itoa(r))
		}
	}

	size, sized := sizeOf(data)
	if sized && size == 0 {
		if declared != nil {
			st := structOrWrap(declared)
			tbl, err := p.buildEmptyTable(st, cfg.SessionTimeZone)
			if err != nil {
				return nil, nil, err
			}
			return tbl, st, nil
		}
		return nil, nil, perrors.NewCoded(perrors.ErrorTypeValidation,
			perrors.CodeCannotInferEmptySchema,
			"can not infer schema from empty dataset")
	}

	var (
		tbl      *Table
		resolved *schema.StructType
		colsOut  []string
	)

	switch d := data.(type) {
	case *frame.Frame:
		tbl, resolved, colsOut, err = p.fromFrame(d, declared, cols, cfg)
		if err != nil {
			return nil, nil, err
		}
		// A short name list was padded with synthetic names; the count
		// guard tracks the padded list.
		if cols != nil {
			numCols = len(colsOut)
		}
	case *NDArray:
		tbl, resolved, err = p.fromNDArray(d, declared, cols, cfg)
		if err != nil {
			return nil, nil, err
		}
		// Column naming in the array adapter is authoritative.
		colsOut = nil
	default:
		records, ok := materialize(data)
		if !ok {
			return nil, nil, perrors.NewCoded(perrors.ErrorTypeValidation, perrors.CodeInvalidType,
				"data must be a frame, an ndarray, or a sequence of records").
				WithDetail("go_type", reflect.TypeOf(data).String())
		}
		tbl, resolved, err = p.fromRecords(records, declared, cols, cfg)
		if err != nil {
			return nil, nil, err
		}
		colsOut = cols
	}

	tbl, resolved, err = p.reconcile(tbl, resolved, numCols, colsOut)
	if err != nil {
		return nil, nil, err
	}

	p.logger.Debug("created local table",
		zap.Int64("rows", tbl.NumRows()),
		zap.Int("columns", tbl.NumCols()),
		zap.String("schema", resolved.TypeName()))
	return tbl, resolved, nil
}

// resolveSchemaArg decodes the polymorphic schema argument into a
// declared type, an optional column-name list, and the expected column
// count (-1 when unconstrained).
func (p *Pipeline) resolveSchemaArg(schemaArg interface{}) (schema.DataType, []string, int, error) {
	switch s := schemaArg.(type) {
	case nil:
		return nil, nil, -1, nil
	case string:
		parsed, err := p.session.ParseDDL(s)
		if err != nil {
			return nil, nil, 0, err
		}
		return parsed, nil, expectedColumns(parsed), nil
	case []string:
		names := make([]string, len(s))
		copy(names, s)
		return nil, names, len(names), nil
	case schema.DataType:
		return s, nil, expectedColumns(s), nil
	default:
		return nil, nil, 0, perrors.NewCoded(perrors.ErrorTypeValidation, perrors.CodeInvalidType,
			"schema must be a data type, a DDL string, or a list of column names").
			WithDetail("go_type", reflect.TypeOf(schemaArg).String())
	}
}

func expectedColumns(dt schema.DataType) int {
	if st, ok := dt.(*schema.StructType); ok {
		return len(st.Fields)
	}
	return 1
}

// structOrWrap wraps a non-struct declared type as struct<value: T>.
func structOrWrap(dt schema.DataType) *schema.StructType {
	if st, ok := dt.(*schema.StructType); ok {
		return st
	}
	return schema.NewStructType(schema.StructField{Name: "value", Type: dt, Nullable: true})
}

// reconcile is the single final guard applied regardless of which adapter
// ran: it validates the expected column count and applies a positional
// rename when the caller supplied bare column names. Reconciling an
// already-consistent pair is a no-op.
func (p *Pipeline) reconcile(tbl *Table, resolved *schema.StructType, numCols int, cols []string) (*Table, *schema.StructType, error) {
	if numCols >= 0 && numCols != tbl.NumCols() {
		return nil, nil, axisLengthMismatch(numCols, tbl.NumCols())
	}

	if len(cols) == 0 {
		return tbl, resolved, nil
	}

	renamed := make([]schema.StructField, len(resolved.Fields))
	copy(renamed, resolved.Fields)
	changed := false
	for i := range renamed {
		if i < len(cols) && renamed[i].Name != cols[i] {
			renamed[i].Name = cols[i]
			changed = true
		}
	}
	if !changed {
		return tbl, resolved, nil
	}

	old := tbl.rec.Schema()
	fields := make([]arrow.Field, old.NumFields())
	for i := 0; i < old.NumFields(); i++ {
		fields[i] = old.Field(i)
		if i < len(cols) {
			fields[i].Name = cols[i]
		}
	}
	newSchema := arrow.NewSchema(fields, nil)

	columns := make([]arrow.Array, tbl.NumCols())
	for i := range columns {
		columns[i] = tbl.rec.Column(i)
	}
	rec := array.NewRecord(newSchema, columns, tbl.NumRows())
	tbl.rec.Release()

	return &Table{rec: rec}, &schema.StructType{Fields: renamed}, nil
}

func axisLengthMismatch(expected, actual int) *perrors.Error {
	return perrors.NewCoded(perrors.ErrorTypeValidation, perrors.CodeAxisLengthMismatch,
		"length of columns does not match length of produced columns").
		WithDetail("expected_length", expected).
		WithDetail("actual_length", actual)
}

// buildEmptyTable produces a zero-row table for a declared schema.
func (p *Pipeline) buildEmptyTable(st *schema.StructType, timezone string) (*Table, error) {
	arrowSchema, err := schema.ToArrowSchema(st, timezone)
	if err != nil {
		return nil, err
	}
	rb := array.NewRecordBuilder(p.alloc, arrowSchema)
	defer rb.Release()
	return &Table{rec: rb.NewRecord()}, nil
}

// sizeOf reports the element count of sized inputs.
func sizeOf(data interface{}) (int, bool) {
	switch d := data.(type) {
	case *frame.Frame:
		return d.NumRows(), true
	case *NDArray:
		return d.NumRows(), true
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		return rv.Len(), true
	}
	return 0, false
}

// materialize copies any slice input into a []interface{} so the
// multi-pass record adapter can normalize, infer, and build.
func materialize(data interface{}) ([]interface{}, bool) {
	if recs, ok := data.([]interface{}); ok {
		out := make([]interface{}, len(recs))
		copy(out, recs)
		return out, true
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]interface{}, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
