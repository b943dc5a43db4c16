package schema

import (
	"strconv"
	"strings"
	"unicode"

	perrors "github.com/ekrich/spark/pkg/errors"
)

// ParseDDL parses a textual schema declaration into a DataType. Both the
// canonical nested form ("struct<a:bigint,b:array<string>>") and the
// top-level field-list form ("a BIGINT, b STRING") are accepted, as is a
// bare type name ("int"). Type names are case-insensitive.
func ParseDDL(ddl string) (DataType, error) {
	p := &ddlParser{input: ddl}
	p.skipSpace()
	if p.eof() {
		return nil, p.errorf("empty DDL string")
	}

	// A field-list ("name type, ...") is distinguished from a bare type by
	// what follows the first identifier. Type words are not reserved, so a
	// leading known type followed by another identifier ("date string") is
	// still a field list; "interval" is the one multi-word bare type.
	save := p.pos
	first := p.ident()
	p.skipSpace()
	if first != "" && !p.eof() && p.peek() != '<' && p.peek() != '(' && p.peek() != ',' {
		if !isKnownType(first) || (p.identAhead() && !strings.EqualFold(first, "interval")) {
			p.pos = save
			return p.parseFieldList('\x00')
		}
	}
	p.pos = save

	dt, err := p.parseType()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.peek() == ',' {
		// "int, string" style positional lists are not a schema.
		return nil, p.errorf("unexpected ',' after type %s", dt.TypeName())
	}
	if !p.eof() {
		return nil, p.errorf("trailing input at offset %d", p.pos)
	}
	return dt, nil
}

type ddlParser struct {
	input string
	pos   int
}

func (p *ddlParser) errorf(format string, args ...interface{}) error {
	return perrors.Newf(perrors.ErrorTypeValidation, "cannot parse DDL %q: "+format,
		append([]interface{}{p.input}, args...)...)
}

func (p *ddlParser) eof() bool { return p.pos >= len(p.input) }

func (p *ddlParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.input[p.pos]
}

func (p *ddlParser) skipSpace() {
	for !p.eof() && unicode.IsSpace(rune(p.input[p.pos])) {
		p.pos++
	}
}

func (p *ddlParser) expect(c byte) error {
	p.skipSpace()
	if p.peek() != c {
		return p.errorf("expected %q at offset %d", string(c), p.pos)
	}
	p.pos++
	return nil
}

// identAhead reports whether the next token starts an identifier.
func (p *ddlParser) identAhead() bool {
	c := p.peek()
	return c == '`' || c == '_' || unicode.IsLetter(rune(c))
}

// ident reads an identifier or backquoted name.
func (p *ddlParser) ident() string {
	p.skipSpace()
	if p.peek() == '`' {
		end := strings.IndexByte(p.input[p.pos+1:], '`')
		if end < 0 {
			return ""
		}
		name := p.input[p.pos+1 : p.pos+1+end]
		p.pos += end + 2
		return name
	}
	start := p.pos
	for !p.eof() {
		c := rune(p.input[p.pos])
		if unicode.IsLetter(c) || unicode.IsDigit(c) || c == '_' {
			p.pos++
			continue
		}
		break
	}
	return p.input[start:p.pos]
}

func (p *ddlParser) parseInt() (int, error) {
	p.skipSpace()
	start := p.pos
	for !p.eof() && unicode.IsDigit(rune(p.input[p.pos])) {
		p.pos++
	}
	if start == p.pos {
		return 0, p.errorf("expected integer at offset %d", start)
	}
	n, err := strconv.Atoi(p.input[start:p.pos])
	if err != nil {
		return 0, p.errorf("invalid integer at offset %d", start)
	}
	return n, nil
}

var atomicTypes = map[string]DataType{
	"void":          NullType{},
	"null":          NullType{},
	"boolean":       BooleanType{},
	"bool":          BooleanType{},
	"tinyint":       ByteType{},
	"byte":          ByteType{},
	"smallint":      ShortType{},
	"short":         ShortType{},
	"int":           IntegerType{},
	"integer":       IntegerType{},
	"bigint":        LongType{},
	"long":          LongType{},
	"float":         FloatType{},
	"real":          FloatType{},
	"double":        DoubleType{},
	"string":        StringType{},
	"binary":        BinaryType{},
	"date":          DateType{},
	"timestamp":     TimestampType{},
	"timestamp_ltz": TimestampType{},
	"timestamp_ntz": TimestampNTZType{},
}

func isKnownType(name string) bool {
	lower := strings.ToLower(name)
	if _, ok := atomicTypes[lower]; ok {
		return true
	}
	switch lower {
	case "array", "map", "struct", "decimal", "dec", "numeric", "interval":
		return true
	}
	return false
}

func (p *ddlParser) parseType() (DataType, error) {
	name := strings.ToLower(p.ident())
	switch name {
	case "":
		return nil, p.errorf("expected type at offset %d", p.pos)
	case "array":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		elem, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return ArrayType{Element: elem, ContainsNull: true}, nil
	case "map":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		key, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect(','); err != nil {
			return nil, err
		}
		value, err := p.parseType()
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return MapType{Key: key, Value: value, ValueContainsNull: true}, nil
	case "struct":
		if err := p.expect('<'); err != nil {
			return nil, err
		}
		st, err := p.parseFieldList('>')
		if err != nil {
			return nil, err
		}
		if err := p.expect('>'); err != nil {
			return nil, err
		}
		return st, nil
	case "decimal", "dec", "numeric":
		p.skipSpace()
		if p.peek() != '(' {
			return DecimalType{Precision: 10, Scale: 0}, nil
		}
		p.pos++
		precision, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		scale := 0
		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			if scale, err = p.parseInt(); err != nil {
				return nil, err
			}
		}
		if err := p.expect(')'); err != nil {
			return nil, err
		}
		return DecimalType{Precision: precision, Scale: scale}, nil
	case "interval":
		for _, word := range []string{"day", "to", "second"} {
			if strings.ToLower(p.ident()) != word {
				return nil, p.errorf("only 'interval day to second' is supported")
			}
		}
		return DayTimeIntervalType{}, nil
	default:
		if dt, ok := atomicTypes[name]; ok {
			return dt, nil
		}
		return nil, p.errorf("unknown type %q", name)
	}
}

// parseFieldList parses "name type" or "name: type" fields separated by
// commas, until end-of-input or the terminator byte.
func (p *ddlParser) parseFieldList(term byte) (*StructType, error) {
	var fields []StructField
	for {
		name := p.ident()
		if name == "" {
			return nil, p.errorf("expected field name at offset %d", p.pos)
		}
		p.skipSpace()
		if p.peek() == ':' {
			p.pos++
		}
		dt, err := p.parseType()
		if err != nil {
			return nil, err
		}
		p.skipSpace()

		nullable := true
		// Optional "NOT NULL" suffix in the field-list form.
		save := p.pos
		if strings.EqualFold(p.ident(), "not") && strings.EqualFold(p.ident(), "null") {
			nullable = false
		} else {
			p.pos = save
		}

		fields = append(fields, StructField{Name: name, Type: dt, Nullable: nullable})

		p.skipSpace()
		if p.peek() == ',' {
			p.pos++
			continue
		}
		if p.eof() || p.peek() == term {
			return &StructType{Fields: fields}, nil
		}
		return nil, p.errorf("unexpected input at offset %d", p.pos)
	}
}
