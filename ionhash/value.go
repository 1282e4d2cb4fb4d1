package ionhash

import (
	"math/big"
	"time"
)

// Value is an in-memory Ion value. It exists so callers that already
// hold a value (and the tests) can feed the Hasher without a parser.
type Value struct {
	typ         Type
	isNull      bool
	scalar      Scalar
	annotations []SymbolToken

	elems  []*Value // list, sexp
	fields []Field  // struct, in insertion order
}

// Field is one struct field. Struct fields keep the order they were
// added in; hashing sorts them independently.
type Field struct {
	Name  SymbolToken
	Value *Value
}

// F builds a field with a known name.
func F(name string, v *Value) Field {
	return Field{Name: NewSymbolToken(name), Value: v}
}

// ============================================================
// Constructors
// ============================================================

// Null returns the untyped null.
func Null() *Value {
	return &Value{typ: NullType, isNull: true}
}

// TypedNull returns null.<t>.
func TypedNull(t Type) *Value {
	return &Value{typ: t, isNull: true}
}

// Bool returns a bool value.
func Bool(b bool) *Value {
	return &Value{typ: BoolType, scalar: Scalar{Bool: b}}
}

// Int returns an int value.
func Int(n int64) *Value {
	return &Value{typ: IntType, scalar: Scalar{Int: big.NewInt(n)}}
}

// BigInt returns an int value of arbitrary size.
func BigInt(n *big.Int) *Value {
	return &Value{typ: IntType, scalar: Scalar{Int: new(big.Int).Set(n)}}
}

// Float returns a float value.
func Float(f float64) *Value {
	return &Value{typ: FloatType, scalar: Scalar{Float: f}}
}

// DecimalValue returns a decimal value.
func DecimalValue(d Decimal) *Value {
	return &Value{typ: DecimalType, scalar: Scalar{Decimal: d}}
}

// TimestampValue returns a timestamp value.
func TimestampValue(ts Timestamp) *Value {
	return &Value{typ: TimestampType, scalar: Scalar{Timestamp: ts}}
}

// UTCTimestamp is a convenience for a second-precision UTC timestamp.
func UTCTimestamp(t time.Time) *Value {
	return TimestampValue(Timestamp{Time: t.UTC(), Precision: PrecisionSecond, Offset: OffsetUTC})
}

// String returns a string value.
func String(s string) *Value {
	return &Value{typ: StringType, scalar: Scalar{Text: s}}
}

// Symbol returns a symbol value with known text.
func Symbol(s string) *Value {
	return &Value{typ: SymbolType, scalar: Scalar{Symbol: NewSymbolToken(s)}}
}

// SymbolID returns a symbol value with unknown text.
func SymbolID(sid int64) *Value {
	return &Value{typ: SymbolType, scalar: Scalar{Symbol: SymbolToken{SID: sid}}}
}

// Blob returns a blob value.
func Blob(b []byte) *Value {
	return &Value{typ: BlobType, scalar: Scalar{Bytes: b}}
}

// Clob returns a clob value.
func Clob(b []byte) *Value {
	return &Value{typ: ClobType, scalar: Scalar{Bytes: b}}
}

// List returns a list of the given elements.
func List(elems ...*Value) *Value {
	return &Value{typ: ListType, elems: elems}
}

// Sexp returns an s-expression of the given elements.
func Sexp(elems ...*Value) *Value {
	return &Value{typ: SexpType, elems: elems}
}

// Struct returns a struct with the given fields in that order.
func Struct(fields ...Field) *Value {
	return &Value{typ: StructType, fields: fields}
}

// Annotate returns a copy of v carrying the given annotations.
func Annotate(v *Value, annotations ...string) *Value {
	out := *v
	out.annotations = make([]SymbolToken, 0, len(v.annotations)+len(annotations))
	out.annotations = append(out.annotations, v.annotations...)
	for _, a := range annotations {
		out.annotations = append(out.annotations, NewSymbolToken(a))
	}
	return &out
}

// ============================================================
// Accessors
// ============================================================

// Type returns the value's type.
func (v *Value) Type() Type { return v.typ }

// IsNull reports whether v is a (possibly typed) null.
func (v *Value) IsNull() bool { return v.isNull }

// Fields returns struct fields in insertion order.
func (v *Value) Fields() []Field { return v.fields }

// Elems returns list or sexp elements.
func (v *Value) Elems() []*Value { return v.elems }

// Annotations returns the value's annotations in declaration order.
func (v *Value) Annotations() []SymbolToken { return v.annotations }

// Scalar returns the payload of a non-null scalar.
func (v *Value) Scalar() Scalar { return v.scalar }

// ============================================================
// Collect
// ============================================================

// Collect drains src into in-memory values. It is meant for small
// documents such as test fixtures; hashing never needs it.
func Collect(src EventSource) ([]*Value, error) {
	var (
		out   []*Value
		stack []*Value
		names []*SymbolToken
	)
	add := func(v *Value, name *SymbolToken) error {
		if len(stack) == 0 {
			out = append(out, v)
			return nil
		}
		parent := stack[len(stack)-1]
		if parent.typ == StructType {
			if name == nil {
				return malformed(len(stack), "struct field without a name")
			}
			parent.fields = append(parent.fields, Field{Name: *name, Value: v})
			return nil
		}
		parent.elems = append(parent.elems, v)
		return nil
	}

	for {
		ev, err := src.Next()
		if err != nil {
			return out, err
		}
		switch ev.Kind {
		case EventScalar:
			v := &Value{typ: ev.Type, isNull: ev.IsNull || ev.Type == NullType, scalar: ev.Value, annotations: ev.Annotations}
			if err := add(v, ev.FieldName); err != nil {
				return out, err
			}
		case EventContainerStart:
			stack = append(stack, &Value{typ: ev.Type, annotations: ev.Annotations})
			names = append(names, ev.FieldName)
		case EventContainerEnd:
			if len(stack) == 0 {
				return out, malformed(0, "container end with no open container")
			}
			v, name := stack[len(stack)-1], names[len(names)-1]
			stack, names = stack[:len(stack)-1], names[:len(names)-1]
			if err := add(v, name); err != nil {
				return out, err
			}
		case EventStreamEnd:
			if len(stack) != 0 {
				return out, malformed(len(stack), "stream ended inside a %s", stack[len(stack)-1].typ)
			}
			return out, nil
		default:
			return out, malformed(len(stack), "unexpected event kind %s", ev.Kind)
		}
	}
}

// ============================================================
// ValueSource
// ============================================================

// valueFrame is a container being walked.
type valueFrame struct {
	v    *Value
	next int
}

// ValueSource emits the events of in-memory values as if they had been
// parsed from a stream.
type ValueSource struct {
	values []*Value
	next   int
	stack  []valueFrame
	ended  bool
}

// NewValueSource returns a source over the given top-level values.
func NewValueSource(values ...*Value) *ValueSource {
	return &ValueSource{values: values}
}

// Next returns the next event.
func (s *ValueSource) Next() (Event, error) {
	if s.ended {
		return Event{}, ErrSourceExhausted
	}

	depth := len(s.stack)
	if depth == 0 {
		if s.next >= len(s.values) {
			s.ended = true
			return Event{Kind: EventStreamEnd}, nil
		}
		v := s.values[s.next]
		s.next++
		return s.enter(v, nil, 0), nil
	}

	top := &s.stack[depth-1]
	switch top.v.typ {
	case StructType:
		if top.next < len(top.v.fields) {
			f := top.v.fields[top.next]
			top.next++
			name := f.Name
			return s.enter(f.Value, &name, depth), nil
		}
	default:
		if top.next < len(top.v.elems) {
			v := top.v.elems[top.next]
			top.next++
			return s.enter(v, nil, depth), nil
		}
	}

	s.stack = s.stack[:depth-1]
	return Event{Kind: EventContainerEnd, Type: top.v.typ, Depth: depth - 1}, nil
}

func (s *ValueSource) enter(v *Value, fieldName *SymbolToken, depth int) Event {
	ev := Event{
		Kind:        EventScalar,
		Type:        v.typ,
		Depth:       depth,
		FieldName:   fieldName,
		Annotations: v.annotations,
		IsNull:      v.isNull,
		Value:       v.scalar,
	}
	if v.typ.IsContainer() && !v.isNull {
		ev.Kind = EventContainerStart
		s.stack = append(s.stack, valueFrame{v: v})
	}
	return ev
}
