package ionhash

import (
	"fmt"
	"math/big"
	"time"
)

// Type identifies the Ion type of a value.
type Type uint8

const (
	NoType Type = iota
	NullType
	BoolType
	IntType
	FloatType
	DecimalType
	TimestampType
	SymbolType
	StringType
	ClobType
	BlobType
	ListType
	SexpType
	StructType
)

// String returns the type name as it appears in Ion text (null.<name>).
func (t Type) String() string {
	switch t {
	case NoType:
		return "none"
	case NullType:
		return "null"
	case BoolType:
		return "bool"
	case IntType:
		return "int"
	case FloatType:
		return "float"
	case DecimalType:
		return "decimal"
	case TimestampType:
		return "timestamp"
	case SymbolType:
		return "symbol"
	case StringType:
		return "string"
	case ClobType:
		return "clob"
	case BlobType:
		return "blob"
	case ListType:
		return "list"
	case SexpType:
		return "sexp"
	case StructType:
		return "struct"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// IsContainer reports whether values of t can be stepped into.
func (t Type) IsContainer() bool {
	return t == ListType || t == SexpType || t == StructType
}

// EventKind identifies the kind of a structural event.
type EventKind uint8

const (
	EventNone EventKind = iota
	EventScalar
	EventContainerStart
	EventContainerEnd
	EventFieldName  // Standalone field name preceding a value
	EventAnnotation // Standalone annotation preceding a value
	EventStreamEnd
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case EventNone:
		return "NONE"
	case EventScalar:
		return "SCALAR"
	case EventContainerStart:
		return "CONTAINER_START"
	case EventContainerEnd:
		return "CONTAINER_END"
	case EventFieldName:
		return "FIELD_NAME"
	case EventAnnotation:
		return "ANNOTATION"
	case EventStreamEnd:
		return "STREAM_END"
	default:
		return "UNKNOWN"
	}
}

// SymbolToken is a symbol as read from a stream. Text is nil when the
// symbol's text is unknown (for example $0).
type SymbolToken struct {
	Text *string
	SID  int64
}

// NewSymbolToken returns a token with known text.
func NewSymbolToken(text string) SymbolToken {
	return SymbolToken{Text: &text, SID: -1}
}

// String returns the symbol text, or $sid when the text is unknown.
func (s SymbolToken) String() string {
	if s.Text != nil {
		return *s.Text
	}
	return fmt.Sprintf("$%d", s.SID)
}

// Decimal is an arbitrary-precision decimal: Coefficient * 10^Exponent.
// NegativeZero distinguishes -0dN from 0dN, which Ion treats as
// different values.
type Decimal struct {
	Coefficient  *big.Int
	Exponent     int32
	NegativeZero bool
}

// NewDecimal builds a decimal from an int64 coefficient.
func NewDecimal(coefficient int64, exponent int32) Decimal {
	return Decimal{Coefficient: big.NewInt(coefficient), Exponent: exponent}
}

// TimestampPrecision is the most precise component a timestamp carries.
type TimestampPrecision uint8

const (
	PrecisionYear TimestampPrecision = iota
	PrecisionMonth
	PrecisionDay
	PrecisionMinute
	PrecisionSecond
	PrecisionFraction
)

// OffsetKind describes how a timestamp's local offset is known.
type OffsetKind uint8

const (
	OffsetUnknown OffsetKind = iota // -00:00
	OffsetUTC                       // Z or +00:00
	OffsetLocal                     // any other explicit offset
)

// Timestamp is an Ion timestamp. Time holds the instant in its local
// offset; FractionDigits is the number of fractional second digits
// written (only meaningful with PrecisionFraction).
type Timestamp struct {
	Time           time.Time
	Precision      TimestampPrecision
	Offset         OffsetKind
	FractionDigits uint8
}

// OffsetMinutes returns the local offset from UTC in minutes.
func (ts Timestamp) OffsetMinutes() int {
	if ts.Offset != OffsetLocal {
		return 0
	}
	_, seconds := ts.Time.Zone()
	return seconds / 60
}

// Scalar holds the typed payload of a non-null scalar event. Only the
// field matching the event's Type is meaningful.
type Scalar struct {
	Bool      bool
	Int       *big.Int
	Float     float64
	Decimal   Decimal
	Timestamp Timestamp
	Text      string // string
	Symbol    SymbolToken
	Bytes     []byte // blob, clob
}

// Event is one structural event of a stream.
type Event struct {
	Kind        EventKind
	Type        Type
	Depth       int
	FieldName   *SymbolToken  // set for values inside a struct
	Annotations []SymbolToken // in declaration order
	IsNull      bool
	Value       Scalar
}

// IsTopLevelComplete reports whether e finishes a top-level value.
func (e Event) IsTopLevelComplete() bool {
	return e.Depth == 0 && (e.Kind == EventScalar || e.Kind == EventContainerEnd)
}

// String returns a short description for logs and test failures.
func (e Event) String() string {
	switch e.Kind {
	case EventScalar, EventContainerStart, EventContainerEnd:
		return fmt.Sprintf("%s(%s)@%d", e.Kind, e.Type, e.Depth)
	default:
		return fmt.Sprintf("%s@%d", e.Kind, e.Depth)
	}
}
