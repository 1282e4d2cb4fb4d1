// Package ionsrc adapts ion-go readers into ionhash event sources.
//
// The physical syntax is detected from the input: a binary version
// marker selects the binary reader, anything else is read as text. Both
// produce the same events for the same logical values.
package ionsrc

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/amzn/ion-go/ion"

	"github.com/Neumenon/ionhash/ionhash"
)

// ErrRead wraps every error reported by the underlying Ion reader.
var ErrRead = errors.New("ionsrc: read")

// Source is an ionhash.EventSource backed by an ion.Reader.
type Source struct {
	r     ion.Reader
	stack []ionhash.Type
	ended bool
}

// New reads Ion (text or binary) from r.
func New(r io.Reader) *Source {
	return FromReader(ion.NewReader(r))
}

// NewBytes reads Ion (text or binary) from b.
func NewBytes(b []byte) *Source {
	return FromReader(ion.NewReaderBytes(b))
}

// NewString reads Ion text from s.
func NewString(s string) *Source {
	return FromReader(ion.NewReaderString(s))
}

// FromReader wraps an existing reader positioned before its first value.
func FromReader(r ion.Reader) *Source {
	return &Source{r: r}
}

// Next returns the next event. Containers are stepped into as soon as
// their start event is produced.
func (s *Source) Next() (ionhash.Event, error) {
	if s.ended {
		return ionhash.Event{}, ionhash.ErrSourceExhausted
	}

	depth := len(s.stack)
	if !s.r.Next() {
		if err := s.r.Err(); err != nil {
			return ionhash.Event{}, fmt.Errorf("%w: %w", ErrRead, err)
		}
		if depth == 0 {
			s.ended = true
			return ionhash.Event{Kind: ionhash.EventStreamEnd}, nil
		}
		if err := s.r.StepOut(); err != nil {
			return ionhash.Event{}, fmt.Errorf("%w: step out: %w", ErrRead, err)
		}
		typ := s.stack[depth-1]
		s.stack = s.stack[:depth-1]
		return ionhash.Event{Kind: ionhash.EventContainerEnd, Type: typ, Depth: depth - 1}, nil
	}

	ev, err := s.current(depth)
	if err != nil {
		return ionhash.Event{}, err
	}
	if ev.Kind == ionhash.EventContainerStart {
		if err := s.r.StepIn(); err != nil {
			return ionhash.Event{}, fmt.Errorf("%w: step in: %w", ErrRead, err)
		}
		s.stack = append(s.stack, ev.Type)
	}
	return ev, nil
}

// current builds the event for the value the reader is positioned on.
func (s *Source) current(depth int) (ionhash.Event, error) {
	ev := ionhash.Event{
		Kind:   ionhash.EventScalar,
		Type:   convertType(s.r.Type()),
		Depth:  depth,
		IsNull: s.r.IsNull(),
	}

	annotations, err := s.r.Annotations()
	if err != nil {
		return ev, fmt.Errorf("%w: annotations: %w", ErrRead, err)
	}
	for _, a := range annotations {
		ev.Annotations = append(ev.Annotations, convertSymbol(a))
	}

	if depth > 0 && s.stack[depth-1] == ionhash.StructType {
		name, err := s.r.FieldName()
		if err != nil {
			return ev, fmt.Errorf("%w: field name: %w", ErrRead, err)
		}
		if name != nil {
			tok := convertSymbol(*name)
			ev.FieldName = &tok
		}
	}

	if ev.IsNull {
		return ev, nil
	}
	if ev.Type.IsContainer() {
		ev.Kind = ionhash.EventContainerStart
		return ev, nil
	}
	if err := s.readScalar(&ev); err != nil {
		return ev, fmt.Errorf("%w: %s value: %w", ErrRead, ev.Type, err)
	}
	return ev, nil
}

func (s *Source) readScalar(ev *ionhash.Event) error {
	switch ev.Type {
	case ionhash.BoolType:
		b, err := s.r.BoolValue()
		if err != nil {
			return err
		}
		ev.Value.Bool = b != nil && *b

	case ionhash.IntType:
		n, err := s.r.BigIntValue()
		if err != nil {
			return err
		}
		ev.Value.Int = n

	case ionhash.FloatType:
		f, err := s.r.FloatValue()
		if err != nil {
			return err
		}
		if f != nil {
			ev.Value.Float = *f
		}

	case ionhash.DecimalType:
		d, err := s.r.DecimalValue()
		if err != nil {
			return err
		}
		if d != nil {
			ev.Value.Decimal = convertDecimal(d)
		}

	case ionhash.TimestampType:
		ts, err := s.r.TimestampValue()
		if err != nil {
			return err
		}
		if ts != nil {
			ev.Value.Timestamp = convertTimestamp(*ts)
		}

	case ionhash.SymbolType:
		sym, err := s.r.SymbolValue()
		if err != nil {
			return err
		}
		if sym != nil {
			ev.Value.Symbol = convertSymbol(*sym)
		}

	case ionhash.StringType:
		str, err := s.r.StringValue()
		if err != nil {
			return err
		}
		if str != nil {
			ev.Value.Text = *str
		}

	case ionhash.ClobType, ionhash.BlobType:
		b, err := s.r.ByteValue()
		if err != nil {
			return err
		}
		ev.Value.Bytes = b
	}
	// Anything else is left for the hasher to reject as unsupported.
	return nil
}

// ============================================================
// Conversions
// ============================================================

func convertType(t ion.Type) ionhash.Type {
	switch t {
	case ion.NullType:
		return ionhash.NullType
	case ion.BoolType:
		return ionhash.BoolType
	case ion.IntType:
		return ionhash.IntType
	case ion.FloatType:
		return ionhash.FloatType
	case ion.DecimalType:
		return ionhash.DecimalType
	case ion.TimestampType:
		return ionhash.TimestampType
	case ion.SymbolType:
		return ionhash.SymbolType
	case ion.StringType:
		return ionhash.StringType
	case ion.ClobType:
		return ionhash.ClobType
	case ion.BlobType:
		return ionhash.BlobType
	case ion.ListType:
		return ionhash.ListType
	case ion.SexpType:
		return ionhash.SexpType
	case ion.StructType:
		return ionhash.StructType
	default:
		return ionhash.NoType
	}
}

func convertSymbol(tok ion.SymbolToken) ionhash.SymbolToken {
	return ionhash.SymbolToken{Text: tok.Text, SID: tok.LocalSID}
}

func convertDecimal(d *ion.Decimal) ionhash.Decimal {
	coefficient, exponent := d.CoEx()
	return ionhash.Decimal{
		Coefficient: coefficient,
		Exponent:    exponent,
		// ion.Decimal keeps the sign of a zero coefficient only in its
		// text form.
		NegativeZero: coefficient.Sign() == 0 && strings.HasPrefix(d.String(), "-"),
	}
}

func convertTimestamp(ts ion.Timestamp) ionhash.Timestamp {
	out := ionhash.Timestamp{
		Time:           ts.GetDateTime(),
		FractionDigits: ts.GetNumberOfFractionalSeconds(),
	}

	switch ts.GetPrecision() {
	case ion.TimestampPrecisionYear:
		out.Precision = ionhash.PrecisionYear
	case ion.TimestampPrecisionMonth:
		out.Precision = ionhash.PrecisionMonth
	case ion.TimestampPrecisionDay:
		out.Precision = ionhash.PrecisionDay
	case ion.TimestampPrecisionMinute:
		out.Precision = ionhash.PrecisionMinute
	case ion.TimestampPrecisionSecond:
		out.Precision = ionhash.PrecisionSecond
	default:
		out.Precision = ionhash.PrecisionFraction
	}

	switch ts.GetTimezoneKind() {
	case ion.TimezoneUTC:
		out.Offset = ionhash.OffsetUTC
	case ion.TimezoneLocal:
		out.Offset = ionhash.OffsetLocal
	default:
		out.Offset = ionhash.OffsetUnknown
	}
	return out
}
