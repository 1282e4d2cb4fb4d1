package conformance

import (
	"bytes"
	"fmt"

	"github.com/amzn/ion-go/ion"

	"github.com/Neumenon/ionhash/ionhash"
)

// render writes values in the requested syntax with ion-go's writers so
// the same fixture value can be read back as text and as binary.
func render(values []*ionhash.Value, syntax Syntax) ([]byte, error) {
	var buf bytes.Buffer
	var w ion.Writer
	switch syntax {
	case SyntaxText:
		w = ion.NewTextWriter(&buf)
	case SyntaxBinary:
		w = ion.NewBinaryWriter(&buf)
	default:
		return nil, fmt.Errorf("render: syntax %s has no encoding", syntax)
	}

	for _, v := range values {
		if err := writeValue(w, v); err != nil {
			return nil, err
		}
	}
	if err := w.Finish(); err != nil {
		return nil, fmt.Errorf("render: finish: %w", err)
	}
	return buf.Bytes(), nil
}

func writeValue(w ion.Writer, v *ionhash.Value) error {
	if anns := v.Annotations(); len(anns) > 0 {
		toks := make([]ion.SymbolToken, len(anns))
		for i, a := range anns {
			toks[i] = symbolToken(a)
		}
		if err := w.Annotations(toks...); err != nil {
			return err
		}
	}

	if v.IsNull() {
		if v.Type() == ionhash.NullType {
			return w.WriteNull()
		}
		return w.WriteNullType(ionType(v.Type()))
	}

	s := v.Scalar()
	switch v.Type() {
	case ionhash.BoolType:
		return w.WriteBool(s.Bool)
	case ionhash.IntType:
		return w.WriteBigInt(s.Int)
	case ionhash.FloatType:
		return w.WriteFloat(s.Float)
	case ionhash.DecimalType:
		return w.WriteDecimal(ion.NewDecimal(s.Decimal.Coefficient, s.Decimal.Exponent, s.Decimal.NegativeZero))
	case ionhash.TimestampType:
		return w.WriteTimestamp(timestamp(s.Timestamp))
	case ionhash.SymbolType:
		return w.WriteSymbol(symbolToken(s.Symbol))
	case ionhash.StringType:
		return w.WriteString(s.Text)
	case ionhash.ClobType:
		return w.WriteClob(s.Bytes)
	case ionhash.BlobType:
		return w.WriteBlob(s.Bytes)

	case ionhash.ListType:
		if err := w.BeginList(); err != nil {
			return err
		}
		if err := writeElems(w, v.Elems()); err != nil {
			return err
		}
		return w.EndList()

	case ionhash.SexpType:
		if err := w.BeginSexp(); err != nil {
			return err
		}
		if err := writeElems(w, v.Elems()); err != nil {
			return err
		}
		return w.EndSexp()

	case ionhash.StructType:
		if err := w.BeginStruct(); err != nil {
			return err
		}
		for _, f := range v.Fields() {
			if err := w.FieldName(symbolToken(f.Name)); err != nil {
				return err
			}
			if err := writeValue(w, f.Value); err != nil {
				return err
			}
		}
		return w.EndStruct()
	}
	return fmt.Errorf("render: cannot write %s", v.Type())
}

func writeElems(w ion.Writer, elems []*ionhash.Value) error {
	for _, e := range elems {
		if err := writeValue(w, e); err != nil {
			return err
		}
	}
	return nil
}

func symbolToken(tok ionhash.SymbolToken) ion.SymbolToken {
	if tok.Text == nil {
		return ion.SymbolToken{LocalSID: tok.SID}
	}
	return ion.NewSymbolTokenFromString(*tok.Text)
}

func timestamp(ts ionhash.Timestamp) ion.Timestamp {
	kind := ion.TimezoneUnspecified
	switch ts.Offset {
	case ionhash.OffsetUTC:
		kind = ion.TimezoneUTC
	case ionhash.OffsetLocal:
		kind = ion.TimezoneLocal
	}

	var precision ion.TimestampPrecision
	switch ts.Precision {
	case ionhash.PrecisionYear:
		precision = ion.TimestampPrecisionYear
	case ionhash.PrecisionMonth:
		precision = ion.TimestampPrecisionMonth
	case ionhash.PrecisionDay:
		precision = ion.TimestampPrecisionDay
	case ionhash.PrecisionMinute:
		precision = ion.TimestampPrecisionMinute
	case ionhash.PrecisionSecond:
		precision = ion.TimestampPrecisionSecond
	default:
		return ion.NewTimestampWithFractionalSeconds(ts.Time, ion.TimestampPrecisionNanosecond, kind, ts.FractionDigits)
	}
	return ion.NewTimestamp(ts.Time, precision, kind)
}

func ionType(t ionhash.Type) ion.Type {
	switch t {
	case ionhash.BoolType:
		return ion.BoolType
	case ionhash.IntType:
		return ion.IntType
	case ionhash.FloatType:
		return ion.FloatType
	case ionhash.DecimalType:
		return ion.DecimalType
	case ionhash.TimestampType:
		return ion.TimestampType
	case ionhash.SymbolType:
		return ion.SymbolType
	case ionhash.StringType:
		return ion.StringType
	case ionhash.ClobType:
		return ion.ClobType
	case ionhash.BlobType:
		return ion.BlobType
	case ionhash.ListType:
		return ion.ListType
	case ionhash.SexpType:
		return ion.SexpType
	case ionhash.StructType:
		return ion.StructType
	default:
		return ion.NullType
	}
}
