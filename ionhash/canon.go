package ionhash

import (
	"math"
	"math/big"
)

// ============================================================
// Canonical Form
// ============================================================
//
// Every value is fed to a hash function as
//
//	B || TQ || escape(representation) || E
//
// where TQ is the binary Ion type descriptor with the length nibble
// replaced by a qualifier, and the representation is the binary Ion
// payload without its length prefix. The result depends only on the
// logical value, never on whether it was read from text or binary.

// Marker bytes.
const (
	BeginMarker byte = 0x0B
	EndMarker   byte = 0x0E
	EscapeByte  byte = 0x0C
)

const (
	tqAnnotated     byte = 0xE0
	tqUnknownSymbol byte = 0x71
	nullQualifier   byte = 0x0F
)

// canonicalNaN is the quiet NaN every NaN payload is normalized to.
const canonicalNaN uint64 = 0x7FF8000000000000

// sink receives canonical byte chunks in stream order.
type sink func([]byte) error

// typeCode returns the binary Ion type code (high nibble of TQ).
func typeCode(t Type) (byte, bool) {
	switch t {
	case NullType:
		return 0x00, true
	case BoolType:
		return 0x10, true
	case IntType:
		return 0x20, true
	case FloatType:
		return 0x40, true
	case DecimalType:
		return 0x50, true
	case TimestampType:
		return 0x60, true
	case SymbolType:
		return 0x70, true
	case StringType:
		return 0x80, true
	case ClobType:
		return 0x90, true
	case BlobType:
		return 0xA0, true
	case ListType:
		return 0xB0, true
	case SexpType:
		return 0xC0, true
	case StructType:
		return 0xD0, true
	default:
		return 0, false
	}
}

// containerTQ returns the TQ written when stepping into a container.
func containerTQ(t Type) (byte, bool) {
	if !t.IsContainer() {
		return 0, false
	}
	return typeCode(t)
}

// scalarParts returns the TQ and unescaped representation of a scalar
// (including null containers, which hash as scalars).
func scalarParts(t Type, isNull bool, v Scalar) (byte, []byte, bool) {
	code, ok := typeCode(t)
	if !ok {
		return 0, nil, false
	}
	if isNull || t == NullType {
		return code | nullQualifier, nil, true
	}

	switch t {
	case BoolType:
		if v.Bool {
			return code | 0x01, nil, true
		}
		return code, nil, true

	case IntType:
		if v.Int == nil || v.Int.Sign() == 0 {
			return code, nil, true
		}
		if v.Int.Sign() < 0 {
			return 0x30, new(big.Int).Abs(v.Int).Bytes(), true
		}
		return code, v.Int.Bytes(), true

	case FloatType:
		return code, floatRepr(v.Float), true

	case DecimalType:
		return code, decimalRepr(v.Decimal), true

	case TimestampType:
		return code, timestampRepr(v.Timestamp), true

	case SymbolType:
		tq, repr := symbolParts(v.Symbol)
		return tq, repr, true

	case StringType:
		return code, []byte(v.Text), true

	case ClobType, BlobType:
		return code, v.Bytes, true

	default:
		// Non-null containers never reach the scalar path.
		return 0, nil, false
	}
}

// symbolParts serializes a symbol token the way symbol values, field
// names and annotations are all hashed: as its text.
func symbolParts(tok SymbolToken) (byte, []byte) {
	if tok.Text == nil {
		return tqUnknownSymbol, nil
	}
	return 0x70, []byte(*tok.Text)
}

// writeParts emits one serialized value as separate chunks.
func writeParts(w sink, tq byte, repr []byte) error {
	if err := w([]byte{BeginMarker}); err != nil {
		return err
	}
	if err := w([]byte{tq}); err != nil {
		return err
	}
	if len(repr) > 0 {
		if err := w(escape(repr)); err != nil {
			return err
		}
	}
	return w([]byte{EndMarker})
}

func writeSymbol(w sink, tok SymbolToken) error {
	tq, repr := symbolParts(tok)
	return writeParts(w, tq, repr)
}

// escape prefixes every marker byte in b with EscapeByte. b is returned
// unchanged (not copied) when it contains no marker bytes.
func escape(b []byte) []byte {
	n := 0
	for _, c := range b {
		if isMarker(c) {
			n++
		}
	}
	if n == 0 {
		return b
	}
	out := make([]byte, 0, len(b)+n)
	for _, c := range b {
		if isMarker(c) {
			out = append(out, EscapeByte)
		}
		out = append(out, c)
	}
	return out
}

func isMarker(c byte) bool {
	return c == BeginMarker || c == EndMarker || c == EscapeByte
}

// ============================================================
// Scalar Representations
// ============================================================

// floatRepr is the 64-bit big-endian IEEE-754 encoding. Positive zero
// has an empty representation, mirroring binary Ion's 0x40.
func floatRepr(f float64) []byte {
	if f == 0 && !math.Signbit(f) {
		return nil
	}
	bits := math.Float64bits(f)
	if math.IsNaN(f) {
		bits = canonicalNaN
	}
	out := make([]byte, 8)
	for i := 7; i >= 0; i-- {
		out[i] = byte(bits)
		bits >>= 8
	}
	return out
}

// decimalRepr is VarInt(exponent) followed by Int(coefficient). 0d0 is
// empty and a positive zero coefficient is omitted.
func decimalRepr(d Decimal) []byte {
	zero := d.Coefficient == nil || d.Coefficient.Sign() == 0
	if zero && !d.NegativeZero && d.Exponent == 0 {
		return nil
	}
	out := appendVarInt(nil, int64(d.Exponent), false)
	if zero {
		if d.NegativeZero {
			out = append(out, 0x80)
		}
		return out
	}
	return appendInt(out, d.Coefficient)
}

// timestampRepr encodes offset then UTC components down to the
// timestamp's precision.
func timestampRepr(ts Timestamp) []byte {
	var out []byte
	switch ts.Offset {
	case OffsetUnknown:
		out = appendVarInt(out, 0, true)
	case OffsetUTC:
		out = appendVarInt(out, 0, false)
	default:
		out = appendVarInt(out, int64(ts.OffsetMinutes()), false)
	}

	utc := ts.Time.UTC()
	out = appendVarUInt(out, uint64(utc.Year()))
	if ts.Precision >= PrecisionMonth {
		out = appendVarUInt(out, uint64(utc.Month()))
	}
	if ts.Precision >= PrecisionDay {
		out = appendVarUInt(out, uint64(utc.Day()))
	}
	if ts.Precision >= PrecisionMinute {
		out = appendVarUInt(out, uint64(utc.Hour()))
		out = appendVarUInt(out, uint64(utc.Minute()))
	}
	if ts.Precision >= PrecisionSecond {
		out = appendVarUInt(out, uint64(utc.Second()))
	}
	if ts.Precision == PrecisionFraction && ts.FractionDigits > 0 {
		digits := int(ts.FractionDigits)
		coefficient := new(big.Int).SetInt64(int64(utc.Nanosecond()))
		switch {
		case digits < 9:
			coefficient.Quo(coefficient, pow10(9-digits))
		case digits > 9:
			coefficient.Mul(coefficient, pow10(digits-9))
		}
		out = appendVarInt(out, int64(-digits), false)
		if coefficient.Sign() != 0 {
			out = appendInt(out, coefficient)
		}
	}
	return out
}

func pow10(n int) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

// ============================================================
// Binary Ion Primitives
// ============================================================

// appendInt appends a signed-magnitude Int: minimal big-endian
// magnitude whose top bit is the sign.
func appendInt(dst []byte, v *big.Int) []byte {
	mag := new(big.Int).Abs(v).Bytes()
	if len(mag) == 0 {
		return dst
	}
	start := len(dst)
	if mag[0]&0x80 != 0 {
		dst = append(dst, 0x00)
	}
	dst = append(dst, mag...)
	if v.Sign() < 0 {
		dst[start] |= 0x80
	}
	return dst
}

// appendVarUInt appends 7-bit groups, most significant first, with the
// end flag (0x80) on the last byte.
func appendVarUInt(dst []byte, v uint64) []byte {
	var groups [10]byte
	n := 0
	for {
		groups[n] = byte(v & 0x7F)
		n++
		v >>= 7
		if v == 0 {
			break
		}
	}
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, groups[i])
	}
	dst[len(dst)-1] |= 0x80
	return dst
}

// appendVarInt is appendVarUInt with a sign bit (0x40) in the first
// byte. negZero writes -0, used for unknown timestamp offsets.
func appendVarInt(dst []byte, v int64, negZero bool) []byte {
	negative := v < 0 || (v == 0 && negZero)
	var mag uint64
	if v < 0 {
		mag = uint64(-(v + 1)) + 1
	} else {
		mag = uint64(v)
	}

	var groups [11]byte
	n := 0
	for {
		groups[n] = byte(mag & 0x7F)
		n++
		mag >>= 7
		if mag == 0 {
			break
		}
	}
	// The leading group only has six magnitude bits.
	if groups[n-1]&0x40 != 0 {
		groups[n] = 0
		n++
	}

	start := len(dst)
	for i := n - 1; i >= 0; i-- {
		dst = append(dst, groups[i])
	}
	if negative {
		dst[start] |= 0x40
	}
	dst[len(dst)-1] |= 0x80
	return dst
}

// ============================================================
// Whole-value Canonicalization
// ============================================================

// Canonicalize returns the canonical bytes of a single scalar event as
// its enclosing context would see them: the field name (inside a
// struct), the annotation wrapper, and the value itself. It is the
// pure form of what the Hasher feeds a hash function for that event.
func Canonicalize(ev Event) ([]byte, error) {
	if ev.Kind != EventScalar {
		return nil, malformed(ev.Depth, "canonicalize expects a scalar event, got %s", ev.Kind)
	}
	var out []byte
	w := func(b []byte) error {
		out = append(out, b...)
		return nil
	}
	if err := writeFieldScalar(w, ev); err != nil {
		return nil, err
	}
	return out, nil
}

// writeFieldScalar emits a scalar event preceded by its field name when
// it sits inside a struct.
func writeFieldScalar(w sink, ev Event) error {
	if ev.FieldName != nil && ev.Depth > 0 {
		if err := writeSymbol(w, *ev.FieldName); err != nil {
			return err
		}
	}
	return writeScalarEvent(w, ev)
}

// writeScalarEvent emits an annotated or plain scalar.
func writeScalarEvent(w sink, ev Event) error {
	tq, repr, ok := scalarParts(ev.Type, ev.IsNull, ev.Value)
	if !ok {
		return unsupported(ev.Depth, ev.Type)
	}
	if err := beginAnnotations(w, ev.Annotations); err != nil {
		return err
	}
	if err := writeParts(w, tq, repr); err != nil {
		return err
	}
	if len(ev.Annotations) > 0 {
		return w([]byte{EndMarker})
	}
	return nil
}

func beginAnnotations(w sink, annotations []SymbolToken) error {
	if len(annotations) == 0 {
		return nil
	}
	if err := w([]byte{BeginMarker}); err != nil {
		return err
	}
	if err := w([]byte{tqAnnotated}); err != nil {
		return err
	}
	for _, a := range annotations {
		if err := writeSymbol(w, a); err != nil {
			return err
		}
	}
	return nil
}
