package ionhash

import (
	"bytes"
	"errors"
	"math"
	"math/big"
	"testing"
	"time"
)

func TestCanonicalize_Scalars(t *testing.T) {
	bigInt, _ := new(big.Int).SetString("18446744073709551616", 10) // 2^64

	tests := []struct {
		name  string
		value *Value
		want  []byte
	}{
		{"null", Null(), []byte{0x0B, 0x0F, 0x0E}},
		{"null.int", TypedNull(IntType), []byte{0x0B, 0x2F, 0x0E}},
		{"null.symbol", TypedNull(SymbolType), []byte{0x0B, 0x7F, 0x0E}},
		{"null.struct", TypedNull(StructType), []byte{0x0B, 0xDF, 0x0E}},
		{"false", Bool(false), []byte{0x0B, 0x10, 0x0E}},
		{"true", Bool(true), []byte{0x0B, 0x11, 0x0E}},
		{"0", Int(0), []byte{0x0B, 0x20, 0x0E}},
		{"1", Int(1), []byte{0x0B, 0x20, 0x01, 0x0E}},
		{"-1", Int(-1), []byte{0x0B, 0x30, 0x01, 0x0E}},
		{"256", Int(256), []byte{0x0B, 0x20, 0x01, 0x00, 0x0E}},
		{"11 escaped", Int(11), []byte{0x0B, 0x20, 0x0C, 0x0B, 0x0E}},
		{"2^64", BigInt(bigInt), []byte{0x0B, 0x20, 0x01, 0, 0, 0, 0, 0, 0, 0, 0, 0x0E}},
		{"0e0", Float(0), []byte{0x0B, 0x40, 0x0E}},
		{"-0e0", Float(math.Copysign(0, -1)), []byte{0x0B, 0x40, 0x80, 0, 0, 0, 0, 0, 0, 0, 0x0E}},
		{"1e0", Float(1), []byte{0x0B, 0x40, 0x3F, 0xF0, 0, 0, 0, 0, 0, 0, 0x0E}},
		{"nan", Float(math.NaN()), []byte{0x0B, 0x40, 0x7F, 0xF8, 0, 0, 0, 0, 0, 0, 0x0E}},
		{"+inf", Float(math.Inf(1)), []byte{0x0B, 0x40, 0x7F, 0xF0, 0, 0, 0, 0, 0, 0, 0x0E}},
		{"0d0", DecimalValue(NewDecimal(0, 0)), []byte{0x0B, 0x50, 0x0E}},
		{"1d0", DecimalValue(NewDecimal(1, 0)), []byte{0x0B, 0x50, 0x80, 0x01, 0x0E}},
		{"1.5", DecimalValue(NewDecimal(15, -1)), []byte{0x0B, 0x50, 0xC1, 0x0F, 0x0E}},
		{"-1d0", DecimalValue(NewDecimal(-1, 0)), []byte{0x0B, 0x50, 0x80, 0x81, 0x0E}},
		{"0d1", DecimalValue(NewDecimal(0, 1)), []byte{0x0B, 0x50, 0x81, 0x0E}},
		{"-0d0", DecimalValue(Decimal{Coefficient: big.NewInt(0), NegativeZero: true}), []byte{0x0B, 0x50, 0x80, 0x80, 0x0E}},
		{"empty string", String(""), []byte{0x0B, 0x80, 0x0E}},
		{"hello", String("hello"), []byte{0x0B, 0x80, 'h', 'e', 'l', 'l', 'o', 0x0E}},
		{"symbol", Symbol("a"), []byte{0x0B, 0x70, 'a', 0x0E}},
		{"$0", SymbolID(0), []byte{0x0B, 0x71, 0x0E}},
		{"clob", Clob([]byte("hi")), []byte{0x0B, 0x90, 'h', 'i', 0x0E}},
		{"blob", Blob([]byte{0x01, 0x02}), []byte{0x0B, 0xA0, 0x01, 0x02, 0x0E}},
		{"blob markers", Blob([]byte{0x0B, 0x0C, 0x0E}), []byte{0x0B, 0xA0, 0x0C, 0x0B, 0x0C, 0x0C, 0x0C, 0x0E, 0x0E}},
		{
			"annotated",
			Annotate(Int(1), "a"),
			[]byte{0x0B, 0xE0, 0x0B, 0x70, 'a', 0x0E, 0x0B, 0x20, 0x01, 0x0E, 0x0E},
		},
		{
			"two annotations",
			Annotate(Null(), "a", "b"),
			[]byte{0x0B, 0xE0, 0x0B, 0x70, 'a', 0x0E, 0x0B, 0x70, 'b', 0x0E, 0x0B, 0x0F, 0x0E, 0x0E},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize(scalarEvent(tc.value))
			if err != nil {
				t.Fatalf("Canonicalize: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("got % x, want % x", got, tc.want)
			}
		})
	}
}

func TestCanonicalize_Timestamps(t *testing.T) {
	midnight := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ts   Timestamp
		want []byte
	}{
		{
			"year",
			Timestamp{Time: midnight, Precision: PrecisionYear},
			[]byte{0x0B, 0x60, 0xC0, 0x0F, 0xD0, 0x0E},
		},
		{
			"day",
			Timestamp{Time: midnight, Precision: PrecisionDay},
			[]byte{0x0B, 0x60, 0xC0, 0x0F, 0xD0, 0x81, 0x81, 0x0E},
		},
		{
			"second utc",
			Timestamp{Time: midnight, Precision: PrecisionSecond, Offset: OffsetUTC},
			[]byte{0x0B, 0x60, 0x80, 0x0F, 0xD0, 0x81, 0x81, 0x80, 0x80, 0x80, 0x0E},
		},
		{
			"millis",
			Timestamp{Time: midnight.Add(5 * time.Millisecond), Precision: PrecisionFraction, Offset: OffsetUTC, FractionDigits: 3},
			[]byte{0x0B, 0x60, 0x80, 0x0F, 0xD0, 0x81, 0x81, 0x80, 0x80, 0x80, 0xC3, 0x05, 0x0E},
		},
		{
			"zero fraction",
			Timestamp{Time: midnight, Precision: PrecisionFraction, Offset: OffsetUTC, FractionDigits: 3},
			[]byte{0x0B, 0x60, 0x80, 0x0F, 0xD0, 0x81, 0x81, 0x80, 0x80, 0x80, 0xC3, 0x0E},
		},
		{
			// 2000-01-01T01:00+01:00 is midnight UTC; components are
			// always written in UTC.
			"local offset",
			Timestamp{Time: time.Date(2000, 1, 1, 1, 0, 0, 0, time.FixedZone("", 3600)), Precision: PrecisionMinute, Offset: OffsetLocal},
			[]byte{0x0B, 0x60, 0xBC, 0x0F, 0xD0, 0x81, 0x81, 0x80, 0x80, 0x0E},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Canonicalize(scalarEvent(TimestampValue(tc.ts)))
			if err != nil {
				t.Fatalf("Canonicalize: %v", err)
			}
			if !bytes.Equal(got, tc.want) {
				t.Errorf("got % x, want % x", got, tc.want)
			}
		})
	}
}

func TestCanonicalize_FieldName(t *testing.T) {
	ev := scalarEvent(Int(1))
	name := NewSymbolToken("a")
	ev.FieldName = &name
	ev.Depth = 1

	got, err := Canonicalize(ev)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := []byte{0x0B, 0x70, 'a', 0x0E, 0x0B, 0x20, 0x01, 0x0E}
	if !bytes.Equal(got, want) {
		t.Errorf("got % x, want % x", got, want)
	}

	// Top-level values never carry a field name into the hash.
	ev.Depth = 0
	got, _ = Canonicalize(ev)
	if !bytes.Equal(got, want[4:]) {
		t.Errorf("top-level got % x, want % x", got, want[4:])
	}
}

func TestWriteFieldScalar_SinkError(t *testing.T) {
	ev := scalarEvent(Int(1))
	name := NewSymbolToken("a")
	ev.FieldName = &name
	ev.Depth = 1

	boom := errors.New("boom")
	writes := 0
	err := writeFieldScalar(func([]byte) error {
		writes++
		return boom
	}, ev)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if writes != 1 {
		t.Errorf("got %d writes, want 1", writes)
	}
}

func TestCanonicalize_Errors(t *testing.T) {
	_, err := Canonicalize(Event{Kind: EventScalar, Type: NoType})
	if err == nil {
		t.Fatal("expected error for NoType")
	}
	if !isKind(err, ErrUnsupportedType) {
		t.Errorf("expected ErrUnsupportedType, got %v", err)
	}

	_, err = Canonicalize(Event{Kind: EventContainerStart, Type: ListType})
	if !isKind(err, ErrMalformedStream) {
		t.Errorf("expected ErrMalformedStream for container event, got %v", err)
	}
}

// Distinct values must never share canonical bytes.
func TestCanonicalize_Injective(t *testing.T) {
	values := []*Value{
		Null(), TypedNull(IntType), TypedNull(StringType),
		Bool(false), Bool(true),
		Int(0), Int(1), Int(-1), Int(11),
		Float(0), Float(math.Copysign(0, -1)), Float(1),
		DecimalValue(NewDecimal(0, 0)), DecimalValue(NewDecimal(0, 1)), DecimalValue(NewDecimal(1, 0)), DecimalValue(NewDecimal(10, -1)),
		String(""), String("a"), Symbol("a"), Clob([]byte("a")), Blob([]byte("a")),
		Annotate(String("a"), "a"),
	}

	seen := make(map[string]int)
	for i, v := range values {
		got, err := Canonicalize(scalarEvent(v))
		if err != nil {
			t.Fatalf("value %d: %v", i, err)
		}
		if j, ok := seen[string(got)]; ok {
			t.Errorf("values %d and %d share canonical bytes % x", j, i, got)
		}
		seen[string(got)] = i
	}
}

func TestVarInt(t *testing.T) {
	tests := []struct {
		v       int64
		negZero bool
		want    []byte
	}{
		{0, false, []byte{0x80}},
		{0, true, []byte{0xC0}},
		{-1, false, []byte{0xC1}},
		{63, false, []byte{0xBF}},
		{64, false, []byte{0x00, 0xC0}},
		{-64, false, []byte{0x40, 0xC0}},
		{60, false, []byte{0xBC}},
		{math.MinInt64, false, []byte{0x41, 0, 0, 0, 0, 0, 0, 0, 0, 0x80}},
	}
	for _, tc := range tests {
		got := appendVarInt(nil, tc.v, tc.negZero)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("appendVarInt(%d, %v) = % x, want % x", tc.v, tc.negZero, got, tc.want)
		}
	}
}

func TestVarUInt(t *testing.T) {
	tests := []struct {
		v    uint64
		want []byte
	}{
		{0, []byte{0x80}},
		{1, []byte{0x81}},
		{127, []byte{0xFF}},
		{128, []byte{0x01, 0x80}},
		{2000, []byte{0x0F, 0xD0}},
	}
	for _, tc := range tests {
		got := appendVarUInt(nil, tc.v)
		if !bytes.Equal(got, tc.want) {
			t.Errorf("appendVarUInt(%d) = % x, want % x", tc.v, got, tc.want)
		}
	}
}

func TestEscape(t *testing.T) {
	plain := []byte{0x01, 0x02}
	if got := escape(plain); &got[0] != &plain[0] {
		t.Error("escape should not copy input without markers")
	}
	got := escape([]byte{0x0B, 0x01, 0x0E, 0x0C})
	want := []byte{0x0C, 0x0B, 0x01, 0x0C, 0x0E, 0x0C, 0x0C}
	if !bytes.Equal(got, want) {
		t.Errorf("escape = % x, want % x", got, want)
	}
}

func scalarEvent(v *Value) Event {
	return Event{
		Kind:        EventScalar,
		Type:        v.Type(),
		IsNull:      v.IsNull(),
		Annotations: v.Annotations(),
		Value:       v.Scalar(),
	}
}
