package codec

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"github.com/Neumenon/ionhash/internal/compress"
)

type digestRecord struct {
	Source    string `json:"source"`
	Index     int    `json:"index"`
	Algorithm string `json:"algorithm"`
	Digest    []byte `json:"digest"`
}

func TestMarshal_JSONTags(t *testing.T) {
	rec := digestRecord{
		Source:    "doc.ion",
		Index:     2,
		Algorithm: "sha256",
		Digest:    []byte{0x0b, 0x20, 0x01, 0x0e},
	}

	data, err := Marshal(rec)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded map[string]any
	if err := cbor.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	for _, key := range []string{"source", "index", "algorithm", "digest"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing key %q in %v", key, decoded)
		}
	}
	if decoded["source"] != "doc.ion" {
		t.Errorf("source = %v", decoded["source"])
	}
}

func TestMarshal_Deterministic(t *testing.T) {
	// Map iteration order is random; the encoding must not be.
	m := map[string]int{"sha256": 1, "md5": 2, "blake3": 3, "identity": 4}

	first, err := Marshal(m)
	if err != nil {
		t.Fatalf("first Marshal: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := Marshal(m)
		if err != nil {
			t.Fatalf("Marshal: %v", err)
		}
		if !bytes.Equal(first, again) {
			t.Fatalf("encoding changed between calls: %x != %x", first, again)
		}
	}
}

func TestMarshal_SmallestInteger(t *testing.T) {
	data, err := Marshal(uint64(10))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, []byte{0x0a}) {
		t.Errorf("got %x, want 0a", data)
	}
}

func TestMarshal_TextMarshalerAsString(t *testing.T) {
	data, err := Marshal(compress.Zstd)
	if err != nil {
		t.Fatal(err)
	}
	// text string of length 4: "zstd"
	want := []byte{0x64, 'z', 's', 't', 'd'}
	if !bytes.Equal(data, want) {
		t.Errorf("got %x, want %x", data, want)
	}
}

func TestEncoder_Sequence(t *testing.T) {
	records := []digestRecord{
		{Source: "a.ion", Index: 0, Algorithm: "md5", Digest: []byte{1}},
		{Source: "a.ion", Index: 1, Algorithm: "md5", Digest: []byte{2}},
		{Source: "b.ion", Index: 0, Algorithm: "md5", Digest: []byte{3}},
	}

	var buffer bytes.Buffer
	encoder := NewEncoder(&buffer)
	for _, r := range records {
		if err := encoder.Encode(r); err != nil {
			t.Fatalf("Encode: %v", err)
		}
	}

	decoder := cbor.NewDecoder(&buffer)
	for i, want := range records {
		var got digestRecord
		if err := decoder.Decode(&got); err != nil {
			t.Fatalf("Decode record %d: %v", i, err)
		}
		if got.Source != want.Source || got.Index != want.Index || !bytes.Equal(got.Digest, want.Digest) {
			t.Errorf("record %d: got %+v, want %+v", i, got, want)
		}
	}
	var extra digestRecord
	if err := decoder.Decode(&extra); !errors.Is(err, io.EOF) {
		t.Errorf("Decode after last record = %v, want io.EOF", err)
	}
}

func TestDiagnose(t *testing.T) {
	got, err := Diagnose([]int{1, 2})
	if err != nil {
		t.Fatal(err)
	}
	if got != "[1, 2]" {
		t.Errorf("Diagnose = %q, want [1, 2]", got)
	}
}

func TestDiagnose_Unsupported(t *testing.T) {
	if _, err := Diagnose(make(chan int)); err == nil {
		t.Error("expected error for a channel")
	}
}
