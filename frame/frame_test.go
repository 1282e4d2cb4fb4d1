package frame

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/Neumenon/ionhash/internal/compress"
)

// ============================================================
// Writer Tests
// ============================================================

func newWriter(t *testing.T, buf *bytes.Buffer, opts ...WriterOption) *Writer {
	t.Helper()
	w, err := NewWriter(buf, opts...)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	return w
}

func TestWriter_MinimalFrame(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(t, &buf)

	err := w.WriteFrame(&Frame{Version: 1, Kind: KindDoc, Payload: []byte("{}")})
	if err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}

	got := buf.String()
	want := "@frame{v=1 sid=0 seq=0 kind=doc len=2}\n{}\n"
	if got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}

func TestWriter_WithCRC(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(t, &buf, WithCRC())

	if err := w.WriteFrame(&Frame{SID: 1, Seq: 5, Payload: []byte("{x:1}")}); err != nil {
		t.Fatalf("WriteFrame failed: %v", err)
	}
	want := fmt.Sprintf(" crc=%08x}", ComputeCRC([]byte("{x:1}")))
	if !strings.Contains(buf.String(), want) {
		t.Errorf("expected %q in output: %s", want, buf.String())
	}
}

func TestWriter_DocDigest(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(t, &buf, WithDigest("identity"))

	f, err := w.WriteDoc(1, 1, []byte("1"))
	if err != nil {
		t.Fatalf("WriteDoc failed: %v", err)
	}
	want := "@frame{v=1 sid=1 seq=1 kind=doc len=1 digest=identity:0b20010e}\n1\n"
	if buf.String() != want {
		t.Errorf("got:\n%q\nwant:\n%q", buf.String(), want)
	}
	if f.Digest == nil || f.Digest.String() != "identity:0b20010e" {
		t.Errorf("returned frame digest = %v", f.Digest)
	}
}

func TestWriter_DocInvalidIon(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(t, &buf, WithDigest("sha256"))
	if _, err := w.WriteDoc(1, 1, []byte("[1, 2")); err == nil {
		t.Error("expected error hashing invalid Ion")
	}
	if buf.Len() != 0 {
		t.Errorf("nothing should be written on error, got %q", buf.String())
	}
}

func TestWriter_UnknownAlgorithm(t *testing.T) {
	if _, err := NewWriter(io.Discard, WithDigest("crc64")); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestWriter_FinalAndControlFrames(t *testing.T) {
	var buf bytes.Buffer
	w := newWriter(t, &buf)

	if _, err := w.WriteFinal(1, 100, []byte("x")); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteAck(1, 42); err != nil {
		t.Fatal(err)
	}
	if err := w.WriteErr(1, 43, "bad"); err != nil {
		t.Fatal(err)
	}

	want := "@frame{v=1 sid=1 seq=100 kind=doc len=1 final=true}\nx\n" +
		"@frame{v=1 sid=1 seq=42 kind=ack len=0}\n\n" +
		"@frame{v=1 sid=1 seq=43 kind=err len=3}\nbad\n"
	if buf.String() != want {
		t.Errorf("got:\n%q\nwant:\n%q", buf.String(), want)
	}
}

// ============================================================
// Reader Tests
// ============================================================

func TestReader_MinimalFrame(t *testing.T) {
	r := NewReader(strings.NewReader("@frame{v=1 sid=0 seq=0 kind=doc len=2}\n{}\n"))

	frame, err := r.Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.Version != 1 {
		t.Errorf("Version = %d, want 1", frame.Version)
	}
	if frame.Kind != KindDoc {
		t.Errorf("Kind = %v, want doc", frame.Kind)
	}
	if string(frame.Payload) != "{}" {
		t.Errorf("Payload = %q, want {}", frame.Payload)
	}

	if _, err := r.Next(); err != io.EOF {
		t.Errorf("second Next = %v, want io.EOF", err)
	}
}

func TestReader_HeaderFields(t *testing.T) {
	input := "@frame{v=1 sid=7 seq=9 kind=doc len=5 enc=none crc=" +
		fmt.Sprintf("%08x", ComputeCRC([]byte("hello"))) +
		" digest=sha256:00ff final=true}\nhello\n"
	frame, err := NewReader(strings.NewReader(input)).Next()
	if err != nil {
		t.Fatalf("Next failed: %v", err)
	}
	if frame.SID != 7 || frame.Seq != 9 {
		t.Errorf("sid/seq = %d/%d", frame.SID, frame.Seq)
	}
	if !frame.HasCRC() {
		t.Error("expected CRC to be present")
	}
	if !frame.HasDigest() || frame.Digest.Algorithm != "sha256" || !bytes.Equal(frame.Digest.Sum, []byte{0x00, 0xFF}) {
		t.Errorf("Digest = %v", frame.Digest)
	}
	if !frame.Final {
		t.Error("expected final")
	}
}

func TestReader_CRCMismatch(t *testing.T) {
	input := "@frame{v=1 sid=1 seq=5 kind=doc len=5 crc=deadbeef}\nhello\n"

	_, err := NewReader(strings.NewReader(input)).Next()
	var crcErr *CRCMismatchError
	if !errors.As(err, &crcErr) {
		t.Fatalf("expected CRCMismatchError, got %T: %v", err, err)
	}
	if crcErr.Expected != 0xdeadbeef {
		t.Errorf("Expected = %08x", crcErr.Expected)
	}

	if _, err := NewReader(strings.NewReader(input), WithoutCRCVerification()).Next(); err != nil {
		t.Errorf("with verification disabled: %v", err)
	}
}

func TestReader_MultipleFrames(t *testing.T) {
	input := "@frame{v=1 sid=1 seq=1 kind=doc len=1}\n1\n" +
		"@frame{v=1 sid=1 seq=2 kind=ack len=0}\n\n" +
		"@frame{v=1 sid=2 seq=1 kind=doc len=3}\n[2]" // no trailing newline at EOF

	frames, err := NewReader(strings.NewReader(input)).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(frames) != 3 {
		t.Fatalf("got %d frames, want 3", len(frames))
	}
	if frames[1].Kind != KindAck || frames[1].Payload != nil {
		t.Errorf("frame 1 = %+v", frames[1])
	}
	if string(frames[2].Payload) != "[2]" {
		t.Errorf("frame 2 payload = %q", frames[2].Payload)
	}
}

func TestReader_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"no prefix", "frame{v=1 len=0}\n\n"},
		{"no closing brace", "@frame{v=1 len=0\n\n"},
		{"bad version", "@frame{v=2 len=0}\n\n"},
		{"bad sid", "@frame{sid=x len=0}\n\n"},
		{"bad kind", "@frame{kind=patch len=0}\n\n"},
		{"bad enc", "@frame{enc=rar len=0}\n\n"},
		{"bad crc", "@frame{crc=123 len=0}\n\n"},
		{"bad digest", "@frame{digest=sha256 len=0}\n\n"},
		{"missing len", "@frame{v=1 sid=1}\n\n"},
		{"duplicate key", "@frame{len=0 len=0}\n\n"},
		{"too large", "@frame{len=100}\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewReader(strings.NewReader(tc.input), WithMaxPayload(10)).Next()
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Errorf("expected *ParseError, got %T: %v", err, err)
			}
		})
	}
}

func TestReader_TruncatedPayload(t *testing.T) {
	_, err := NewReader(strings.NewReader("@frame{len=10}\nabc")).Next()
	if err == nil || !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("err = %v, want unexpected EOF", err)
	}
}

// ============================================================
// Roundtrip
// ============================================================

func TestRoundtrip_CompressedDigest(t *testing.T) {
	doc := []byte(strings.Repeat(`{name:"frame", tags:[a, b, c], n:12345} `, 32))

	for _, enc := range []compress.Encoding{compress.None, compress.Gzip, compress.Zstd, compress.LZ4} {
		t.Run(enc.String(), func(t *testing.T) {
			var buf bytes.Buffer
			w := newWriter(t, &buf, WithCRC(), WithDigest("sha256"), WithCompression(enc))
			sent, err := w.WriteDoc(3, 1, doc)
			if err != nil {
				t.Fatalf("WriteDoc: %v", err)
			}

			got, err := NewReader(&buf).Next()
			if err != nil {
				t.Fatalf("Next: %v", err)
			}
			if got.Encoding != enc {
				t.Errorf("Encoding = %s, want %s", got.Encoding, enc)
			}
			if !got.Digest.Equal(*sent.Digest) {
				t.Errorf("Digest = %s, want %s", got.Digest, sent.Digest)
			}
			decoded, err := got.Document(0)
			if err != nil {
				t.Fatalf("Document: %v", err)
			}
			if !bytes.Equal(decoded, doc) {
				t.Error("decoded document mismatch")
			}
		})
	}
}

func TestKind_Parse(t *testing.T) {
	for _, k := range []Kind{KindDoc, KindAck, KindErr, KindPing, KindPong} {
		parsed, ok := ParseKind(k.String())
		if !ok || parsed != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), parsed, ok)
		}
	}
	if _, ok := ParseKind("patch"); ok {
		t.Error("ParseKind(patch) should fail")
	}
	if Kind(99).String() != "unknown(99)" {
		t.Errorf("Kind(99).String() = %q", Kind(99).String())
	}
}

func TestParseDigest(t *testing.T) {
	d, ok := ParseDigest("blake3:0b0e")
	if !ok || d.Algorithm != "blake3" || !bytes.Equal(d.Sum, []byte{0x0B, 0x0E}) {
		t.Errorf("ParseDigest = %v, %v", d, ok)
	}
	for _, bad := range []string{"", "sha256", ":00", "sha256:", "sha256:0"} {
		if _, ok := ParseDigest(bad); ok {
			t.Errorf("ParseDigest(%q) succeeded", bad)
		}
	}
}
