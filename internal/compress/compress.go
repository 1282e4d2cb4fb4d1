// Package compress encodes and decodes the compressed forms an Ion
// document may arrive in: gzip, zstd and LZ4 frames. Input can be
// decoded by explicit encoding or by sniffing its magic number.
package compress

import (
	"bufio"
	"bytes"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Encoding identifies a compression format. The zero value is no
// compression.
type Encoding uint8

const (
	None Encoding = iota
	Gzip
	Zstd
	LZ4
)

// String returns the encoding name used in frame headers and config.
func (e Encoding) String() string {
	switch e {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Zstd:
		return "zstd"
	case LZ4:
		return "lz4"
	default:
		return fmt.Sprintf("unknown(%d)", e)
	}
}

// Parse parses an encoding name. The empty string is None.
func Parse(name string) (Encoding, error) {
	switch name {
	case "", "none":
		return None, nil
	case "gzip", "gz":
		return Gzip, nil
	case "zstd", "zst":
		return Zstd, nil
	case "lz4":
		return LZ4, nil
	default:
		return None, fmt.Errorf("unknown compression %q", name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (e Encoding) MarshalText() ([]byte, error) {
	return []byte(e.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (e *Encoding) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}

var (
	gzipMagic = []byte{0x1F, 0x8B}
	zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}
	lz4Magic  = []byte{0x04, 0x22, 0x4D, 0x18}
)

// Detect returns the encoding whose magic number prefixes b.
func Detect(b []byte) Encoding {
	switch {
	case bytes.HasPrefix(b, zstdMagic):
		return Zstd
	case bytes.HasPrefix(b, lz4Magic):
		return LZ4
	case bytes.HasPrefix(b, gzipMagic):
		return Gzip
	default:
		return None
	}
}

// ============================================================
// Streams
// ============================================================

// NewReader returns a reader that decodes r according to its magic
// number, or passes it through unchanged when none matches. The
// returned closer releases decoder resources; it does not close r.
func NewReader(r io.Reader) (io.Reader, io.Closer, error) {
	br := bufio.NewReader(r)
	head, err := br.Peek(4)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, nil, fmt.Errorf("sniff compression: %w", err)
	}
	return NewDecoder(br, Detect(head))
}

// NewDecoder wraps r with a decoder for enc.
func NewDecoder(r io.Reader, enc Encoding) (io.Reader, io.Closer, error) {
	switch enc {
	case None:
		return r, io.NopCloser(nil), nil
	case Gzip:
		zr, err := gzip.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, zr, nil
	case Zstd:
		zr, err := zstd.NewReader(r)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd: %w", err)
		}
		return zr, closerFunc(func() error { zr.Close(); return nil }), nil
	case LZ4:
		return lz4.NewReader(r), io.NopCloser(nil), nil
	default:
		return nil, nil, fmt.Errorf("unsupported compression %s", enc)
	}
}

// NewEncoder wraps w with an encoder for enc. Close flushes the
// encoder; it does not close w.
func NewEncoder(w io.Writer, enc Encoding) (io.WriteCloser, error) {
	switch enc {
	case None:
		return nopWriteCloser{w}, nil
	case Gzip:
		return gzip.NewWriter(w), nil
	case Zstd:
		zw, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		return zw, nil
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported compression %s", enc)
	}
}

// ============================================================
// Buffers
// ============================================================

// Encode compresses data with enc. None returns data unchanged.
func Encode(data []byte, enc Encoding) ([]byte, error) {
	if enc == None {
		return data, nil
	}
	var buf bytes.Buffer
	w, err := NewEncoder(&buf, enc)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		return nil, fmt.Errorf("%s compress: %w", enc, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("%s compress: %w", enc, err)
	}
	return buf.Bytes(), nil
}

// Decode decompresses data that was compressed with enc, refusing to
// produce more than limit bytes (no limit when limit <= 0).
func Decode(data []byte, enc Encoding, limit int) ([]byte, error) {
	if enc == None {
		return data, nil
	}
	r, closer, err := NewDecoder(bytes.NewReader(data), enc)
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	if limit > 0 {
		r = io.LimitReader(r, int64(limit)+1)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s decompress: %w", enc, err)
	}
	if limit > 0 && len(out) > limit {
		return nil, fmt.Errorf("%s decompress: output exceeds %d bytes", enc, limit)
	}
	return out, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
