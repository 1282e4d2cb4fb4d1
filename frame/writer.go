package frame

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Neumenon/ionhash/internal/compress"
	"github.com/Neumenon/ionhash/ionhash"
	"github.com/Neumenon/ionhash/ionsrc"
)

// Writer writes frames to an io.Writer.
type Writer struct {
	w         io.Writer
	withCRC   bool
	algorithm string // digest algorithm, empty for none
	provider  ionhash.HashFunctionProvider
	encoding  compress.Encoding
}

// WriterOption configures a Writer.
type WriterOption func(*Writer) error

// WithCRC computes a CRC for every frame with a payload.
func WithCRC() WriterOption {
	return func(w *Writer) error {
		w.withCRC = true
		return nil
	}
}

// WithDigest stamps every doc frame with the Ion hash of its payload,
// computed with the named algorithm.
func WithDigest(algorithm string) WriterOption {
	return func(w *Writer) error {
		provider, err := ionhash.ProviderFor(algorithm)
		if err != nil {
			return err
		}
		w.algorithm = algorithm
		w.provider = provider
		return nil
	}
}

// WithCompression compresses doc payloads before they are framed.
func WithCompression(enc compress.Encoding) WriterOption {
	return func(w *Writer) error {
		w.encoding = enc
		return nil
	}
}

// NewWriter creates a new frame writer.
func NewWriter(w io.Writer, opts ...WriterOption) (*Writer, error) {
	writer := &Writer{w: w}
	for _, opt := range opts {
		if err := opt(writer); err != nil {
			return nil, err
		}
	}
	return writer, nil
}

// WriteFrame writes a single frame exactly as given, adding a CRC when
// the writer computes them and the frame has none.
func (w *Writer) WriteFrame(f *Frame) error {
	var header strings.Builder
	header.WriteString("@frame{v=")
	if f.Version == 0 {
		header.WriteString(strconv.Itoa(int(Version)))
	} else {
		header.WriteString(strconv.Itoa(int(f.Version)))
	}

	header.WriteString(" sid=")
	header.WriteString(strconv.FormatUint(f.SID, 10))
	header.WriteString(" seq=")
	header.WriteString(strconv.FormatUint(f.Seq, 10))
	header.WriteString(" kind=")
	header.WriteString(f.Kind.String())
	header.WriteString(" len=")
	header.WriteString(strconv.Itoa(len(f.Payload)))

	if f.Encoding != compress.None {
		header.WriteString(" enc=")
		header.WriteString(f.Encoding.String())
	}

	crc := f.CRC
	if crc == nil && w.withCRC && len(f.Payload) > 0 {
		computed := ComputeCRC(f.Payload)
		crc = &computed
	}
	if crc != nil {
		fmt.Fprintf(&header, " crc=%08x", *crc)
	}

	if f.Digest != nil {
		header.WriteString(" digest=")
		header.WriteString(f.Digest.String())
	}
	if f.Final {
		header.WriteString(" final=true")
	}
	header.WriteString("}\n")

	if _, err := io.WriteString(w.w, header.String()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if len(f.Payload) > 0 {
		if _, err := w.w.Write(f.Payload); err != nil {
			return fmt.Errorf("write payload: %w", err)
		}
	}
	if _, err := io.WriteString(w.w, "\n"); err != nil {
		return fmt.Errorf("write trailing newline: %w", err)
	}
	return nil
}

// WriteDoc frames an Ion document, compressing it and stamping its
// digest as configured. The digest is computed before compression.
func (w *Writer) WriteDoc(sid, seq uint64, doc []byte) (*Frame, error) {
	return w.writeDoc(sid, seq, doc, false)
}

// WriteFinal frames the last document of a stream.
func (w *Writer) WriteFinal(sid, seq uint64, doc []byte) (*Frame, error) {
	return w.writeDoc(sid, seq, doc, true)
}

func (w *Writer) writeDoc(sid, seq uint64, doc []byte, final bool) (*Frame, error) {
	f := &Frame{Version: Version, SID: sid, Seq: seq, Kind: KindDoc, Final: final}

	if w.provider != nil {
		sum, err := ionhash.DigestStream(ionsrc.NewBytes(doc), w.provider)
		if err != nil {
			return nil, fmt.Errorf("digest sid %d seq %d: %w", sid, seq, err)
		}
		f.Digest = &Digest{Algorithm: w.algorithm, Sum: sum}
	}

	payload, err := compress.Encode(doc, w.encoding)
	if err != nil {
		return nil, err
	}
	f.Payload = payload
	f.Encoding = w.encoding

	return f, w.WriteFrame(f)
}

// WriteAck writes an acknowledgement frame.
func (w *Writer) WriteAck(sid, seq uint64) error {
	return w.WriteFrame(&Frame{Version: Version, SID: sid, Seq: seq, Kind: KindAck})
}

// WriteErr writes an error frame.
func (w *Writer) WriteErr(sid, seq uint64, msg string) error {
	return w.WriteFrame(&Frame{Version: Version, SID: sid, Seq: seq, Kind: KindErr, Payload: []byte(msg)})
}

// WritePing writes a ping frame.
func (w *Writer) WritePing(sid, seq uint64) error {
	return w.WriteFrame(&Frame{Version: Version, SID: sid, Seq: seq, Kind: KindPing})
}

// WritePong writes a pong frame.
func (w *Writer) WritePong(sid, seq uint64) error {
	return w.WriteFrame(&Frame{Version: Version, SID: sid, Seq: seq, Kind: KindPong})
}
