package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/Neumenon/ionhash/internal/codec"
	"github.com/Neumenon/ionhash/internal/config"
	"github.com/Neumenon/ionhash/ionhash"
)

// digestRecord is one line of digest output. Index is the top-level
// value's position in its input, or -1 for a whole-stream digest.
type digestRecord struct {
	Source    string `json:"source"`
	Index     int    `json:"index"`
	Algorithm string `json:"algorithm"`
	Digest    string `json:"digest"`
}

func newDigestRecord(source string, index int, algorithm string, digest []byte) digestRecord {
	return digestRecord{
		Source:    source,
		Index:     index,
		Algorithm: algorithm,
		Digest:    ionhash.FormatDigest(digest),
	}
}

// recordWriter encodes records in one output format; json.Encoder and
// codec.Encoder satisfy it directly.
type recordWriter interface {
	Encode(rec any) error
}

func newRecordWriter(w io.Writer, format string) (recordWriter, error) {
	switch format {
	case config.OutputHex:
		return hexWriter{w: w}, nil
	case config.OutputJSON:
		return json.NewEncoder(w), nil
	case config.OutputCBOR:
		return codec.NewEncoder(w), nil
	case config.OutputDiag:
		return diagWriter{w: w}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q", format)
	}
}

// hexWriter prints records as plain text. Digests are printed the way
// sha256sum does (digest, two spaces, source) with the value index
// appended for per-value digests.
type hexWriter struct {
	w io.Writer
}

func (h hexWriter) Encode(rec any) error {
	var err error
	switch r := rec.(type) {
	case digestRecord:
		if r.Index < 0 {
			_, err = fmt.Fprintf(h.w, "%s  %s\n", r.Digest, r.Source)
		} else {
			_, err = fmt.Fprintf(h.w, "%s  %s:%d\n", r.Digest, r.Source, r.Index)
		}
	case frameRecord:
		err = writeFrameRecord(h.w, r)
	case verifyRecord:
		status := "OK"
		if !r.OK {
			status = "FAILED: " + r.Error
		}
		_, err = fmt.Fprintf(h.w, "%s: frames=%d verified=%d unsigned=%d %s\n",
			r.Source, r.Frames, r.Verified, r.Unsigned, status)
		for _, failure := range r.Failures {
			if err != nil {
				break
			}
			_, err = fmt.Fprintf(h.w, "  %s\n", failure)
		}
	default:
		err = fmt.Errorf("hex output: unsupported record %T", rec)
	}
	return err
}

// diagWriter prints each record as the diagnostic notation of its CBOR
// encoding.
type diagWriter struct {
	w io.Writer
}

func (d diagWriter) Encode(rec any) error {
	diag, err := codec.Diagnose(rec)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(d.w, diag)
	return err
}

func writeFrameRecord(w io.Writer, r frameRecord) error {
	var b strings.Builder
	fmt.Fprintf(&b, "--- Frame %d ---\n", r.N)
	fmt.Fprintf(&b, "  sid=%d seq=%d kind=%s len=%d\n", r.SID, r.Seq, r.Kind, r.Len)
	if r.Encoding != "" {
		fmt.Fprintf(&b, "  enc=%s\n", r.Encoding)
	}
	if r.CRC != "" {
		fmt.Fprintf(&b, "  crc=%s\n", r.CRC)
	}
	if r.Digest != "" {
		fmt.Fprintf(&b, "  digest=%s\n", r.Digest)
	}
	if r.Final {
		b.WriteString("  final=true\n")
	}
	if r.Payload != "" {
		fmt.Fprintf(&b, "  payload: %s\n", r.Payload)
	}
	_, err := io.WriteString(w, b.String())
	return err
}
