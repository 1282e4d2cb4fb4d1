// Package codec encodes the CLI's machine-readable reports as CBOR.
//
// Encoding follows the RFC 8949 core deterministic rules, so a report
// always produces the same bytes. Report types carry only `json` tags;
// the CBOR encoder reads those when no `cbor` tag is present.
package codec

import (
	"io"

	"github.com/fxamacker/cbor/v2"
)

var encMode cbor.EncMode

func init() {
	opts := cbor.CoreDetEncOptions()
	opts.TextMarshaler = cbor.TextMarshalerTextString
	mode, err := opts.EncMode()
	if err != nil {
		panic("codec: " + err.Error())
	}
	encMode = mode
}

// Marshal returns the deterministic CBOR encoding of v.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Encoder writes a CBOR sequence, one item per Encode call.
type Encoder = cbor.Encoder

// NewEncoder returns an Encoder writing to w.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// Diagnose renders v in CBOR diagnostic notation (RFC 8949 §8), the
// human-readable form of exactly the bytes Marshal produces.
func Diagnose(v any) (string, error) {
	data, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return cbor.Diagnose(data)
}
