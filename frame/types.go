// Package frame implements a line-framed transport for Ion documents
// that carries an Ion hash of each payload.
//
// A frame is a one-line header followed by the payload bytes:
//
//	@frame{v=1 sid=N seq=N kind=K len=N [enc=E] [crc=X] [digest=alg:hex] [final=true]}\n
//	<payload bytes>\n
//
// The header provides:
//   - Message boundaries (len) and resync on the next @frame line
//   - Multiplexing via stream IDs (sid)
//   - Ordering via sequence numbers (seq)
//   - Transport integrity via optional CRC-32 of the payload as sent
//   - Content integrity via an optional Ion hash of the decoded payload
//
// The digest covers the logical Ion values, so a payload re-encoded
// from text to binary (or recompressed) keeps the same digest.
package frame

import (
	"bytes"
	"fmt"

	"github.com/Neumenon/ionhash/internal/compress"
)

// Version is the frame protocol version.
const Version uint8 = 1

// Kind indicates the semantic category of a frame's payload.
type Kind uint8

const (
	KindDoc  Kind = 0 // Ion document
	KindAck  Kind = 1 // Acknowledgement, no payload
	KindErr  Kind = 2 // Error report
	KindPing Kind = 3 // Keepalive
	KindPong Kind = 4 // Ping response
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDoc:
		return "doc"
	case KindAck:
		return "ack"
	case KindErr:
		return "err"
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// ParseKind parses a kind name or its numeric value.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "doc", "0":
		return KindDoc, true
	case "ack", "1":
		return KindAck, true
	case "err", "2":
		return KindErr, true
	case "ping", "3":
		return KindPing, true
	case "pong", "4":
		return KindPong, true
	default:
		return 0, false
	}
}

// Digest is an Ion hash tagged with the algorithm that produced it.
type Digest struct {
	Algorithm string
	Sum       []byte
}

// String formats the digest as it appears in a header: alg:hex.
func (d Digest) String() string {
	return d.Algorithm + ":" + formatHex(d.Sum)
}

// Equal reports whether two digests name the same algorithm and sum.
func (d Digest) Equal(other Digest) bool {
	return d.Algorithm == other.Algorithm && bytes.Equal(d.Sum, other.Sum)
}

// Frame represents a single frame.
type Frame struct {
	// Required fields
	Version uint8  // Protocol version (must be 1)
	SID     uint64 // Stream identifier
	Seq     uint64 // Sequence number (per-SID, monotonic)
	Kind    Kind   // Frame kind
	Payload []byte // Payload bytes as sent (possibly compressed)

	// Optional fields
	Encoding compress.Encoding // Payload compression
	CRC      *uint32           // CRC-32 of Payload (nil if not present)
	Digest   *Digest           // Ion hash of the decoded payload (nil if not present)
	Final    bool              // End-of-stream marker
}

// HasCRC returns true if CRC is present.
func (f *Frame) HasCRC() bool {
	return f.CRC != nil
}

// HasDigest returns true if a digest is present.
func (f *Frame) HasDigest() bool {
	return f.Digest != nil
}

// Document returns the payload with any compression removed.
func (f *Frame) Document(limit int) ([]byte, error) {
	return compress.Decode(f.Payload, f.Encoding, limit)
}

// MaxPayloadSize is the default maximum payload size (64 MiB), applied
// to both the payload as sent and its decoded form.
const MaxPayloadSize = 64 * 1024 * 1024

// ============================================================
// Errors
// ============================================================

// ParseError reports a malformed frame header.
type ParseError struct {
	Reason string
	Offset int
}

func (e *ParseError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("frame: %s at offset %d", e.Reason, e.Offset)
	}
	return fmt.Sprintf("frame: %s", e.Reason)
}

// CRCMismatchError is returned when CRC verification fails.
type CRCMismatchError struct {
	Expected uint32
	Got      uint32
}

func (e *CRCMismatchError) Error() string {
	return fmt.Sprintf("frame: CRC mismatch: expected %08x, got %08x", e.Expected, e.Got)
}

// DigestMismatchError is returned when a payload's Ion hash differs
// from the digest its header announced.
type DigestMismatchError struct {
	SID      uint64
	Seq      uint64
	Expected Digest
	Got      Digest
}

func (e *DigestMismatchError) Error() string {
	return fmt.Sprintf("frame: sid %d seq %d: digest mismatch: expected %s, got %s", e.SID, e.Seq, e.Expected, e.Got)
}

// SequenceError reports a duplicate, reordered or missing frame.
type SequenceError struct {
	SID      uint64
	Expected uint64
	Got      uint64
}

func (e *SequenceError) Error() string {
	if e.Got < e.Expected {
		return fmt.Sprintf("frame: sid %d: sequence not monotonic: got %d, expected %d", e.SID, e.Got, e.Expected)
	}
	return fmt.Sprintf("frame: sid %d: sequence gap: expected %d, got %d", e.SID, e.Expected, e.Got)
}
