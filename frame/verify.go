package frame

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Neumenon/ionhash/ionhash"
	"github.com/Neumenon/ionhash/ionsrc"
)

// Verifier recomputes the Ion hash of every doc frame that carries a
// digest and compares it with the announced one. Frames also pass
// through a Cursor, so sequencing errors are reported too.
type Verifier struct {
	Cursor *Cursor

	maxDocument int
	maxDepth    int
	log         *slog.Logger
	providers   map[string]ionhash.HashFunctionProvider
}

// VerifierOption configures a Verifier.
type VerifierOption func(*Verifier)

// WithMaxDocument bounds the decoded size of a compressed payload.
func WithMaxDocument(n int) VerifierOption {
	return func(v *Verifier) {
		v.maxDocument = n
	}
}

// WithHashDepth sets the container nesting limit used when hashing.
func WithHashDepth(depth int) VerifierOption {
	return func(v *Verifier) {
		v.maxDepth = depth
	}
}

// WithVerifierLogger logs each verified frame at debug level.
func WithVerifierLogger(logger *slog.Logger) VerifierOption {
	return func(v *Verifier) {
		if logger != nil {
			v.log = logger
		}
	}
}

// NewVerifier creates a verifier with a fresh cursor.
func NewVerifier(opts ...VerifierOption) *Verifier {
	v := &Verifier{
		Cursor:      NewCursor(),
		maxDocument: MaxPayloadSize,
		maxDepth:    ionhash.DefaultMaxDepth,
		log:         slog.New(slog.NewTextHandler(io.Discard, nil)),
		providers:   make(map[string]ionhash.HashFunctionProvider),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Verify checks one frame and records its digest on the cursor once it
// matches. It returns a *SequenceError for frames out
// of order, a *DigestMismatchError when the payload hashes to a
// different digest, and other errors when the payload cannot be
// decoded or hashed.
func (v *Verifier) Verify(f *Frame) error {
	if err := v.Cursor.Process(f); err != nil {
		return err
	}
	if f.Kind != KindDoc || f.Digest == nil {
		return nil
	}

	got, err := v.Digest(f, f.Digest.Algorithm)
	if err != nil {
		return err
	}
	if !got.Equal(*f.Digest) {
		return &DigestMismatchError{SID: f.SID, Seq: f.Seq, Expected: *f.Digest, Got: got}
	}
	v.Cursor.RecordDigest(f.SID, got)
	v.log.Debug("frame verified", "sid", f.SID, "seq", f.Seq, "digest", got.String())
	return nil
}

// Digest computes the Ion hash of a doc frame's decoded payload.
func (v *Verifier) Digest(f *Frame, algorithm string) (Digest, error) {
	provider, ok := v.providers[algorithm]
	if !ok {
		var err error
		provider, err = ionhash.ProviderFor(algorithm)
		if err != nil {
			return Digest{}, fmt.Errorf("sid %d seq %d: %w", f.SID, f.Seq, err)
		}
		v.providers[algorithm] = provider
	}

	doc, err := f.Document(v.maxDocument)
	if err != nil {
		return Digest{}, fmt.Errorf("sid %d seq %d: %w", f.SID, f.Seq, err)
	}
	sum, err := ionhash.DigestStream(ionsrc.NewBytes(doc), provider, ionhash.WithMaxDepth(v.maxDepth))
	if err != nil {
		return Digest{}, fmt.Errorf("sid %d seq %d: %w", f.SID, f.Seq, err)
	}
	return Digest{Algorithm: algorithm, Sum: sum}, nil
}

// Report summarizes a verification run.
type Report struct {
	Frames   int     // frames read
	Verified int     // doc frames whose digest matched
	Unsigned int     // doc frames without a digest
	Failures []error // per-frame verification errors
}

// OK reports whether every frame verified.
func (r *Report) OK() bool {
	return len(r.Failures) == 0
}

// VerifyAll reads frames from r until EOF. Digest mismatches and
// sequencing errors are collected in the report and reading continues;
// framing errors stop the run since the stream cannot be resynced.
func (v *Verifier) VerifyAll(r *Reader) (*Report, error) {
	report := &Report{}
	for {
		f, err := r.Next()
		if err == io.EOF {
			return report, nil
		}
		if err != nil {
			var crcErr *CRCMismatchError
			if errors.As(err, &crcErr) {
				report.Failures = append(report.Failures, err)
				continue
			}
			return report, err
		}
		report.Frames++

		if err := v.Verify(f); err != nil {
			v.log.Warn("frame failed verification", "sid", f.SID, "seq", f.Seq, "error", err)
			report.Failures = append(report.Failures, err)
			continue
		}
		if f.Kind == KindDoc {
			if f.Digest != nil {
				report.Verified++
			} else {
				report.Unsigned++
			}
		}
	}
}
