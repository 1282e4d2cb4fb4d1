package conformance

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/Neumenon/ionhash/ionhash"
	"github.com/Neumenon/ionhash/ionsrc"
)

var ivm = []byte{0xE0, 0x01, 0x00, 0xEA}

// MismatchError reports output that differs from a case's expectation.
type MismatchError struct {
	Case      string
	Syntax    Syntax
	Algorithm string
	What      string // "updates", "digests", "final digest" or "returned digest"
	Got, Want [][]byte
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("%s [%s/%s]: %s mismatch\n got: %s\nwant: %s",
		e.Case, e.Syntax, e.Algorithm, e.What, formatChunks(e.Got), formatChunks(e.Want))
}

func formatChunks(chunks [][]byte) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("(% x)", c)
	}
	return strings.Join(parts, " ")
}

// Source returns an event source over the case input in the given
// syntax. Binary cases are decoded before re-rendering as text; value
// cases are rendered with ion-go for the text and binary syntaxes.
func (c *Case) Source(syntax Syntax) (ionhash.EventSource, error) {
	if c.Binary != nil && syntax == SyntaxBinary {
		return ionsrc.NewBytes(append(append([]byte{}, ivm...), c.Binary...)), nil
	}

	values, err := c.values()
	if err != nil {
		return nil, err
	}
	if syntax == SyntaxValue {
		return ionhash.NewValueSource(values...), nil
	}
	data, err := render(values, syntax)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.Name, err)
	}
	return ionsrc.NewBytes(data), nil
}

func (c *Case) values() ([]*ionhash.Value, error) {
	if c.Value != nil {
		return []*ionhash.Value{c.Value}, nil
	}
	values, err := ionhash.Collect(ionsrc.NewBytes(append(append([]byte{}, ivm...), c.Binary...)))
	if err != nil {
		return nil, fmt.Errorf("%s: decode 10n: %w", c.Name, err)
	}
	return values, nil
}

// Run reads the whole case input through a Hasher, takes one digest at
// stream end, and compares the recorded updates and digests against the
// expectation for algorithm.
//
// Updates are compared as one concatenated byte string: how the engine
// splits its writes is not part of the contract, the bytes are.
func Run(c *Case, syntax Syntax, algorithm string) error {
	exp, ok := c.Expect[algorithm]
	if !ok {
		return fmt.Errorf("%s: no expectation for %s", c.Name, algorithm)
	}

	src, err := c.Source(syntax)
	if err != nil {
		return err
	}
	rec := &ionhash.Recorder{}
	provider, err := ionhash.ProviderFor(algorithm, ionhash.WithObserver(rec))
	if err != nil {
		return err
	}
	h, err := ionhash.New(src, provider)
	if err != nil {
		return err
	}

	for {
		ev, err := h.Next()
		if err != nil {
			return fmt.Errorf("%s [%s/%s]: %w", c.Name, syntax, algorithm, err)
		}
		if ev.Kind == ionhash.EventStreamEnd {
			break
		}
	}

	mismatch := func(what string, got, want [][]byte) error {
		return &MismatchError{Case: c.Name, Syntax: syntax, Algorithm: algorithm, What: what, Got: got, Want: want}
	}

	if len(exp.Updates) > 0 {
		got, want := bytes.Join(rec.Updates(), nil), bytes.Join(exp.Updates, nil)
		if !bytes.Equal(got, want) {
			return mismatch("updates", [][]byte{got}, [][]byte{want})
		}
	}

	digest, err := h.Digest()
	if err != nil {
		return fmt.Errorf("%s [%s/%s]: %w", c.Name, syntax, algorithm, err)
	}
	digests := rec.Digests()

	if exp.FinalDigest != nil {
		if len(digests) == 0 || !bytes.Equal(digests[len(digests)-1], exp.FinalDigest) {
			return mismatch("final digest", digests, [][]byte{exp.FinalDigest})
		}
		if !bytes.Equal(digest, exp.FinalDigest) {
			return mismatch("returned digest", [][]byte{digest}, [][]byte{exp.FinalDigest})
		}
		return nil
	}

	if !equalChunks(digests, exp.Digests) {
		return mismatch("digests", digests, exp.Digests)
	}
	if !bytes.Equal(digest, exp.Digests[len(exp.Digests)-1]) {
		return mismatch("returned digest", [][]byte{digest}, exp.Digests[len(exp.Digests)-1:])
	}
	return nil
}

func equalChunks(a, b [][]byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !bytes.Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
