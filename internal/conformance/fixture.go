// Package conformance loads Ion hash fixtures and checks the engine
// against them.
//
// A fixture document is a sequence of structs, one per case:
//
//	'case name'::{
//	  ion: <value>,              // or '10n': [<binary Ion bytes after the IVM>]
//	  expect: {
//	    identity: (update::(0x0b) ... digest::(...) final_digest::(...)),
//	  },
//	}
//
// Every algorithm named under expect is run against every syntax.
package conformance

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/Neumenon/ionhash/ionhash"
	"github.com/Neumenon/ionhash/ionsrc"
)

// ============================================================
// Types
// ============================================================

// Syntax is the form a case's input is fed to the engine in.
type Syntax uint8

const (
	SyntaxValue  Syntax = iota // in-memory values, no parser
	SyntaxText                 // Ion text
	SyntaxBinary               // Ion binary
)

// Syntaxes lists every syntax a case runs under.
var Syntaxes = []Syntax{SyntaxValue, SyntaxText, SyntaxBinary}

// String returns the syntax name.
func (s Syntax) String() string {
	switch s {
	case SyntaxValue:
		return "value"
	case SyntaxText:
		return "text"
	case SyntaxBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// Expectation is what one algorithm must produce for a case.
type Expectation struct {
	Updates     [][]byte // compared only when non-empty
	Digests     [][]byte
	FinalDigest []byte // when set, Digests is ignored
}

// Case is one fixture.
type Case struct {
	Name   string
	Value  *ionhash.Value // nil when the case is given as binary
	Binary []byte         // binary Ion without the version marker
	Expect map[string]Expectation
}

// Algorithms returns the algorithms the case has expectations for,
// sorted.
func (c *Case) Algorithms() []string {
	names := make([]string, 0, len(c.Expect))
	for name := range c.Expect {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// FixtureError reports a fixture that does not have the expected shape.
type FixtureError struct {
	Index  int
	Name   string
	Reason string
}

func (e *FixtureError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("fixture %d (%s): %s", e.Index, e.Name, e.Reason)
	}
	return fmt.Sprintf("fixture %d: %s", e.Index, e.Reason)
}

// ============================================================
// Loading
// ============================================================

// LoadFile reads fixtures from an Ion file.
func LoadFile(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load reads fixtures from an Ion document.
func Load(r io.Reader) ([]Case, error) {
	values, err := ionhash.Collect(ionsrc.New(r))
	if err != nil {
		return nil, fmt.Errorf("load fixtures: %w", err)
	}

	cases := make([]Case, 0, len(values))
	for i, v := range values {
		c, err := parseCase(i, v)
		if err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func parseCase(index int, v *ionhash.Value) (Case, error) {
	fail := func(name, format string, args ...any) (Case, error) {
		return Case{}, &FixtureError{Index: index, Name: name, Reason: fmt.Sprintf(format, args...)}
	}
	if v.Type() != ionhash.StructType || v.IsNull() {
		return fail("", "expected a struct, got %s", v.Type())
	}

	c := Case{Expect: make(map[string]Expectation)}
	if anns := v.Annotations(); len(anns) > 0 {
		c.Name = anns[0].String()
	}

	var expect *ionhash.Value
	for _, f := range v.Fields() {
		switch f.Name.String() {
		case "ion":
			c.Value = f.Value
		case "10n":
			b, err := byteList(f.Value)
			if err != nil {
				return fail(c.Name, "10n: %v", err)
			}
			c.Binary = b
		case "expect":
			expect = f.Value
		}
	}

	if c.Value == nil && c.Binary == nil {
		return fail(c.Name, "needs an ion or 10n field")
	}
	if c.Name == "" {
		c.Name = fmt.Sprintf("case %d", index)
	}
	if expect == nil || expect.Type() != ionhash.StructType || expect.IsNull() {
		return fail(c.Name, "missing expect struct")
	}

	for _, f := range expect.Fields() {
		exp, err := parseExpectation(f.Value)
		if err != nil {
			return fail(c.Name, "expect.%s: %v", f.Name, err)
		}
		c.Expect[f.Name.String()] = exp
	}
	return c, nil
}

func parseExpectation(v *ionhash.Value) (Expectation, error) {
	var exp Expectation
	if v.Type() != ionhash.SexpType || v.IsNull() {
		return exp, fmt.Errorf("expected a sexp, got %s", v.Type())
	}
	for _, e := range v.Elems() {
		anns := e.Annotations()
		if len(anns) == 0 {
			return exp, errors.New("unannotated entry")
		}
		b, err := byteList(e)
		if err != nil {
			return exp, err
		}
		switch kind := anns[0].String(); kind {
		case "update":
			exp.Updates = append(exp.Updates, b)
		case "digest":
			exp.Digests = append(exp.Digests, b)
		case "final_digest":
			exp.FinalDigest = b
		default:
			return exp, fmt.Errorf("unknown entry %q", kind)
		}
	}
	if exp.FinalDigest == nil && len(exp.Digests) == 0 {
		return exp, errors.New("no digest or final_digest")
	}
	return exp, nil
}

// byteList converts a list or sexp of ints in [0, 255] to bytes.
func byteList(v *ionhash.Value) ([]byte, error) {
	if (v.Type() != ionhash.ListType && v.Type() != ionhash.SexpType) || v.IsNull() {
		return nil, fmt.Errorf("expected a list of bytes, got %s", v.Type())
	}
	out := make([]byte, 0, len(v.Elems()))
	for _, e := range v.Elems() {
		n := e.Scalar().Int
		if e.Type() != ionhash.IntType || e.IsNull() || n == nil || !n.IsInt64() || n.Int64() < 0 || n.Int64() > 0xFF {
			return nil, fmt.Errorf("element %s is not a byte", e.Type())
		}
		out = append(out, byte(n.Int64()))
	}
	return out, nil
}
