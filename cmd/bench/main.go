// bench - Ion hash benchmark runner
//
// For each input document, reports:
//   - Bytes in, and bytes of canonical hash input (the identity digest)
//   - Hashing throughput per algorithm
//
// Usage:
//
//	bench [--algorithms a,b,...] [--csv out.csv] file...
//
// Output: markdown summary on stdout, optional CSV.
package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/spf13/pflag"

	"github.com/Neumenon/ionhash/internal/compress"
	"github.com/Neumenon/ionhash/ionhash"
	"github.com/Neumenon/ionhash/ionsrc"
)

// CaseResult holds the measurements for one input.
type CaseResult struct {
	Name           string
	InputBytes     int
	CanonicalBytes int
	Values         int
	Throughput     map[string]float64 // MB/s of input, per algorithm
}

// Overhead is the canonical size relative to the input, in percent.
func (r CaseResult) Overhead() float64 {
	if r.InputBytes == 0 {
		return 0
	}
	return float64(r.CanonicalBytes-r.InputBytes) / float64(r.InputBytes) * 100
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("bench", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	algorithms := fs.StringSlice("algorithms", []string{"md5", "sha256", "sha3-256", "blake2b-256", "blake3"}, "algorithms to time")
	csvPath := fs.String("csv", "", "also write results as CSV to this file")
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fmt.Fprintln(stderr, "bench: no input files")
		return 2
	}
	for _, name := range *algorithms {
		if _, err := ionhash.ProviderFor(name); err != nil {
			fmt.Fprintf(stderr, "bench: %v\n", err)
			return 2
		}
	}

	fmt.Fprintf(stderr, "Ion Hash Benchmark Runner\n")
	fmt.Fprintf(stderr, "=========================\n")
	fmt.Fprintf(stderr, "Inputs: %d, algorithms: %v\n\n", fs.NArg(), *algorithms)

	var results []CaseResult
	for _, path := range fs.Args() {
		doc, err := readInput(path)
		if err != nil {
			fmt.Fprintf(stderr, "Skip %s: %v\n", path, err)
			continue
		}
		result, err := measure(filepath.Base(path), doc, *algorithms, timeDigest)
		if err != nil {
			fmt.Fprintf(stderr, "Skip %s: %v\n", path, err)
			continue
		}
		results = append(results, result)
	}

	if *csvPath != "" {
		f, err := os.Create(*csvPath)
		if err != nil {
			fmt.Fprintf(stderr, "bench: %v\n", err)
			return 1
		}
		writeCSV(f, results, *algorithms)
		f.Close()
		fmt.Fprintf(stderr, "CSV written to: %s\n", *csvPath)
	}

	writeMarkdown(stdout, results, *algorithms)
	if len(results) == 0 {
		return 1
	}
	return 0
}

// readInput reads a whole input, removing any compression.
func readInput(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return compress.Decode(data, compress.Detect(data), 0)
}

// timer returns the time one digest of doc takes, in nanoseconds.
type timer func(doc []byte, provider ionhash.HashFunctionProvider) (int64, error)

// measure computes the canonical size of doc and times each algorithm.
func measure(name string, doc []byte, algorithms []string, timeIt timer) (CaseResult, error) {
	result := CaseResult{
		Name:       name,
		InputBytes: len(doc),
		Throughput: make(map[string]float64, len(algorithms)),
	}

	canonical, err := ionhash.DigestStream(ionsrc.NewBytes(doc), ionhash.IdentityProvider())
	if err != nil {
		return result, err
	}
	result.CanonicalBytes = len(canonical)

	digests, err := ionhash.DigestValues(ionsrc.NewBytes(doc), ionhash.IdentityProvider())
	if err != nil {
		return result, err
	}
	result.Values = len(digests)

	for _, alg := range algorithms {
		provider, err := ionhash.ProviderFor(alg)
		if err != nil {
			return result, err
		}
		ns, err := timeIt(doc, provider)
		if err != nil {
			return result, fmt.Errorf("%s: %w", alg, err)
		}
		if ns > 0 {
			result.Throughput[alg] = float64(len(doc)) / float64(ns) * 1e3 // bytes/ns -> MB/s
		}
	}
	return result, nil
}

func timeDigest(doc []byte, provider ionhash.HashFunctionProvider) (int64, error) {
	var benchErr error
	res := testing.Benchmark(func(b *testing.B) {
		b.SetBytes(int64(len(doc)))
		for i := 0; i < b.N; i++ {
			if _, err := ionhash.DigestStream(ionsrc.New(bytes.NewReader(doc)), provider); err != nil {
				benchErr = err
				b.FailNow()
			}
		}
	})
	if benchErr != nil {
		return 0, benchErr
	}
	return res.NsPerOp(), nil
}

func writeCSV(w io.Writer, results []CaseResult, algorithms []string) {
	fmt.Fprint(w, "name,input_bytes,canonical_bytes,overhead_pct,values")
	for _, alg := range algorithms {
		fmt.Fprintf(w, ",%s_mbps", alg)
	}
	fmt.Fprintln(w)
	for _, r := range results {
		fmt.Fprintf(w, "%s,%d,%d,%.1f,%d", r.Name, r.InputBytes, r.CanonicalBytes, r.Overhead(), r.Values)
		for _, alg := range algorithms {
			fmt.Fprintf(w, ",%.1f", r.Throughput[alg])
		}
		fmt.Fprintln(w)
	}
}

func writeMarkdown(w io.Writer, results []CaseResult, algorithms []string) {
	fmt.Fprintf(w, "# Ion Hash Benchmark Results\n\n")

	var totalIn, totalCanonical int
	for _, r := range results {
		totalIn += r.InputBytes
		totalCanonical += r.CanonicalBytes
	}
	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Cases | %d |\n", len(results))
	fmt.Fprintf(w, "| Input bytes | %d |\n", totalIn)
	fmt.Fprintf(w, "| Canonical bytes | %d |\n\n", totalCanonical)

	if len(results) == 0 {
		fmt.Fprintf(w, "_No inputs could be hashed._\n")
		return
	}

	sorted := make([]CaseResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Overhead() > sorted[j].Overhead()
	})
	fmt.Fprintf(w, "## Detailed Results\n\n")
	fmt.Fprintf(w, "| Case | Input | Canonical | Overhead | Values |")
	for _, alg := range algorithms {
		fmt.Fprintf(w, " %s MB/s |", alg)
	}
	fmt.Fprintf(w, "\n|------|-------|-----------|----------|--------|")
	for range algorithms {
		fmt.Fprintf(w, "------|")
	}
	fmt.Fprintln(w)
	for _, r := range sorted {
		fmt.Fprintf(w, "| %s | %d | %d | %+.1f%% | %d |",
			truncateName(r.Name, 25), r.InputBytes, r.CanonicalBytes, r.Overhead(), r.Values)
		for _, alg := range algorithms {
			fmt.Fprintf(w, " %.1f |", r.Throughput[alg])
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "\n## Methodology\n\n")
	fmt.Fprintf(w, "- **Canonical bytes:** length of the identity digest over the whole input\n")
	fmt.Fprintf(w, "- **Throughput:** input bytes hashed per second via `testing.Benchmark`, parsing included\n")
}

func truncateName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
