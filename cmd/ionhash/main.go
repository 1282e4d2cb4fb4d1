// ionhash - Ion hash CLI tool
//
// Usage:
//
//	ionhash digest [options] [file...]         Print the Ion hash of each top-level value
//	ionhash digest --stream [options] [file...] Print one Ion hash per input
//	ionhash frames write [options] [file...]   Frame documents with their digests
//	ionhash frames verify [options] [file]     Verify digests in a frame stream
//	ionhash frames decode [file]               Print frame headers and payloads
//	ionhash algorithms                         List hash algorithms
//	ionhash version                            Print version info
//
// Inputs may be Ion text or binary, optionally gzip, zstd or LZ4
// compressed; the format is detected. If no file is given, or the file
// is "-", reads from stdin.
package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/pflag"

	"github.com/Neumenon/ionhash/internal/compress"
	"github.com/Neumenon/ionhash/internal/config"
	"github.com/Neumenon/ionhash/ionhash"
)

const version = "0.1.0"

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1 // an input failed to hash or verify
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// cli carries the process streams so commands can be driven from tests.
type cli struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := &cli{stdin: stdin, stdout: stdout, stderr: stderr}

	if len(args) < 1 {
		c.printUsage()
		return exitUsage
	}

	switch args[0] {
	case "digest":
		return c.cmdDigest(args[1:])
	case "frames":
		return c.cmdFrames(args[1:])
	case "algorithms":
		for _, name := range ionhash.Algorithms() {
			fmt.Fprintln(c.stdout, name)
		}
		return exitOK
	case "version", "--version":
		fmt.Fprintf(c.stdout, "ionhash %s\n", version)
		return exitOK
	case "help", "-h", "--help":
		c.printUsage()
		return exitOK
	default:
		fmt.Fprintf(c.stderr, "ionhash: unknown command: %s\n", args[0])
		c.printUsage()
		return exitUsage
	}
}

func (c *cli) printUsage() {
	fmt.Fprint(c.stderr, `ionhash - Ion hash CLI tool

Usage:
  ionhash digest [options] [file...]        Print the Ion hash of each top-level value
  ionhash frames write [options] [file...]  Frame documents with their digests
  ionhash frames verify [options] [file]    Verify digests in a frame stream
  ionhash frames decode [file]              Print frame headers and payloads
  ionhash algorithms                        List hash algorithms
  ionhash version                           Print version info

Common options:
  --config PATH        YAML config file (default: $IONHASH_CONFIG)
  -a, --algorithm NAME Hash algorithm (default: sha256)
  -o, --output FORMAT  hex, json, cbor or diag (default: hex)
  --max-depth N        Container nesting limit (default: 128)
  -v, --verbose        Debug logging on stderr

Inputs may be Ion text or binary, plain or gzip/zstd/lz4 compressed.
If no file is given, reads from stdin.

Examples:
  echo '{b:2, a:1}' | ionhash digest
  ionhash digest --stream -a blake3 data.ion.zst
  ionhash frames write --sid 7 --crc --compress zstd a.ion b.ion > docs.frames
  ionhash frames verify docs.frames
`)
}

// ============================================================
// Shared options
// ============================================================

// options are the flags every hashing command accepts. They override
// the loaded config only when set on the command line.
type options struct {
	configPath string
	algorithm  string
	output     string
	maxDepth   int
	verbose    bool
}

func (o *options) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "YAML config file (default: $IONHASH_CONFIG)")
	fs.StringVarP(&o.algorithm, "algorithm", "a", "", "hash algorithm")
	fs.StringVarP(&o.output, "output", "o", "", "output format: hex, json, cbor or diag")
	fs.IntVar(&o.maxDepth, "max-depth", 0, "container nesting limit")
	fs.BoolVarP(&o.verbose, "verbose", "v", false, "debug logging on stderr")
}

// load resolves the config and applies flag overrides.
func (o *options) load(fs *pflag.FlagSet) (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if fs.Changed("algorithm") {
		cfg.Algorithm = o.algorithm
	}
	if fs.Changed("output") {
		cfg.Output = o.output
	}
	if fs.Changed("max-depth") {
		cfg.MaxDepth = o.maxDepth
	}
	if o.verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *cli) logger(cfg *config.Config) *slog.Logger {
	return slog.New(slog.NewTextHandler(c.stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))
}

// parseFlags parses args, reporting whether the command should go on.
// A request for help exits cleanly.
func (c *cli) parseFlags(fs *pflag.FlagSet, args []string) (int, bool) {
	fs.SetOutput(c.stderr)
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK, false
		}
		fmt.Fprintf(c.stderr, "ionhash %s: %v\n", fs.Name(), err)
		return exitUsage, false
	}
	return exitOK, true
}

func (c *cli) errorf(format string, args ...any) {
	fmt.Fprintf(c.stderr, "ionhash: "+format+"\n", args...)
}

// ============================================================
// Input
// ============================================================

// open returns a reader over the decompressed contents of name, or of
// stdin for "-".
func (c *cli) open(name string) (io.Reader, func() error, error) {
	var raw io.Reader
	var closeRaw func() error
	if name == "-" {
		raw = c.stdin
		closeRaw = func() error { return nil }
	} else {
		f, err := os.Open(name)
		if err != nil {
			return nil, nil, err
		}
		raw = f
		closeRaw = f.Close
	}

	r, closer, err := compress.NewReader(raw)
	if err != nil {
		closeRaw()
		return nil, nil, fmt.Errorf("%s: %w", name, err)
	}
	return r, func() error {
		cerr := closer.Close()
		if err := closeRaw(); err != nil {
			return err
		}
		return cerr
	}, nil
}

func inputNames(args []string) []string {
	if len(args) == 0 {
		return []string{"-"}
	}
	return args
}
