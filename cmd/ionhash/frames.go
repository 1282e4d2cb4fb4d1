package main

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/pflag"

	"github.com/Neumenon/ionhash/frame"
	"github.com/Neumenon/ionhash/internal/compress"
)

func (c *cli) cmdFrames(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(c.stderr, "ionhash frames: missing subcommand (write, verify, decode)")
		return exitUsage
	}
	switch args[0] {
	case "write":
		return c.cmdFramesWrite(args[1:])
	case "verify":
		return c.cmdFramesVerify(args[1:])
	case "decode":
		return c.cmdFramesDecode(args[1:])
	default:
		fmt.Fprintf(c.stderr, "ionhash frames: unknown subcommand: %s\n", args[0])
		return exitUsage
	}
}

// ============================================================
// frames write
// ============================================================

func (c *cli) cmdFramesWrite(args []string) int {
	fs := pflag.NewFlagSet("frames write", pflag.ContinueOnError)
	var opts options
	opts.addFlags(fs)
	sid := fs.Uint64("sid", 1, "stream ID")
	seq := fs.Uint64("seq", 1, "sequence number of the first frame")
	final := fs.Bool("final", false, "mark the last frame as final")
	crc := fs.Bool("crc", false, "add a CRC-32 to every frame")
	noDigest := fs.Bool("no-digest", false, "do not stamp digests")
	compression := fs.String("compress", "", "payload compression: none, gzip, zstd or lz4")
	if code, ok := c.parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := opts.load(fs)
	if err != nil {
		c.errorf("%v", err)
		return exitUsage
	}
	if fs.Changed("compress") {
		enc, err := compress.Parse(*compression)
		if err != nil {
			c.errorf("%v", err)
			return exitUsage
		}
		cfg.Frames.Compression = enc
	}
	if fs.Changed("crc") {
		cfg.Frames.CRC = *crc
	}
	logger := c.logger(cfg)

	writerOpts := []frame.WriterOption{frame.WithCompression(cfg.Frames.Compression)}
	if cfg.Frames.CRC {
		writerOpts = append(writerOpts, frame.WithCRC())
	}
	if !*noDigest {
		writerOpts = append(writerOpts, frame.WithDigest(cfg.Algorithm))
	}
	w, err := frame.NewWriter(c.stdout, writerOpts...)
	if err != nil {
		c.errorf("%v", err)
		return exitUsage
	}

	inputs := inputNames(fs.Args())
	next := *seq
	for i, name := range inputs {
		doc, err := c.readDocument(name, cfg.Frames.MaxPayload)
		if err != nil {
			c.errorf("%s: %v", name, err)
			return exitFailure
		}

		var f *frame.Frame
		if *final && i == len(inputs)-1 {
			f, err = w.WriteFinal(*sid, next, doc)
		} else {
			f, err = w.WriteDoc(*sid, next, doc)
		}
		if err != nil {
			c.errorf("%s: %v", name, err)
			return exitFailure
		}
		logger.Debug("frame written", "source", name, "sid", f.SID, "seq", f.Seq, "len", len(f.Payload))
		next++
	}
	return exitOK
}

// readDocument reads a whole decompressed input, bounded by limit.
func (c *cli) readDocument(name string, limit int) ([]byte, error) {
	r, closeInput, err := c.open(name)
	if err != nil {
		return nil, err
	}
	defer closeInput()

	doc, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, err
	}
	if len(doc) > limit {
		return nil, fmt.Errorf("document exceeds %d bytes", limit)
	}
	return doc, nil
}

// ============================================================
// frames verify
// ============================================================

// verifyRecord summarizes the verification of one frame stream.
type verifyRecord struct {
	Source   string   `json:"source"`
	Frames   int      `json:"frames"`
	Verified int      `json:"verified"`
	Unsigned int      `json:"unsigned"`
	OK       bool     `json:"ok"`
	Error    string   `json:"error,omitempty"`
	Failures []string `json:"failures,omitempty"`
}

func (c *cli) cmdFramesVerify(args []string) int {
	fs := pflag.NewFlagSet("frames verify", pflag.ContinueOnError)
	var opts options
	opts.addFlags(fs)
	if code, ok := c.parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := opts.load(fs)
	if err != nil {
		c.errorf("%v", err)
		return exitUsage
	}
	logger := c.logger(cfg)
	out, err := newRecordWriter(c.stdout, cfg.Output)
	if err != nil {
		c.errorf("%v", err)
		return exitUsage
	}

	status := exitOK
	for _, name := range inputNames(fs.Args()) {
		rec := verifyRecord{Source: name}

		r, closeInput, err := c.open(name)
		if err != nil {
			c.errorf("%v", err)
			return exitFailure
		}
		verifier := frame.NewVerifier(
			frame.WithMaxDocument(cfg.Frames.MaxPayload),
			frame.WithHashDepth(cfg.MaxDepth),
			frame.WithVerifierLogger(logger.With("source", name)),
		)
		report, runErr := verifier.VerifyAll(frame.NewReader(r, frame.WithMaxPayload(cfg.Frames.MaxPayload)))
		closeInput()

		rec.Frames = report.Frames
		rec.Verified = report.Verified
		rec.Unsigned = report.Unsigned
		for _, failure := range report.Failures {
			rec.Failures = append(rec.Failures, failure.Error())
		}
		if runErr != nil {
			rec.Error = runErr.Error()
		} else if !report.OK() {
			rec.Error = fmt.Sprintf("%d frame(s) failed", len(report.Failures))
		}
		rec.OK = rec.Error == ""
		if !rec.OK {
			status = exitFailure
		}

		if err := out.Encode(rec); err != nil {
			c.errorf("%v", err)
			return exitFailure
		}
	}
	return status
}

// ============================================================
// frames decode
// ============================================================

// frameRecord describes one decoded frame.
type frameRecord struct {
	N        int    `json:"n"`
	SID      uint64 `json:"sid"`
	Seq      uint64 `json:"seq"`
	Kind     string `json:"kind"`
	Len      int    `json:"len"`
	Encoding string `json:"enc,omitempty"`
	CRC      string `json:"crc,omitempty"`
	Digest   string `json:"digest,omitempty"`
	Final    bool   `json:"final,omitempty"`
	Payload  string `json:"payload,omitempty"`
}

const maxPayloadPreview = 200

func newFrameRecord(n int, f *frame.Frame, maxDocument int) frameRecord {
	rec := frameRecord{
		N:    n,
		SID:  f.SID,
		Seq:  f.Seq,
		Kind: f.Kind.String(),
		Len:  len(f.Payload),
	}
	if f.Encoding != compress.None {
		rec.Encoding = f.Encoding.String()
	}
	if f.CRC != nil {
		rec.CRC = fmt.Sprintf("%08x", *f.CRC)
	}
	if f.Digest != nil {
		rec.Digest = f.Digest.String()
	}
	rec.Final = f.Final

	payload := f.Payload
	if doc, err := f.Document(maxDocument); err == nil {
		payload = doc
	}
	preview := string(payload)
	if len(preview) > maxPayloadPreview {
		preview = preview[:maxPayloadPreview] + "..."
	}
	rec.Payload = preview
	return rec
}

func (c *cli) cmdFramesDecode(args []string) int {
	fs := pflag.NewFlagSet("frames decode", pflag.ContinueOnError)
	var opts options
	opts.addFlags(fs)
	if code, ok := c.parseFlags(fs, args); !ok {
		return code
	}

	cfg, err := opts.load(fs)
	if err != nil {
		c.errorf("%v", err)
		return exitUsage
	}
	out, err := newRecordWriter(c.stdout, cfg.Output)
	if err != nil {
		c.errorf("%v", err)
		return exitUsage
	}

	status := exitOK
	for _, name := range inputNames(fs.Args()) {
		r, closeInput, err := c.open(name)
		if err != nil {
			c.errorf("%v", err)
			return exitFailure
		}
		reader := frame.NewReader(r, frame.WithMaxPayload(cfg.Frames.MaxPayload))

		n := 0
		for {
			f, err := reader.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				c.errorf("%s: frame %d: %v", name, n+1, err)
				status = exitFailure
				var crcErr *frame.CRCMismatchError
				if errors.As(err, &crcErr) {
					continue
				}
				break
			}
			n++
			if err := out.Encode(newFrameRecord(n, f, cfg.Frames.MaxPayload)); err != nil {
				c.errorf("%v", err)
				closeInput()
				return exitFailure
			}
		}
		closeInput()
	}
	return status
}
