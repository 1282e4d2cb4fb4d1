package main

import (
	"log/slog"

	"github.com/spf13/pflag"

	"github.com/Neumenon/ionhash/internal/config"
	"github.com/Neumenon/ionhash/ionhash"
	"github.com/Neumenon/ionhash/ionsrc"
)

func (c *cli) cmdDigest(args []string) int {
	fs := pflag.NewFlagSet("digest", pflag.ContinueOnError)
	var opts options
	opts.addFlags(fs)
	streamMode := fs.Bool("stream", false, "print one digest per input instead of one per top-level value")
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
		if err := c.digestInput(name, cfg, *streamMode, logger, out); err != nil {
			c.errorf("%s: %v", name, err)
			status = exitFailure
		}
	}
	return status
}

// digestInput hashes one input and writes its records. Digests of the
// values before a failure are still written.
func (c *cli) digestInput(name string, cfg *config.Config, streamMode bool, logger *slog.Logger, out recordWriter) error {
	r, closeInput, err := c.open(name)
	if err != nil {
		return err
	}
	defer closeInput()

	provider, err := ionhash.ProviderFor(cfg.Algorithm)
	if err != nil {
		return err
	}
	src := ionsrc.New(r)
	hashOpts := []ionhash.Option{
		ionhash.WithMaxDepth(cfg.MaxDepth),
		ionhash.WithLogger(logger.With("source", name)),
	}

	if streamMode {
		digest, err := ionhash.DigestStream(src, provider, hashOpts...)
		if err != nil {
			return err
		}
		return out.Encode(newDigestRecord(name, -1, cfg.Algorithm, digest))
	}

	digests, hashErr := ionhash.DigestValues(src, provider, hashOpts...)
	for i, digest := range digests {
		if err := out.Encode(newDigestRecord(name, i, cfg.Algorithm, digest)); err != nil {
			return err
		}
	}
	logger.Debug("input hashed", "source", name, "values", len(digests))
	return hashErr
}
