package ionhash

import (
	"bytes"
	"io"
	"log/slog"
	"sort"
)

// DefaultMaxDepth bounds container nesting unless WithMaxDepth says
// otherwise.
const DefaultMaxDepth = 128

// EventSource produces structural events in stream order. After it has
// returned an EventStreamEnd event it returns ErrSourceExhausted.
type EventSource interface {
	Next() (Event, error)
}

// Command selects the operation Step performs.
type Command uint8

const (
	CommandNextEvent Command = iota
	CommandDigest
	CommandSkip
)

// String returns the command name.
func (c Command) String() string {
	switch c {
	case CommandNextEvent:
		return "NEXT_EVENT"
	case CommandDigest:
		return "DIGEST"
	case CommandSkip:
		return "SKIP"
	default:
		return "UNKNOWN"
	}
}

// Result is what Step returns: an Event for CommandNextEvent and
// CommandSkip, a Digest for CommandDigest.
type Result struct {
	Command Command
	Event   Event
	Digest  []byte
}

// hashContext is one level of the context stack. Sequences share their
// parent's hash function; structs hash each field with fieldHash and
// keep the field digests until the struct closes.
type hashContext struct {
	typ       Type
	hf        HashFunction
	annotated bool

	fieldHash   HashFunction
	fieldDigest [][]byte
}

func (c *hashContext) isStruct() bool {
	return c.typ == StructType
}

func (c *hashContext) sink() sink {
	return c.hf.Update
}

// pendingPrefix holds standalone field name and annotation events until
// the value they belong to arrives.
type pendingPrefix struct {
	fieldName   *SymbolToken
	annotations []SymbolToken
}

func (p pendingPrefix) empty() bool {
	return p.fieldName == nil && len(p.annotations) == 0
}

// Hasher computes Ion hashes incrementally while its caller pulls events
// through it. A Hasher is not safe for concurrent use.
type Hasher struct {
	src      EventSource
	provider HashFunctionProvider
	stack    []*hashContext
	pending  pendingPrefix
	maxDepth int
	log      *slog.Logger
	err      error
}

// Option configures a Hasher.
type Option func(*Hasher)

// WithMaxDepth sets the maximum container nesting depth.
func WithMaxDepth(depth int) Option {
	return func(h *Hasher) {
		if depth > 0 {
			h.maxDepth = depth
		}
	}
}

// WithLogger routes debug tracing of context pushes, pops and digests
// to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hasher) {
		if logger != nil {
			h.log = logger
		}
	}
}

// New returns a Hasher reading from src and hashing with functions from
// provider.
func New(src EventSource, provider HashFunctionProvider, opts ...Option) (*Hasher, error) {
	h := &Hasher{
		src:      src,
		provider: provider,
		maxDepth: DefaultMaxDepth,
		log:      slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}

	hf, err := provider()
	if err != nil {
		return nil, primitiveFailure(0, "creating top-level hash function", err)
	}
	h.stack = append(make([]*hashContext, 0, 16), &hashContext{typ: NoType, hf: hf})
	return h, nil
}

// Depth returns the current container nesting depth (0 at top level).
func (h *Hasher) Depth() int {
	return len(h.stack) - 1
}

// Err returns the error that stopped the Hasher, if any.
func (h *Hasher) Err() error {
	return h.err
}

// Step dispatches cmd.
func (h *Hasher) Step(cmd Command) (Result, error) {
	switch cmd {
	case CommandNextEvent:
		ev, err := h.Next()
		return Result{Command: cmd, Event: ev}, err
	case CommandSkip:
		ev, err := h.Skip()
		return Result{Command: cmd, Event: ev}, err
	case CommandDigest:
		digest, err := h.Digest()
		return Result{Command: cmd, Digest: digest}, err
	default:
		return Result{Command: cmd}, malformed(h.Depth(), "unknown command %d", cmd)
	}
}

// Next pulls the next event from the source, hashes it, and returns it
// unchanged.
func (h *Hasher) Next() (Event, error) {
	if h.err != nil {
		return Event{}, h.err
	}
	ev, err := h.src.Next()
	if err != nil {
		return Event{}, h.fail(err)
	}
	if err := h.hashEvent(ev); err != nil {
		return ev, h.fail(err)
	}
	return ev, nil
}

// Skip consumes the rest of the current container, hashing everything
// it passes over, and returns the container's end event. At top level
// it is the same as Next.
func (h *Hasher) Skip() (Event, error) {
	if h.Depth() == 0 {
		return h.Next()
	}
	open := len(h.stack)
	for {
		ev, err := h.Next()
		if err != nil {
			return ev, err
		}
		if len(h.stack) < open {
			return ev, nil
		}
	}
}

// Digest returns the digest of everything hashed at top level since the
// previous Digest, and resets the top-level hash function. It may only
// be called between top-level values.
func (h *Hasher) Digest() ([]byte, error) {
	if h.err != nil {
		return nil, h.err
	}
	if h.Depth() != 0 {
		return nil, h.fail(malformed(h.Depth(), "digest requested inside a %s", h.current().typ))
	}
	if !h.pending.empty() {
		return nil, h.fail(malformed(0, "digest requested after a field name or annotation with no value"))
	}
	digest, err := h.stack[0].hf.Digest()
	if err != nil {
		return nil, h.fail(primitiveFailure(0, "top-level digest", err))
	}
	h.log.Debug("digest", "bytes", len(digest))
	return digest, nil
}

func (h *Hasher) fail(err error) error {
	h.err = err
	return err
}

func (h *Hasher) current() *hashContext {
	return h.stack[len(h.stack)-1]
}

func (h *Hasher) hashEvent(ev Event) error {
	switch ev.Kind {
	case EventFieldName:
		if ev.FieldName == nil {
			return malformed(h.Depth(), "field name event without a name")
		}
		if !h.current().isStruct() {
			return malformed(h.Depth(), "field name outside a struct")
		}
		if h.pending.fieldName != nil {
			return malformed(h.Depth(), "two field names for one value")
		}
		h.pending.fieldName = ev.FieldName
		return nil

	case EventAnnotation:
		h.pending.annotations = append(h.pending.annotations, ev.Annotations...)
		return nil

	case EventScalar:
		return h.scalar(h.attachPending(ev))

	case EventContainerStart:
		return h.stepIn(h.attachPending(ev))

	case EventContainerEnd:
		if !h.pending.empty() {
			return malformed(h.Depth(), "container ended after a field name or annotation with no value")
		}
		return h.stepOut(ev)

	case EventStreamEnd:
		if h.Depth() != 0 {
			return malformed(h.Depth(), "stream ended inside a %s", h.current().typ)
		}
		if !h.pending.empty() {
			return malformed(0, "stream ended after a field name or annotation with no value")
		}
		return nil

	default:
		return malformed(h.Depth(), "unexpected event kind %s", ev.Kind)
	}
}

func (h *Hasher) attachPending(ev Event) Event {
	if h.pending.empty() {
		return ev
	}
	if h.pending.fieldName != nil {
		ev.FieldName = h.pending.fieldName
	}
	if len(h.pending.annotations) > 0 {
		ev.Annotations = append(append([]SymbolToken(nil), h.pending.annotations...), ev.Annotations...)
	}
	h.pending = pendingPrefix{}
	return ev
}

func (h *Hasher) scalar(ev Event) error {
	cur := h.current()
	if !cur.isStruct() {
		if err := writeScalarEvent(cur.sink(), ev); err != nil {
			return h.wrapUpdate(err)
		}
		return nil
	}

	if ev.FieldName == nil {
		return malformed(h.Depth(), "struct field without a name")
	}
	w := cur.fieldHash.Update
	if err := writeSymbol(w, *ev.FieldName); err != nil {
		return h.wrapUpdate(err)
	}
	if err := writeScalarEvent(w, ev); err != nil {
		return h.wrapUpdate(err)
	}
	digest, err := cur.fieldHash.Digest()
	if err != nil {
		return primitiveFailure(h.Depth(), "field digest", err)
	}
	cur.fieldDigest = append(cur.fieldDigest, digest)
	return nil
}

func (h *Hasher) stepIn(ev Event) error {
	if ev.IsNull {
		return malformed(h.Depth(), "null.%s cannot be stepped into", ev.Type)
	}
	tq, ok := containerTQ(ev.Type)
	if !ok {
		return unsupported(h.Depth(), ev.Type)
	}
	if h.Depth() >= h.maxDepth {
		return malformed(h.Depth(), "nesting depth exceeds limit %d", h.maxDepth)
	}

	parent := h.current()
	ctx := &hashContext{typ: ev.Type, hf: parent.hf}
	if parent.isStruct() {
		if ev.FieldName == nil {
			return malformed(h.Depth(), "struct field without a name")
		}
		hf, err := h.provider()
		if err != nil {
			return primitiveFailure(h.Depth(), "creating field hash function", err)
		}
		ctx.hf = hf
	}
	if ctx.isStruct() {
		hf, err := h.provider()
		if err != nil {
			return primitiveFailure(h.Depth(), "creating struct field hash function", err)
		}
		ctx.fieldHash = hf
	}

	w := ctx.sink()
	if parent.isStruct() {
		if err := writeSymbol(w, *ev.FieldName); err != nil {
			return h.wrapUpdate(err)
		}
	}
	if err := beginAnnotations(w, ev.Annotations); err != nil {
		return h.wrapUpdate(err)
	}
	ctx.annotated = len(ev.Annotations) > 0
	if err := w([]byte{BeginMarker}); err != nil {
		return h.wrapUpdate(err)
	}
	if err := w([]byte{tq}); err != nil {
		return h.wrapUpdate(err)
	}

	h.stack = append(h.stack, ctx)
	h.log.Debug("step in", "type", ev.Type, "depth", h.Depth())
	return nil
}

func (h *Hasher) stepOut(ev Event) error {
	if h.Depth() == 0 {
		return malformed(0, "container end with no open container")
	}
	ctx := h.current()
	if ev.Type != NoType && ev.Type != ctx.typ {
		return malformed(h.Depth(), "%s end closes a %s", ev.Type, ctx.typ)
	}

	w := ctx.sink()
	if ctx.isStruct() {
		// Field order never reaches the digest.
		sort.Slice(ctx.fieldDigest, func(i, j int) bool {
			return bytes.Compare(ctx.fieldDigest[i], ctx.fieldDigest[j]) < 0
		})
		for _, digest := range ctx.fieldDigest {
			if err := w(escape(digest)); err != nil {
				return h.wrapUpdate(err)
			}
		}
	}
	if err := w([]byte{EndMarker}); err != nil {
		return h.wrapUpdate(err)
	}
	if ctx.annotated {
		if err := w([]byte{EndMarker}); err != nil {
			return h.wrapUpdate(err)
		}
	}

	h.stack[len(h.stack)-1] = nil
	h.stack = h.stack[:len(h.stack)-1]
	h.log.Debug("step out", "type", ctx.typ, "depth", h.Depth(), "fields", len(ctx.fieldDigest))

	if parent := h.current(); parent.isStruct() {
		digest, err := ctx.hf.Digest()
		if err != nil {
			return primitiveFailure(h.Depth(), "nested field digest", err)
		}
		parent.fieldDigest = append(parent.fieldDigest, digest)
	}
	return nil
}

// wrapUpdate classifies an error raised while writing canonical bytes:
// canonicalizer errors pass through, anything else came from a hash
// function.
func (h *Hasher) wrapUpdate(err error) error {
	if _, ok := err.(*HashError); ok {
		return err
	}
	return primitiveFailure(h.Depth(), "update", err)
}
