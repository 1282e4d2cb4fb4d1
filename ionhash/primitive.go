package ionhash

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"fmt"
	"hash"
	"sort"
	"sync"

	"github.com/zeebo/blake3"
	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/sha3"
)

// HashFunction is the primitive the Hasher drives. Digest returns the
// digest of everything written since the last Digest and resets the
// accumulated state.
type HashFunction interface {
	Update(p []byte) error
	Digest() ([]byte, error)
}

// HashFunctionProvider returns a fresh HashFunction. The Hasher calls it
// once for the top-level context and once per struct field.
type HashFunctionProvider func() (HashFunction, error)

// Observer sees every update and digest a primitive performs. It is the
// hook the conformance harness records through; production callers
// leave it nil.
type Observer interface {
	ObserveUpdate(p []byte)
	ObserveDigest(digest []byte)
}

// ProviderOption configures a provider built by this package.
type ProviderOption func(*providerConfig)

type providerConfig struct {
	observer Observer
}

// WithObserver attaches an observer to every HashFunction the provider
// creates.
func WithObserver(o Observer) ProviderOption {
	return func(c *providerConfig) {
		c.observer = o
	}
}

func buildConfig(opts []ProviderOption) providerConfig {
	var c providerConfig
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

// ============================================================
// Identity
// ============================================================

// identityHash returns its accumulated input as the digest. It exists
// to check canonical byte streams directly.
type identityHash struct {
	buf      []byte
	observer Observer
}

// IdentityProvider returns a provider of identity hash functions.
func IdentityProvider(opts ...ProviderOption) HashFunctionProvider {
	c := buildConfig(opts)
	return func() (HashFunction, error) {
		return &identityHash{observer: c.observer}, nil
	}
}

func (h *identityHash) Update(p []byte) error {
	if h.observer != nil {
		h.observer.ObserveUpdate(p)
	}
	h.buf = append(h.buf, p...)
	return nil
}

func (h *identityHash) Digest() ([]byte, error) {
	digest := h.buf
	h.buf = nil
	if digest == nil {
		digest = []byte{}
	}
	if h.observer != nil {
		h.observer.ObserveDigest(digest)
	}
	return digest, nil
}

// ============================================================
// Cryptographic
// ============================================================

// cryptoHash adapts a hash.Hash to the reset-on-digest contract.
type cryptoHash struct {
	h        hash.Hash
	observer Observer
}

// CryptoProvider wraps a hash.Hash constructor.
func CryptoProvider(newHash func() hash.Hash, opts ...ProviderOption) HashFunctionProvider {
	c := buildConfig(opts)
	return func() (HashFunction, error) {
		h := newHash()
		if h == nil {
			return nil, fmt.Errorf("hash constructor returned nil")
		}
		return &cryptoHash{h: h, observer: c.observer}, nil
	}
}

func (c *cryptoHash) Update(p []byte) error {
	if c.observer != nil {
		c.observer.ObserveUpdate(p)
	}
	_, err := c.h.Write(p)
	return err
}

func (c *cryptoHash) Digest() ([]byte, error) {
	digest := c.h.Sum(nil)
	c.h.Reset()
	if c.observer != nil {
		c.observer.ObserveDigest(digest)
	}
	return digest, nil
}

// ============================================================
// Algorithm Registry
// ============================================================

// Identity is the name of the identity algorithm.
const Identity = "identity"

var algorithms = map[string]func() hash.Hash{
	"md5":      md5.New,
	"sha1":     sha1.New,
	"sha256":   sha256.New,
	"sha512":   sha512.New,
	"sha3-256": sha3.New256,
	"blake2b-256": func() hash.Hash {
		h, _ := blake2b.New256(nil) // only fails for keys > 64 bytes
		return h
	},
	"blake3": func() hash.Hash {
		return blake3.New()
	},
}

// Algorithms lists the names accepted by ProviderFor, sorted.
func Algorithms() []string {
	names := make([]string, 0, len(algorithms)+1)
	names = append(names, Identity)
	for name := range algorithms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ProviderFor returns the provider registered under name.
func ProviderFor(name string, opts ...ProviderOption) (HashFunctionProvider, error) {
	if name == Identity {
		return IdentityProvider(opts...), nil
	}
	newHash, ok := algorithms[name]
	if !ok {
		return nil, fmt.Errorf("unknown hash algorithm %q", name)
	}
	return CryptoProvider(newHash, opts...), nil
}

// ============================================================
// Recorder
// ============================================================

// Recorder is an Observer that keeps every update and digest in call
// order. It is safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	updates [][]byte
	digests [][]byte
}

// ObserveUpdate records a copy of p.
func (r *Recorder) ObserveUpdate(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = append(r.updates, append([]byte{}, p...))
}

// ObserveDigest records a copy of digest.
func (r *Recorder) ObserveDigest(digest []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.digests = append(r.digests, append([]byte{}, digest...))
}

// Updates returns the recorded update chunks.
func (r *Recorder) Updates() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.updates...)
}

// Digests returns the recorded digests.
func (r *Recorder) Digests() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.digests...)
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updates = nil
	r.digests = nil
}
