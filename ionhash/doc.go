// Package ionhash computes Ion hashes: deterministic digests of Ion
// values that do not depend on whether a value was written in text or
// binary, computed in one forward pass over a stream of parse events.
//
// # Model
//
// An EventSource yields structural events (scalars, container
// boundaries, stream end). A Hasher pulls events through itself,
// canonicalizes each one and feeds the canonical bytes to hash
// functions obtained from a HashFunctionProvider:
//
//	h, err := ionhash.New(src, provider)
//	for {
//	    ev, err := h.Next()
//	    ...
//	    if ev.IsTopLevelComplete() {
//	        digest, err := h.Digest()
//	    }
//	}
//
// # Canonical Form
//
// A scalar is hashed as B || TQ || escape(representation) || E, where
// B (0x0B) and E (0x0E) are markers, TQ is the binary Ion type
// descriptor with its length nibble replaced by a qualifier, and any
// marker byte inside the representation is escaped with 0x0C.
//
// Lists and s-expressions hash their elements in order within their
// parent's hash function. A struct hashes each field (name and value)
// with its own hash function, sorts the resulting digests, and feeds
// them to its parent, so field order never affects the result.
// Annotations wrap the annotated value in B || 0xE0 || ... || E.
//
// # Hash Functions
//
// Anything implementing HashFunction can be used. The package ships an
// identity function (digest = concatenated input, useful for checking
// canonical bytes) and wrappers for md5, sha1, sha256, sha512, sha3-256,
// blake2b-256 and blake3; see Algorithms and ProviderFor.
package ionhash
