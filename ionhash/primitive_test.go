package ionhash

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"testing"
)

func TestIdentityProvider(t *testing.T) {
	hf, err := IdentityProvider()()
	if err != nil {
		t.Fatal(err)
	}

	digest, err := hf.Digest()
	if err != nil {
		t.Fatal(err)
	}
	if digest == nil || len(digest) != 0 {
		t.Errorf("empty digest = %#v, want non-nil empty", digest)
	}

	_ = hf.Update([]byte{1, 2})
	_ = hf.Update([]byte{3})
	digest, _ = hf.Digest()
	if !bytes.Equal(digest, []byte{1, 2, 3}) {
		t.Errorf("digest = % x", digest)
	}

	// Digest resets.
	_ = hf.Update([]byte{4})
	digest, _ = hf.Digest()
	if !bytes.Equal(digest, []byte{4}) {
		t.Errorf("digest after reset = % x", digest)
	}
}

func TestCryptoProvider_Resets(t *testing.T) {
	hf, err := CryptoProvider(sha256.New)()
	if err != nil {
		t.Fatal(err)
	}
	_ = hf.Update([]byte("abc"))
	first, _ := hf.Digest()
	_ = hf.Update([]byte("abc"))
	second, _ := hf.Digest()

	want := sha256.Sum256([]byte("abc"))
	if !bytes.Equal(first, want[:]) || !bytes.Equal(second, want[:]) {
		t.Errorf("digests = %x, %x; want %x twice", first, second, want)
	}
}

func TestProviderFor(t *testing.T) {
	// Digest lengths of the empty input per algorithm.
	sizes := map[string]int{
		Identity:      0,
		"md5":         16,
		"sha1":        20,
		"sha256":      32,
		"sha512":      64,
		"sha3-256":    32,
		"blake2b-256": 32,
		"blake3":      32,
	}

	names := Algorithms()
	if !sort.StringsAreSorted(names) {
		t.Errorf("Algorithms() not sorted: %v", names)
	}
	if len(names) != len(sizes) {
		t.Errorf("Algorithms() = %v, want %d names", names, len(sizes))
	}

	for _, name := range names {
		want, ok := sizes[name]
		if !ok {
			t.Errorf("unexpected algorithm %q", name)
			continue
		}
		provider, err := ProviderFor(name)
		if err != nil {
			t.Fatalf("ProviderFor(%q): %v", name, err)
		}
		hf, err := provider()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		digest, err := hf.Digest()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if len(digest) != want {
			t.Errorf("%s digest length = %d, want %d", name, len(digest), want)
		}
	}

	if _, err := ProviderFor("crc32"); err == nil {
		t.Error("expected error for unknown algorithm")
	}
}

func TestProviderFor_KnownVectors(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"md5", "900150983cd24fb0d6963f7d28e17f72"},
		{"sha1", "a9993e364706816aba3e25717850c26c9cd0d89d"},
		{"sha256", "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"},
		{"sha3-256", "3a985da74fe225b2045c172d6bd390bd855f086e3e9d525b46bfe24511431532"},
	}
	for _, tc := range tests {
		provider, _ := ProviderFor(tc.name)
		hf, _ := provider()
		_ = hf.Update([]byte("abc"))
		digest, _ := hf.Digest()
		if got := hex.EncodeToString(digest); got != tc.want {
			t.Errorf("%s(abc) = %s, want %s", tc.name, got, tc.want)
		}
	}
}

func TestRecorder(t *testing.T) {
	rec := &Recorder{}
	hf, _ := IdentityProvider(WithObserver(rec))()

	chunk := []byte{1}
	_ = hf.Update(chunk)
	chunk[0] = 9 // neither the hash nor the recorder alias the caller's slice
	_, _ = hf.Digest()

	if got := rec.Updates(); len(got) != 1 || !bytes.Equal(got[0], []byte{1}) {
		t.Errorf("Updates() = % x", got)
	}
	if got := rec.Digests(); len(got) != 1 || !bytes.Equal(got[0], []byte{1}) {
		t.Errorf("Digests() = % x", got)
	}

	rec.Reset()
	if len(rec.Updates()) != 0 || len(rec.Digests()) != 0 {
		t.Error("Reset did not clear recorder")
	}
}
