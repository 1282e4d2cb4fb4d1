package ionhash

// DigestValues hashes every top-level value of src independently and
// returns one digest per value, in stream order.
func DigestValues(src EventSource, provider HashFunctionProvider, opts ...Option) ([][]byte, error) {
	h, err := New(src, provider, opts...)
	if err != nil {
		return nil, err
	}

	var digests [][]byte
	for {
		ev, err := h.Next()
		if err != nil {
			return digests, err
		}
		if ev.Kind == EventStreamEnd {
			return digests, nil
		}
		if ev.IsTopLevelComplete() {
			digest, err := h.Digest()
			if err != nil {
				return digests, err
			}
			digests = append(digests, digest)
		}
	}
}

// DigestStream hashes the whole stream as one unit and returns a single
// digest covering every top-level value.
func DigestStream(src EventSource, provider HashFunctionProvider, opts ...Option) ([]byte, error) {
	h, err := New(src, provider, opts...)
	if err != nil {
		return nil, err
	}
	for {
		ev, err := h.Next()
		if err != nil {
			return nil, err
		}
		if ev.Kind == EventStreamEnd {
			return h.Digest()
		}
	}
}

// FormatDigest converts a digest to lowercase hex.
func FormatDigest(digest []byte) string {
	const hextable = "0123456789abcdef"
	buf := make([]byte, len(digest)*2)
	for i, b := range digest {
		buf[i*2] = hextable[b>>4]
		buf[i*2+1] = hextable[b&0x0f]
	}
	return string(buf)
}

// ParseDigest parses a hex digest of any even length.
func ParseDigest(s string) ([]byte, bool) {
	if len(s)%2 != 0 {
		return nil, false
	}
	out := make([]byte, len(s)/2)
	for i := range out {
		hi := hexDigit(s[i*2])
		lo := hexDigit(s[i*2+1])
		if hi < 0 || lo < 0 {
			return nil, false
		}
		out[i] = byte(hi<<4 | lo)
	}
	return out, true
}

func hexDigit(c byte) int {
	switch {
	case c >= '0' && c <= '9':
		return int(c - '0')
	case c >= 'a' && c <= 'f':
		return int(c - 'a' + 10)
	case c >= 'A' && c <= 'F':
		return int(c - 'A' + 10)
	default:
		return -1
	}
}
