package frame

import (
	"hash/crc32"
	"strings"

	"github.com/Neumenon/ionhash/ionhash"
)

// crcTable is the IEEE CRC-32 table.
var crcTable = crc32.MakeTable(crc32.IEEE)

// ComputeCRC computes CRC-32 IEEE of the given bytes.
func ComputeCRC(data []byte) uint32 {
	return crc32.Checksum(data, crcTable)
}

// VerifyCRC verifies that the CRC matches.
func VerifyCRC(data []byte, expected uint32) bool {
	return ComputeCRC(data) == expected
}

func formatHex(b []byte) string {
	return ionhash.FormatDigest(b)
}

// ParseDigest parses a header digest value: alg:hex.
func ParseDigest(s string) (Digest, bool) {
	alg, hex, ok := strings.Cut(s, ":")
	if !ok || alg == "" || hex == "" {
		return Digest{}, false
	}
	sum, ok := ionhash.ParseDigest(hex)
	if !ok {
		return Digest{}, false
	}
	return Digest{Algorithm: alg, Sum: sum}, true
}
