// Package bytesx holds small byte/hex helpers used by dghash. It is the ICAO-native descendant of the teacher's
// utils/bytes.go: that package existed only to flip GOST digests and
// keys (little-endian on the wire) before handing them to gogost, an
// operation with no ICAO use since RSA/ECDSA/SHA are big-endian
// throughout, so the byte-reversal helpers themselves are not carried
// forward. What is kept is the "small leaf utility package next to the
// crypto code" shape, repurposed to hold the EqualFold-safe hex
// round-trip helper dghash's Result needs for its ExpectedHex/ActualHex
// fields (spec.md §8's Hex round-trip testable property).
package bytesx

import "encoding/hex"

// ToHex renders b as lowercase hex, the canonical form dghash.Result
// renders for logs and Verdict JSON.
func ToHex(b []byte) string {
	return hex.EncodeToString(b)
}

// FromHex parses a hex string case-insensitively, accepting both the
// lowercase form ToHex produces and uppercase input from external
// tooling.
func FromHex(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

// EqualHex reports whether a and b decode to the same bytes,
// case-insensitively. Both strings are always decoded.
func EqualHex(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	ab, err := FromHex(a)
	if err != nil {
		return false
	}
	bb, err := FromHex(b)
	if err != nil {
		return false
	}
	if len(ab) != len(bb) {
		return false
	}
	for i := range ab {
		if ab[i] != bb[i] {
			return false
		}
	}
	return true
}
