// Package dghash verifies ICAO Doc 9303 Data Group hashes: hash the
// full EF.DGx bytes exactly as supplied (no LDS tag/length unwrapping)
// and compare constant-time against the SOD's dataGroupHashValues
// table. Grounded on
// original_source/shared/lib/icao9303/models/data_group.h's DataGroup
// model (expectedHash/actualHash/hashValid) for the result shape, and
// shared/lib/icao9303/dg_parser.h for the DG-number→description table
// used only for human-readable rendering, never for hashing logic.
package dghash

import (
	"crypto/subtle"
	"sort"

	"github.com/icao-pkd/pa-core/internal/bytesx"
	"github.com/icao-pkd/pa-core/sigalg"
)

// Result is the outcome of hashing and comparing one data group.
type Result struct {
	Number      int
	ExpectedHex string
	ActualHex   string
	Match       bool
}

// Verify hashes raw with alg and compares it constant-time against
// expected, the SOD's recorded digest for data group dg.
func Verify(dg int, raw []byte, alg sigalg.DigestAlgorithm, expected []byte) Result {
	actual := alg.Sum(raw)
	match := len(actual) == len(expected) && subtle.ConstantTimeCompare(actual, expected) == 1
	return Result{
		Number:      dg,
		ExpectedHex: bytesx.ToHex(expected),
		ActualHex:   bytesx.ToHex(actual),
		Match:       match,
	}
}

// VerifyAll hashes every data group present in dgBytes against table,
// the SOD's dataGroupHashValues, ordered ascending by DG number per
// spec.md §5's ordering requirement. Only DGs actually presented in
// dgBytes are hashed and reported: a DG listed in the SOD's table but
// never presented is a policy question for the caller (pa), not a hash
// mismatch, and gets no Result. A presented DG that the table lacks
// gets a Result with an empty ExpectedHex and Match false.
func VerifyAll(dgBytes map[int][]byte, table map[int][]byte, alg sigalg.DigestAlgorithm) []Result {
	ordered := make([]int, 0, len(dgBytes))
	for n := range dgBytes {
		ordered = append(ordered, n)
	}
	sort.Ints(ordered)

	results := make([]Result, 0, len(ordered))
	for _, n := range ordered {
		results = append(results, Verify(n, dgBytes[n], alg, table[n]))
	}
	return results
}

// dgDescriptions names the standard ICAO Doc 9303 data groups, used
// only for Verdict rendering.
var dgDescriptions = map[int]string{
	1:  "Machine Readable Zone",
	2:  "Encoded Face",
	3:  "Encoded Finger(s)",
	4:  "Encoded Iris(es)",
	5:  "Displayed Portrait",
	6:  "Reserved for Future Use",
	7:  "Displayed Signature or Usual Mark",
	8:  "Data Feature(s)",
	9:  "Structure Feature(s)",
	10: "Substance Feature(s)",
	11: "Additional Personal Detail(s)",
	12: "Additional Document Detail(s)",
	13: "Optional Detail(s)",
	14: "Security Options",
	15: "Active Authentication Public Key Info",
	16: "Persons to Notify",
}

// Description returns the human-readable name of data group n, or ""
// if n is not a standard Doc 9303 data group.
func Description(n int) string {
	return dgDescriptions[n]
}
