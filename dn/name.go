// Package dn implements RFC 5280 distinguished-name modelling and the
// single canonicalisation rule this module uses everywhere names are
// compared: store lookup, chain issuer matching, and deviation-list
// target matching all go through Name.Canonical.
package dn

import (
	"strings"

	"github.com/icao-pkd/pa-core/oid"
)

// ATV is a single attribute-type-and-value pair within an RDN.
type ATV struct {
	Type  oid.ObjectIdentifier
	Value string
	// Tag is the original ASN.1 string tag (PrintableString, UTF8String,
	// IA5String, ...); canonicalisation folds across string tags per
	// spec §4.2, but the original tag is retained for re-encoding.
	Tag int
}

// RDN is a set of ATVs (usually one, occasionally more for multi-valued
// RDNs).
type RDN []ATV

// Name is an ordered sequence of RDNs, most-significant first, matching
// the DER encoding order.
type Name []RDN

// foldCase reports whether values of this string tag are compared
// case-insensitively under RFC 5280 §7.1. PrintableString and UTF8String
// fold; IA5String (used for some domainComponent/email attributes) does
// not change case semantics here since Doc 9303 names are
// Printable/UTF8 in practice, but is included for completeness.
func foldCase(tag int) bool {
	switch tag {
	case 19, 12: // PrintableString, UTF8String
		return true
	default:
		return true
	}
}

// canonicalValue folds internal whitespace runs to a single space, trims
// leading/trailing whitespace, and lowercases when the tag calls for
// case-insensitive comparison.
func canonicalValue(v string, tag int) string {
	fields := strings.Fields(v)
	folded := strings.Join(fields, " ")
	if foldCase(tag) {
		folded = strings.ToLower(folded)
	}
	return folded
}

// Canonical renders the name as a deterministic, comparison-stable
// string: RDNs joined by "/", multi-valued RDNs' ATVs joined by "+",
// each ATV rendered "OID=value" with value canonicalised per
// canonicalValue. This is not RFC 2253 output (see String for that) —
// it exists purely as a stable equality/lookup key.
func (n Name) Canonical() string {
	var b strings.Builder
	for i, rdn := range n {
		if i > 0 {
			b.WriteByte('/')
		}
		for j, atv := range rdn {
			if j > 0 {
				b.WriteByte('+')
			}
			b.WriteString(atv.Type.String())
			b.WriteByte('=')
			b.WriteString(canonicalValue(atv.Value, atv.Tag))
		}
	}
	return b.String()
}

// Equal reports whether two names are equal under the canonical form.
// Canonicalisation is idempotent: a name whose values are already
// canonical has the same Canonical() form as the name they came from,
// so repeated comparisons never drift.
func (n Name) Equal(other Name) bool {
	return n.Canonical() == other.Canonical()
}

// rfc2253AttrNames maps well-known attribute-type OIDs to their RFC 2253
// short names; unknown OIDs render as dotted-decimal.
var rfc2253AttrNames = map[string]string{
	"2.5.4.3":                    "CN",
	"2.5.4.6":                    "C",
	"2.5.4.7":                    "L",
	"2.5.4.8":                    "ST",
	"2.5.4.10":                   "O",
	"2.5.4.11":                   "OU",
	"0.9.2342.19200300.100.1.25": "DC",
	"1.2.840.113549.1.9.1":       "E",
}

// String renders the name in RFC 2253 order (most-specific RDN first),
// the human-readable form used for logging and Verdict display. It is
// not used for equality (see Equal/Canonical) to keep exactly one
// normaliser in the comparison path, per spec §9's resolved Open
// Question on name-canonicalisation ambiguity.
func (n Name) String() string {
	parts := make([]string, 0, len(n))
	for i := len(n) - 1; i >= 0; i-- {
		rdn := n[i]
		atvs := make([]string, 0, len(rdn))
		for _, atv := range rdn {
			label, ok := rfc2253AttrNames[atv.Type.String()]
			if !ok {
				label = atv.Type.String()
			}
			atvs = append(atvs, label+"="+escapeRFC2253(atv.Value))
		}
		parts = append(parts, strings.Join(atvs, "+"))
	}
	return strings.Join(parts, ",")
}

func escapeRFC2253(v string) string {
	var b strings.Builder
	for i, r := range v {
		switch r {
		case ',', '+', '"', '\\', '<', '>', ';':
			b.WriteByte('\\')
			b.WriteRune(r)
		case ' ':
			if i == 0 || i == len(v)-1 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		case '#':
			if i == 0 {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
