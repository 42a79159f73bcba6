// Package oid centralises the ASN.1 object identifiers this module
// recognises: eContent types, digest and signature algorithms, X.509
// extensions, and ICAO deviation-category prefixes.
package oid

import "encoding/asn1"

// ObjectIdentifier re-exports the stdlib type so callers importing this
// package rarely need to also import encoding/asn1 for OID literals.
type ObjectIdentifier = asn1.ObjectIdentifier

// eContentType OIDs (ICAO Doc 9303 / RFC 5652).
var (
	EContentSOD         = ObjectIdentifier{2, 23, 136, 1, 1, 1}
	EContentMasterList  = ObjectIdentifier{2, 23, 136, 1, 1, 2}
	EContentDeviation   = ObjectIdentifier{2, 23, 136, 1, 1, 7}
	ExtDocumentTypeList = ObjectIdentifier{2, 23, 136, 1, 1, 6, 2}
)

// CMS content types (RFC 5652).
var (
	Data       = ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	SignedData = ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
)

// CMS signed-attribute OIDs (RFC 5652 §11).
var (
	AttributeContentType   = ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	AttributeMessageDigest = ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	AttributeSigningTime   = ObjectIdentifier{1, 2, 840, 113549, 1, 9, 5}
)

// Digest algorithm OIDs.
var (
	DigestSHA1   = ObjectIdentifier{1, 3, 14, 3, 2, 26}
	DigestSHA256 = ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	DigestSHA384 = ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	DigestSHA512 = ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// Signature algorithm OIDs.
var (
	SigRSAWithSHA1   = ObjectIdentifier{1, 2, 840, 113549, 1, 1, 5}
	SigRSAWithSHA256 = ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	SigRSAWithSHA384 = ObjectIdentifier{1, 2, 840, 113549, 1, 1, 12}
	SigRSAWithSHA512 = ObjectIdentifier{1, 2, 840, 113549, 1, 1, 13}
	SigRSAPSS        = ObjectIdentifier{1, 2, 840, 113549, 1, 1, 10}
	SigECDSAWithSHA256 = ObjectIdentifier{1, 2, 840, 10045, 4, 3, 2}
	SigECDSAWithSHA384 = ObjectIdentifier{1, 2, 840, 10045, 4, 3, 3}
	SigECDSAWithSHA512 = ObjectIdentifier{1, 2, 840, 10045, 4, 3, 4}
	// MGF1, used inside RSASSA-PSS-params.
	MGF1 = ObjectIdentifier{1, 2, 840, 113549, 1, 1, 8}
)

// Elliptic curve OIDs.
var (
	CurveP256         = ObjectIdentifier{1, 2, 840, 10045, 3, 1, 7}
	CurveP384         = ObjectIdentifier{1, 3, 132, 0, 34}
	CurveP521         = ObjectIdentifier{1, 3, 132, 0, 35}
	CurveBrainpoolP256r1 = ObjectIdentifier{1, 3, 36, 3, 3, 2, 8, 1, 1, 7}
	CurveBrainpoolP384r1 = ObjectIdentifier{1, 3, 36, 3, 3, 2, 8, 1, 1, 11}
	CurveBrainpoolP512r1 = ObjectIdentifier{1, 3, 36, 3, 3, 2, 8, 1, 1, 13}
	// PublicKeyECDSA is the SPKI algorithm OID for id-ecPublicKey.
	PublicKeyECDSA = ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	PublicKeyRSA   = ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
)

// X.509 extension OIDs.
var (
	ExtKeyUsage              = ObjectIdentifier{2, 5, 29, 15}
	ExtBasicConstraints       = ObjectIdentifier{2, 5, 29, 19}
	ExtSubjectKeyIdentifier   = ObjectIdentifier{2, 5, 29, 14}
	ExtAuthorityKeyIdentifier = ObjectIdentifier{2, 5, 29, 35}
	ExtExtendedKeyUsage       = ObjectIdentifier{2, 5, 29, 37}
	ExtCRLDistributionPoints  = ObjectIdentifier{2, 5, 29, 31}
	ExtSubjectAltName         = ObjectIdentifier{2, 5, 29, 17}
	ExtPrivateKeyUsagePeriod  = ObjectIdentifier{2, 5, 29, 16}
	// ExtCRLReason is the crlEntryExtensions OID carrying RFC 5280
	// §5.3.1's CRLReason enumeration.
	ExtCRLReason = ObjectIdentifier{2, 5, 29, 21}
)

// Deviation defect-OID category prefixes (ICAO Doc 9303 Part 12).
var (
	DeviationCertOrKeyPrefix = ObjectIdentifier{2, 23, 136, 1, 1, 7, 1}
	DeviationLDSPrefix       = ObjectIdentifier{2, 23, 136, 1, 1, 7, 2}
	DeviationMRZPrefix       = ObjectIdentifier{2, 23, 136, 1, 1, 7, 3}
	DeviationChipPrefix      = ObjectIdentifier{2, 23, 136, 1, 1, 7, 4}
)

// Digest is a recognised digest algorithm: an OID paired with its
// human name and whether it is weak.
type Digest struct {
	Name string
	OID  ObjectIdentifier
	Weak bool // SHA-1 is accepted for legacy documents but is weak.
}

// Digests is the registry of digest algorithms this module verifies.
var Digests = []Digest{
	{Name: "SHA-1", OID: DigestSHA1, Weak: true},
	{Name: "SHA-256", OID: DigestSHA256},
	{Name: "SHA-384", OID: DigestSHA384},
	{Name: "SHA-512", OID: DigestSHA512},
}

// LookupDigest finds a registered digest algorithm by OID.
func LookupDigest(id ObjectIdentifier) (Digest, bool) {
	for _, d := range Digests {
		if d.OID.Equal(id) {
			return d, true
		}
	}
	return Digest{}, false
}

// HasPrefix reports whether id starts with the given prefix, used for
// deviation-category classification (spec §4.10).
func HasPrefix(id, prefix ObjectIdentifier) bool {
	if len(id) < len(prefix) {
		return false
	}
	for i := range prefix {
		if id[i] != prefix[i] {
			return false
		}
	}
	return true
}
