package certx

import "bytes"

// IsSelfSigned reports whether the certificate's issuer and subject
// names are canonically equal. It does not verify the signature; callers
// that need a cryptographic self-signature check should verify
// SignatureBytes against PublicKey separately.
func (c *Certificate) IsSelfSigned() bool {
	return c.Issuer.Equal(c.Subject)
}

// HasKeyUsage reports whether all bits in want are set, returning false
// when the certificate carries no keyUsage extension at all (Doc 9303
// treats an absent keyUsage as "all usages permitted" only for CSCA
// self-signed roots; callers enforce that distinction, not this method).
func (c *Certificate) HasKeyUsage(want KeyUsage) bool {
	return c.Extensions.HasKeyUsage && c.Extensions.KeyUsage&want == want
}

// MatchesAuthorityKeyID reports whether this certificate's
// subjectKeyIdentifier matches the given authorityKeyIdentifier bytes.
func (c *Certificate) MatchesAuthorityKeyID(aki []byte) bool {
	if len(aki) == 0 || len(c.Extensions.SubjectKeyID) == 0 {
		return false
	}
	return bytes.Equal(c.Extensions.SubjectKeyID, aki)
}
