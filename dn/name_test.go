package dn

import (
	"testing"

	"github.com/icao-pkd/pa-core/oid"
	"github.com/stretchr/testify/assert"
)

func cn(value string, tag int) Name {
	return Name{RDN{{Type: oid.ObjectIdentifier{2, 5, 4, 3}, Value: value, Tag: tag}}}
}

func TestCanonicalFoldsWhitespaceAndCase(t *testing.T) {
	a := cn("Country  Signing   Authority", 19)
	b := cn("country signing authority", 12)
	assert.Equal(t, a.Canonical(), b.Canonical())
	assert.True(t, a.Equal(b))
}

func TestCanonicalTrimsLeadingTrailingWhitespace(t *testing.T) {
	a := cn("  Example CSCA  ", 19)
	b := cn("Example CSCA", 19)
	assert.True(t, a.Equal(b))
}

func TestEqualDistinguishesDifferentValues(t *testing.T) {
	a := cn("Example CSCA", 19)
	b := cn("Other CSCA", 19)
	assert.False(t, a.Equal(b))
}

func TestMultiValuedRDNOrderMatters(t *testing.T) {
	n1 := Name{RDN{
		{Type: oid.ObjectIdentifier{2, 5, 4, 3}, Value: "CN1", Tag: 19},
		{Type: oid.ObjectIdentifier{2, 5, 4, 6}, Value: "US", Tag: 19},
	}}
	n2 := Name{RDN{
		{Type: oid.ObjectIdentifier{2, 5, 4, 6}, Value: "US", Tag: 19},
		{Type: oid.ObjectIdentifier{2, 5, 4, 3}, Value: "CN1", Tag: 19},
	}}
	assert.False(t, n1.Equal(n2))
}

func TestStringRendersRFC2253MostSpecificFirst(t *testing.T) {
	n := Name{
		RDN{{Type: oid.ObjectIdentifier{2, 5, 4, 6}, Value: "DE", Tag: 19}},
		RDN{{Type: oid.ObjectIdentifier{2, 5, 4, 10}, Value: "Test Org", Tag: 19}},
		RDN{{Type: oid.ObjectIdentifier{2, 5, 4, 3}, Value: "Test CSCA", Tag: 19}},
	}
	assert.Equal(t, "CN=Test CSCA,O=Test Org,C=DE", n.String())
}

func TestStringEscapesSpecialCharacters(t *testing.T) {
	n := cn("A, B", 19)
	assert.Equal(t, `CN=A\, B`, n.String())
}

func TestCanonicalIdempotent(t *testing.T) {
	a := cn("Example CSCA", 19)
	c1 := a.Canonical()
	b := Name{RDN{{Type: oid.ObjectIdentifier{2, 5, 4, 3}, Value: canonicalValue("Example CSCA", 19), Tag: 19}}}
	assert.Equal(t, c1, b.Canonical())
}
