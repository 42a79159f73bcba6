package trust

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/crl"
)

// cscaFixture is a self-signed CSCA built with stdlib crypto/x509 (not
// this module's own certx encoder — certx only decodes) and re-parsed
// through certx.Parse, so chain-building tests exercise the real
// der/certx decode path against realistic certificates rather than
// byte-by-byte hand-built fixtures.
type cscaFixture struct {
	Cert *certx.Certificate
	Key  *rsa.PrivateKey
	X509 *x509.Certificate
	DER  []byte
}

func buildCSCA(t *testing.T, cn string, notBefore, notAfter time.Time) cscaFixture {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn, Country: []string{"DE"}},
		NotBefore:             notBefore,
		NotAfter:              notAfter,
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          []byte{0x01, 0x02, 0x03, 0x04},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	x509Cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	cert, err := certx.Parse(der)
	require.NoError(t, err)
	return cscaFixture{Cert: cert, Key: key, X509: x509Cert, DER: der}
}

func buildDSC(t *testing.T, cn string, serial int64, notBefore, notAfter time.Time, issuer cscaFixture) *certx.Certificate {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tmpl := &x509.Certificate{
		SerialNumber:   big.NewInt(serial),
		Subject:        pkix.Name{CommonName: cn, Country: []string{"DE"}},
		NotBefore:      notBefore,
		NotAfter:       notAfter,
		KeyUsage:       x509.KeyUsageDigitalSignature,
		AuthorityKeyId: issuer.Cert.Extensions.SubjectKeyID,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, issuer.X509, &key.PublicKey, issuer.Key)
	require.NoError(t, err)
	cert, err := certx.Parse(der)
	require.NoError(t, err)
	return cert
}

// buildCRL issues a stdlib x509.RevocationList signed by issuer and
// re-parses it through this module's own crl.Parse, matching the
// certx fixture pattern above.
func buildCRL(t *testing.T, issuer cscaFixture, revoked []pkix.RevokedCertificate, thisUpdate, nextUpdate time.Time) *crl.CRL {
	t.Helper()
	tmpl := &x509.RevocationList{
		Number:              big.NewInt(1),
		ThisUpdate:          thisUpdate,
		NextUpdate:          nextUpdate,
		RevokedCertificates: revoked,
	}
	der, err := x509.CreateRevocationList(rand.Reader, tmpl, issuer.X509, issuer.Key)
	require.NoError(t, err)
	parsed, err := crl.Parse(der)
	require.NoError(t, err)
	return parsed
}
