package cms

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	oidSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidRSAEncryption = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 1}
	oidSHA256        = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidData          = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 1}
	oidSignedData    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
)

func rdnName(t *testing.T, cn, country string) asn1.RawValue {
	t.Helper()
	type atv struct {
		Type  asn1.ObjectIdentifier
		Value string
	}
	countryRDN, err := asn1.MarshalWithParams([]atv{{asn1.ObjectIdentifier{2, 5, 4, 6}, country}}, "set")
	require.NoError(t, err)
	cnRDN, err := asn1.MarshalWithParams([]atv{{asn1.ObjectIdentifier{2, 5, 4, 3}, cn}}, "set")
	require.NoError(t, err)
	nameBytes, err := asn1.Marshal([]asn1.RawValue{{FullBytes: countryRDN}, {FullBytes: cnRDN}})
	require.NoError(t, err)
	return asn1.RawValue{FullBytes: nameBytes}
}

// buildSelfSignedCert constructs a minimal self-signed RSA certificate,
// returning its DER bytes and key, without depending on crypto/x509.
func buildSelfSignedCert(t *testing.T, serial int64) ([]byte, *rsa.PrivateKey) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	name := rdnName(t, "Test DSC", "DE")
	pkBytes, err := asn1.Marshal(struct {
		N *big.Int
		E int
	}{key.N, key.E})
	require.NoError(t, err)

	type tbsValidity struct{ NotBefore, NotAfter asn1.RawValue }
	notBefore, _ := asn1.Marshal(asn1.RawValue{Tag: 23, Class: asn1.ClassUniversal, Bytes: []byte("240101000000Z")})
	notAfter, _ := asn1.Marshal(asn1.RawValue{Tag: 23, Class: asn1.ClassUniversal, Bytes: []byte("340101000000Z")})

	type tbs struct {
		Version      int `asn1:"optional,explicit,tag:0,default:0"`
		SerialNumber *big.Int
		Signature    pkix.AlgorithmIdentifier
		Issuer       asn1.RawValue
		Validity     asn1.RawValue
		Subject      asn1.RawValue
		PublicKey    struct {
			Algorithm pkix.AlgorithmIdentifier
			PublicKey asn1.BitString
		}
	}
	validityBytes, err := asn1.Marshal([]asn1.RawValue{{FullBytes: notBefore}, {FullBytes: notAfter}})
	require.NoError(t, err)

	tbsVal := tbs{
		Version:      2,
		SerialNumber: big.NewInt(serial),
		Signature:    pkix.AlgorithmIdentifier{Algorithm: oidSHA256WithRSA},
		Issuer:       name,
		Validity:     asn1.RawValue{FullBytes: validityBytes},
		Subject:      name,
	}
	tbsVal.PublicKey.Algorithm = pkix.AlgorithmIdentifier{Algorithm: oidRSAEncryption}
	tbsVal.PublicKey.PublicKey = asn1.BitString{Bytes: pkBytes, BitLength: len(pkBytes) * 8}

	tbsDER, err := asn1.Marshal(tbsVal)
	require.NoError(t, err)

	h := sha256.Sum256(tbsDER)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, h[:])
	require.NoError(t, err)

	type certificate struct {
		TBSCertificate     asn1.RawValue
		SignatureAlgorithm pkix.AlgorithmIdentifier
		SignatureValue     asn1.BitString
	}
	certDER, err := asn1.Marshal(certificate{
		TBSCertificate:     asn1.RawValue{FullBytes: tbsDER},
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA256WithRSA},
		SignatureValue:     asn1.BitString{Bytes: sig, BitLength: len(sig) * 8},
	})
	require.NoError(t, err)
	return certDER, key
}

type rawAttribute struct {
	Type   asn1.ObjectIdentifier
	Values asn1.RawValue `asn1:"set"`
}

func marshalSetValue(t *testing.T, v interface{}) asn1.RawValue {
	t.Helper()
	b, err := asn1.Marshal(v)
	require.NoError(t, err)
	return asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagSet, IsCompound: true, Bytes: b}
}

// buildSignedData assembles a detached CMS SignedData, over content,
// signed by key whose certificate is certDER with the given serial.
func buildSignedData(t *testing.T, key *rsa.PrivateKey, certDER []byte, issuerName asn1.RawValue, serial int64, content []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(content)

	contentTypeAttr := rawAttribute{Type: oidContentType, Values: marshalSetValue(t, oidData)}
	digestAttr := rawAttribute{Type: oidMessageDigest, Values: marshalSetValue(t, digest[:])}
	attrs := []rawAttribute{contentTypeAttr, digestAttr}

	attrsBytes, err := asn1.Marshal(attrs)
	require.NoError(t, err)

	attrsForSigning := make([]byte, len(attrsBytes))
	copy(attrsForSigning, attrsBytes)
	attrsForSigning[0] = 0x31 // SET tag, per RFC 5652 §5.4

	sigHash := sha256.Sum256(attrsForSigning)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, sigHash[:])
	require.NoError(t, err)

	type issuerAndSerial struct {
		Issuer       asn1.RawValue
		SerialNumber *big.Int
	}
	type signerInfo struct {
		Version            int
		IssuerAndSerial    issuerAndSerial
		DigestAlgorithm    pkix.AlgorithmIdentifier
		SignedAttrs        asn1.RawValue `asn1:"optional,tag:0"`
		SignatureAlgorithm pkix.AlgorithmIdentifier
		Signature          []byte
	}
	si := signerInfo{
		Version:         1,
		IssuerAndSerial: issuerAndSerial{Issuer: issuerName, SerialNumber: big.NewInt(serial)},
		DigestAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA256},
		SignedAttrs: asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
			Bytes: attrsBytes[2:], // strip outer SEQUENCE tag+length
		},
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA256WithRSA},
		Signature:          sig,
	}

	type encapContentInfo struct {
		EContentType asn1.ObjectIdentifier
	}
	type signedData struct {
		Version          int
		DigestAlgorithms []pkix.AlgorithmIdentifier `asn1:"set"`
		EncapContentInfo encapContentInfo
		Certificates     asn1.RawValue `asn1:"optional,tag:0"`
		SignerInfos      []signerInfo  `asn1:"set"`
	}
	sd := signedData{
		Version:          1,
		DigestAlgorithms: []pkix.AlgorithmIdentifier{{Algorithm: oidSHA256}},
		EncapContentInfo: encapContentInfo{EContentType: oidData},
		Certificates: asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: certDER,
		},
		SignerInfos: []signerInfo{si},
	}
	sdBytes, err := asn1.Marshal(sd)
	require.NoError(t, err)

	type contentInfo struct {
		ContentType asn1.ObjectIdentifier
		Content     asn1.RawValue `asn1:"explicit,tag:0"`
	}
	ci := contentInfo{
		ContentType: oidSignedData,
		Content:     asn1.RawValue{Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: sdBytes},
	}
	ciBytes, err := asn1.Marshal(ci)
	require.NoError(t, err)
	return ciBytes
}

func TestParseContentInfoAndSignedData(t *testing.T) {
	certDER, key := buildSelfSignedCert(t, 7)
	name := rdnName(t, "Test DSC", "DE")
	content := []byte("ICAO SOD payload")

	raw := buildSignedData(t, key, certDER, name, 7, content)

	ci, err := ParseContentInfo(raw)
	require.NoError(t, err)
	assert.True(t, ci.ContentType.Equal(oidSignedData))

	sd, err := ci.SignedData()
	require.NoError(t, err)
	assert.Equal(t, 1, sd.Version)
	assert.Len(t, sd.Certificates, 1)
	assert.Len(t, sd.SignerInfos, 1)
	assert.Nil(t, sd.EContent, "detached SignedData carries no eContent")

	si := sd.SignerInfos[0]
	digest, err := si.MessageDigest()
	require.NoError(t, err)
	want := sha256.Sum256(content)
	assert.Equal(t, want[:], digest)

	ct, err := si.ContentTypeAttribute()
	require.NoError(t, err)
	assert.True(t, ct.Equal(oidData))

	signer, err := si.FindSignerCertificate(sd.Certificates)
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(7), signer.Serial)
}

func TestSignatureInputRetagsSignedAttrsAsSet(t *testing.T) {
	certDER, key := buildSelfSignedCert(t, 1)
	name := rdnName(t, "Test DSC", "DE")
	content := []byte("payload")

	raw := buildSignedData(t, key, certDER, name, 1, content)
	ci, err := ParseContentInfo(raw)
	require.NoError(t, err)
	sd, err := ci.SignedData()
	require.NoError(t, err)

	si := sd.SignerInfos[0]
	input, err := si.SignatureInput()
	require.NoError(t, err)
	assert.Equal(t, byte(0x31), input[0], "signature input must use the universal SET tag, not the wire's [0] IMPLICIT")

	signer, err := si.FindSignerCertificate(sd.Certificates)
	require.NoError(t, err)
	pub := signer.PublicKey.(*rsa.PublicKey)
	h := sha256.Sum256(input)
	err = rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], si.Signature)
	assert.NoError(t, err, "signature must verify over the re-tagged SignedAttributes")
}

func TestSignerInfoWithoutSignedAttrsHasNoSignatureInput(t *testing.T) {
	si := &SignerInfo{}
	_, err := si.SignatureInput()
	assert.ErrorIs(t, err, ErrMissingSignedAttrs)
}

func TestFindSignerCertificateReturnsNotFound(t *testing.T) {
	si := &SignerInfo{SID: SignerIdentifier{SerialNumber: big.NewInt(999)}}
	_, err := si.FindSignerCertificate(nil)
	assert.ErrorIs(t, err, ErrSignerNotFound)
}
