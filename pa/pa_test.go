package pa

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icao-pkd/pa-core/audit"
	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/pkderr"
	"github.com/icao-pkd/pa-core/trust"
)

var (
	oidSHA256WithRSA = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 1, 11}
	oidSHA256        = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidSignedData    = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 7, 2}
	oidContentType   = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 3}
	oidMessageDigest = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 4}
	oidLDSSecObj     = asn1.ObjectIdentifier{2, 23, 136, 1, 1, 1}
)

type issuedCert struct {
	DER  []byte
	X509 *x509.Certificate
	Cert *certx.Certificate
	Key  *rsa.PrivateKey
}

func buildCA(t *testing.T, cn string) issuedCert {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tmpl := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: cn, Country: []string{"DE"}},
		NotBefore:             now,
		NotAfter:              now.AddDate(10, 0, 0),
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
		SubjectKeyId:          []byte{0x10, 0x20, 0x30, 0x40},
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	x509Cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	cert, err := certx.Parse(der)
	require.NoError(t, err)
	return issuedCert{DER: der, X509: x509Cert, Cert: cert, Key: key}
}

func buildDSC(t *testing.T, cn string, serial int64, issuer issuedCert) issuedCert {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tmpl := &x509.Certificate{
		SerialNumber:   big.NewInt(serial),
		Subject:        pkix.Name{CommonName: cn, Country: []string{"DE"}},
		NotBefore:      now,
		NotAfter:       now.AddDate(3, 0, 0),
		KeyUsage:       x509.KeyUsageDigitalSignature,
		AuthorityKeyId: issuer.Cert.Extensions.SubjectKeyID,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, issuer.X509, &key.PublicKey, key)
	require.NoError(t, err)
	x509Cert, err := x509.ParseCertificate(der)
	require.NoError(t, err)
	cert, err := certx.Parse(der)
	require.NoError(t, err)
	return issuedCert{DER: der, X509: x509Cert, Cert: cert, Key: key}
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

func buildLDSSecurityObject(t *testing.T, dgHashes map[int][]byte) []byte {
	t.Helper()
	type dataGroupHash struct {
		Number int
		Hash   []byte
	}
	var entries []dataGroupHash
	for n, h := range dgHashes {
		entries = append(entries, dataGroupHash{Number: n, Hash: h})
	}
	type ldsSecurityObject struct {
		Version       int
		HashAlgorithm pkix.AlgorithmIdentifier
		DataGroups    []dataGroupHash
	}
	der, err := asn1.Marshal(ldsSecurityObject{
		Version:       0,
		HashAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA256},
		DataGroups:    entries,
	})
	require.NoError(t, err)
	return der
}

// buildSOD assembles an EF.SOD CMS SignedData carrying an inline
// LDSSecurityObject eContent, signed by dsc (issued by a CSCA, not
// self-signed).
func buildSOD(t *testing.T, dsc issuedCert, bag []issuedCert, ldsContent []byte) []byte {
	t.Helper()
	digest := sha256.Sum256(ldsContent)

	contentTypeAttr := rawAttribute{Type: oidContentType, Values: marshalSetValue(t, oidLDSSecObj)}
	digestAttr := rawAttribute{Type: oidMessageDigest, Values: marshalSetValue(t, digest[:])}
	attrs := []rawAttribute{contentTypeAttr, digestAttr}
	attrsBytes, err := asn1.Marshal(attrs)
	require.NoError(t, err)

	attrsForSigning := make([]byte, len(attrsBytes))
	copy(attrsForSigning, attrsBytes)
	attrsForSigning[0] = 0x31

	sigHash := sha256.Sum256(attrsForSigning)
	sig, err := rsa.SignPKCS1v15(rand.Reader, dsc.Key, crypto.SHA256, sigHash[:])
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
		Version: 1,
		IssuerAndSerial: issuerAndSerial{
			Issuer:       asn1.RawValue{FullBytes: dsc.X509.RawIssuer},
			SerialNumber: dsc.X509.SerialNumber,
		},
		DigestAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA256},
		SignedAttrs: asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true,
			Bytes: attrsBytes[2:],
		},
		SignatureAlgorithm: pkix.AlgorithmIdentifier{Algorithm: oidSHA256WithRSA},
		Signature:          sig,
	}

	var bagRaw []byte
	for _, c := range bag {
		bagRaw = append(bagRaw, c.DER...)
	}

	type encapContentInfo struct {
		EContentType asn1.ObjectIdentifier
		EContent     asn1.RawValue `asn1:"explicit,tag:0"`
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
		EncapContentInfo: encapContentInfo{
			EContentType: oidLDSSecObj,
			EContent:     asn1.RawValue{Class: asn1.ClassUniversal, Tag: asn1.TagOctetString, Bytes: ldsContent},
		},
		Certificates: asn1.RawValue{
			Class: asn1.ClassContextSpecific, Tag: 0, IsCompound: true, Bytes: bagRaw,
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

func TestVerifyPassesWithValidChainAndMatchingHashes(t *testing.T) {
	root := buildCA(t, "Test CSCA Root")
	dsc := buildDSC(t, "Test DSC", 2, root)

	dg1 := []byte("MRZ data")
	dg2 := []byte("face image")
	h1 := sha256.Sum256(dg1)
	h2 := sha256.Sum256(dg2)
	lds := buildLDSSecurityObject(t, map[int][]byte{1: h1[:], 2: h2[:]})
	sodRaw := buildSOD(t, dsc, []issuedCert{dsc, root}, lds)

	store := trust.NewMemoryStore()
	store.AddCertificate(root.Cert, true)

	req := Request{
		SODBytes:       sodRaw,
		DataGroups:     map[int][]byte{1: dg1, 2: dg2},
		EvaluationTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	verdict, err := Verify(context.Background(), req, store, audit.NopSink{}, config.DefaultCoreConfig())
	require.NoError(t, err)
	assert.Equal(t, StateDone, verdict.ReachedState)
	assert.Equal(t, Passed, verdict.Overall)
	assert.Empty(t, verdict.FailureReasons)
	assert.True(t, verdict.SODSignatureOK)
	require.Len(t, verdict.DataGroupResults, 2)
	require.NotNil(t, verdict.Chain)
	assert.Len(t, verdict.Chain.Nodes, 2)
}

func TestVerifyFailsOnDgHashMismatch(t *testing.T) {
	root := buildCA(t, "Test CSCA Root")
	dsc := buildDSC(t, "Test DSC", 2, root)

	h1 := sha256.Sum256([]byte("MRZ data"))
	lds := buildLDSSecurityObject(t, map[int][]byte{1: h1[:]})
	sodRaw := buildSOD(t, dsc, []issuedCert{dsc, root}, lds)

	store := trust.NewMemoryStore()
	store.AddCertificate(root.Cert, true)

	req := Request{
		SODBytes:       sodRaw,
		DataGroups:     map[int][]byte{1: []byte("tampered MRZ data")},
		EvaluationTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	verdict, err := Verify(context.Background(), req, store, audit.NopSink{}, config.DefaultCoreConfig())
	require.NoError(t, err)
	assert.Equal(t, Failed, verdict.Overall)
	require.Contains(t, verdict.FailureReasons, pkderr.DgHashMismatch)
}

func TestVerifyFailsWhenChainUnresolvable(t *testing.T) {
	root := buildCA(t, "Test CSCA Root")
	dsc := buildDSC(t, "Test DSC", 2, root)

	h1 := sha256.Sum256([]byte("MRZ data"))
	lds := buildLDSSecurityObject(t, map[int][]byte{1: h1[:]})
	sodRaw := buildSOD(t, dsc, []issuedCert{dsc, root}, lds)

	store := trust.NewMemoryStore() // root never registered

	req := Request{
		SODBytes:       sodRaw,
		DataGroups:     map[int][]byte{1: []byte("MRZ data")},
		EvaluationTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	verdict, err := Verify(context.Background(), req, store, audit.NopSink{}, config.DefaultCoreConfig())
	require.NoError(t, err)
	assert.Equal(t, Failed, verdict.Overall)
	assert.NotEmpty(t, verdict.FailureReasons)
}

func TestVerifyReturnsPassedWithDeviationsWhenHitPresent(t *testing.T) {
	root := buildCA(t, "Test CSCA Root")
	dsc := buildDSC(t, "Test DSC", 2, root)

	h1 := sha256.Sum256([]byte("MRZ data"))
	lds := buildLDSSecurityObject(t, map[int][]byte{1: h1[:]})
	sodRaw := buildSOD(t, dsc, []issuedCert{dsc, root}, lds)

	store := trust.NewMemoryStore()
	store.AddCertificate(root.Cert, true)
	store.AddDeviationHit(trust.DeviationHit{
		Target:      certx.IssuerSerial{Issuer: dsc.Cert.Issuer, Serial: dsc.Cert.Serial},
		Category:    trust.CategoryLDS,
		Description: "known LDS encoding quirk",
	})

	req := Request{
		SODBytes:       sodRaw,
		DataGroups:     map[int][]byte{1: []byte("MRZ data")},
		EvaluationTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	verdict, err := Verify(context.Background(), req, store, audit.NopSink{}, config.DefaultCoreConfig())
	require.NoError(t, err)
	assert.Equal(t, PassedWithDeviations, verdict.Overall)
	require.Len(t, verdict.Deviations, 1)
	assert.Equal(t, "known LDS encoding quirk", verdict.Deviations[0].Description)
}

func TestVerifyIgnoresSODHashesForDataGroupsNeverPresented(t *testing.T) {
	root := buildCA(t, "Test CSCA Root")
	dsc := buildDSC(t, "Test DSC", 2, root)

	dg1 := []byte("MRZ data")
	h1 := sha256.Sum256(dg1)
	h2 := sha256.Sum256([]byte("face image never presented"))
	lds := buildLDSSecurityObject(t, map[int][]byte{1: h1[:], 2: h2[:]})
	sodRaw := buildSOD(t, dsc, []issuedCert{dsc, root}, lds)

	store := trust.NewMemoryStore()
	store.AddCertificate(root.Cert, true)

	req := Request{
		SODBytes:       sodRaw,
		DataGroups:     map[int][]byte{1: dg1}, // DG2 is in the SOD table but never presented
		EvaluationTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	verdict, err := Verify(context.Background(), req, store, audit.NopSink{}, config.DefaultCoreConfig())
	require.NoError(t, err)
	assert.Equal(t, Passed, verdict.Overall)
	assert.Empty(t, verdict.FailureReasons)
	require.Len(t, verdict.DataGroupResults, 1)
	assert.Equal(t, 1, verdict.DataGroupResults[0].Number)
}

func TestVerifyWithEmptyDataGroupsStillDependsOnSODAndChain(t *testing.T) {
	root := buildCA(t, "Test CSCA Root")
	dsc := buildDSC(t, "Test DSC", 2, root)

	h1 := sha256.Sum256([]byte("MRZ data"))
	lds := buildLDSSecurityObject(t, map[int][]byte{1: h1[:]})
	sodRaw := buildSOD(t, dsc, []issuedCert{dsc, root}, lds)

	store := trust.NewMemoryStore()
	store.AddCertificate(root.Cert, true)

	req := Request{
		SODBytes:       sodRaw,
		DataGroups:     nil,
		EvaluationTime: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}

	verdict, err := Verify(context.Background(), req, store, audit.NopSink{}, config.DefaultCoreConfig())
	require.NoError(t, err)
	assert.Equal(t, Passed, verdict.Overall)
	assert.Empty(t, verdict.FailureReasons)
	assert.Empty(t, verdict.DataGroupResults)
	assert.True(t, verdict.SODSignatureOK)
	require.NotNil(t, verdict.Chain)
}

func TestVerifyReturnsErrCancelledWhenContextAlreadyCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := trust.NewMemoryStore()
	req := Request{EvaluationTime: time.Now()}

	verdict, err := Verify(ctx, req, store, audit.NopSink{}, config.DefaultCoreConfig())
	assert.Nil(t, verdict)
	assert.ErrorIs(t, err, ErrCancelled)
}
