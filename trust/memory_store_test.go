package trust

import (
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icao-pkd/pa-core/certx"
)

func TestMemoryStoreFindBySubjectAndSKI(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "Store CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))

	store := NewMemoryStore()
	store.AddCertificate(csca.Cert, true)

	bySubject, err := store.FindBySubject(csca.Cert.Subject)
	require.NoError(t, err)
	require.Len(t, bySubject, 1)
	assert.Equal(t, csca.Cert.FingerprintSHA256, bySubject[0].FingerprintSHA256)

	bySKI, err := store.FindBySKI(csca.Cert.Extensions.SubjectKeyID)
	require.NoError(t, err)
	require.Len(t, bySKI, 1)
	assert.Equal(t, csca.Cert.FingerprintSHA256, bySKI[0].FingerprintSHA256)

	assert.True(t, store.IsTrustAnchor(csca.Cert.FingerprintSHA256))
}

func TestMemoryStoreMarkTrustAnchorSeparateFromAdd(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "Untrusted CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))

	store := NewMemoryStore()
	store.AddCertificate(csca.Cert, false)
	assert.False(t, store.IsTrustAnchor(csca.Cert.FingerprintSHA256))

	store.MarkTrustAnchor(csca.Cert.FingerprintSHA256)
	assert.True(t, store.IsTrustAnchor(csca.Cert.FingerprintSHA256))
}

func TestMemoryStoreAdmitMasterListDoesNotAutoTrust(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "ML CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))

	store := NewMemoryStore()
	store.AdmitMasterList([]*certx.Certificate{csca.Cert})

	found, err := store.FindBySubject(csca.Cert.Subject)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.False(t, store.IsTrustAnchor(csca.Cert.FingerprintSHA256))
}

func TestMemoryStoreAddCRLOrdersNewestFirst(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "CRL CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))

	older := buildCRL(t, csca, nil, now.AddDate(0, -3, 0), now.AddDate(0, -2, 0))
	newer := buildCRL(t, csca, nil, now, now.AddDate(0, 1, 0))

	store := NewMemoryStore()
	store.AddCRL(older)
	store.AddCRL(newer)

	found, err := store.FindCRLsByIssuer(older.Issuer)
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.True(t, found[0].ThisUpdate.After(found[1].ThisUpdate))
}

func TestMemoryStoreDeviationHitsKeyedByIssuerAndSerial(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "Dev CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))

	store := NewMemoryStore()
	target := certx.IssuerSerial{Issuer: csca.Cert.Subject, Serial: big.NewInt(42)}
	store.AddDeviationHit(DeviationHit{
		Target:      target,
		Category:    CategoryCertOrKey,
		Description: "weak key",
	})

	hits, err := store.FindDeviationsFor(target.Issuer, target.Serial)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, CategoryCertOrKey, hits[0].Category)

	none, err := store.FindDeviationsFor(target.Issuer, big.NewInt(99))
	require.NoError(t, err)
	assert.Empty(t, none)
}
