package trust

import (
	"crypto/x509/pkix"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/pkderr"
)

func TestCheckRevocationNotRevoked(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "Rev CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))
	dsc := buildDSC(t, "Rev DSC", 2, now.AddDate(0, -1, 0), now.AddDate(1, 0, 0), csca)

	store := NewMemoryStore()
	store.AddCertificate(csca.Cert, true)
	store.AddCRL(buildCRL(t, csca, nil, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)))

	chain, err := BuildChain(dsc, store, now, config.DefaultCoreConfig())
	require.NoError(t, err)

	result, err := CheckRevocation(chain, store, now, config.DefaultCoreConfig())
	require.NoError(t, err)
	assert.True(t, result.Checked)
	assert.False(t, result.Revoked)
}

func TestCheckRevocationRevoked(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "Rev CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))
	dsc := buildDSC(t, "Rev DSC", 2, now.AddDate(0, -1, 0), now.AddDate(1, 0, 0), csca)

	revoked := []pkix.RevokedCertificate{
		{SerialNumber: big.NewInt(2), RevocationTime: now.AddDate(0, 0, -5)},
	}

	store := NewMemoryStore()
	store.AddCertificate(csca.Cert, true)
	store.AddCRL(buildCRL(t, csca, revoked, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)))

	chain, err := BuildChain(dsc, store, now, config.DefaultCoreConfig())
	require.NoError(t, err)

	result, err := CheckRevocation(chain, store, now, config.DefaultCoreConfig())
	require.Error(t, err)
	assert.True(t, pkderr.Is(err, pkderr.CertRevoked))
	require.NotNil(t, result.Node)
	assert.Equal(t, dsc.FingerprintSHA256, result.Node.Certificate.FingerprintSHA256)
}

func TestCheckRevocationSkipsIssuerWithNoCRL(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "Rev CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))
	dsc := buildDSC(t, "Rev DSC", 2, now.AddDate(0, -1, 0), now.AddDate(1, 0, 0), csca)

	store := NewMemoryStore()
	store.AddCertificate(csca.Cert, true)
	// No CRL published for the CSCA.

	chain, err := BuildChain(dsc, store, now, config.DefaultCoreConfig())
	require.NoError(t, err)

	result, err := CheckRevocation(chain, store, now, config.DefaultCoreConfig())
	require.NoError(t, err)
	assert.False(t, result.Checked)
	assert.False(t, result.Revoked)
}

func TestCheckRevocationStaleCRLFailsByDefault(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "Rev CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))
	dsc := buildDSC(t, "Rev DSC", 2, now.AddDate(0, -1, 0), now.AddDate(1, 0, 0), csca)

	store := NewMemoryStore()
	store.AddCertificate(csca.Cert, true)
	store.AddCRL(buildCRL(t, csca, nil, now.AddDate(0, -6, 0), now.AddDate(0, -3, 0)))

	chain, err := BuildChain(dsc, store, now, config.DefaultCoreConfig())
	require.NoError(t, err)

	_, err = CheckRevocation(chain, store, now, config.DefaultCoreConfig())
	require.Error(t, err)
	assert.True(t, pkderr.Is(err, pkderr.RevocationStale))
}

func TestCheckRevocationStaleCRLAcceptedWhenConfigured(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	csca := buildCSCA(t, "Rev CSCA", now.AddDate(-1, 0, 0), now.AddDate(10, 0, 0))
	dsc := buildDSC(t, "Rev DSC", 2, now.AddDate(0, -1, 0), now.AddDate(1, 0, 0), csca)

	store := NewMemoryStore()
	store.AddCertificate(csca.Cert, true)
	store.AddCRL(buildCRL(t, csca, nil, now.AddDate(0, -6, 0), now.AddDate(0, -3, 0)))

	chain, err := BuildChain(dsc, store, now, config.DefaultCoreConfig())
	require.NoError(t, err)

	cfg := config.DefaultCoreConfig()
	cfg.AcceptStaleCRL = true
	result, err := CheckRevocation(chain, store, now, cfg)
	require.NoError(t, err)
	assert.True(t, result.Checked)
	assert.False(t, result.Revoked)
}
