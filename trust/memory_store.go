package trust

import (
	"encoding/hex"
	"math/big"
	"sync"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/crl"
	"github.com/icao-pkd/pa-core/dn"
)

// MemoryStore is an in-process Store, indexed by canonical subject name
// and by SKI hex per spec.md §4.11 ("Store: indexed by subject
// canonical name and by SKI"). A single sync.RWMutex guards every map:
// readers (FindBySubject, FindBySKI, FindCRLsByIssuer,
// FindDeviationsFor, IsTrustAnchor) take RLock; every mutator
// (AdmitMasterList, AddCertificate, MarkTrustAnchor, AddCRL,
// AddDeviationHit) takes the write Lock —
// matching §5's "ingests serialised behind a single-writer lock...
// readers never blocked except at the instant a new anchor is
// installed."
type MemoryStore struct {
	mu sync.RWMutex

	bySubject map[string][]*certx.Certificate
	bySKI     map[string][]*certx.Certificate
	anchors   map[[32]byte]bool
	crlsByIssuer map[string][]*crl.CRL
	deviations   map[string][]DeviationHit
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bySubject:    make(map[string][]*certx.Certificate),
		bySKI:        make(map[string][]*certx.Certificate),
		anchors:      make(map[[32]byte]bool),
		crlsByIssuer: make(map[string][]*crl.CRL),
		deviations:   make(map[string][]DeviationHit),
	}
}

// AddCertificate indexes cert by its canonical subject name and (if
// present) its SKI. If trusted is true, the certificate is also marked
// a TrustAnchor by its SHA-256 fingerprint.
func (s *MemoryStore) AddCertificate(cert *certx.Certificate, trusted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addCertificateLocked(cert, trusted)
}

func (s *MemoryStore) addCertificateLocked(cert *certx.Certificate, trusted bool) {
	key := cert.Subject.Canonical()
	s.bySubject[key] = append(s.bySubject[key], cert)
	if len(cert.Extensions.SubjectKeyID) > 0 {
		skiKey := hex.EncodeToString(cert.Extensions.SubjectKeyID)
		s.bySKI[skiKey] = append(s.bySKI[skiKey], cert)
	}
	if trusted {
		s.anchors[cert.FingerprintSHA256] = true
	}
}

// MarkTrustAnchor promotes an already-stored certificate's fingerprint
// to trust-anchor status — the operator-initiated admission path §5
// describes separately from bulk Master List ingest.
func (s *MemoryStore) MarkTrustAnchor(fingerprintSHA256 [32]byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.anchors[fingerprintSHA256] = true
}

// AddCRL indexes c by its issuer's canonical name, newest thisUpdate
// first (FindCRLsByIssuer's documented "newest first" contract).
func (s *MemoryStore) AddCRL(c *crl.CRL) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.Issuer.Canonical()
	list := s.crlsByIssuer[key]
	idx := 0
	for idx < len(list) && list[idx].ThisUpdate.After(c.ThisUpdate) {
		idx++
	}
	list = append(list, nil)
	copy(list[idx+1:], list[idx:])
	list[idx] = c
	s.crlsByIssuer[key] = list
}

// AddDeviationHit records a deviation-list hit against the certificate
// named by hit.Target.
func (s *MemoryStore) AddDeviationHit(hit DeviationHit) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := deviationKey(hit.Target.Issuer, hit.Target.Serial)
	s.deviations[key] = append(s.deviations[key], hit)
}

// AdmitMasterList applies the per-certificate admission decisions a
// caller made after calling masterlist.Verify: admitted certificates
// are stored as candidates (trusted=false — anchor promotion is a
// separate operator decision per spec.md §4.6 bullet 4 and MarkTrustAnchor
// above), under one write lock so the whole batch is atomic from a
// reader's point of view.
func (s *MemoryStore) AdmitMasterList(admitted []*certx.Certificate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, cert := range admitted {
		s.addCertificateLocked(cert, false)
	}
}

func deviationKey(issuer dn.Name, serial *big.Int) string {
	s := issuer.Canonical() + "|"
	if serial != nil {
		s += serial.String()
	}
	return s
}

func (s *MemoryStore) FindBySubject(name dn.Name) ([]*certx.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bySubject[name.Canonical()], nil
}

func (s *MemoryStore) FindBySKI(ski []byte) ([]*certx.Certificate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bySKI[hex.EncodeToString(ski)], nil
}

func (s *MemoryStore) FindCRLsByIssuer(issuer dn.Name) ([]*crl.CRL, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.crlsByIssuer[issuer.Canonical()], nil
}

func (s *MemoryStore) FindDeviationsFor(issuer dn.Name, serial *big.Int) ([]DeviationHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.deviations[deviationKey(issuer, serial)], nil
}

func (s *MemoryStore) IsTrustAnchor(fingerprintSHA256 [32]byte) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.anchors[fingerprintSHA256]
}
