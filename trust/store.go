// Package trust implements the §6 CertificateStore collaborator
// contract and the §4.11 chain-building/revocation algorithm that
// consumes it. The Store interface is what pa and masterlist/devlist
// depend on; MemoryStore is the one reference implementation this
// repository ships so the demo layer (httpapi, cmd/pkdctl) is runnable
// without an external directory service.
package trust

import (
	"math/big"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/crl"
	"github.com/icao-pkd/pa-core/dn"
	"github.com/icao-pkd/pa-core/oid"
)

// DeviationCategory classifies a deviation-list hit by its defect OID's
// top-level arc (spec.md §4.10: .1=CertOrKey, .2=LDS, .3=MRZ, .4=Chip).
// Owned by trust, not devlist, so trust.Store's FindDeviationsFor can
// name the hit shape without importing devlist — devlist aliases these
// types instead (see devlist's DESIGN.md entry for the import-cycle
// this avoids).
type DeviationCategory string

const (
	CategoryCertOrKey DeviationCategory = "CertOrKey"
	CategoryLDS        DeviationCategory = "LDS"
	CategoryMRZ         DeviationCategory = "MRZ"
	CategoryChip        DeviationCategory = "Chip"
	CategoryUnknown     DeviationCategory = "Unknown"
)

// DeviationHit is one entry of a Deviation List matched against a
// specific certificate (by issuer+serial).
type DeviationHit struct {
	Target      certx.IssuerSerial
	DefectOID   oid.ObjectIdentifier
	Category    DeviationCategory
	Description string
}

// Store is the §6 CertificateStore contract: a read-mostly directory of
// certificates, CRLs, and deviation hits the core consults but never
// owns. The core never opens sockets, files, or databases directly —
// every lookup goes through this interface.
type Store interface {
	FindBySubject(name dn.Name) ([]*certx.Certificate, error)
	FindBySKI(ski []byte) ([]*certx.Certificate, error)
	FindCRLsByIssuer(issuer dn.Name) ([]*crl.CRL, error)
	FindDeviationsFor(issuer dn.Name, serial *big.Int) ([]DeviationHit, error)
	IsTrustAnchor(fingerprintSHA256 [32]byte) bool
}
