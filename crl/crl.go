// Package crl reads RFC 5280 X.509 v2 Certificate Revocation Lists the
// way certx reads certificates: a from-scratch der.Reader walk that
// retains the exact TBSCertList byte range for signature verification,
// mirroring certx.Certificate's TBS-retention pattern.
package crl

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/der"
	"github.com/icao-pkd/pa-core/dn"
	"github.com/icao-pkd/pa-core/oid"
	"github.com/icao-pkd/pa-core/sigalg"
)

var (
	ErrRevocationStale = errors.New("crl: nextUpdate has passed")
)

// Reason is RFC 5280 §5.3.1's CRLReason enumeration.
type Reason int

const (
	ReasonUnspecified          Reason = 0
	ReasonKeyCompromise        Reason = 1
	ReasonCACompromise         Reason = 2
	ReasonAffiliationChanged   Reason = 3
	ReasonSuperseded           Reason = 4
	ReasonCessationOfOperation Reason = 5
	ReasonCertificateHold      Reason = 6
	ReasonRemoveFromCRL        Reason = 8
	ReasonPrivilegeWithdrawn   Reason = 9
	ReasonAACompromise         Reason = 10
)

// RevokedEntry is one entry of TBSCertList.revokedCertificates.
type RevokedEntry struct {
	SerialNumber   *big.Int
	RevocationDate time.Time
	Reason         Reason
	HasReason      bool
}

// CRL is a parsed CertificateList.
type CRL struct {
	TBSDER []byte
	Version int // 2 for a v2 CRL (the only version Doc 9303 issues)

	SignatureAlg oid.ObjectIdentifier
	Issuer       dn.Name
	ThisUpdate   time.Time
	NextUpdate   time.Time
	HasNextUpdate bool

	Revoked []RevokedEntry

	OuterSignatureAlg  oid.ObjectIdentifier
	SignatureAlgParams []byte
	SignatureBytes     []byte
}

// Parse decodes a DER-encoded CertificateList.
func Parse(raw []byte) (*CRL, error) {
	r := der.NewReader(raw, true)
	seq, _, err := r.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "crl: outer CertificateList SEQUENCE")
	}

	tbsSub, tbsTag, tbsRaw, err := seq.SubReaderWithRaw()
	if err != nil {
		return nil, errors.Wrap(err, "crl: TBSCertList")
	}
	if tbsTag.Class != 0 || tbsTag.Number != der.TagSequence {
		return nil, errors.New("crl: TBSCertList is not a SEQUENCE")
	}

	c := &CRL{TBSDER: tbsRaw}
	if err := parseTBSCertList(tbsSub, c); err != nil {
		return nil, errors.Wrap(err, "crl: TBSCertList contents")
	}

	sigAlgSeq, _, err := seq.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "crl: signatureAlgorithm")
	}
	sigOID, err := sigAlgSeq.ReadOID()
	if err != nil {
		return nil, errors.Wrap(err, "crl: signatureAlgorithm OID")
	}
	c.OuterSignatureAlg = sigOID
	if !sigAlgSeq.Done() {
		c.SignatureAlgParams = sigAlgSeq.RemainingRaw()
	}

	_, sigBits, err := seq.ReadBitString()
	if err != nil {
		return nil, errors.Wrap(err, "crl: signatureValue")
	}
	c.SignatureBytes = sigBits

	return c, nil
}

func parseTBSCertList(seq *der.Reader, c *CRL) error {
	peek, err := seq.PeekTag()
	if err != nil {
		return err
	}
	c.Version = 1 // Version DEFAULT v1, but CRLs with entries are always v2
	if peek.Class == 0 && peek.Number == der.TagInteger {
		_, version, err := seq.ReadIntegerBytes()
		if err != nil {
			return errors.Wrap(err, "version")
		}
		c.Version = int(version.Int64()) + 1
	}

	sigAlgSeq, _, err := seq.ReadSequence()
	if err != nil {
		return errors.Wrap(err, "signature")
	}
	sigOID, err := sigAlgSeq.ReadOID()
	if err != nil {
		return errors.Wrap(err, "signature OID")
	}
	c.SignatureAlg = sigOID

	issuer, err := dn.ReadName(seq)
	if err != nil {
		return errors.Wrap(err, "issuer")
	}
	c.Issuer = issuer

	thisUpdate, err := seq.ReadUTCOrGeneralizedTime()
	if err != nil {
		return errors.Wrap(err, "thisUpdate")
	}
	c.ThisUpdate = thisUpdate

	if !seq.Done() {
		peek, err := seq.PeekTag()
		if err != nil {
			return err
		}
		if peek.Class == 0 && (peek.Number == der.TagUTCTime || peek.Number == der.TagGeneralizedTime) {
			nextUpdate, err := seq.ReadUTCOrGeneralizedTime()
			if err != nil {
				return errors.Wrap(err, "nextUpdate")
			}
			c.NextUpdate = nextUpdate
			c.HasNextUpdate = true
		}
	}

	if !seq.Done() {
		peek, err := seq.PeekTag()
		if err != nil {
			return err
		}
		if peek.Class == 0 && peek.Number == der.TagSequence {
			revokedSeq, _, err := seq.ReadSequence()
			if err != nil {
				return errors.Wrap(err, "revokedCertificates")
			}
			for !revokedSeq.Done() {
				entrySeq, _, err := revokedSeq.ReadSequence()
				if err != nil {
					return errors.Wrap(err, "revokedCertificate entry")
				}
				entry, err := parseRevokedEntry(entrySeq)
				if err != nil {
					return errors.Wrap(err, "revokedCertificate contents")
				}
				c.Revoked = append(c.Revoked, entry)
			}
		}
	}

	if !seq.Done() {
		// crlExtensions [0] EXPLICIT: not currently consumed by this
		// module (no spec.md component reads CRL-level extensions).
		if err := seq.Skip(); err != nil {
			return err
		}
	}

	return nil
}

func parseRevokedEntry(seq *der.Reader) (RevokedEntry, error) {
	var entry RevokedEntry
	_, serial, err := seq.ReadIntegerBytes()
	if err != nil {
		return entry, errors.Wrap(err, "userCertificate")
	}
	entry.SerialNumber = serial

	revDate, err := seq.ReadUTCOrGeneralizedTime()
	if err != nil {
		return entry, errors.Wrap(err, "revocationDate")
	}
	entry.RevocationDate = revDate

	if !seq.Done() {
		extSeq, _, err := seq.ReadSequence()
		if err != nil {
			return entry, errors.Wrap(err, "crlEntryExtensions")
		}
		for !extSeq.Done() {
			oneExt, _, err := extSeq.ReadSequence()
			if err != nil {
				return entry, errors.Wrap(err, "Extension")
			}
			extOID, err := oneExt.ReadOID()
			if err != nil {
				return entry, errors.Wrap(err, "extnID")
			}
			if !oneExt.Done() {
				peek, err := oneExt.PeekTag()
				if err != nil {
					return entry, err
				}
				if peek.Class == 0 && peek.Number == der.TagBoolean {
					if err := oneExt.Skip(); err != nil {
						return entry, err
					}
				}
			}
			extValue, err := oneExt.ReadOctetString()
			if err != nil {
				return entry, errors.Wrap(err, "extnValue")
			}
			if extOID.Equal(oid.ExtCRLReason) {
				reason, err := decodeEnumerated(extValue)
				if err != nil {
					return entry, errors.Wrap(err, "CRLReason")
				}
				entry.Reason = Reason(reason)
				entry.HasReason = true
			}
		}
	}

	return entry, nil
}

// decodeEnumerated reads a bare ENUMERATED TLV (e.g. a CRLReason
// extension's decoded OCTET STRING payload) and returns its integer
// value. ENUMERATED shares INTEGER's content encoding, so once the tag
// is confirmed the value bytes are read the same way.
func decodeEnumerated(raw []byte) (int, error) {
	r := der.NewReader(raw, true)
	sub, tag, _, err := r.SubReaderWithRaw()
	if err != nil {
		return 0, err
	}
	if tag.Class != 0 || tag.Number != tagEnumerated {
		return 0, errors.Errorf("expected ENUMERATED, got class=%d number=%d", tag.Class, tag.Number)
	}
	n := 0
	for _, b := range sub.RawBytes() {
		n = n<<8 | int(b)
	}
	return n, nil
}

// tagEnumerated is the universal ENUMERATED tag number; der does not
// export it since no other package in this module decodes one.
const tagEnumerated = 10

// IsRevoked reports whether serial appears in the revoked list.
func (c *CRL) IsRevoked(serial *big.Int) (RevokedEntry, bool) {
	for _, e := range c.Revoked {
		if e.SerialNumber.Cmp(serial) == 0 {
			return e, true
		}
	}
	return RevokedEntry{}, false
}

// CheckFreshness reports ErrRevocationStale if now is past nextUpdate
// plus skew. A CRL with no nextUpdate is always considered fresh (RFC
// 5280 treats nextUpdate as optional but Doc 9303-issued CRLs always
// carry it; absence is not itself an error here).
func (c *CRL) CheckFreshness(now time.Time, skew time.Duration) error {
	if !c.HasNextUpdate {
		return nil
	}
	if now.After(c.NextUpdate.Add(skew)) {
		return ErrRevocationStale
	}
	return nil
}

// VerifySignature checks this CRL's signature against issuer's public
// key.
func (c *CRL) VerifySignature(issuer *certx.Certificate) error {
	return sigalg.Verify(c.OuterSignatureAlg, c.SignatureAlgParams, issuer.PublicKey, c.TBSDER, c.SignatureBytes)
}
