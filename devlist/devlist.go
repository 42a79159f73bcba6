// Package devlist parses and verifies an ICAO Deviation List: a CMS
// SignedData (eContentType 2.23.136.1.1.7) whose eContent is a
// DeviationList of SignerDeviation entries, each naming a certificate
// (by issuer DN + serial number) and the defects it is known to carry.
// The signer is checked against a trust anchor via the same chain path
// as a Master List (trust.BuildChain) since a Deviation List is itself
// published and signed by a CSCA-rooted authority.
package devlist

import (
	"time"

	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/cms"
	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/der"
	"github.com/icao-pkd/pa-core/dn"
	"github.com/icao-pkd/pa-core/oid"
	"github.com/icao-pkd/pa-core/pkderr"
	"github.com/icao-pkd/pa-core/sigalg"
	"github.com/icao-pkd/pa-core/trust"
)

// Category classifies a deviation by its defect OID's top-level arc.
// Aliased from trust rather than redefined: trust.Store.FindDeviationsFor
// already names this shape so trust does not have to import devlist (an
// import cycle, since devlist itself consumes trust.Store to chain-build
// its own signer). devlist is the producer of Hit values; trust only
// needs to carry them.
type Category = trust.DeviationCategory

const (
	CategoryCertOrKey = trust.CategoryCertOrKey
	CategoryLDS       = trust.CategoryLDS
	CategoryMRZ       = trust.CategoryMRZ
	CategoryChip      = trust.CategoryChip
	CategoryUnknown   = trust.CategoryUnknown
)

// Hit is one SignerDeviation entry, resolved to the defect category its
// OID falls under.
type Hit = trust.DeviationHit

// List is a parsed, signature-verified Deviation List.
type List struct {
	Signer *certx.Certificate
	Chain  *trust.Chain
	Hits   []Hit
}

// Parse decodes raw as a Deviation List: CMS-parses it, requires
// eContentType 2.23.136.1.1.7, resolves the signer from the certificate
// bag, chain-builds it to a trust anchor, checks the SignerInfo
// signature, and decodes each SignerDeviation into a Hit.
func Parse(raw []byte, store trust.Store, at time.Time, cfg config.CoreConfig) (*List, error) {
	ci, err := cms.ParseContentInfo(raw)
	if err != nil {
		return nil, pkderr.Wrap(pkderr.CmsMalformed, err, "devlist: ContentInfo")
	}
	sd, err := ci.SignedData()
	if err != nil {
		return nil, pkderr.Wrap(pkderr.CmsMalformed, err, "devlist: SignedData")
	}
	if !sd.EContentType.Equal(oid.EContentDeviation) {
		return nil, pkderr.New(pkderr.CmsMalformed, "devlist: unexpected eContentType "+sd.EContentType.String())
	}
	if len(sd.EContent) == 0 {
		return nil, pkderr.New(pkderr.CmsMalformed, "devlist: eContent is empty (Deviation List is never detached)")
	}
	if len(sd.SignerInfos) != 1 {
		return nil, pkderr.New(pkderr.CmsMalformed, "devlist: expected exactly one SignerInfo")
	}
	si := sd.SignerInfos[0]

	signer, err := si.FindSignerCertificate(sd.Certificates)
	if err != nil {
		return nil, pkderr.Wrap(pkderr.SignerCertMissing, err, "devlist: signer not found in certificate bag")
	}

	chain, err := trust.BuildChain(signer, store, at, cfg)
	if err != nil {
		return nil, err
	}

	if err := verifySignerSignature(&si, signer, sd.EContent); err != nil {
		return nil, err
	}

	hits, err := parseDeviationList(sd.EContent)
	if err != nil {
		return nil, pkderr.Wrap(pkderr.CmsMalformed, err, "devlist: DeviationList")
	}

	return &List{Signer: signer, Chain: chain, Hits: hits}, nil
}

// verifySignerSignature mirrors masterlist's: the signedAttrs'
// messageDigest (when present) is checked against eContent's digest,
// then the signature itself is checked over the signedAttrs (or
// eContent directly when no signedAttrs are carried).
func verifySignerSignature(si *cms.SignerInfo, signer *certx.Certificate, eContent []byte) error {
	digestAlg, err := sigalg.LookupDigest(si.DigestAlgorithm)
	if err != nil {
		return pkderr.Wrap(pkderr.UnsupportedAlgorithm, err, "devlist: SignerInfo digestAlgorithm")
	}

	input, err := si.SignatureInput()
	if err != nil {
		if err := sigalg.Verify(si.SignatureAlg, si.SignatureAlgParams, signer.PublicKey, eContent, si.Signature); err != nil {
			return pkderr.Wrap(pkderr.SigInvalid, err, "devlist: signature over eContent")
		}
		return nil
	}

	msgDigest, err := si.MessageDigest()
	if err != nil {
		return pkderr.Wrap(pkderr.CmsMalformed, err, "devlist: messageDigest attribute")
	}
	if !bytesEqual(digestAlg.Sum(eContent), msgDigest) {
		return pkderr.New(pkderr.SigInvalid, "devlist: messageDigest attribute does not match eContent")
	}

	if err := sigalg.Verify(si.SignatureAlg, si.SignatureAlgParams, signer.PublicKey, input, si.Signature); err != nil {
		return pkderr.Wrap(pkderr.SigInvalid, err, "devlist: signature over signedAttrs")
	}
	return nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// parseDeviationList decodes DeviationList ::= SEQUENCE { version
// INTEGER, deviations SET OF SignerDeviation }, where SignerDeviation
// ::= SEQUENCE { signerIdentifier CertificateIdentifier, deviations SET
// OF Deviation } and CertificateIdentifier ::= SEQUENCE { issuer Name,
// serialNumber INTEGER }, Deviation ::= SEQUENCE { description
// UTF8String OPTIONAL, deviationType OBJECT IDENTIFIER, deviationDetails
// [0] EXPLICIT ANY OPTIONAL }.
func parseDeviationList(eContent []byte) ([]Hit, error) {
	r := der.NewReader(eContent, true)
	seq, _, err := r.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "DeviationList SEQUENCE")
	}
	if _, _, err := seq.ReadIntegerBytes(); err != nil {
		return nil, errors.Wrap(err, "DeviationList.version")
	}

	set, _, err := seq.ReadSet()
	if err != nil {
		return nil, errors.Wrap(err, "DeviationList.deviations")
	}

	var hits []Hit
	for !set.Done() {
		sdSeq, _, err := set.ReadSequence()
		if err != nil {
			return nil, errors.Wrap(err, "SignerDeviation SEQUENCE")
		}

		idSeq, _, err := sdSeq.ReadSequence()
		if err != nil {
			return nil, errors.Wrap(err, "CertificateIdentifier SEQUENCE")
		}
		issuerName, err := dn.ReadName(idSeq)
		if err != nil {
			return nil, errors.Wrap(err, "CertificateIdentifier.issuer")
		}
		_, serial, err := idSeq.ReadIntegerBytes()
		if err != nil {
			return nil, errors.Wrap(err, "CertificateIdentifier.serialNumber")
		}

		defectSet, _, err := sdSeq.ReadSet()
		if err != nil {
			return nil, errors.Wrap(err, "SignerDeviation.deviations")
		}
		for !defectSet.Done() {
			defSeq, _, err := defectSet.ReadSequence()
			if err != nil {
				return nil, errors.Wrap(err, "Deviation SEQUENCE")
			}

			var description string
			tag, err := defSeq.PeekTag()
			if err != nil {
				return nil, errors.Wrap(err, "Deviation.description peek")
			}
			if tag.Number == der.TagUTF8String || tag.Number == der.TagPrintableString {
				descSub, _, _, err := defSeq.SubReaderWithRaw()
				if err != nil {
					return nil, errors.Wrap(err, "Deviation.description")
				}
				description = string(descSub.RawBytes())
			}

			defectOID, err := defSeq.ReadOID()
			if err != nil {
				return nil, errors.Wrap(err, "Deviation.deviationType")
			}

			hits = append(hits, Hit{
				Target:      certx.IssuerSerial{Issuer: issuerName, Serial: serial},
				DefectOID:   defectOID,
				Category:    classify(defectOID),
				Description: description,
			})
		}
	}
	return hits, nil
}

// classify maps a defect OID to its Doc 9303 Part 12 top-level category
// by arc prefix: .1=CertOrKey, .2=LDS, .3=MRZ, .4=Chip.
func classify(id oid.ObjectIdentifier) Category {
	switch {
	case oid.HasPrefix(id, oid.DeviationCertOrKeyPrefix):
		return CategoryCertOrKey
	case oid.HasPrefix(id, oid.DeviationLDSPrefix):
		return CategoryLDS
	case oid.HasPrefix(id, oid.DeviationMRZPrefix):
		return CategoryMRZ
	case oid.HasPrefix(id, oid.DeviationChipPrefix):
		return CategoryChip
	default:
		return CategoryUnknown
	}
}
