// Package masterlist parses and verifies an ICAO Master List: a CMS
// SignedData whose eContent is a CscaMasterList — the SET of CSCA
// certificates a country publishes, signed by its Master List Signer
// Certificate (MLSC). Verify resolves the MLSC from the SignedData's
// certificate bag, chain-builds it to a trust anchor via trust.BuildChain,
// checks the SignerInfo signature, then admits each embedded CSCA
// candidate independently — one malformed or non-self-consistent entry
// does not sink the whole list.
package masterlist

import (
	"time"

	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/cms"
	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/der"
	"github.com/icao-pkd/pa-core/oid"
	"github.com/icao-pkd/pa-core/pkderr"
	"github.com/icao-pkd/pa-core/sigalg"
	"github.com/icao-pkd/pa-core/trust"
)

// List is a parsed, not-yet-verified Master List.
type List struct {
	SignedData *cms.SignedData
	Version    int
	CertList   []*certx.Certificate
}

// Parse decodes raw as CMS SignedData, requiring eContentType
// 2.23.136.1.1.2 (id-icao-cscaMasterList), then decodes the
// CscaMasterList ::= SEQUENCE { version INTEGER, certList SET OF
// Certificate } payload. Parse errors on the CscaMasterList structure
// itself are fatal (the whole list is unreadable); a certList entry that
// does not decode as a certificate is dropped here without error, so it
// never reaches CertList and gets no AdmissionResult from Verify.
func Parse(raw []byte) (*List, error) {
	ci, err := cms.ParseContentInfo(raw)
	if err != nil {
		return nil, pkderr.Wrap(pkderr.CmsMalformed, err, "masterlist: ContentInfo")
	}
	sd, err := ci.SignedData()
	if err != nil {
		return nil, pkderr.Wrap(pkderr.CmsMalformed, err, "masterlist: SignedData")
	}
	if !sd.EContentType.Equal(oid.EContentMasterList) {
		return nil, pkderr.New(pkderr.CmsMalformed,
			"masterlist: unexpected eContentType "+sd.EContentType.String())
	}
	if len(sd.EContent) == 0 {
		return nil, pkderr.New(pkderr.CmsMalformed, "masterlist: eContent is empty (Master List is never detached)")
	}

	version, certList, err := parseCscaMasterList(sd.EContent)
	if err != nil {
		return nil, pkderr.Wrap(pkderr.CmsMalformed, err, "masterlist: CscaMasterList")
	}

	return &List{SignedData: sd, Version: version, CertList: certList}, nil
}

func parseCscaMasterList(eContent []byte) (int, []*certx.Certificate, error) {
	r := der.NewReader(eContent, true)
	seq, _, err := r.ReadSequence()
	if err != nil {
		return 0, nil, errors.Wrap(err, "CscaMasterList SEQUENCE")
	}
	_, versionInt, err := seq.ReadIntegerBytes()
	if err != nil {
		return 0, nil, errors.Wrap(err, "CscaMasterList.version")
	}

	certSet, _, err := seq.ReadSet()
	if err != nil {
		return 0, nil, errors.Wrap(err, "CscaMasterList.certList")
	}
	var certs []*certx.Certificate
	for !certSet.Done() {
		_, tag, raw, err := certSet.SubReaderWithRaw()
		if err != nil {
			return 0, nil, errors.Wrap(err, "CscaMasterList.certList entry")
		}
		if tag.Number != der.TagSequence {
			continue
		}
		cert, err := certx.Parse(raw)
		if err != nil {
			// An individual malformed certificate is not fatal: it
			// is skipped, keeping the certs slice placeholder-free,
			// since the caller can't act on a nil *certx.Certificate.
			continue
		}
		certs = append(certs, cert)
	}
	return int(versionInt.Int64()), certs, nil
}

// AdmissionStatus classifies one embedded CSCA candidate.
type AdmissionStatus string

const (
	Admitted                 AdmissionStatus = "Admitted"
	RejectedSelfSignedInvalid AdmissionStatus = "RejectedSelfSignedInvalid"
	RejectedParseError       AdmissionStatus = "RejectedParseError"
)

// AdmissionResult is one CscaMasterList entry's fate.
type AdmissionResult struct {
	Certificate *certx.Certificate
	Status      AdmissionStatus
	Reason      string
}

// VerifyResult is the outcome of verifying a Master List's SignerInfo
// and classifying its embedded CSCA candidates.
type VerifyResult struct {
	MLSC       *certx.Certificate
	Chain      *trust.Chain
	Admissions []AdmissionResult
}

// Verify resolves the Master List Signer Certificate from list's
// SignedData certificate bag, chain-builds it to a trust anchor, checks
// the SignerInfo signature over the eContent, and classifies each
// embedded CSCA candidate. A SignerInfo signature failure or an
// unresolvable/unchainable MLSC fails the whole list; a bad certList
// entry only rejects that one entry.
func Verify(list *List, store trust.Store, at time.Time, cfg config.CoreConfig) (*VerifyResult, error) {
	sd := list.SignedData
	if len(sd.SignerInfos) != 1 {
		return nil, pkderr.New(pkderr.CmsMalformed, "masterlist: expected exactly one SignerInfo")
	}
	si := sd.SignerInfos[0]

	mlsc, err := si.FindSignerCertificate(sd.Certificates)
	if err != nil {
		return nil, pkderr.Wrap(pkderr.SignerCertMissing, err, "masterlist: MLSC not found in certificate bag")
	}

	chain, err := trust.BuildChain(mlsc, store, at, cfg)
	if err != nil {
		return nil, err
	}

	if err := verifySignerSignature(&si, mlsc, sd.EContent); err != nil {
		return nil, err
	}

	result := &VerifyResult{MLSC: mlsc, Chain: chain}
	for _, cand := range list.CertList {
		result.Admissions = append(result.Admissions, admit(cand))
	}
	return result, nil
}

// verifySignerSignature checks si's signature, over the signedAttrs
// (whose messageDigest must match eContent's digest) when present, or
// directly over eContent otherwise — Master Lists almost always carry
// eContent inline (non-detached), so the signedAttrs path is the
// common case but not assumed exclusively.
func verifySignerSignature(si *cms.SignerInfo, signer *certx.Certificate, eContent []byte) error {
	digestAlg, err := sigalg.LookupDigest(si.DigestAlgorithm)
	if err != nil {
		return pkderr.Wrap(pkderr.UnsupportedAlgorithm, err, "masterlist: SignerInfo digestAlgorithm")
	}

	input, err := si.SignatureInput()
	if err != nil {
		// No signedAttrs: the signature covers eContent directly.
		if err := sigalg.Verify(si.SignatureAlg, si.SignatureAlgParams, signer.PublicKey, eContent, si.Signature); err != nil {
			return pkderr.Wrap(pkderr.SigInvalid, err, "masterlist: signature over eContent")
		}
		return nil
	}

	msgDigest, err := si.MessageDigest()
	if err != nil {
		return pkderr.Wrap(pkderr.CmsMalformed, err, "masterlist: messageDigest attribute")
	}
	actual := digestAlg.Sum(eContent)
	if !bytesEqual(actual, msgDigest) {
		return pkderr.New(pkderr.SigInvalid, "masterlist: messageDigest attribute does not match eContent")
	}

	if err := sigalg.Verify(si.SignatureAlg, si.SignatureAlgParams, signer.PublicKey, input, si.Signature); err != nil {
		return pkderr.Wrap(pkderr.SigInvalid, err, "masterlist: signature over signedAttrs")
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

// admit classifies one CscaMasterList entry: self-signed CSCAs whose
// own signature verifies are Admitted; self-signed but cryptographically
// invalid entries are RejectedSelfSignedInvalid; anything this module's
// certx.Parse could not even decode as a well-formed certificate never
// reaches here (it was already dropped in parseCscaMasterList and is
// reflected only in a shorter list.CertList than the wire SET size).
func admit(cand *certx.Certificate) AdmissionResult {
	if !cand.IsSelfSigned() {
		// A non-self-signed entry is still admitted as a candidate —
		// chain-building elsewhere in this module may resolve its
		// issuer from a different list or a previously admitted CSCA.
		return AdmissionResult{Certificate: cand, Status: Admitted}
	}
	if err := sigalg.Verify(cand.OuterSignatureAlg, cand.SignatureAlgParams, cand.PublicKey, cand.TBSDER, cand.SignatureBytes); err != nil {
		return AdmissionResult{Certificate: cand, Status: RejectedSelfSignedInvalid, Reason: err.Error()}
	}
	return AdmissionResult{Certificate: cand, Status: Admitted}
}
