// Package sod parses and verifies an EF.SOD Document Security Object: a
// CMS SignedData carrying the LDSSecurityObject as attached eContent (a
// detached SOD is rejected), whose signer is the Document Signer
// Certificate (DSC).
// Parse optionally strips the EF.SOD file wrapper (an [APPLICATION 23]
// tag some readers leave in place around the raw CMS bytes) before
// handing off to cms.ParseContentInfo.
package sod

import (
	"time"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/cms"
	"github.com/icao-pkd/pa-core/der"
	"github.com/icao-pkd/pa-core/oid"
	"github.com/icao-pkd/pa-core/pkderr"
	"github.com/icao-pkd/pa-core/sigalg"
)

// ParsedSOD is an EF.SOD that has been CMS-parsed and signature-checked
// against its DSC, with the LDSSecurityObject's dataGroupHashValues
// decoded.
//
// HashAlg is sigalg.DigestAlgorithm rather than the bare oid.Digest a
// literal LDSSecurityObject field name might suggest — dghash.Verify/
// VerifyAll (already built) take sigalg.DigestAlgorithm directly, and
// this module has exactly one digest-algorithm type that matters at
// runtime (the one with a working Sum method), so ParsedSOD carries
// that one rather than forcing callers to re-resolve it.
type ParsedSOD struct {
	DSC            *certx.Certificate
	DGHashes       map[int][]byte
	HashAlg        sigalg.DigestAlgorithm
	LDSVersion     int
	SigningTime    *time.Time
	SignedAttrsDER []byte
}

// stripEFSODWrapper removes an optional [APPLICATION 23] tag (class 1,
// number 23) some EF.SOD readers leave wrapped around the CMS
// ContentInfo bytes, returning buf unchanged if no such wrapper is
// present.
func stripEFSODWrapper(buf []byte) []byte {
	peek := der.NewReader(buf, false)
	tag, err := peek.ReadTag()
	if err != nil || tag.Class != 1 || tag.Number != 23 {
		return buf
	}
	sub, _, _, err := der.NewReader(buf, false).SubReaderWithRaw()
	if err != nil {
		return buf
	}
	return sub.RawBytes()
}

// Parse decodes raw as an EF.SOD: strips an optional [APPLICATION 23]
// wrapper, CMS-parses the remainder, requires eContentType
// 2.23.136.1.1.1 (id-icao-ldsSecurityObject) and exactly one SignerInfo
// (more than one is SodMultipleSigners — Doc 9303 never multi-signs an
// SOD), resolves the DSC from the certificate bag, verifies the
// signature (SodSignatureInvalid on failure), and decodes the
// LDSSecurityObject.
func Parse(raw []byte) (*ParsedSOD, error) {
	raw = stripEFSODWrapper(raw)

	ci, err := cms.ParseContentInfo(raw)
	if err != nil {
		return nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: ContentInfo")
	}
	sd, err := ci.SignedData()
	if err != nil {
		return nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: SignedData")
	}
	if !sd.EContentType.Equal(oid.EContentSOD) {
		return nil, pkderr.New(pkderr.CmsMalformed, "sod: unexpected eContentType "+sd.EContentType.String())
	}
	if len(sd.SignerInfos) != 1 {
		return nil, pkderr.New(pkderr.SodMultipleSigners, "sod: expected exactly one SignerInfo")
	}
	si := &sd.SignerInfos[0]

	dsc, err := si.FindSignerCertificate(sd.Certificates)
	if err != nil {
		return nil, pkderr.Wrap(pkderr.SignerCertMissing, err, "sod: DSC not found in certificate bag")
	}

	ldsBytes, ldsVersion, hashAlg, dgHashes, err := decodeLDSSecurityObject(sd, si)
	if err != nil {
		return nil, err
	}

	if err := verifySignerSignature(si, dsc, ldsBytes, hashAlg); err != nil {
		return nil, err
	}

	result := &ParsedSOD{
		DSC:        dsc,
		DGHashes:   dgHashes,
		HashAlg:    hashAlg,
		LDSVersion: ldsVersion,
	}
	if input, err := si.SignatureInput(); err == nil {
		result.SignedAttrsDER = input
	}
	if t, ok, err := si.SigningTime(); err == nil && ok {
		result.SigningTime = &t
	}
	return result, nil
}

// decodeLDSSecurityObject takes the LDSSecurityObject bytes from the
// attached eContent (an empty eContent is a CmsMalformed error) and
// decodes its SEQUENCE{version, hashAlgorithm, dataGroupHashValues}
// shape.
func decodeLDSSecurityObject(sd *cms.SignedData, si *cms.SignerInfo) ([]byte, int, sigalg.DigestAlgorithm, map[int][]byte, error) {
	if len(sd.EContent) == 0 {
		return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.New(pkderr.CmsMalformed,
			"sod: eContent is empty; a detached SOD with no eContent has no LDSSecurityObject to decode")
	}
	r := der.NewReader(sd.EContent, true)
	seq, _, err := r.ReadSequence()
	if err != nil {
		return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: LDSSecurityObject SEQUENCE")
	}
	_, version, err := seq.ReadIntegerBytes()
	if err != nil {
		return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: LDSSecurityObject.version")
	}

	algSeq, _, err := seq.ReadSequence()
	if err != nil {
		return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: hashAlgorithm")
	}
	algOID, err := algSeq.ReadOID()
	if err != nil {
		return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: hashAlgorithm OID")
	}
	hashAlg, err := sigalg.LookupDigest(algOID)
	if err != nil {
		return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.Wrap(pkderr.UnsupportedAlgorithm, err, "sod: hashAlgorithm")
	}

	dgSeq, _, err := seq.ReadSequence()
	if err != nil {
		return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: dataGroupHashValues")
	}
	hashes := make(map[int][]byte)
	for !dgSeq.Done() {
		entrySeq, _, err := dgSeq.ReadSequence()
		if err != nil {
			return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: DataGroupHash")
		}
		_, dgNumber, err := entrySeq.ReadIntegerBytes()
		if err != nil {
			return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: DataGroupHash.dataGroupNumber")
		}
		dgHash, err := entrySeq.ReadOctetString()
		if err != nil {
			return nil, 0, sigalg.DigestAlgorithm{}, nil, pkderr.Wrap(pkderr.CmsMalformed, err, "sod: DataGroupHash.dataGroupHashValue")
		}
		hashes[int(dgNumber.Int64())] = dgHash
	}

	return sd.EContent, int(version.Int64()), hashAlg, hashes, nil
}

// verifySignerSignature checks si's signature: the signedAttrs'
// messageDigest must match ldsBytes' digest under hashAlg, and the
// SignatureInput (or ldsBytes directly, when there are no signedAttrs)
// must verify under dsc's public key.
func verifySignerSignature(si *cms.SignerInfo, dsc *certx.Certificate, ldsBytes []byte, hashAlg sigalg.DigestAlgorithm) error {
	input, err := si.SignatureInput()
	if err != nil {
		if err := sigalg.Verify(si.SignatureAlg, si.SignatureAlgParams, dsc.PublicKey, ldsBytes, si.Signature); err != nil {
			return pkderr.Wrap(pkderr.SodSignatureInvalid, err, "sod: signature over eContent")
		}
		return nil
	}

	msgDigest, err := si.MessageDigest()
	if err != nil {
		return pkderr.Wrap(pkderr.CmsMalformed, err, "sod: messageDigest attribute")
	}
	actual := hashAlg.Sum(ldsBytes)
	if !bytesEqual(actual, msgDigest) {
		return pkderr.New(pkderr.SodSignatureInvalid, "sod: messageDigest attribute does not match LDSSecurityObject")
	}

	if err := sigalg.Verify(si.SignatureAlg, si.SignatureAlgParams, dsc.PublicKey, input, si.Signature); err != nil {
		return pkderr.Wrap(pkderr.SodSignatureInvalid, err, "sod: signature over signedAttrs")
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
