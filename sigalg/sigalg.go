// Package sigalg resolves the digest and signature OIDs ICAO Doc 9303
// certificates and CMS SignerInfos carry into executable verifiers:
// RSA-PKCS1v15, RSA-PSS, and ECDSA over NIST P-256/384/521 plus the
// brainpoolP256/384/512r1 curves. Every verifier takes the exact bytes
// a caller (certx, cms) already retained raw — this package never
// re-derives or re-marshals anything, it only hashes and checks.
package sigalg

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/asn1"
	"math/big"

	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/oid"
)

var (
	ErrUnknownDigestAlgorithm   = errors.New("sigalg: unknown digest algorithm OID")
	ErrUnknownSignatureAlgorithm = errors.New("sigalg: unknown signature algorithm OID")
	ErrUnsupportedPublicKeyType  = errors.New("sigalg: public key type does not match signature algorithm")
	ErrSignatureInvalid          = errors.New("sigalg: signature verification failed")
)

// DigestAlgorithm pairs a digest OID with its human name and stdlib
// crypto.Hash identifier, mirroring the OID-registry shape of
// go-phorce/dolly's xpki/oid package (HashAlgorithmInfo), trimmed to
// the fields this module actually needs.
type DigestAlgorithm struct {
	Name string
	OID  oid.ObjectIdentifier
	Hash crypto.Hash
	Weak bool // SHA-1: accepted for legacy documents, surfaced as a deviation.
}

var digestAlgorithms = []DigestAlgorithm{
	{Name: "SHA-1", OID: oid.DigestSHA1, Hash: crypto.SHA1, Weak: true},
	{Name: "SHA-256", OID: oid.DigestSHA256, Hash: crypto.SHA256},
	{Name: "SHA-384", OID: oid.DigestSHA384, Hash: crypto.SHA384},
	{Name: "SHA-512", OID: oid.DigestSHA512, Hash: crypto.SHA512},
}

// LookupDigest resolves a digest AlgorithmIdentifier OID.
func LookupDigest(id oid.ObjectIdentifier) (DigestAlgorithm, error) {
	for _, d := range digestAlgorithms {
		if d.OID.Equal(id) {
			return d, nil
		}
	}
	return DigestAlgorithm{}, errors.Wrapf(ErrUnknownDigestAlgorithm, "%s", id.String())
}

// Sum hashes msg with the algorithm's digest, for callers that need the
// digest itself (e.g. matching a SOD's messageDigest attribute).
func (d DigestAlgorithm) Sum(msg []byte) []byte {
	switch d.Hash {
	case crypto.SHA1:
		h := sha1.Sum(msg)
		return h[:]
	case crypto.SHA256:
		h := sha256.Sum256(msg)
		return h[:]
	case crypto.SHA384:
		h := sha512.Sum384(msg)
		return h[:]
	case crypto.SHA512:
		h := sha512.Sum512(msg)
		return h[:]
	default:
		return nil
	}
}

// family identifies the public-key algorithm a signature OID implies.
type family int

const (
	familyRSAPKCS1v15 family = iota
	familyRSAPSS
	familyECDSA
)

// SignatureAlgorithm pairs a signature OID with the digest it implies
// (when fixed — RSASSA-PSS carries its own digest in AlgorithmIdentifier
// parameters instead) and the public-key family needed to verify it.
type SignatureAlgorithm struct {
	Name   string
	OID    oid.ObjectIdentifier
	Family family
	Digest DigestAlgorithm // zero value for RSASSA-PSS; see DecodePSSParams
}

var signatureAlgorithms = []SignatureAlgorithm{
	{Name: "RSA-SHA1", OID: oid.SigRSAWithSHA1, Family: familyRSAPKCS1v15, Digest: digestAlgorithms[0]},
	{Name: "RSA-SHA256", OID: oid.SigRSAWithSHA256, Family: familyRSAPKCS1v15, Digest: digestAlgorithms[1]},
	{Name: "RSA-SHA384", OID: oid.SigRSAWithSHA384, Family: familyRSAPKCS1v15, Digest: digestAlgorithms[2]},
	{Name: "RSA-SHA512", OID: oid.SigRSAWithSHA512, Family: familyRSAPKCS1v15, Digest: digestAlgorithms[3]},
	{Name: "RSA-PSS", OID: oid.SigRSAPSS, Family: familyRSAPSS},
	{Name: "ECDSA-SHA256", OID: oid.SigECDSAWithSHA256, Family: familyECDSA, Digest: digestAlgorithms[1]},
	{Name: "ECDSA-SHA384", OID: oid.SigECDSAWithSHA384, Family: familyECDSA, Digest: digestAlgorithms[2]},
	{Name: "ECDSA-SHA512", OID: oid.SigECDSAWithSHA512, Family: familyECDSA, Digest: digestAlgorithms[3]},
}

// LookupSignatureAlgorithm resolves a signatureAlgorithm AlgorithmIdentifier
// OID.
func LookupSignatureAlgorithm(id oid.ObjectIdentifier) (SignatureAlgorithm, error) {
	for _, a := range signatureAlgorithms {
		if a.OID.Equal(id) {
			return a, nil
		}
	}
	return SignatureAlgorithm{}, errors.Wrapf(ErrUnknownSignatureAlgorithm, "%s", id.String())
}

// Verify checks sig over msg using pub, resolving alg by OID. For
// RSA-PSS, params must be the raw RSASSA-PSS-params DER captured from
// the AlgorithmIdentifier (certx.Certificate.SignatureAlgParams /
// cms.SignerInfo.SignatureAlgParams); it is ignored for every other
// algorithm.
func Verify(algOID oid.ObjectIdentifier, params []byte, pub interface{}, msg, sig []byte) error {
	alg, err := LookupSignatureAlgorithm(algOID)
	if err != nil {
		return err
	}
	switch alg.Family {
	case familyRSAPKCS1v15:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errors.Wrapf(ErrUnsupportedPublicKeyType, "%T, want *rsa.PublicKey", pub)
		}
		digest := alg.Digest.Sum(msg)
		if err := rsa.VerifyPKCS1v15(rsaPub, alg.Digest.Hash, digest, sig); err != nil {
			return errors.Wrap(ErrSignatureInvalid, err.Error())
		}
		return nil
	case familyRSAPSS:
		rsaPub, ok := pub.(*rsa.PublicKey)
		if !ok {
			return errors.Wrapf(ErrUnsupportedPublicKeyType, "%T, want *rsa.PublicKey", pub)
		}
		pssParams, err := DecodePSSParams(params)
		if err != nil {
			return err
		}
		digest := pssParams.Hash.Sum(msg)
		opts := &rsa.PSSOptions{SaltLength: pssParams.SaltLength, Hash: pssParams.Hash.Hash}
		if err := rsa.VerifyPSS(rsaPub, pssParams.Hash.Hash, digest, sig, opts); err != nil {
			return errors.Wrap(ErrSignatureInvalid, err.Error())
		}
		return nil
	case familyECDSA:
		// The curve (NIST or brainpoolP{256,384,512}r1) already lives on
		// pub.Curve: certx.decodePublicKey resolves it from the SPKI
		// algorithm parameters via certx.CurveByOID when the certificate
		// is parsed, so there is nothing left for this package to look up.
		ecPub, ok := pub.(*ecdsa.PublicKey)
		if !ok {
			return errors.Wrapf(ErrUnsupportedPublicKeyType, "%T, want *ecdsa.PublicKey", pub)
		}
		digest := alg.Digest.Sum(msg)
		r, s, err := decodeECDSASignature(sig)
		if err != nil {
			return err
		}
		if !ecdsa.Verify(ecPub, digest, r, s) {
			return ErrSignatureInvalid
		}
		return nil
	default:
		return errors.Wrapf(ErrUnknownSignatureAlgorithm, "unhandled family for %s", algOID.String())
	}
}

// decodeECDSASignature decodes the Ecdsa-Sig-Value SEQUENCE{r,s}
// ECDSA signatures carry on the wire, both in X.509 certificates and
// in CMS SignerInfo.
func decodeECDSASignature(sig []byte) (r, s *big.Int, err error) {
	type ecdsaSig struct {
		R, S *big.Int
	}
	var v ecdsaSig
	if _, err := asn1.Unmarshal(sig, &v); err != nil {
		return nil, nil, errors.Wrap(err, "sigalg: Ecdsa-Sig-Value")
	}
	return v.R, v.S, nil
}
