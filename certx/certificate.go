// Package certx parses X.509 v3 certificates straight off DER bytes using
// the der package, retaining the exact TBSCertificate byte range needed
// to re-verify the issuer's signature, and decoding the handful of
// extensions ICAO Doc 9303 chain-building and compliance checking care
// about.
package certx

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/pem"
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/der"
	"github.com/icao-pkd/pa-core/dn"
	"github.com/icao-pkd/pa-core/oid"
	"github.com/icao-pkd/pa-core/pkderr"
)

// Certificate is a parsed X.509 v3 certificate. TBSDER is the exact
// re-hashable TBSCertificate encoding; FullDER is the whole certificate
// as received.
type Certificate struct {
	TBSDER  []byte
	FullDER []byte

	Version      int
	SerialBytes  []byte
	Serial       *big.Int
	SignatureAlg oid.ObjectIdentifier

	Issuer    dn.Name
	Subject   dn.Name
	NotBefore time.Time
	NotAfter  time.Time

	SPKIAlgorithm oid.ObjectIdentifier
	PublicKey     interface{} // *rsa.PublicKey or *ecdsa.PublicKey

	Extensions Extensions

	OuterSignatureAlg  oid.ObjectIdentifier
	SignatureAlgParams []byte
	SignatureBytes     []byte

	FingerprintSHA256 [32]byte
}

// IssuerSerial names a certificate by its issuer and serial number, the
// key devlist/deviation-list hits and revocation lookups target rather
// than holding a full Certificate (the target may never have been seen
// directly by the verifying side).
type IssuerSerial struct {
	Issuer dn.Name
	Serial *big.Int
}

// ParsePEMOrDER detects whether buf is PEM-armoured or raw DER and parses
// accordingly. PEM blocks other than "CERTIFICATE" are skipped; the first
// certificate block found is parsed.
func ParsePEMOrDER(buf []byte) (*Certificate, error) {
	if block, _ := pem.Decode(buf); block != nil {
		for block != nil && block.Type != "CERTIFICATE" {
			_, rest := pem.Decode(buf)
			if rest == nil {
				break
			}
			buf = rest
			block, _ = pem.Decode(buf)
		}
		if block == nil {
			return nil, errors.New("certx: no CERTIFICATE PEM block found")
		}
		return Parse(block.Bytes)
	}
	return Parse(buf)
}

// Parse decodes a single DER-encoded X.509 certificate.
func Parse(raw []byte) (*Certificate, error) {
	r := der.NewReader(raw, true)
	outer, fullRaw, err := r.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "certx: outer Certificate SEQUENCE")
	}

	tbsSub, tbsTag, tbsRaw, err := outer.SubReaderWithRaw()
	if err != nil {
		return nil, errors.Wrap(err, "certx: TBSCertificate")
	}
	if tbsTag.Number != der.TagSequence {
		return nil, errors.New("certx: TBSCertificate is not a SEQUENCE")
	}

	c := &Certificate{TBSDER: tbsRaw, FullDER: fullRaw}
	if err := parseTBS(tbsSub, c); err != nil {
		return nil, errors.Wrap(err, "certx: TBSCertificate contents")
	}

	sigAlgSeq, _, err := outer.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "certx: outer signatureAlgorithm")
	}
	sigAlgOID, err := sigAlgSeq.ReadOID()
	if err != nil {
		return nil, errors.Wrap(err, "certx: outer signatureAlgorithm OID")
	}
	c.OuterSignatureAlg = sigAlgOID
	if !sigAlgSeq.Done() {
		c.SignatureAlgParams = sigAlgSeq.RemainingRaw()
	}
	if !c.OuterSignatureAlg.Equal(c.SignatureAlg) {
		return nil, pkderr.New(pkderr.CertMalformed,
			"outer signatureAlgorithm does not match tbsCertificate.signature")
	}

	_, sigBits, err := outer.ReadBitString()
	if err != nil {
		return nil, errors.Wrap(err, "certx: signatureValue")
	}
	c.SignatureBytes = sigBits

	c.FingerprintSHA256 = sha256.Sum256(fullRaw)
	return c, nil
}

func parseTBS(r *der.Reader, c *Certificate) error {
	// version [0] EXPLICIT INTEGER DEFAULT v1
	c.Version = 1
	tag, err := r.PeekTag()
	if err != nil {
		return err
	}
	if tag.Class == 2 && tag.Number == 0 {
		sub, _, _, err := r.SubReaderWithRaw()
		if err != nil {
			return errors.Wrap(err, "version")
		}
		_, v, err := sub.ReadIntegerBytes()
		if err != nil {
			return errors.Wrap(err, "version integer")
		}
		c.Version = int(v.Int64()) + 1
	}

	serialBytes, serial, err := r.ReadIntegerBytes()
	if err != nil {
		return errors.Wrap(err, "serialNumber")
	}
	c.SerialBytes = serialBytes
	c.Serial = serial

	sigAlgSeq, _, err := r.ReadSequence()
	if err != nil {
		return errors.Wrap(err, "tbs signature AlgorithmIdentifier")
	}
	sigAlgOID, err := sigAlgSeq.ReadOID()
	if err != nil {
		return errors.Wrap(err, "tbs signature OID")
	}
	c.SignatureAlg = sigAlgOID

	issuer, err := readName(r)
	if err != nil {
		return errors.Wrap(err, "issuer")
	}
	c.Issuer = issuer

	validity, _, err := r.ReadSequence()
	if err != nil {
		return errors.Wrap(err, "validity")
	}
	notBefore, err := validity.ReadUTCOrGeneralizedTime()
	if err != nil {
		return errors.Wrap(err, "notBefore")
	}
	notAfter, err := validity.ReadUTCOrGeneralizedTime()
	if err != nil {
		return errors.Wrap(err, "notAfter")
	}
	c.NotBefore, c.NotAfter = notBefore, notAfter
	if c.NotAfter.Before(c.NotBefore) {
		return pkderr.New(pkderr.CertMalformed, "validity notAfter precedes notBefore")
	}

	subject, err := readName(r)
	if err != nil {
		return errors.Wrap(err, "subject")
	}
	c.Subject = subject

	spkiSeq, _, err := r.ReadSequence()
	if err != nil {
		return errors.Wrap(err, "subjectPublicKeyInfo")
	}
	algSeq, _, err := spkiSeq.ReadSequence()
	if err != nil {
		return errors.Wrap(err, "spki algorithm")
	}
	algOID, err := algSeq.ReadOID()
	if err != nil {
		return errors.Wrap(err, "spki algorithm OID")
	}
	c.SPKIAlgorithm = algOID
	_, keyBits, err := spkiSeq.ReadBitString()
	if err != nil {
		return errors.Wrap(err, "spki subjectPublicKey")
	}
	pub, err := decodePublicKey(algOID, algSeq, keyBits)
	if err != nil {
		return errors.Wrap(err, "public key")
	}
	c.PublicKey = pub

	// issuerUniqueID [1], subjectUniqueID [2]: skip if present.
	for !r.Done() {
		peek, err := r.PeekTag()
		if err != nil {
			return err
		}
		if peek.Class == 2 && (peek.Number == 1 || peek.Number == 2) {
			if err := r.Skip(); err != nil {
				return err
			}
			continue
		}
		break
	}

	if !r.Done() {
		peek, err := r.PeekTag()
		if err != nil {
			return err
		}
		if peek.Class == 2 && peek.Number == 3 {
			extSub, _, _, err := r.SubReaderWithRaw()
			if err != nil {
				return errors.Wrap(err, "extensions [3]")
			}
			extSeq, _, err := extSub.ReadSequence()
			if err != nil {
				return errors.Wrap(err, "extensions SEQUENCE")
			}
			exts, err := parseExtensions(extSeq)
			if err != nil {
				return errors.Wrap(err, "extensions")
			}
			c.Extensions = exts
		}
	}

	return nil
}

func readName(r *der.Reader) (dn.Name, error) {
	return dn.ReadName(r)
}

func decodePublicKey(algOID oid.ObjectIdentifier, algSeq *der.Reader, keyBits []byte) (interface{}, error) {
	switch {
	case algOID.Equal(oid.PublicKeyRSA):
		keyReader := der.NewReader(keyBits, true)
		keySeq, _, err := keyReader.ReadSequence()
		if err != nil {
			return nil, errors.Wrap(err, "RSAPublicKey SEQUENCE")
		}
		_, n, err := keySeq.ReadIntegerBytes()
		if err != nil {
			return nil, errors.Wrap(err, "RSA modulus")
		}
		_, e, err := keySeq.ReadIntegerBytes()
		if err != nil {
			return nil, errors.Wrap(err, "RSA exponent")
		}
		return &rsa.PublicKey{N: n, E: int(e.Int64())}, nil
	case algOID.Equal(oid.PublicKeyECDSA):
		curveOID, err := algSeq.ReadOID()
		if err != nil {
			return nil, errors.Wrap(err, "EC named curve parameter")
		}
		curve, ok := CurveByOID(curveOID)
		if !ok {
			return nil, errors.Errorf("certx: unsupported EC curve OID %s", curveOID.String())
		}
		if len(keyBits) < 1 || keyBits[0] != 0x04 {
			return nil, errors.New("certx: only uncompressed EC points are supported")
		}
		byteLen := (curve.Params().BitSize + 7) / 8
		if len(keyBits) != 1+2*byteLen {
			return nil, errors.New("certx: EC point length mismatch")
		}
		x := new(big.Int).SetBytes(keyBits[1 : 1+byteLen])
		y := new(big.Int).SetBytes(keyBits[1+byteLen:])
		return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
	default:
		return nil, errors.Errorf("certx: unsupported SPKI algorithm OID %s", algOID.String())
	}
}

// CurveByOID resolves a named-curve OID to its elliptic.Curve, including
// the brainpool curves NIST's stdlib package does not ship.
func CurveByOID(id oid.ObjectIdentifier) (elliptic.Curve, bool) {
	switch {
	case id.Equal(oid.CurveP256):
		return elliptic.P256(), true
	case id.Equal(oid.CurveP384):
		return elliptic.P384(), true
	case id.Equal(oid.CurveP521):
		return elliptic.P521(), true
	case id.Equal(oid.CurveBrainpoolP256r1):
		return brainpoolP256r1, true
	case id.Equal(oid.CurveBrainpoolP384r1):
		return brainpoolP384r1, true
	case id.Equal(oid.CurveBrainpoolP512r1):
		return brainpoolP512r1, true
	default:
		return nil, false
	}
}
