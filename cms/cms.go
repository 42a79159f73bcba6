// Package cms reads CMS SignedData (RFC 5652) structures the way ICAO
// Doc 9303 uses them: a Security Object Document, Master List, or
// Deviation List wrapped in ContentInfo/SignedData with the payload
// carried as attached eContent. This package also parses a detached
// SignedData (EContent left nil); the sod, masterlist and devlist
// packages reject one. Every byte range a
// verifier must re-hash — the SignedAttributes SET, in particular — is
// retained exactly as received via der.Reader, never re-marshalled.
package cms

import (
	"math/big"
	"time"

	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/der"
	"github.com/icao-pkd/pa-core/dn"
	"github.com/icao-pkd/pa-core/oid"
)

// Sentinel errors, in the teacher's style of named error values rather
// than ad hoc fmt.Errorf at each call site.
var (
	ErrUnsupportedContentType = errors.New("cms: unsupported content type")
	ErrNoSignerInfos          = errors.New("cms: SignedData has no SignerInfos")
	ErrSignerNotFound         = errors.New("cms: no certificate in the bag matches a SignerInfo")
	ErrMissingSignedAttrs     = errors.New("cms: SignerInfo has no signedAttrs")
	ErrAttributeNotFound      = errors.New("cms: attribute not present")
	ErrAttributeMultiValued   = errors.New("cms: attribute has more than one value")
)

// ContentInfo is the outermost CMS structure.
type ContentInfo struct {
	ContentType oid.ObjectIdentifier
	content     *der.Reader
}

// ParseContentInfo decodes a top-level ContentInfo.
func ParseContentInfo(raw []byte) (*ContentInfo, error) {
	r := der.NewReader(raw, true)
	seq, _, err := r.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "cms: outer ContentInfo SEQUENCE")
	}
	ctOID, err := seq.ReadOID()
	if err != nil {
		return nil, errors.Wrap(err, "cms: contentType")
	}
	contentSub, tag, _, err := seq.SubReaderWithRaw()
	if err != nil {
		return nil, errors.Wrap(err, "cms: content [0]")
	}
	if tag.Class != 2 || tag.Number != 0 {
		return nil, errors.New("cms: expected content [0] EXPLICIT")
	}
	return &ContentInfo{ContentType: ctOID, content: contentSub}, nil
}

// SignedData parses the Content field as a SignedData structure,
// returning an error unless ContentType is id-signedData.
func (ci *ContentInfo) SignedData() (*SignedData, error) {
	if !ci.ContentType.Equal(oid.SignedData) {
		return nil, errors.Wrapf(ErrUnsupportedContentType, "got %s", ci.ContentType.String())
	}
	seq, _, err := ci.content.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "cms: SignedData SEQUENCE")
	}
	return parseSignedData(seq)
}

// SignedData is RFC 5652 §5.1's SignedData type, generalised here to
// support parsing/verification rather than construction.
type SignedData struct {
	Version          int
	DigestAlgorithms []oid.ObjectIdentifier

	EContentType oid.ObjectIdentifier
	// EContent is nil in detached mode. SOD, Master List and Deviation
	// List all carry it attached; their parsers reject an empty one.
	EContent []byte

	Certificates []*certx.Certificate
	SignerInfos  []SignerInfo
}

func parseSignedData(seq *der.Reader) (*SignedData, error) {
	sd := &SignedData{}
	_, version, err := seq.ReadIntegerBytes()
	if err != nil {
		return nil, errors.Wrap(err, "cms: SignedData.version")
	}
	sd.Version = int(version.Int64())

	digestAlgs, _, err := seq.ReadSet()
	if err != nil {
		return nil, errors.Wrap(err, "cms: digestAlgorithms")
	}
	for !digestAlgs.Done() {
		algSeq, _, err := digestAlgs.ReadSequence()
		if err != nil {
			return nil, errors.Wrap(err, "cms: DigestAlgorithmIdentifier")
		}
		algOID, err := algSeq.ReadOID()
		if err != nil {
			return nil, errors.Wrap(err, "cms: DigestAlgorithmIdentifier OID")
		}
		sd.DigestAlgorithms = append(sd.DigestAlgorithms, algOID)
	}

	encapSeq, _, err := seq.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "cms: EncapsulatedContentInfo")
	}
	eContentType, err := encapSeq.ReadOID()
	if err != nil {
		return nil, errors.Wrap(err, "cms: eContentType")
	}
	sd.EContentType = eContentType
	if !encapSeq.Done() {
		peek, err := encapSeq.PeekTag()
		if err != nil {
			return nil, err
		}
		if peek.Class == 2 && peek.Number == 0 {
			wrapSub, _, _, err := encapSeq.SubReaderWithRaw()
			if err != nil {
				return nil, errors.Wrap(err, "cms: eContent [0]")
			}
			octets, err := wrapSub.ReadOctetString()
			if err != nil {
				return nil, errors.Wrap(err, "cms: eContent OCTET STRING")
			}
			sd.EContent = octets
		}
	}

	for !seq.Done() {
		peek, err := seq.PeekTag()
		if err != nil {
			return nil, err
		}
		if peek.Class == 2 && peek.Number == 0 {
			// certificates [0] IMPLICIT CertificateSet
			certsSub, _, _, err := seq.SubReaderWithRaw()
			if err != nil {
				return nil, errors.Wrap(err, "cms: certificates [0]")
			}
			for !certsSub.Done() {
				_, certTag, certRaw, err := certsSub.SubReaderWithRaw()
				if err != nil {
					return nil, errors.Wrap(err, "cms: CertificateChoices")
				}
				if certTag.Class != 0 || certTag.Number != der.TagSequence {
					// Skip non-certificate CertificateChoices variants
					// (attribute certs, other certificate formats) — ICAO
					// Doc 9303 never populates these.
					continue
				}
				cert, err := certx.Parse(certRaw)
				if err != nil {
					return nil, errors.Wrap(err, "cms: embedded certificate")
				}
				sd.Certificates = append(sd.Certificates, cert)
			}
			continue
		}
		if peek.Class == 2 && peek.Number == 1 {
			// crls [1] IMPLICIT RevocationInfoChoices: Doc 9303 SignedData
			// never carries CRLs inline (CRLs are distributed separately),
			// but skip gracefully rather than failing if present.
			if err := seq.Skip(); err != nil {
				return nil, err
			}
			continue
		}
		break
	}

	signerInfosSet, _, err := seq.ReadSet()
	if err != nil {
		return nil, errors.Wrap(err, "cms: SignerInfos")
	}
	for !signerInfosSet.Done() {
		siSeq, _, err := signerInfosSet.ReadSequence()
		if err != nil {
			return nil, errors.Wrap(err, "cms: SignerInfo SEQUENCE")
		}
		si, err := parseSignerInfo(siSeq)
		if err != nil {
			return nil, errors.Wrap(err, "cms: SignerInfo")
		}
		sd.SignerInfos = append(sd.SignerInfos, *si)
	}
	if len(sd.SignerInfos) == 0 {
		return nil, ErrNoSignerInfos
	}

	return sd, nil
}

// SignerIdentifier identifies the signer's certificate, either by
// issuer+serial (the only form Doc 9303 CSCA/DSC signatures use) or by
// subjectKeyIdentifier (RFC 5652 v3 SignerInfo).
type SignerIdentifier struct {
	Issuer       dn.Name
	SerialNumber *big.Int
	SubjectKeyID []byte
}

// Attribute is one element of a SignedAttributes/UnsignedAttributes SET;
// Values holds the raw DER bytes of each AttributeValue (ANY), typically
// exactly one per attribute in this module's use.
type Attribute struct {
	Type   oid.ObjectIdentifier
	Values [][]byte
}

// SignerInfo is RFC 5652 §5.3's SignerInfo.
type SignerInfo struct {
	Version            int
	SID                SignerIdentifier
	DigestAlgorithm    oid.ObjectIdentifier
	SignedAttrs        []Attribute
	rawSignedAttrs     []byte // exact [0] IMPLICIT wire bytes, value only (no outer tag/length)
	SignatureAlg       oid.ObjectIdentifier
	SignatureAlgParams []byte // raw parameters, needed for RSASSA-PSS
	Signature          []byte
}

func parseSignerInfo(seq *der.Reader) (*SignerInfo, error) {
	si := &SignerInfo{}
	_, version, err := seq.ReadIntegerBytes()
	if err != nil {
		return nil, errors.Wrap(err, "version")
	}
	si.Version = int(version.Int64())

	peek, err := seq.PeekTag()
	if err != nil {
		return nil, err
	}
	if peek.Class == 2 && peek.Number == 0 {
		// SubjectKeyIdentifier [0] IMPLICIT OCTET STRING (v3 SignerInfo)
		sub, _, _, err := seq.SubReaderWithRaw()
		if err != nil {
			return nil, errors.Wrap(err, "sid subjectKeyIdentifier")
		}
		si.SID.SubjectKeyID = sub.RawBytes()
	} else {
		sidSeq, _, err := seq.ReadSequence()
		if err != nil {
			return nil, errors.Wrap(err, "sid IssuerAndSerialNumber")
		}
		issuer, err := readSIDName(sidSeq)
		if err != nil {
			return nil, errors.Wrap(err, "sid issuer")
		}
		_, serial, err := sidSeq.ReadIntegerBytes()
		if err != nil {
			return nil, errors.Wrap(err, "sid serialNumber")
		}
		si.SID.Issuer = issuer
		si.SID.SerialNumber = serial
	}

	digestAlgSeq, _, err := seq.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "digestAlgorithm")
	}
	digestOID, err := digestAlgSeq.ReadOID()
	if err != nil {
		return nil, errors.Wrap(err, "digestAlgorithm OID")
	}
	si.DigestAlgorithm = digestOID

	peek, err = seq.PeekTag()
	if err != nil {
		return nil, err
	}
	if peek.Class == 2 && peek.Number == 0 {
		attrsSub, _, attrsRaw, err := seq.SubReaderWithRaw()
		if err != nil {
			return nil, errors.Wrap(err, "signedAttrs")
		}
		// attrsRaw is the full [0] IMPLICIT TLV; strip its tag+length to
		// keep only the value bytes, matched by SignatureInput's retagging.
		si.rawSignedAttrs = valueOnly(attrsRaw)
		attrs, err := parseAttributes(attrsSub)
		if err != nil {
			return nil, errors.Wrap(err, "signedAttrs contents")
		}
		si.SignedAttrs = attrs
	}

	sigAlgSeq, _, err := seq.ReadSequence()
	if err != nil {
		return nil, errors.Wrap(err, "signatureAlgorithm")
	}
	sigOID, err := sigAlgSeq.ReadOID()
	if err != nil {
		return nil, errors.Wrap(err, "signatureAlgorithm OID")
	}
	si.SignatureAlg = sigOID
	if !sigAlgSeq.Done() {
		si.SignatureAlgParams = sigAlgSeq.RemainingRaw()
	}

	sig, err := seq.ReadOctetString()
	if err != nil {
		return nil, errors.Wrap(err, "signature")
	}
	si.Signature = sig

	// unsignedAttrs [1] IMPLICIT: Doc 9303 never uses it; skip if present.
	if !seq.Done() {
		if err := seq.Skip(); err != nil {
			return nil, err
		}
	}

	return si, nil
}

func valueOnly(tlv []byte) []byte {
	r := der.NewReader(tlv, false)
	if _, err := r.ReadTag(); err != nil {
		return tlv
	}
	length, err := r.ReadLength()
	if err != nil {
		return tlv
	}
	start := r.Pos()
	return tlv[start : start+length]
}

func readSIDName(seq *der.Reader) (dn.Name, error) {
	var name dn.Name
	for !seq.Done() {
		rdnSet, _, err := seq.ReadSet()
		if err != nil {
			return nil, err
		}
		var rdn dn.RDN
		for !rdnSet.Done() {
			atvSeq, _, err := rdnSet.ReadSequence()
			if err != nil {
				return nil, err
			}
			typeOID, err := atvSeq.ReadOID()
			if err != nil {
				return nil, err
			}
			valSub, valTag, _, err := atvSeq.SubReaderWithRaw()
			if err != nil {
				return nil, err
			}
			rdn = append(rdn, dn.ATV{Type: typeOID, Value: string(valSub.RawBytes()), Tag: valTag.Number})
		}
		name = append(name, rdn)
	}
	return name, nil
}

func parseAttributes(seq *der.Reader) ([]Attribute, error) {
	var attrs []Attribute
	for !seq.Done() {
		attrSeq, _, err := seq.ReadSequence()
		if err != nil {
			return nil, errors.Wrap(err, "Attribute SEQUENCE")
		}
		typeOID, err := attrSeq.ReadOID()
		if err != nil {
			return nil, errors.Wrap(err, "attrType")
		}
		valuesSet, _, err := attrSeq.ReadSet()
		if err != nil {
			return nil, errors.Wrap(err, "attrValues SET")
		}
		var values [][]byte
		for !valuesSet.Done() {
			_, _, raw, err := valuesSet.SubReaderWithRaw()
			if err != nil {
				return nil, errors.Wrap(err, "attrValue")
			}
			values = append(values, raw)
		}
		attrs = append(attrs, Attribute{Type: typeOID, Values: values})
	}
	return attrs, nil
}

// SignatureInput returns the exact byte range this SignerInfo's signature
// was computed over: the DER encoding of the SignedAttributes, but with
// the wire's [0] IMPLICIT tag replaced by the universal SET tag, per RFC
// 5652 §5.4.
func (si *SignerInfo) SignatureInput() ([]byte, error) {
	if si.rawSignedAttrs == nil {
		return nil, ErrMissingSignedAttrs
	}
	length := der.EncodeLength(len(si.rawSignedAttrs))
	out := make([]byte, 0, 1+len(length)+len(si.rawSignedAttrs))
	out = append(out, 0x31) // universal SET, constructed
	out = append(out, length...)
	out = append(out, si.rawSignedAttrs...)
	return out, nil
}

// Attribute looks up a signed attribute by OID, requiring exactly one
// attribute and exactly one value, the shape every attribute Doc 9303
// SOD/Master List/Deviation List signers use.
func (si *SignerInfo) Attribute(id oid.ObjectIdentifier) ([]byte, error) {
	var found []Attribute
	for _, a := range si.SignedAttrs {
		if a.Type.Equal(id) {
			found = append(found, a)
		}
	}
	if len(found) == 0 {
		return nil, ErrAttributeNotFound
	}
	if len(found) > 1 {
		return nil, ErrAttributeMultiValued
	}
	if len(found[0].Values) != 1 {
		return nil, ErrAttributeMultiValued
	}
	return found[0].Values[0], nil
}

// MessageDigest returns the decoded messageDigest signed attribute.
func (si *SignerInfo) MessageDigest() ([]byte, error) {
	raw, err := si.Attribute(oid.AttributeMessageDigest)
	if err != nil {
		return nil, err
	}
	r := der.NewReader(raw, true)
	return r.ReadOctetString()
}

// ContentTypeAttribute returns the decoded content-type signed attribute.
func (si *SignerInfo) ContentTypeAttribute() (oid.ObjectIdentifier, error) {
	raw, err := si.Attribute(oid.AttributeContentType)
	if err != nil {
		return nil, err
	}
	r := der.NewReader(raw, true)
	return r.ReadOID()
}

// SigningTime returns the decoded signing-time signed attribute, if
// present.
func (si *SignerInfo) SigningTime() (time.Time, bool, error) {
	raw, err := si.Attribute(oid.AttributeSigningTime)
	if err != nil {
		if errors.Is(err, ErrAttributeNotFound) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	r := der.NewReader(raw, true)
	t, err := r.ReadUTCOrGeneralizedTime()
	if err != nil {
		return time.Time{}, false, err
	}
	return t, true, nil
}

// FindSignerCertificate locates the certificate in bag that this
// SignerInfo's SignerIdentifier names.
func (si *SignerInfo) FindSignerCertificate(bag []*certx.Certificate) (*certx.Certificate, error) {
	for _, cert := range bag {
		if len(si.SID.SubjectKeyID) > 0 {
			if cert.MatchesAuthorityKeyID(si.SID.SubjectKeyID) {
				return cert, nil
			}
			continue
		}
		if si.SID.SerialNumber != nil && cert.Serial != nil &&
			si.SID.SerialNumber.Cmp(cert.Serial) == 0 &&
			si.SID.Issuer.Equal(cert.Issuer) {
			return cert, nil
		}
	}
	return nil, ErrSignerNotFound
}
