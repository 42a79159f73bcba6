package certx

import (
	"time"

	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/der"
	"github.com/icao-pkd/pa-core/oid"
)

// KeyUsage mirrors the RFC 5280 §4.2.1.3 bit assignments.
type KeyUsage int

const (
	KeyUsageDigitalSignature KeyUsage = 1 << iota
	KeyUsageContentCommitment
	KeyUsageKeyEncipherment
	KeyUsageDataEncipherment
	KeyUsageKeyAgreement
	KeyUsageCertSign
	KeyUsageCRLSign
	KeyUsageEncipherOnly
	KeyUsageDecipherOnly
)

// Extensions holds the decoded X.509 v3 extensions this module acts on.
// All retains every extension (including unrecognised ones) for the
// unknown-critical-extension check.
type Extensions struct {
	KeyUsage             KeyUsage
	HasKeyUsage          bool
	KeyUsageCritical     bool
	IsCA                 bool
	HasBasicConstraints  bool
	MaxPathLen           int
	MaxPathLenSet        bool
	SubjectKeyID         []byte
	AuthorityKeyID       []byte
	AuthorityKeyIDCritical bool
	ExtKeyUsage          []oid.ObjectIdentifier
	CRLDistributionPoints []string
	SubjectAltNames      []string
	PrivateKeyUsagePeriod    bool
	PrivateKeyNotBefore      time.Time
	PrivateKeyNotAfter       time.Time
	DocumentTypeList     []string

	All []RawExtension
}

// RawExtension is one X.509 extension exactly as encoded, for checklist
// and unknown-critical-extension logic.
type RawExtension struct {
	ID       oid.ObjectIdentifier
	Critical bool
	Value    []byte
}

// knownExtensionOIDs lists every extension OID this module interprets;
// anything else encountered with the critical flag set is a deviation
// per spec §4.2 (unknown critical extension).
var knownExtensionOIDs = []oid.ObjectIdentifier{
	oid.ExtKeyUsage,
	oid.ExtBasicConstraints,
	oid.ExtSubjectKeyIdentifier,
	oid.ExtAuthorityKeyIdentifier,
	oid.ExtExtendedKeyUsage,
	oid.ExtCRLDistributionPoints,
	oid.ExtSubjectAltName,
	oid.ExtPrivateKeyUsagePeriod,
	oid.ExtDocumentTypeList,
}

// IsKnownExtension reports whether id is one this module understands.
func IsKnownExtension(id oid.ObjectIdentifier) bool {
	for _, k := range knownExtensionOIDs {
		if k.Equal(id) {
			return true
		}
	}
	return false
}

func parseExtensions(seq *der.Reader) (Extensions, error) {
	var ext Extensions
	for !seq.Done() {
		extSeq, _, err := seq.ReadSequence()
		if err != nil {
			return ext, errors.Wrap(err, "Extension SEQUENCE")
		}
		id, err := extSeq.ReadOID()
		if err != nil {
			return ext, errors.Wrap(err, "extnID")
		}
		critical := false
		peek, err := extSeq.PeekTag()
		if err != nil {
			return ext, err
		}
		if peek.Class == 0 && peek.Number == 1 {
			boolSub, _, _, err := extSeq.SubReaderWithRaw()
			if err != nil {
				return ext, errors.Wrap(err, "critical BOOLEAN")
			}
			raw := boolSub.RawBytes()
			critical = len(raw) > 0 && raw[0] != 0x00
		}
		value, err := extSeq.ReadOctetString()
		if err != nil {
			return ext, errors.Wrap(err, "extnValue")
		}
		ext.All = append(ext.All, RawExtension{ID: id, Critical: critical, Value: value})

		if err := decodeKnownExtension(&ext, id, critical, value); err != nil {
			return ext, errors.Wrapf(err, "extension %s", id.String())
		}
	}
	return ext, nil
}

func decodeKnownExtension(ext *Extensions, id oid.ObjectIdentifier, critical bool, value []byte) error {
	switch {
	case id.Equal(oid.ExtKeyUsage):
		r := der.NewReader(value, true)
		_, bits, err := r.ReadBitString()
		if err != nil {
			return err
		}
		var ku KeyUsage
		for i := 0; i < len(bits)*8 && i < 9; i++ {
			if bits[i/8]&(0x80>>uint(i%8)) != 0 {
				ku |= 1 << uint(i)
			}
		}
		ext.KeyUsage = ku
		ext.HasKeyUsage = true
		ext.KeyUsageCritical = critical

	case id.Equal(oid.ExtBasicConstraints):
		r := der.NewReader(value, true)
		seq, _, err := r.ReadSequence()
		if err != nil {
			return err
		}
		ext.HasBasicConstraints = true
		if !seq.Done() {
			peek, err := seq.PeekTag()
			if err != nil {
				return err
			}
			if peek.Number == der.TagBoolean {
				boolSub, _, _, err := seq.SubReaderWithRaw()
				if err != nil {
					return err
				}
				raw := boolSub.RawBytes()
				ext.IsCA = len(raw) > 0 && raw[0] != 0x00
			}
		}
		if !seq.Done() {
			_, pathLen, err := seq.ReadIntegerBytes()
			if err != nil {
				return err
			}
			ext.MaxPathLen = int(pathLen.Int64())
			ext.MaxPathLenSet = true
		}

	case id.Equal(oid.ExtSubjectKeyIdentifier):
		r := der.NewReader(value, true)
		ski, err := r.ReadOctetString()
		if err != nil {
			return err
		}
		ext.SubjectKeyID = ski

	case id.Equal(oid.ExtAuthorityKeyIdentifier):
		r := der.NewReader(value, true)
		seq, _, err := r.ReadSequence()
		if err != nil {
			return err
		}
		for !seq.Done() {
			peek, err := seq.PeekTag()
			if err != nil {
				return err
			}
			if peek.Class == 2 && peek.Number == 0 {
				sub, _, _, err := seq.SubReaderWithRaw()
				if err != nil {
					return err
				}
				ext.AuthorityKeyID = sub.RawBytes()
				ext.AuthorityKeyIDCritical = critical
				continue
			}
			if err := seq.Skip(); err != nil {
				return err
			}
		}

	case id.Equal(oid.ExtExtendedKeyUsage):
		r := der.NewReader(value, true)
		seq, _, err := r.ReadSequence()
		if err != nil {
			return err
		}
		for !seq.Done() {
			eku, err := seq.ReadOID()
			if err != nil {
				return err
			}
			ext.ExtKeyUsage = append(ext.ExtKeyUsage, eku)
		}

	case id.Equal(oid.ExtCRLDistributionPoints):
		points, err := parseCRLDistributionPoints(value)
		if err != nil {
			return err
		}
		ext.CRLDistributionPoints = points

	case id.Equal(oid.ExtSubjectAltName):
		names, err := parseGeneralNames(value)
		if err != nil {
			return err
		}
		ext.SubjectAltNames = names

	case id.Equal(oid.ExtPrivateKeyUsagePeriod):
		r := der.NewReader(value, true)
		seq, _, err := r.ReadSequence()
		if err != nil {
			return err
		}
		ext.PrivateKeyUsagePeriod = true
		for !seq.Done() {
			sub, tag, _, err := seq.SubReaderWithRaw()
			if err != nil {
				return err
			}
			t, terr := der.ParseGeneralizedTimeBytes(sub.RawBytes())
			if terr != nil {
				return terr
			}
			switch {
			case tag.Class == 2 && tag.Number == 0:
				ext.PrivateKeyNotBefore = t
			case tag.Class == 2 && tag.Number == 1:
				ext.PrivateKeyNotAfter = t
			}
		}

	case id.Equal(oid.ExtDocumentTypeList):
		types, err := parseDocumentTypeList(value)
		if err != nil {
			return err
		}
		ext.DocumentTypeList = types
	}
	return nil
}

// parseCRLDistributionPoints extracts uniformResourceIdentifier general
// names from each DistributionPoint's fullName, ignoring relativeName and
// the reasons/CRLIssuer fields Doc 9303 CRLs do not use.
func parseCRLDistributionPoints(value []byte) ([]string, error) {
	r := der.NewReader(value, true)
	seq, _, err := r.ReadSequence()
	if err != nil {
		return nil, err
	}
	var uris []string
	for !seq.Done() {
		dpSub, _, _, err := seq.SubReaderWithRaw()
		if err != nil {
			return nil, err
		}
		for !dpSub.Done() {
			peek, err := dpSub.PeekTag()
			if err != nil {
				return nil, err
			}
			if peek.Class == 2 && peek.Number == 0 {
				nameSub, _, _, err := dpSub.SubReaderWithRaw()
				if err != nil {
					return nil, err
				}
				for !nameSub.Done() {
					peek2, err := nameSub.PeekTag()
					if err != nil {
						return nil, err
					}
					if peek2.Class == 2 && peek2.Number == 0 {
						gnSub, _, _, err := nameSub.SubReaderWithRaw()
						if err != nil {
							return nil, err
						}
						for !gnSub.Done() {
							gSub, gTag, _, err := gnSub.SubReaderWithRaw()
							if err != nil {
								return nil, err
							}
							if gTag.Class == 2 && gTag.Number == 6 {
								uris = append(uris, string(gSub.RawBytes()))
							}
						}
						continue
					}
					if err := nameSub.Skip(); err != nil {
						return nil, err
					}
				}
				continue
			}
			if err := dpSub.Skip(); err != nil {
				return nil, err
			}
		}
	}
	return uris, nil
}

// parseGeneralNames extracts rfc822Name([1]) and uniformResourceIdentifier
// ([6]) entries; Doc 9303 certificates rarely populate SAN but the field
// is decoded for completeness and checklist display.
func parseGeneralNames(value []byte) ([]string, error) {
	r := der.NewReader(value, true)
	seq, _, err := r.ReadSequence()
	if err != nil {
		return nil, err
	}
	var names []string
	for !seq.Done() {
		sub, tag, _, err := seq.SubReaderWithRaw()
		if err != nil {
			return nil, err
		}
		if tag.Class == 2 && (tag.Number == 1 || tag.Number == 6) {
			names = append(names, string(sub.RawBytes()))
		}
	}
	return names, nil
}

// parseDocumentTypeList decodes the ICAO documentTypeList extension
// (2.23.136.1.1.6.2): SEQUENCE OF PrintableString, e.g. "P", "I", "A".
func parseDocumentTypeList(value []byte) ([]string, error) {
	r := der.NewReader(value, true)
	seq, _, err := r.ReadSequence()
	if err != nil {
		return nil, err
	}
	var types []string
	for !seq.Done() {
		sub, _, _, err := seq.SubReaderWithRaw()
		if err != nil {
			return nil, err
		}
		types = append(types, string(sub.RawBytes()))
	}
	return types, nil
}
