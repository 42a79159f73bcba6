package dn

import (
	"github.com/pkg/errors"

	"github.com/icao-pkd/pa-core/der"
)

// ReadName decodes an RFC 5280 Name (a SEQUENCE OF RelativeDistinguishedName)
// directly off r. Shared by certx (TBSCertificate issuer/subject) and crl
// (TBSCertList issuer) so the two packages never drift on how an
// AttributeTypeAndValue's string tag and raw value bytes are captured.
func ReadName(r *der.Reader) (Name, error) {
	seq, _, err := r.ReadSequence()
	if err != nil {
		return nil, err
	}
	var name Name
	for !seq.Done() {
		rdnSet, _, err := seq.ReadSet()
		if err != nil {
			return nil, errors.Wrap(err, "RDN SET")
		}
		var rdn RDN
		for !rdnSet.Done() {
			atvSeq, _, err := rdnSet.ReadSequence()
			if err != nil {
				return nil, errors.Wrap(err, "AttributeTypeAndValue")
			}
			typeOID, err := atvSeq.ReadOID()
			if err != nil {
				return nil, errors.Wrap(err, "attribute type")
			}
			valSub, valTag, _, err := atvSeq.SubReaderWithRaw()
			if err != nil {
				return nil, errors.Wrap(err, "attribute value")
			}
			rdn = append(rdn, ATV{
				Type:  typeOID,
				Value: string(valSub.RawBytes()),
				Tag:   valTag.Number,
			})
		}
		name = append(name, rdn)
	}
	return name, nil
}
