package sigalg

import (
	"encoding/asn1"

	"github.com/pkg/errors"
)

// PSSParams is the decoded form of RFC 4055's RSASSA-PSS-params,
// carried as the signatureAlgorithm's parameters when algOID is
// id-RSASSA-PSS: unlike every other signature OID this module
// recognises, RSA-PSS does not fix its digest in the OID itself.
type PSSParams struct {
	Hash       DigestAlgorithm
	SaltLength int
}

// rsassaPSSParams mirrors RFC 4055 §3.1's ASN.1 module, each field an
// EXPLICIT context-tagged OPTIONAL defaulting to SHA-1/MGF1-SHA-1/20.
type rsassaPSSParams struct {
	Hash       asn1.RawValue `asn1:"optional,explicit,tag:0"`
	MGF        asn1.RawValue `asn1:"optional,explicit,tag:1"`
	SaltLength int           `asn1:"optional,explicit,tag:2,default:20"`
	TrailerField int         `asn1:"optional,explicit,tag:3,default:1"`
}

type algorithmIdentifier struct {
	Algorithm  asn1.ObjectIdentifier
	Parameters asn1.RawValue `asn1:"optional"`
}

// DecodePSSParams decodes an RSASSA-PSS-params SEQUENCE. Per RFC 4055,
// an absent params field (nil/empty raw) defaults to SHA-1/MGF1-SHA-1/
// salt length 20, though Doc 9303 signers in practice always encode
// SHA-256 or stronger explicitly.
func DecodePSSParams(raw []byte) (PSSParams, error) {
	if len(raw) == 0 {
		sha1Digest, _ := LookupDigest(digestAlgorithms[0].OID)
		return PSSParams{Hash: sha1Digest, SaltLength: 20}, nil
	}
	var params rsassaPSSParams
	if _, err := asn1.Unmarshal(raw, &params); err != nil {
		return PSSParams{}, errors.Wrap(err, "sigalg: RSASSA-PSS-params")
	}

	hashOID := digestAlgorithms[0].OID // SHA-1 default
	if len(params.Hash.FullBytes) > 0 {
		var hashAlg algorithmIdentifier
		if _, err := asn1.Unmarshal(params.Hash.Bytes, &hashAlg); err != nil {
			return PSSParams{}, errors.Wrap(err, "sigalg: RSASSA-PSS-params hashAlgorithm")
		}
		hashOID = hashAlg.Algorithm
	}
	hash, err := LookupDigest(hashOID)
	if err != nil {
		return PSSParams{}, errors.Wrap(err, "sigalg: RSASSA-PSS-params hashAlgorithm")
	}

	return PSSParams{Hash: hash, SaltLength: params.SaltLength}, nil
}
