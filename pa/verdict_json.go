package pa

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

// wireVerdict is the frozen JSON shape from spec.md §6. Field names and
// nesting here are a wire contract, not free to change; Verdict's Go
// field names are not.
type wireVerdict struct {
	Overall        Overall            `json:"overall"`
	SOD            wireSOD            `json:"sod"`
	DataGroups     []wireDataGroup    `json:"data_groups"`
	Chain          []wireChainEntry   `json:"chain"`
	Revocation     wireRevocation     `json:"revocation"`
	Deviations     []wireDeviationHit `json:"deviations"`
	FailureReasons []string           `json:"failure_reasons"`
}

type wireSOD struct {
	Signature   string  `json:"signature"`
	SigningTime *string `json:"signing_time"`
}

type wireDataGroup struct {
	Number   int    `json:"number"`
	Expected string `json:"expected_sha256"`
	Actual   string `json:"actual_sha256"`
	Match    bool   `json:"match"`
}

type wireChainEntry struct {
	Subject     string `json:"subject"`
	Fingerprint string `json:"fingerprint_sha256"`
}

type wireRevocation struct {
	Checked bool `json:"checked"`
	Revoked bool `json:"revoked"`
}

type wireDeviationHit struct {
	OID         string `json:"oid"`
	Category    string `json:"category"`
	Description string `json:"description"`
}

// MarshalJSON renders v in the field-frozen wire shape downstream
// consumers depend on (spec.md §6), independent of Verdict's own field
// layout.
func (v *Verdict) MarshalJSON() ([]byte, error) {
	w := wireVerdict{
		Overall:    v.Overall,
		DataGroups: make([]wireDataGroup, 0, len(v.DataGroupResults)),
		Chain:      make([]wireChainEntry, 0),
		Revocation: wireRevocation{Checked: v.RevocationChecked, Revoked: v.RevocationHit},
		Deviations: make([]wireDeviationHit, 0, len(v.Deviations)),
	}

	w.SOD.Signature = "INVALID"
	if v.SODSignatureOK {
		w.SOD.Signature = "VALID"
	}
	if v.SigningTime != nil {
		s := v.SigningTime.UTC().Format(time.RFC3339)
		w.SOD.SigningTime = &s
	}

	for _, r := range v.DataGroupResults {
		w.DataGroups = append(w.DataGroups, wireDataGroup{
			Number:   r.Number,
			Expected: r.ExpectedHex,
			Actual:   r.ActualHex,
			Match:    r.Match,
		})
	}

	if v.Chain != nil {
		for _, node := range v.Chain.Nodes {
			w.Chain = append(w.Chain, wireChainEntry{
				Subject:     node.Subject.String(),
				Fingerprint: hex.EncodeToString(node.FingerprintSHA256[:]),
			})
		}
	}

	for _, d := range v.Deviations {
		w.Deviations = append(w.Deviations, wireDeviationHit{
			OID:         d.DefectOID.String(),
			Category:    string(d.Category),
			Description: d.Description,
		})
	}

	for _, reason := range v.FailureReasons {
		w.FailureReasons = append(w.FailureReasons, screamingSnake(reason))
	}

	return json.Marshal(w)
}
