// Package doc9303 runs the ICAO Doc 9303 compliance checklist against a
// parsed certificate: a list of advisory PASS/WARN/FAIL items, none of
// which block Passive Authentication on their own (Doc 9303 compliance
// is a quality signal, not a trust decision — see spec §4.2's
// non-fatal-warnings rule).
package doc9303

import (
	"fmt"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/dn"
	"github.com/icao-pkd/pa-core/oid"
)

// Status is the outcome of a single checklist item.
type Status string

const (
	StatusPass    Status = "PASS"
	StatusWarn    Status = "WARNING"
	StatusFail    Status = "FAIL"
	StatusNA      Status = "NA"
)

// Item is one compliance check result.
type Item struct {
	ID          string
	Label       string
	Status      Status
	Message     string
	Requirement string
}

// CertificateType distinguishes the three roles the checklist treats
// differently (CSCA roots require CA:true + keyCertSign, DSCs require
// a leaf profile, master-list signer certificates sit in between).
type CertificateType string

const (
	TypeCSCA CertificateType = "CSCA"
	TypeDSC  CertificateType = "DSC"
	TypeMLSC CertificateType = "MLSC"
)

// Result is the full checklist outcome for one certificate.
type Result struct {
	CertificateType CertificateType
	Items           []Item
	PassCount       int
	WarnCount       int
	FailCount       int
	NACount         int
	OverallStatus   Status
}

// Run executes the checklist against cert per certType: version, serial
// number, issuer/subject country, signature-algorithm match, and the
// per-extension checks (key usage, basic constraints, SKI/AKI,
// unknown-critical-extensions). Unique identifiers and extended key
// usage are not checked.
func Run(cert *certx.Certificate, certType CertificateType) Result {
	res := Result{CertificateType: certType}
	add := func(it Item) {
		res.Items = append(res.Items, it)
		switch it.Status {
		case StatusPass:
			res.PassCount++
		case StatusWarn:
			res.WarnCount++
		case StatusFail:
			res.FailCount++
		case StatusNA:
			res.NACount++
		}
	}

	add(checkVersion(cert))
	add(checkSerialNumber(cert))
	add(checkIssuerCountry(cert))
	add(checkSubjectCountry(cert, certType))
	add(checkSignatureAlgorithmMatch(cert))
	add(checkKeyUsagePresent(cert, certType))
	add(checkKeyUsageCritical(cert))
	add(checkBasicConstraints(cert, certType))
	add(checkSubjectKeyIdentifier(cert))
	add(checkAuthorityKeyIdentifier(cert, certType))
	add(checkUnknownCriticalExtensions(cert))

	res.OverallStatus = StatusPass
	if res.WarnCount > 0 {
		res.OverallStatus = StatusWarn
	}
	if res.FailCount > 0 {
		res.OverallStatus = StatusFail
	}
	return res
}

func checkVersion(cert *certx.Certificate) Item {
	it := Item{ID: "version_v3", Label: "Certificate version is v3", Requirement: "Doc 9303 Part 12 §7.1: all PKI certificates shall be X.509 v3"}
	if cert.Version == 3 {
		it.Status = StatusPass
	} else {
		it.Status = StatusFail
		it.Message = fmt.Sprintf("version is v%d", cert.Version)
	}
	return it
}

func checkSerialNumber(cert *certx.Certificate) Item {
	it := Item{ID: "serial_number", Label: "Serial number is positive and at most 20 octets", Requirement: "RFC 5280 §4.1.2.2"}
	if cert.Serial == nil || cert.Serial.Sign() <= 0 {
		it.Status = StatusFail
		it.Message = "serial number is not positive or missing"
		return it
	}
	if len(cert.SerialBytes) > 20 {
		it.Status = StatusWarn
		it.Message = fmt.Sprintf("serial number is %d octets, exceeds the 20-octet recommendation", len(cert.SerialBytes))
		return it
	}
	it.Status = StatusPass
	return it
}

func checkIssuerCountry(cert *certx.Certificate) Item {
	it := Item{ID: "issuer_country", Label: "Issuer contains a country attribute", Requirement: "Doc 9303 Part 12 §7.1.4"}
	if hasAttribute(cert.Issuer, countryOID) {
		it.Status = StatusPass
	} else {
		it.Status = StatusFail
		it.Message = "issuer name has no countryName (2.5.4.6) RDN"
	}
	return it
}

func checkSubjectCountry(cert *certx.Certificate, certType CertificateType) Item {
	it := Item{ID: "subject_country", Label: "Subject contains a country attribute", Requirement: "Doc 9303 Part 12 §7.1.8"}
	if !hasAttribute(cert.Subject, countryOID) {
		it.Status = StatusFail
		it.Message = "subject name has no countryName (2.5.4.6) RDN"
		return it
	}
	it.Status = StatusPass
	return it
}

func checkSignatureAlgorithmMatch(cert *certx.Certificate) Item {
	it := Item{ID: "signature_algorithm_match", Label: "TBSCertificate and outer signatureAlgorithm match", Requirement: "RFC 5280 §4.1.1.2 / §4.1.2.3"}
	if cert.SignatureAlg.Equal(cert.OuterSignatureAlg) {
		it.Status = StatusPass
	} else {
		it.Status = StatusFail
		it.Message = fmt.Sprintf("tbsCertificate.signature=%s, outer signatureAlgorithm=%s", cert.SignatureAlg, cert.OuterSignatureAlg)
	}
	return it
}

func checkKeyUsagePresent(cert *certx.Certificate, certType CertificateType) Item {
	it := Item{ID: "key_usage_present", Label: "keyUsage extension is present", Requirement: "Doc 9303 Part 12 §7.1.11"}
	if cert.Extensions.HasKeyUsage {
		it.Status = StatusPass
		return it
	}
	if certType == TypeCSCA {
		it.Status = StatusWarn
		it.Message = "CSCA certificate has no keyUsage extension"
	} else {
		it.Status = StatusFail
		it.Message = "certificate has no keyUsage extension"
	}
	return it
}

func checkKeyUsageCritical(cert *certx.Certificate) Item {
	it := Item{ID: "key_usage_critical", Label: "keyUsage extension is marked critical", Requirement: "RFC 5280 §4.2.1.3 recommends critical"}
	if !cert.Extensions.HasKeyUsage {
		it.Status = StatusNA
		return it
	}
	if cert.Extensions.KeyUsageCritical {
		it.Status = StatusPass
	} else {
		it.Status = StatusWarn
		it.Message = "keyUsage extension is not marked critical"
	}
	return it
}

func checkBasicConstraints(cert *certx.Certificate, certType CertificateType) Item {
	it := Item{ID: "basic_constraints", Label: "basicConstraints matches certificate role", Requirement: "Doc 9303 Part 12 §7.1.11"}
	if !cert.Extensions.HasBasicConstraints {
		it.Status = StatusFail
		it.Message = "no basicConstraints extension present"
		return it
	}
	wantCA := certType == TypeCSCA
	if cert.Extensions.IsCA != wantCA {
		it.Status = StatusFail
		it.Message = fmt.Sprintf("basicConstraints CA=%v, expected CA=%v for %s", cert.Extensions.IsCA, wantCA, certType)
		return it
	}
	it.Status = StatusPass
	return it
}

func checkSubjectKeyIdentifier(cert *certx.Certificate) Item {
	it := Item{ID: "subject_key_identifier", Label: "subjectKeyIdentifier extension is present", Requirement: "RFC 5280 §4.2.1.2"}
	if len(cert.Extensions.SubjectKeyID) > 0 {
		it.Status = StatusPass
	} else {
		it.Status = StatusWarn
		it.Message = "no subjectKeyIdentifier extension"
	}
	return it
}

func checkAuthorityKeyIdentifier(cert *certx.Certificate, certType CertificateType) Item {
	it := Item{ID: "authority_key_identifier", Label: "authorityKeyIdentifier extension is present", Requirement: "RFC 5280 §4.2.1.1"}
	if len(cert.Extensions.AuthorityKeyID) > 0 {
		it.Status = StatusPass
		return it
	}
	if certType == TypeCSCA && cert.IsSelfSigned() {
		it.Status = StatusNA
		it.Message = "self-signed CSCA root, authorityKeyIdentifier is optional"
		return it
	}
	it.Status = StatusWarn
	it.Message = "no authorityKeyIdentifier extension"
	return it
}

func checkUnknownCriticalExtensions(cert *certx.Certificate) Item {
	it := Item{ID: "unknown_critical_extensions", Label: "No unrecognised critical extensions", Requirement: "RFC 5280 §4.2: unrecognised critical extensions must cause rejection"}
	for _, e := range cert.Extensions.All {
		if e.Critical && !certx.IsKnownExtension(e.ID) {
			it.Status = StatusFail
			it.Message = fmt.Sprintf("unrecognised critical extension %s", e.ID.String())
			return it
		}
	}
	it.Status = StatusPass
	return it
}

var countryOID = oid.ObjectIdentifier{2, 5, 4, 6}

func hasAttribute(name dn.Name, attrOID oid.ObjectIdentifier) bool {
	for _, rdn := range name {
		for _, atv := range rdn {
			if atv.Type.Equal(attrOID) {
				return true
			}
		}
	}
	return false
}
