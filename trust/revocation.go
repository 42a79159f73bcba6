package trust

import (
	"fmt"
	"time"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/crl"
	"github.com/icao-pkd/pa-core/pkderr"
)

// RevokedNode describes which chain certificate a revocation hit was
// found on.
type RevokedNode struct {
	Certificate *certx.Certificate
	Entry       crl.RevokedEntry
}

// RevocationResult is the outcome of consulting CRLs for every
// non-anchor node in a built chain.
type RevocationResult struct {
	Checked bool
	Revoked bool
	Node    *RevokedNode
}

// CheckRevocation consults store.FindCRLsByIssuer (newest first) for
// every non-anchor node in chain, per spec.md §4.11's "for each
// non-anchor node, consult the newest CRL issued by its issuer; if
// revoked, fail with CertRevoked{serial, reason, date}." A node whose
// issuer has no published CRL is not itself a failure — it simply
// contributes nothing to the result, consistent with CRLs being an
// optional, best-effort revocation signal in this domain.
func CheckRevocation(chain *Chain, store Store, at time.Time, cfg config.CoreConfig) (*RevocationResult, error) {
	result := &RevocationResult{}
	skew := time.Duration(cfg.RevocationStaleSkew) * time.Second

	for i, node := range chain.Nodes {
		if i == len(chain.Nodes)-1 {
			break // the terminating TrustAnchor is not itself checked for revocation
		}
		crls, err := store.FindCRLsByIssuer(node.Issuer)
		if err != nil {
			return nil, pkderr.Wrap(pkderr.CertRevoked, err, "CRL lookup failed")
		}
		if len(crls) == 0 {
			continue
		}
		latest := crls[0]
		result.Checked = true

		if err := latest.CheckFreshness(at, skew); err != nil {
			if !cfg.AcceptStaleCRL {
				return nil, pkderr.Wrap(pkderr.RevocationStale, err,
					fmt.Sprintf("CRL for issuer %s is stale", node.Issuer.String()))
			}
		}

		if entry, revoked := latest.IsRevoked(node.Serial); revoked {
			result.Revoked = true
			result.Node = &RevokedNode{Certificate: node, Entry: entry}
			return result, pkderr.New(pkderr.CertRevoked,
				fmt.Sprintf("certificate %s revoked at %s (reason %d)", node.Subject.String(), entry.RevocationDate, entry.Reason))
		}
	}

	return result, nil
}
