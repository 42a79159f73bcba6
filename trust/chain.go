package trust

import (
	"fmt"
	"time"

	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/pkderr"
	"github.com/icao-pkd/pa-core/sigalg"
)

// Chain is a built certificate chain, leaf first and the terminating
// TrustAnchor (or trusted self-signed root) last.
type Chain struct {
	Nodes []*certx.Certificate
}

// Leaf returns the chain's starting certificate.
func (c *Chain) Leaf() *certx.Certificate {
	if len(c.Nodes) == 0 {
		return nil
	}
	return c.Nodes[0]
}

// Anchor returns the chain's terminating TrustAnchor.
func (c *Chain) Anchor() *certx.Certificate {
	if len(c.Nodes) == 0 {
		return nil
	}
	return c.Nodes[len(c.Nodes)-1]
}

// BuildChain walks from leaf to a TrustAnchor per spec.md §4.11:
// iterative issuer lookup by canonical subject name (AKI/SKI match when
// the child carries an AKI), candidate tiebreak (overlapping validity
// at `at` first, then newest NotBefore), per-edge signature/validity/
// keyUsage/basicConstraints checks, and a hard depth bound.
func BuildChain(leaf *certx.Certificate, store Store, at time.Time, cfg config.CoreConfig) (*Chain, error) {
	chain := &Chain{Nodes: []*certx.Certificate{leaf}}
	current := leaf

	for depth := 0; ; depth++ {
		if err := checkUnknownCriticalExtensions(current, cfg); err != nil {
			return nil, err
		}
		if store.IsTrustAnchor(current.FingerprintSHA256) {
			return chain, nil
		}
		if depth >= cfg.MaxChainDepth {
			return nil, pkderr.New(pkderr.ChainTooDeep,
				fmt.Sprintf("chain exceeded max depth %d rooted at %s", cfg.MaxChainDepth, leaf.Subject.String()))
		}

		candidates, err := store.FindBySubject(current.Issuer)
		if err != nil {
			return nil, pkderr.Wrap(pkderr.ChainNoIssuer, err, "issuer lookup failed")
		}
		candidates = filterByAKI(current, candidates)
		parent := pickIssuer(candidates, at)
		if parent == nil {
			return nil, pkderr.New(pkderr.ChainNoIssuer,
				fmt.Sprintf("no issuer found for %s", current.Subject.String()))
		}

		if err := verifyEdge(current, parent, at); err != nil {
			return nil, err
		}

		chain.Nodes = append(chain.Nodes, parent)
		current = parent
	}
}

// filterByAKI narrows candidates to those whose SKI matches current's
// AuthorityKeyID, when current carries one. Doc 9303 requires AKI on
// DSCs; when absent this module accepts the issuer match by name alone
// (spec.md §9's resolved Open Question) rather than failing.
func filterByAKI(current *certx.Certificate, candidates []*certx.Certificate) []*certx.Certificate {
	if len(current.Extensions.AuthorityKeyID) == 0 {
		return candidates
	}
	var out []*certx.Certificate
	for _, c := range candidates {
		if bytesEqual(c.Extensions.SubjectKeyID, current.Extensions.AuthorityKeyID) {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		// No SKI match: fall back to the unfiltered set rather than
		// failing outright, consistent with the missing-AKI policy
		// above — a mismatched/absent SKI on the issuer side is not a
		// chain failure and is not reported.
		return candidates
	}
	return out
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

// pickIssuer selects the best issuer candidate: prefer one whose
// validity window covers `at`, then the newest NotBefore among the
// remaining candidates.
func pickIssuer(candidates []*certx.Certificate, at time.Time) *certx.Certificate {
	var best *certx.Certificate
	bestOverlap := false
	for _, cand := range candidates {
		overlap := !at.Before(cand.NotBefore) && !at.After(cand.NotAfter)
		switch {
		case best == nil:
			best, bestOverlap = cand, overlap
		case overlap && !bestOverlap:
			best, bestOverlap = cand, overlap
		case overlap == bestOverlap && cand.NotBefore.After(best.NotBefore):
			best = cand
		}
	}
	return best
}

// verifyEdge validates the (child, parent) edge per spec.md §4.11:
// signature, parent validity window, parent keyUsage.keyCertSign,
// parent basicConstraints.CA, and issuer/subject name equality.
func verifyEdge(child, parent *certx.Certificate, at time.Time) error {
	if !child.Issuer.Equal(parent.Subject) {
		return pkderr.New(pkderr.ChainNoIssuer,
			fmt.Sprintf("issuer name mismatch: %s != %s", child.Issuer.String(), parent.Subject.String()))
	}
	if at.Before(parent.NotBefore) || at.After(parent.NotAfter) {
		return pkderr.New(pkderr.CertExpired,
			fmt.Sprintf("issuer %s not valid at evaluation time", parent.Subject.String()))
	}
	if parent.Extensions.HasKeyUsage && parent.Extensions.KeyUsage&certx.KeyUsageCertSign == 0 {
		return pkderr.New(pkderr.ChainNoIssuer,
			fmt.Sprintf("issuer %s missing keyCertSign", parent.Subject.String()))
	}
	if !parent.Extensions.HasBasicConstraints || !parent.Extensions.IsCA {
		return pkderr.New(pkderr.ChainNoIssuer,
			fmt.Sprintf("issuer %s is not a CA", parent.Subject.String()))
	}
	err := sigalg.Verify(child.OuterSignatureAlg, child.SignatureAlgParams, parent.PublicKey, child.TBSDER, child.SignatureBytes)
	if err != nil {
		return pkderr.Wrap(pkderr.SigInvalid, err,
			fmt.Sprintf("signature verification failed for %s issued by %s", child.Subject.String(), parent.Subject.String()))
	}
	return nil
}

// checkUnknownCriticalExtensions fails the chain if cert carries a
// critical extension this module neither understands nor the operator
// has allow-listed via cfg.AcceptedCriticalExts.
func checkUnknownCriticalExtensions(cert *certx.Certificate, cfg config.CoreConfig) error {
	for _, ext := range cert.Extensions.All {
		if !ext.Critical {
			continue
		}
		if certx.IsKnownExtension(ext.ID) {
			continue
		}
		if cfg.AcceptsCriticalExt(ext.ID) {
			continue
		}
		return pkderr.New(pkderr.UnknownCriticalExt,
			fmt.Sprintf("unrecognised critical extension on %s", cert.Subject.String())).WithOID(ext.ID)
	}
	return nil
}
