// Package config holds the policy knobs spec.md leaves to the caller:
// whether a stale CRL is accepted, which unknown critical extensions
// are tolerated, and the maximum chain depth before ChainTooDeep. A
// CoreConfig is passed explicitly to every pa.Verify call — there is no
// package-level mutable configuration, matching §9's "no module-level
// mutable state" design note.
package config

import "github.com/icao-pkd/pa-core/oid"

// CoreConfig carries the policy decisions spec.md's Open Questions
// leave to the operator rather than the core.
type CoreConfig struct {
	// AcceptStaleCRL overrides the default-reject posture for a CRL
	// whose nextUpdate has passed (spec.md §4.9 "default: reject").
	AcceptStaleCRL bool

	// RevocationStaleSkew is the grace period added to nextUpdate
	// before a CRL is considered stale.
	RevocationStaleSkew int64 // seconds; zero means no grace period

	// MaxChainDepth bounds chain-building before ChainTooDeep; spec.md
	// §4.11 mandates a default of 8.
	MaxChainDepth int

	// AcceptedCriticalExts lists extension OIDs that may appear
	// critical on a chain certificate without triggering
	// UnknownCriticalExt, beyond the extensions this module already
	// understands (certx.IsKnownExtension).
	AcceptedCriticalExts []oid.ObjectIdentifier
}

// DefaultCoreConfig returns the policy spec.md describes as the
// default posture.
func DefaultCoreConfig() CoreConfig {
	return CoreConfig{
		AcceptStaleCRL: false,
		MaxChainDepth:  8,
	}
}

// AcceptsCriticalExt reports whether id is on the operator's
// allow-list for unknown critical extensions.
func (c CoreConfig) AcceptsCriticalExt(id oid.ObjectIdentifier) bool {
	for _, accepted := range c.AcceptedCriticalExts {
		if accepted.Equal(id) {
			return true
		}
	}
	return false
}
