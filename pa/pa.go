// Package pa implements the Passive Authentication orchestrator: given
// an EF.SOD, a set of Data Group files, and an evaluation time, it
// drives SOD parsing, Data Group hashing, chain building, revocation
// and deviation checks through an explicit state machine and composes
// the result into a single Verdict. Verify is total — every internal
// failure becomes a Verdict.FailureReasons entry, never a returned
// error, except ctx cancellation (checked between every state
// transition), which returns (nil, ErrCancelled) with no Verdict at
// all, matching spec.md's `Cancelled` row.
package pa

import (
	"context"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/icao-pkd/pa-core/audit"
	"github.com/icao-pkd/pa-core/certx"
	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/dghash"
	"github.com/icao-pkd/pa-core/pkderr"
	"github.com/icao-pkd/pa-core/sod"
	"github.com/icao-pkd/pa-core/trust"
)

// State is the verification progress enum from spec.md §4.12.
type State int

const (
	StateInit State = iota
	StateSodParsed
	StateSodSigChecked
	StateDgHashed
	StateChainBuilt
	StateChainValidated
	StateRevocationChecked
	StateDeviationsChecked
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateSodParsed:
		return "SodParsed"
	case StateSodSigChecked:
		return "SodSigChecked"
	case StateDgHashed:
		return "DgHashed"
	case StateChainBuilt:
		return "ChainBuilt"
	case StateChainValidated:
		return "ChainValidated"
	case StateRevocationChecked:
		return "RevocationChecked"
	case StateDeviationsChecked:
		return "DeviationsChecked"
	case StateDone:
		return "Done"
	default:
		return "Unknown"
	}
}

// ErrCancelled is returned, with a nil Verdict, when ctx is cancelled
// between state-machine steps. It is the one Verify failure mode that
// is not folded into a Verdict.
var ErrCancelled = errors.New("pa: verification cancelled")

// Request is the input to a single Passive Authentication run.
type Request struct {
	SODBytes       []byte
	DataGroups     map[int][]byte
	EvaluationTime time.Time
}

// Overall is the coarse PASS/FAIL classification of a Verdict.
type Overall string

const (
	Passed               Overall = "PASSED"
	PassedWithDeviations Overall = "PASSED_WITH_DEVIATIONS"
	Failed               Overall = "FAILED"
)

// Verdict is the composed outcome of one Verify call. Its JSON
// rendering (MarshalJSON) is the frozen wire shape from spec.md §6;
// the Go field names and types here are free to differ as long as
// that shape is preserved.
type Verdict struct {
	ReachedState State

	Overall Overall

	SODSignatureOK bool
	SigningTime    *time.Time

	DataGroupResults []dghash.Result

	Chain *trust.Chain

	RevocationChecked bool
	RevocationHit     bool

	Deviations []trust.DeviationHit

	UsedWeakDigest bool

	// Warnings are non-failing signals (spec.md §4.12 step 3's DSC
	// private-key-usage-period miss) that never affect Overall.
	Warnings []string

	FailureReasons []pkderr.Kind
}

func newVerdict() *Verdict {
	return &Verdict{ReachedState: StateInit}
}

func (v *Verdict) fail(kind pkderr.Kind) {
	v.FailureReasons = append(v.FailureReasons, kind)
}

// compose sets Overall per spec.md §4.12 step 5: FAILED if any failure
// reason was recorded; PASSED_WITH_DEVIATIONS if only deviation hits or
// a weak (SHA-1) digest were surfaced; PASSED otherwise.
func (v *Verdict) compose() {
	if len(v.FailureReasons) > 0 {
		v.Overall = Failed
		return
	}
	if len(v.Deviations) > 0 || v.UsedWeakDigest {
		v.Overall = PassedWithDeviations
		return
	}
	v.Overall = Passed
}

// Verify runs the Passive Authentication state machine against req.
func Verify(ctx context.Context, req Request, store trust.Store, sink audit.Sink, cfg config.CoreConfig) (*Verdict, error) {
	if sink == nil {
		sink = audit.NopSink{}
	}
	requestID := uuid.NewString()
	v := newVerdict()

	record := func(kind string, detail map[string]any) {
		sink.Record(ctx, audit.Event{Kind: kind, At: req.EvaluationTime, RequestID: requestID, Detail: detail})
	}

	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	parsed, err := sod.Parse(req.SODBytes)
	if err != nil {
		v.fail(kindOf(err, pkderr.CmsMalformed))
		record("sod_parse_failed", map[string]any{"error": err.Error()})
		v.compose()
		return v, nil
	}
	v.ReachedState = StateSodSigChecked
	v.SODSignatureOK = true
	if parsed.SigningTime != nil {
		t := *parsed.SigningTime
		v.SigningTime = &t
	}
	if parsed.HashAlg.Weak {
		v.UsedWeakDigest = true
	}
	record("sod_verified", map[string]any{"dsc_fingerprint": hex.EncodeToString(parsed.DSC.FingerprintSHA256[:])})

	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	v.DataGroupResults = dghash.VerifyAll(req.DataGroups, parsed.DGHashes, parsed.HashAlg)
	for _, r := range v.DataGroupResults {
		if !r.Match {
			v.fail(pkderr.DgHashMismatch)
		}
	}
	v.ReachedState = StateDgHashed
	record("dg_hashed", map[string]any{"count": len(v.DataGroupResults)})

	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	chain, err := trust.BuildChain(parsed.DSC, store, req.EvaluationTime, cfg)
	if err != nil {
		v.fail(kindOf(err, pkderr.ChainNoIssuer))
		record("chain_build_failed", map[string]any{"error": err.Error()})
		v.compose()
		return v, nil
	}
	v.ReachedState = StateChainBuilt
	v.Chain = chain
	record("chain_built", map[string]any{"depth": len(chain.Nodes)})

	if dsc := chain.Leaf(); dsc != nil && dsc.Extensions.PrivateKeyUsagePeriod {
		if req.EvaluationTime.Before(dsc.Extensions.PrivateKeyNotBefore) || req.EvaluationTime.After(dsc.Extensions.PrivateKeyNotAfter) {
			v.Warnings = append(v.Warnings, "evaluation time outside DSC privateKeyUsagePeriod")
		}
	}
	v.ReachedState = StateChainValidated

	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	revResult, err := trust.CheckRevocation(chain, store, req.EvaluationTime, cfg)
	if err != nil {
		v.fail(kindOf(err, pkderr.CertRevoked))
		record("revocation_failed", map[string]any{"error": err.Error()})
		v.compose()
		return v, nil
	}
	v.RevocationChecked = revResult.Checked
	v.RevocationHit = revResult.Revoked
	v.ReachedState = StateRevocationChecked
	record("revocation_checked", map[string]any{"checked": revResult.Checked, "revoked": revResult.Revoked})

	if ctx.Err() != nil {
		return nil, ErrCancelled
	}

	// A DSC without an AKI is accepted (BuildChain matches its issuer by
	// name alone) but surfaced as a CertOrKey deviation.
	if dsc := chain.Leaf(); dsc != nil && len(dsc.Extensions.AuthorityKeyID) == 0 && !dsc.IsSelfSigned() {
		v.Deviations = append(v.Deviations, trust.DeviationHit{
			Target:      certx.IssuerSerial{Issuer: dsc.Issuer, Serial: dsc.Serial},
			Category:    trust.CategoryCertOrKey,
			Description: "missing-AKI",
		})
	}
	for _, node := range chain.Nodes {
		hits, err := store.FindDeviationsFor(node.Issuer, node.Serial)
		if err != nil {
			continue // a deviation lookup failure is not itself a verification failure
		}
		v.Deviations = append(v.Deviations, hits...)
	}
	v.ReachedState = StateDeviationsChecked

	v.ReachedState = StateDone
	v.compose()
	record("verification_complete", map[string]any{"overall": string(v.Overall), "request_id": requestID})

	return v, nil
}

// kindOf extracts the pkderr.Kind from err, falling back to def when
// err is not a *pkderr.Error (defensive only — every internal error in
// this module's call graph is one).
func kindOf(err error, def pkderr.Kind) pkderr.Kind {
	var pe *pkderr.Error
	if errors.As(err, &pe) {
		return pe.Kind
	}
	return def
}

var screamingSnakeRe = regexp.MustCompile(`([a-z0-9])([A-Z])`)

// screamingSnake renders a pkderr.Kind ("CertExpired") as the
// SCREAMING_SNAKE_CASE wire form spec.md §6's failure_reasons list uses
// ("CERT_EXPIRED").
func screamingSnake(k pkderr.Kind) string {
	s := screamingSnakeRe.ReplaceAllString(string(k), "${1}_${2}")
	return strings.ToUpper(s)
}
