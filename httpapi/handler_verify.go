package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/icao-pkd/pa-core/audit"
	"github.com/icao-pkd/pa-core/config"
	"github.com/icao-pkd/pa-core/pa"
	"github.com/icao-pkd/pa-core/trust"
)

var errBlankDGNumber = errors.New("data group key must be a positive integer")

// API holds the dependencies the demonstration handlers need: a trust
// store (seeded by cmd/pkd-verify at startup from its trust-anchor and
// CRL directories), an audit sink, and the core's revocation/chain-depth
// policy. Unlike the teacher's stateless package-level handlers (no
// GOST key material to thread through), verification needs a store and
// sink per call, so the handlers here are API methods instead of bare
// functions.
type API struct {
	Store  *trust.MemoryStore
	Sink   audit.Sink
	Config config.CoreConfig
}

// NewAPI returns an API backed by store, sink (falling back to
// audit.NopSink{} if nil), and cfg.
func NewAPI(store *trust.MemoryStore, sink audit.Sink, cfg config.CoreConfig) *API {
	if sink == nil {
		sink = audit.NopSink{}
	}
	return &API{Store: store, Sink: sink, Config: cfg}
}

// HandleVerify Verify an EF.SOD against Data Groups
// @Summary Run Passive Authentication
// @Description Verifies an EF.SOD's signature and chain, hashes Data Groups against it, and checks revocation/deviation status
// @Tags Verification
// @Accept json
// @Produce json
// @Param request body httpapi.VerifyRequest true "SOD and Data Groups"
// @Success 200 {object} pa.Verdict
// @Failure 400 {object} httpapi.ErrorResponse
// @Failure 405 {object} httpapi.ErrorResponse
// @Router /api/v1/verify [POST]
func (a *API) HandleVerify(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req VerifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse JSON: "+err.Error())
		return
	}

	sodBytes, err := base64.StdEncoding.DecodeString(req.SODBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid sod_base64: "+err.Error())
		return
	}

	dataGroups := make(map[int][]byte, len(req.DataGroups))
	for numStr, b64 := range req.DataGroups {
		num, err := parseDGNumber(numStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid data group key "+numStr+": "+err.Error())
			return
		}
		raw, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid data group "+numStr+" base64: "+err.Error())
			return
		}
		dataGroups[num] = raw
	}

	evalTime := time.Now().UTC()
	if req.EvaluationTime != "" {
		parsed, err := time.Parse(time.RFC3339, req.EvaluationTime)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid evaluation_time: "+err.Error())
			return
		}
		evalTime = parsed
	}

	verdict, err := pa.Verify(r.Context(), pa.Request{
		SODBytes:       sodBytes,
		DataGroups:     dataGroups,
		EvaluationTime: evalTime,
	}, a.Store, a.Sink, a.Config)
	if err != nil {
		// The only error pa.Verify returns is ErrCancelled — every other
		// failure is folded into the Verdict itself.
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	slog.Info("verification complete", "overall", verdict.Overall, "reached_state", verdict.ReachedState.String())
	writeJSON(w, http.StatusOK, verdict)
}

func parseDGNumber(s string) (int, error) {
	n := 0
	if s == "" {
		return 0, errBlankDGNumber
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, errBlankDGNumber
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 {
		return 0, errBlankDGNumber
	}
	return n, nil
}
