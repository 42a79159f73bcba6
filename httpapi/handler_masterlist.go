package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/icao-pkd/pa-core/masterlist"
	"github.com/icao-pkd/pa-core/store"
)

// HandleMasterList Ingest a Master List
// @Summary Admit CSCA candidates from a Master List
// @Description Parses and verifies a Master List's signer chain, then admits each embedded CSCA candidate into the trust store as a non-anchor candidate
// @Tags Master List
// @Accept json
// @Produce json
// @Param request body httpapi.MasterListRequest true "Master List"
// @Success 200 {object} httpapi.MasterListResponse
// @Failure 400 {object} httpapi.ErrorResponse
// @Failure 405 {object} httpapi.ErrorResponse
// @Router /api/v1/masterlist [POST]
func (a *API) HandleMasterList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req MasterListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "failed to parse JSON: "+err.Error())
		return
	}

	raw, err := base64.StdEncoding.DecodeString(req.MasterListBase64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid master_list_base64: "+err.Error())
		return
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

	list, err := masterlist.Parse(raw)
	if err != nil {
		writeError(w, statusForError(err), "failed to parse master list: "+err.Error())
		return
	}

	result, err := masterlist.Verify(list, a.Store, evalTime, a.Config)
	if err != nil {
		writeError(w, statusForError(err), "failed to verify master list signer: "+err.Error())
		return
	}

	summary := store.AdmitMasterList(a.Store, result)

	slog.Info("master list admitted", "admitted", summary.Admitted, "rejected", summary.Rejected)
	writeJSON(w, http.StatusOK, MasterListResponse{
		Admitted:        summary.Admitted,
		Rejected:        summary.Rejected,
		RejectedReasons: summary.Reasons,
	})
}
