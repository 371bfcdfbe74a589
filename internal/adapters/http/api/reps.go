package api

import (
	"net/http"
	"strings"

	service "github.com/okian/verdict/internal/app"
)

// RepsHandler handles per-rep rollup requests.
type RepsHandler struct {
	deps Dependencies
}

// NewRepsHandler creates a new reps handler.
func NewRepsHandler(deps Dependencies) *RepsHandler {
	return &RepsHandler{deps: deps}
}

// HandleGetReps handles GET /v1/forecast/reps?period=ID.
func (h *RepsHandler) HandleGetReps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	caller, err := callerFromRequest(r)
	if err != nil {
		writeCallerError(w, err)
		return
	}
	out, err := h.deps.RepRollup(r.Context(), service.Request{
		Caller:   caller,
		PeriodID: strings.TrimSpace(r.URL.Query().Get("period")),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	signalHeader(w, out.Signals)
	writeJSON(w, http.StatusOK, out)
}
