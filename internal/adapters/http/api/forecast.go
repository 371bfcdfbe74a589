package api

import (
	"net/http"
	"strings"

	service "github.com/okian/verdict/internal/app"
)

// ForecastHandler handles forecast requests.
type ForecastHandler struct {
	deps Dependencies
}

// NewForecastHandler creates a new forecast handler.
func NewForecastHandler(deps Dependencies) *ForecastHandler {
	return &ForecastHandler{deps: deps}
}

// HandleGetForecast handles GET /v1/forecast?period=ID[&previous=ID].
// Zeroed reports are returned with 200 and their signal set.
func (h *ForecastHandler) HandleGetForecast(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	caller, err := callerFromRequest(r)
	if err != nil {
		writeCallerError(w, err)
		return
	}
	q := r.URL.Query()
	req := service.Request{
		Caller:           caller,
		PeriodID:         strings.TrimSpace(q.Get("period")),
		PreviousPeriodID: strings.TrimSpace(q.Get("previous")),
	}
	rep, err := h.deps.Forecast(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	signalHeader(w, rep.Signals)
	writeJSON(w, http.StatusOK, rep)
}
