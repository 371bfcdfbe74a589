package api

import (
	"net/http"
)

// StatsProvider reports engine counters for the /stats route.
type StatsProvider interface {
	GetStats() map[string]interface{}
}

// StatsHandler serves engine counters as JSON.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a stats handler. A nil provider serves an empty
// object.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
		return
	}
	body := map[string]interface{}{}
	if h.provider != nil {
		body = h.provider.GetStats()
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, body)
}
