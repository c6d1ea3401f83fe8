package handlers

import (
	"net/http"
)

func (a *App) Generations24h(w http.ResponseWriter, r *http.Request) {
	if a.Stats == nil {
		a.error(w, http.StatusServiceUnavailable, "Metrics unavailable", "generation history is not configured")
		return
	}
	stats, err := a.Stats.Last24h(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("metrics: load generation stats")
		a.error(w, http.StatusInternalServerError, "Failed to load stats", "")
		return
	}
	a.json(w, http.StatusOK, stats)
}
