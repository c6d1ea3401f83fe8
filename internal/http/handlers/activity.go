package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"avatarforge/internal/activity"
)

type activityRequest struct {
	Action string          `json:"action"`
	Data   json.RawMessage `json:"data"`
}

type activityData struct {
	Username   string `json:"username"`
	Collection string `json:"collection"`
}

// Activity relays a client-reported event to the activity sink. With no sink
// configured the request succeeds without delivering anything.
func (a *App) Activity(w http.ResponseWriter, r *http.Request) {
	var req activityRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
		a.error(w, http.StatusBadRequest, "Missing action or data", "invalid payload")
		return
	}
	raw := bytes.TrimSpace(req.Data)
	if strings.TrimSpace(req.Action) == "" || len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		a.error(w, http.StatusBadRequest, "Missing action or data", "")
		return
	}
	var data activityData
	if err := json.Unmarshal(raw, &data); err != nil {
		a.error(w, http.StatusBadRequest, "Missing action or data", "data must be an object")
		return
	}

	if a.Relay == nil || !a.Relay.Configured() {
		a.json(w, http.StatusOK, map[string]any{"success": true, "delivered": false})
		return
	}
	ev := activity.Event{
		Kind:       activity.Kind(strings.TrimSpace(req.Action)),
		Username:   data.Username,
		Collection: data.Collection,
	}
	if err := a.Relay.Deliver(r.Context(), ev); err != nil {
		if errors.Is(err, activity.ErrSinkUnconfigured) {
			a.json(w, http.StatusOK, map[string]any{"success": true, "delivered": false})
			return
		}
		a.Logger.Warn().Err(err).Str("action", req.Action).Msg("activity: delivery failed")
		a.error(w, http.StatusInternalServerError, "Failed to send webhook", err.Error())
		return
	}
	a.json(w, http.StatusOK, map[string]any{"success": true, "delivered": true})
}
