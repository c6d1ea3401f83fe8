package handlers

import (
	"errors"
	"net/http"
	"strings"

	"avatarforge/internal/domain"
)

// Identity resolves ?id= (or the legacy ?userId=) to a Discord profile.
func (a *App) Identity(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.URL.Query().Get("id"))
	if id == "" {
		id = strings.TrimSpace(r.URL.Query().Get("userId"))
	}
	if id == "" {
		a.errorLocalized(w, r, http.StatusBadRequest, "User ID is required", "", msgIdentityMissing)
		return
	}

	profile, err := a.Identity.Resolve(r.Context(), id)
	if err != nil {
		a.writeIdentityError(w, r, err)
		return
	}
	w.Header().Set("X-Message", Message(localeOf(r), msgIdentityOK))
	a.json(w, http.StatusOK, profile)
}

func (a *App) writeIdentityError(w http.ResponseWriter, r *http.Request, err error) {
	a.logDomainError(r, err, "identity: resolve failed")
	if errors.Is(err, domain.ErrNotFound) {
		a.errorLocalized(w, r, http.StatusNotFound, "User not found", "", msgIdentityNotFound)
		return
	}
	a.errorLocalized(w, r, http.StatusInternalServerError, "Failed to fetch Discord user", err.Error(), msgIdentityFailed)
}
