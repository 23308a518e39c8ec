package httpapi

import (
	"net/http"

	"github.com/novastack/service_layer/internal/app/services/users"
	"github.com/novastack/service_layer/internal/app/storage"
	"github.com/novastack/service_layer/internal/httputil"
	"github.com/novastack/service_layer/internal/middleware"
)

func (h *handler) createUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in users.CreateInput
	if !h.decode(w, r, &in) {
		return
	}
	profile, err := h.app.Users.CreateProfile(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, "User registered successfully", map[string]interface{}{"user": profile})
}

func (h *handler) getMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	profile, err := h.app.Users.Get(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"user": profile})
}

func (h *handler) updateMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var patch users.Patch
	if !h.decode(w, r, &patch) {
		return
	}
	profile, err := h.app.Users.UpdateProfile(r.Context(), userID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "Profile updated successfully", map[string]interface{}{"user": profile})
}

func (h *handler) createUserWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	profile, err := h.app.Users.AttachWallet(r.Context(), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "Wallet created successfully", map[string]interface{}{
		"moneroAddress": profile.MoneroAddress,
	})
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	filter := storage.UserFilter{
		Skill:    firstOr(csvQuery(r, "skills"), r.URL.Query().Get("skill")),
		Interest: firstOr(csvQuery(r, "interests"), r.URL.Query().Get("interest")),
		Limit:    queryLimit(r, defaultListLimit, maxListLimit),
	}
	list, err := h.app.Users.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"users": list})
}

func (h *handler) getUser(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	profile, err := h.app.Users.GetByUsername(r.Context(), pathVar(r, "username"), viewerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"user": profile})
}

func (h *handler) userStartups(w http.ResponseWriter, r *http.Request) {
	viewerID := middleware.GetUserID(r.Context())
	profile, err := h.app.Users.GetByUsername(r.Context(), pathVar(r, "username"), viewerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	list, err := h.app.Startups.ListForUser(r.Context(), profile.ID, viewerID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"startups": list})
}

func firstOr(values []string, fallback string) string {
	if len(values) > 0 {
		return values[0]
	}
	return fallback
}
