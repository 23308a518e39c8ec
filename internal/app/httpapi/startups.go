package httpapi

import (
	"net/http"
	"strings"

	"github.com/novastack/service_layer/internal/app/domain/startup"
	"github.com/novastack/service_layer/internal/app/services/startups"
	"github.com/novastack/service_layer/internal/app/storage"
	"github.com/novastack/service_layer/internal/httputil"
	"github.com/novastack/service_layer/internal/middleware"
)

func (h *handler) listStartups(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := storage.StartupFilter{
		Industry: strings.TrimSpace(q.Get("industry")),
		Stage:    startup.Stage(strings.TrimSpace(q.Get("stage"))),
		Tags:     csvQuery(r, "tags"),
		Limit:    queryLimit(r, defaultListLimit, maxListLimit),
	}
	if q.Get("featured") == "true" {
		featured := true
		filter.Featured = &featured
	}
	list, err := h.app.Startups.List(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"startups": list})
}

func (h *handler) trendingStartups(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Startups.Trending(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"startups": list})
}

func (h *handler) createStartup(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in startups.CreateInput
	if !h.decode(w, r, &in) {
		return
	}
	created, err := h.app.Startups.Create(r.Context(), userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, "Startup created successfully", map[string]interface{}{"startup": created})
}

func (h *handler) getStartup(w http.ResponseWriter, r *http.Request) {
	s, err := h.app.Startups.Get(r.Context(), pathVar(r, "id"), middleware.GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "", map[string]interface{}{"startup": s})
}

func (h *handler) updateStartup(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var patch startups.Patch
	if !h.decode(w, r, &patch) {
		return
	}
	updated, err := h.app.Startups.Update(r.Context(), pathVar(r, "id"), userID, patch)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "Startup updated successfully", map[string]interface{}{"startup": updated})
}

func (h *handler) addTeamMember(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	var in startups.TeamMemberInput
	if !h.decode(w, r, &in) {
		return
	}
	updated, err := h.app.Startups.AddTeamMember(r.Context(), pathVar(r, "id"), userID, in)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "Team member added successfully", map[string]interface{}{"startup": updated})
}

func (h *handler) likeStartup(w http.ResponseWriter, r *http.Request) {
	if _, ok := httputil.RequireUserID(w, r); !ok {
		return
	}
	liked, err := h.app.Startups.Like(r.Context(), pathVar(r, "id"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "Startup liked successfully", map[string]interface{}{"likeCount": liked.LikeCount})
}

func (h *handler) createStartupWallet(w http.ResponseWriter, r *http.Request) {
	userID, ok := httputil.RequireUserID(w, r)
	if !ok {
		return
	}
	updated, err := h.app.Startups.AttachWallet(r.Context(), pathVar(r, "id"), userID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, "Wallet created successfully", map[string]interface{}{
		"moneroAddress": updated.MoneroAddress,
	})
}
