package handlers

import "net/http"

// ChannelHandler serves the derived channel and watch-history views.
type ChannelHandler struct {
	Profiles ProfileService
}

// Profile handles GET /api/v1/users/c/{username}.
func (h ChannelHandler) Profile(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	profile, err := h.Profiles.ChannelProfile(ctx, identity.UserID, r.PathValue("username"))
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondOK(ctx, w, http.StatusOK, profile, "User channel fetched successfully")
}

// History handles GET /api/v1/users/history.
func (h ChannelHandler) History(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	history, err := h.Profiles.WatchHistory(ctx, identity.UserID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondOK(ctx, w, http.StatusOK, history, "Watch history fetched successfully")
}
