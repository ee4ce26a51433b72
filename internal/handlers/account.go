package handlers

import (
	"context"
	"net/http"

	"github.com/videotube/backend/internal/accounts"
	"github.com/videotube/backend/internal/models"
)

// AccountHandler serves the authenticated user's own account.
type AccountHandler struct {
	Accounts AccountService
	Uploads  Uploads
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword handles POST /api/v1/users/change-password.
func (h AccountHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var req changePasswordRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	if err := h.Accounts.ChangePassword(ctx, identity.UserID, req.OldPassword, req.NewPassword); err != nil {
		respondError(ctx, w, err)
		return
	}

	respondOK(ctx, w, http.StatusOK, nil, "Password changed successfully")
}

// CurrentUser handles GET /api/v1/users/current-user.
func (h AccountHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}
	respondOK(r.Context(), w, http.StatusOK, identity.User.Public(), "User fetched successfully")
}

type updateAccountRequest struct {
	FullName *string `json:"fullName"`
	Email    *string `json:"email"`
}

// UpdateAccount handles PATCH /api/v1/users/update-account.
func (h AccountHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	var req updateAccountRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	user, err := h.Accounts.UpdateProfile(ctx, identity.UserID, accounts.ProfileChanges{
		FullName: req.FullName,
		Email:    req.Email,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondOK(ctx, w, http.StatusOK, user.Public(), "Account details updated successfully")
}

// UpdateAvatar handles PATCH /api/v1/users/update-user-avatar.
func (h AccountHandler) UpdateAvatar(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "avatar", h.Accounts.UpdateAvatar, "Avatar image updated successfully")
}

// UpdateCoverImage handles PATCH /api/v1/users/update-user-coverImage.
func (h AccountHandler) UpdateCoverImage(w http.ResponseWriter, r *http.Request) {
	h.replaceImage(w, r, "coverImage", h.Accounts.UpdateCoverImage, "Cover image updated successfully")
}

type imageUpdater func(ctx context.Context, userID, localPath string) (models.User, error)

func (h AccountHandler) replaceImage(w http.ResponseWriter, r *http.Request, field string, update imageUpdater, message string) {
	ctx := r.Context()
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	if err := h.Uploads.parse(w, r); err != nil {
		respondError(ctx, w, err)
		return
	}
	path, err := h.Uploads.stage(r, field)
	if err != nil {
		cleanup(r)
		respondError(ctx, w, err)
		return
	}
	defer cleanup(r, path)

	user, err := update(ctx, identity.UserID, path)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondOK(ctx, w, http.StatusOK, user.Public(), message)
}
