package handlers

import (
	"net/http"
	"strings"

	"github.com/videotube/backend/internal/accounts"
	"github.com/videotube/backend/internal/apperr"
	"github.com/videotube/backend/internal/logging"
	"github.com/videotube/backend/internal/models"
)

// AuthHandler implements registration and the session lifecycle endpoints.
type AuthHandler struct {
	Accounts AccountService
	Tokens   TokenService
	Cookies  CookieOptions
	Uploads  Uploads
}

// Register handles POST /api/v1/users/register.
func (h AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := h.Uploads.parse(w, r); err != nil {
		respondError(ctx, w, err)
		return
	}

	avatarPath, err := h.Uploads.stage(r, "avatar")
	if err != nil {
		cleanup(r)
		respondError(ctx, w, err)
		return
	}
	coverPath, err := h.Uploads.stage(r, "coverImage")
	if err != nil {
		cleanup(r, avatarPath)
		respondError(ctx, w, err)
		return
	}
	// The registrar removes what it uploads; this catches files left behind
	// when registration stops early.
	defer cleanup(r, avatarPath, coverPath)

	user, err := h.Accounts.Register(ctx, accounts.Registration{
		Username:   r.FormValue("username"),
		Email:      r.FormValue("email"),
		FullName:   r.FormValue("fullName"),
		Password:   r.FormValue("password"),
		AvatarPath: avatarPath,
		CoverPath:  coverPath,
	})
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondOK(ctx, w, http.StatusCreated, user.Public(), "User registered successfully")
}

type loginRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	User         models.PublicUser `json:"user"`
	AccessToken  string            `json:"accessToken"`
	RefreshToken string            `json:"refreshToken"`
}

// Login handles POST /api/v1/users/login.
func (h AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req loginRequest
	if err := decodeJSON(r, &req, false); err != nil {
		respondError(ctx, w, err)
		return
	}

	user, err := h.Accounts.Authenticate(ctx, req.Username, req.Email, req.Password)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	tokens, err := h.Tokens.IssuePair(ctx, user.ID)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	h.Cookies.setSession(w, tokens)
	logging.FromContext(ctx).Info("user logged in", "user_id", user.ID)
	respondOK(ctx, w, http.StatusOK, loginResponse{
		User:         user.Public(),
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "User logged in successfully")
}

// Logout handles POST /api/v1/users/logout.
func (h AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity, ok := mustIdentity(w, r)
	if !ok {
		return
	}

	if err := h.Tokens.Revoke(ctx, identity.UserID); err != nil {
		respondError(ctx, w, err)
		return
	}

	h.Cookies.clearSession(w)
	respondOK(ctx, w, http.StatusOK, nil, "User logged out")
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type refreshResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// Refresh handles POST /api/v1/users/refresh-token. Any failure ends the
// session on the client by clearing both cookies.
func (h AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	token := ""
	if c, err := r.Cookie(refreshCookie); err == nil {
		token = c.Value
	}
	if token == "" {
		var req refreshRequest
		if err := decodeJSON(r, &req, true); err != nil {
			respondError(ctx, w, err)
			return
		}
		token = strings.TrimSpace(req.RefreshToken)
	}
	if token == "" {
		h.Cookies.clearSession(w)
		respondError(ctx, w, apperr.Unauthorized("unauthorized request"))
		return
	}

	tokens, err := h.Tokens.Rotate(ctx, token)
	if err != nil {
		h.Cookies.clearSession(w)
		respondError(ctx, w, err)
		return
	}

	h.Cookies.setSession(w, tokens)
	respondOK(ctx, w, http.StatusOK, refreshResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
	}, "Access token refreshed")
}
