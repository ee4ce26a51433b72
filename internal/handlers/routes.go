package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/videotube/backend/internal/middleware"
)

// APIPrefix is where the user routes are mounted.
const APIPrefix = "/api/v1/users"

// Dependencies aggregates collaborators required by HTTP handlers.
type Dependencies struct {
	Accounts AccountService
	Tokens   TokenService
	Guard    Authenticator
	Profiles ProfileService
	Health   HealthChecker

	Limiter middleware.RateLimiter
	Metrics *middleware.Metrics

	Cookies   CookieOptions
	Uploads   Uploads
	PublicDir string

	RequestTimeout time.Duration
	// UploadTimeout bounds routes that accept files, covering both the media
	// upload and the store writes around it.
	UploadTimeout  time.Duration
}

// RegisterRoutes wires HTTP handlers into the provided ServeMux.
func RegisterRoutes(mux *http.ServeMux, deps Dependencies) {
	health := HealthHandler{Store: deps.Health}
	authH := AuthHandler{Accounts: deps.Accounts, Tokens: deps.Tokens, Cookies: deps.Cookies, Uploads: deps.Uploads}
	account := AccountHandler{Accounts: deps.Accounts, Uploads: deps.Uploads}
	channel := ChannelHandler{Profiles: deps.Profiles}

	protect := RequireAuth(deps.Guard)
	timeout := withTimeout(deps.RequestTimeout)
	uploadTimeout := withTimeout(deps.UploadTimeout)
	throttle := func(scope string) func(http.Handler) http.Handler {
		return middleware.Throttle(deps.Limiter, scope, deps.Metrics)
	}

	route := func(pattern string, h http.HandlerFunc, wrap ...func(http.Handler) http.Handler) {
		var handler http.Handler = h
		for i := len(wrap) - 1; i >= 0; i-- {
			handler = wrap[i](handler)
		}
		mux.Handle(pattern, handler)
	}

	route("GET /healthz", health.Handle)

	route("POST "+APIPrefix+"/register", authH.Register, throttle("register"), uploadTimeout)
	route("POST "+APIPrefix+"/login", authH.Login, throttle("login"), timeout)
	route("POST "+APIPrefix+"/refresh-token", authH.Refresh, throttle("refresh"), timeout)
	route("POST "+APIPrefix+"/logout", authH.Logout, timeout, protect)

	route("POST "+APIPrefix+"/change-password", account.ChangePassword, timeout, protect)
	route("GET "+APIPrefix+"/current-user", account.CurrentUser, timeout, protect)
	route("PATCH "+APIPrefix+"/update-account", account.UpdateAccount, timeout, protect)
	route("PATCH "+APIPrefix+"/update-user-details", account.UpdateAccount, timeout, protect)
	route("PATCH "+APIPrefix+"/update-user-avatar", account.UpdateAvatar, uploadTimeout, protect)
	route("PATCH "+APIPrefix+"/update-user-coverImage", account.UpdateCoverImage, uploadTimeout, protect)

	route("GET "+APIPrefix+"/c/{username}", channel.Profile, timeout, protect)
	route("GET "+APIPrefix+"/history", channel.History, timeout, protect)

	if deps.Metrics != nil {
		mux.Handle("GET /metrics", deps.Metrics.Handler())
	}
	if deps.PublicDir != "" {
		mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(deps.PublicDir))))
	}
}

func withTimeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if d <= 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
