// Package httpapi implements the admin and recipient-portal HTTP
// surface of spec §6.1: gorilla/mux routes wired against the
// subsystem packages, with every response wrapped in internal/apierr's
// JSON envelope. Grounded on internal/api/router.go's RouterConfig /
// NewRouter shape and middleware ordering, generalized from the
// teacher's API-key/JWT auth to internal/auth's cookie-or-bearer
// scheme.
package httpapi

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/latchflow/latchflow/internal/api/middleware"
	"github.com/latchflow/latchflow/internal/auth"
	"github.com/latchflow/latchflow/internal/model"
)

// Config toggles the generic middleware layered around the routes.
// Auth is never optional: every admin/portal route always runs through
// internal/auth, since unlike the teacher's API-key scheme it is core
// to the spec rather than a pluggable concern.
type Config struct {
	EnableRateLimit   bool
	EnableCORS        bool
	EnableCompression bool

	CORSConfig middleware.CORSConfig

	// Logger drives the generic request logging middleware; distinct
	// from Deps.Logger (obslog.Logger) since middleware.LoggingMiddleware
	// is grounded directly on *slog.Logger.
	Logger *slog.Logger

	// MetricsMiddleware, if set, is applied immediately after logging.
	// cmd/server sets it to internal/metrics.Middleware.
	MetricsMiddleware func(http.Handler) http.Handler
}

// DefaultConfig returns production defaults: rate limiting, CORS, and
// compression all on.
func DefaultConfig(logger *slog.Logger) Config {
	return Config{
		EnableRateLimit:   true,
		EnableCORS:        true,
		EnableCompression: true,
		CORSConfig:        middleware.DefaultCORSConfig(),
		Logger:            logger,
	}
}

// NewRouter builds the full mux.Router for deps, applying router-wide
// middleware in this order: request id, security headers, logging,
// metrics, CORS, compression, rate limiting. Auth is applied per route
// by requireAdmin, inside all of these.
func NewRouter(cfg Config, deps Deps) *mux.Router {
	a := &api{Deps: deps}
	r := mux.NewRouter()

	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.SecurityHeadersMiddleware)
	if cfg.Logger != nil {
		r.Use(middleware.LoggingMiddleware(cfg.Logger))
	}
	if cfg.MetricsMiddleware != nil {
		r.Use(cfg.MetricsMiddleware)
	}
	if cfg.EnableCORS {
		r.Use(middleware.CORSMiddleware(cfg.CORSConfig))
	}
	if cfg.EnableCompression {
		r.Use(middleware.CompressionMiddleware)
	}
	if cfg.EnableRateLimit && deps.RateLimit != nil {
		r.Use(a.rateLimitMiddleware)
	}

	a.registerAuthRoutes(r)
	a.registerBundleRoutes(r)
	a.registerFileRoutes(r)
	a.registerRecipientRoutes(r)
	a.registerPortalRoutes(r)

	return r
}

// rateLimitMiddleware enforces the limiter's 10/min default over
// (ip, subject) pairs, subject being the authenticated user id when
// present and "anonymous" otherwise. It runs as router-wide middleware,
// before the route-level requireAdmin wrapper has put a user in the
// context, so subject is "anonymous" for every request and the limit
// is applied per client IP only.
func (a *api) rateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		subject := "anonymous"
		if u, ok := auth.UserFromContext(r.Context()); ok {
			subject = u.UserID
		}
		if !a.RateLimit.Allow(ip, subject) {
			w.Header().Set("Retry-After", formatSeconds(a.RateLimit.RetryAfter(ip, subject)))
			writeError(w, apierrRateLimited("too many requests"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func formatSeconds(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// --- Route registration ---

func (a *api) registerAuthRoutes(r *mux.Router) {
	r.HandleFunc("/auth/admin/start", a.handleAdminAuthStart).Methods(http.MethodPost)
	r.HandleFunc("/auth/admin/callback", a.handleAdminAuthCallback).Methods(http.MethodGet)
	r.HandleFunc("/auth/admin/logout", a.handleAdminAuthLogout).Methods(http.MethodPost)

	r.HandleFunc("/auth/recipient/start", a.handleRecipientAuthStart).Methods(http.MethodPost)
	r.HandleFunc("/auth/recipient/verify", a.handleRecipientAuthVerify).Methods(http.MethodPost)
	r.HandleFunc("/portal/auth/otp/resend", a.handlePortalOTPResend).Methods(http.MethodPost)
	r.HandleFunc("/auth/recipient/logout", a.handleRecipientAuthLogout).Methods(http.MethodPost)

	r.HandleFunc("/auth/cli/device/start", a.handleDeviceStart).Methods(http.MethodPost)
	r.Handle("/auth/cli/device/approve",
		a.requireAdmin("POST /auth/cli/device/approve", nil, a.handleDeviceApprove)).Methods(http.MethodPost)
	r.HandleFunc("/auth/cli/device/poll", a.handleDevicePoll).Methods(http.MethodPost)

	r.Handle("/auth/cli/tokens",
		a.requireAdmin("POST /auth/cli/tokens", nil, a.handleCreateToken)).Methods(http.MethodPost)
	r.Handle("/auth/cli/tokens",
		a.requireAdmin("GET /auth/cli/tokens", nil, a.handleListTokens)).Methods(http.MethodGet)
	r.Handle("/auth/cli/tokens/{tokenId}/revoke",
		a.requireAdmin("POST /auth/cli/tokens/{tokenId}/revoke", nil, a.handleRevokeToken)).Methods(http.MethodPost)
	r.Handle("/auth/cli/tokens/rotate",
		a.requireAdmin("POST /auth/cli/tokens/rotate", nil, a.handleRotateToken)).Methods(http.MethodPost)
}

func (a *api) registerBundleRoutes(r *mux.Router) {
	bundlesRW := []model.Scope{model.ScopeBundlesWrite}
	bundlesRO := []model.Scope{model.ScopeBundlesRead}

	r.Handle("/bundles", a.requireAdmin("POST /bundles", bundlesRW, a.handleCreateBundle)).Methods(http.MethodPost)
	r.Handle("/bundles", a.requireAdmin("GET /bundles", bundlesRO, a.handleListBundles)).Methods(http.MethodGet)
	r.Handle("/bundles/{bundleId}", a.requireAdmin("GET /bundles/{bundleId}", bundlesRO, a.handleGetBundle)).Methods(http.MethodGet)
	r.Handle("/bundles/{bundleId}", a.requireAdmin("PATCH /bundles/{bundleId}", bundlesRW, a.handlePatchBundle)).Methods(http.MethodPatch)
	r.Handle("/bundles/{bundleId}", a.requireAdmin("DELETE /bundles/{bundleId}", bundlesRW, a.handleDeleteBundle)).Methods(http.MethodDelete)

	r.Handle("/bundles/{bundleId}/objects",
		a.requireAdmin("POST /bundles/{bundleId}/objects", bundlesRW, a.handleAddBundleObject)).Methods(http.MethodPost)
	r.Handle("/bundles/{bundleId}/objects",
		a.requireAdmin("GET /bundles/{bundleId}/objects", bundlesRO, a.handleListBundleObjects)).Methods(http.MethodGet)
	r.Handle("/bundles/{bundleId}/objects/{id}",
		a.requireAdmin("POST /bundles/{bundleId}/objects/{id}", bundlesRW, a.handleToggleBundleObject)).Methods(http.MethodPost)

	r.Handle("/bundles/{bundleId}/versions",
		a.requireAdmin("GET /bundles/{bundleId}/versions", bundlesRO, a.handleBundleVersions)).Methods(http.MethodGet)
	r.Handle("/bundles/{bundleId}/versions/{version}",
		a.requireAdmin("GET /bundles/{bundleId}/versions/{version}", bundlesRO, a.handleBundleVersions)).Methods(http.MethodGet)

	r.Handle("/admin/bundles/{bundleId}/build",
		a.requireAdmin("POST /admin/bundles/{bundleId}/build", bundlesRW, a.handleBuildBundle)).Methods(http.MethodPost)
	r.Handle("/admin/bundles/{bundleId}/build/status",
		a.requireAdmin("GET /admin/bundles/{bundleId}/build/status", bundlesRO, a.handleBuildStatus)).Methods(http.MethodGet)
}

func (a *api) registerFileRoutes(r *mux.Router) {
	filesRW := []model.Scope{model.ScopeFilesWrite}
	filesRO := []model.Scope{model.ScopeFilesRead}

	r.Handle("/files", a.requireAdmin("GET /files", filesRO, a.handleListFiles)).Methods(http.MethodGet)
	r.Handle("/files", a.requireAdmin("POST /files", filesRW, a.handleCreateFile)).Methods(http.MethodPost)
	r.Handle("/files/upload", a.requireAdmin("POST /files/upload", filesRW, a.handleUploadFile)).Methods(http.MethodPost)
	r.Handle("/files/upload-url", a.requireAdmin("POST /files/upload-url", filesRW, a.handleUploadURL)).Methods(http.MethodPost)
	r.Handle("/files/commit", a.requireAdmin("POST /files/commit", filesRW, a.handleCommitFile)).Methods(http.MethodPost)
	r.Handle("/files/{id}", a.requireAdmin("GET /files/{id}", filesRO, a.handleGetFile)).Methods(http.MethodGet)
	r.Handle("/files/{id}", a.requireAdmin("DELETE /files/{id}", filesRW, a.handleDeleteFile)).Methods(http.MethodDelete)
	r.Handle("/files/{id}/download", a.requireAdmin("GET /files/{id}/download", filesRO, a.handleDownloadFile)).Methods(http.MethodGet)
	r.Handle("/files/batch/delete", a.requireAdmin("POST /files/batch/delete", filesRW, a.handleBatchDeleteFiles)).Methods(http.MethodPost)
	r.Handle("/files/batch/move", a.requireAdmin("POST /files/batch/move", filesRW, a.handleBatchMoveFiles)).Methods(http.MethodPost)
}

func (a *api) registerRecipientRoutes(r *mux.Router) {
	recipientsRW := []model.Scope{model.ScopeRecipientsWrite}
	recipientsRO := []model.Scope{model.ScopeRecipientsRead}

	r.Handle("/recipients", a.requireAdmin("GET /recipients", recipientsRO, a.handleListRecipients)).Methods(http.MethodGet)
	r.Handle("/recipients", a.requireAdmin("POST /recipients", recipientsRW, a.handleCreateRecipient)).Methods(http.MethodPost)
	r.Handle("/recipients/{recipientId}",
		a.requireAdmin("GET /recipients/{recipientId}", recipientsRO, a.handleGetRecipient)).Methods(http.MethodGet)
	r.Handle("/recipients/{recipientId}",
		a.requireAdmin("PATCH /recipients/{recipientId}", recipientsRW, a.handlePatchRecipient)).Methods(http.MethodPatch)
	r.Handle("/recipients/{recipientId}",
		a.requireAdmin("DELETE /recipients/{recipientId}", recipientsRW, a.handleDeleteRecipient)).Methods(http.MethodDelete)

	r.Handle("/bundles/{bundleId}/recipients",
		a.requireAdmin("POST /bundles/{bundleId}/recipients", recipientsRW, a.handleCreateAssignment)).Methods(http.MethodPost)
	r.Handle("/bundles/{bundleId}/recipients",
		a.requireAdmin("GET /bundles/{bundleId}/recipients", recipientsRO, a.handleListBundleAssignments)).Methods(http.MethodGet)
	r.Handle("/bundles/{bundleId}/recipients/batch",
		a.requireAdmin("POST /bundles/{bundleId}/recipients/batch", recipientsRW, a.handleBatchCreateAssignments)).Methods(http.MethodPost)
	r.Handle("/bundles/{bundleId}/recipients",
		a.requireAdmin("DELETE /bundles/{bundleId}/recipients", recipientsRW, a.handleDeleteAssignment)).Methods(http.MethodDelete)
}

func (a *api) registerPortalRoutes(r *mux.Router) {
	r.HandleFunc("/portal/me", a.handlePortalMe).Methods(http.MethodGet)
	r.HandleFunc("/portal/bundles", a.handlePortalBundles).Methods(http.MethodGet)
	r.HandleFunc("/portal/assignments", a.handlePortalAssignments).Methods(http.MethodGet)
	r.HandleFunc("/portal/bundles/{bundleId}", a.handlePortalBundleDetail).Methods(http.MethodGet)
	r.HandleFunc("/portal/bundles/{bundleId}/objects", a.handlePortalBundleObjects).Methods(http.MethodGet)
	r.HandleFunc("/portal/bundles/{bundleId}/download", a.handlePortalDownload).Methods(http.MethodGet)
}
