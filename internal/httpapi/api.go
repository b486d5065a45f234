package httpapi

import (
	"net/http"

	"github.com/latchflow/latchflow/internal/auth"
	"github.com/latchflow/latchflow/internal/bundle"
	"github.com/latchflow/latchflow/internal/changelog"
	"github.com/latchflow/latchflow/internal/download"
	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/obslog"
	"github.com/latchflow/latchflow/internal/objstore"
	"github.com/latchflow/latchflow/internal/ratelimit"
)

// Deps collects every subsystem the HTTP surface calls into. Grounded
// on internal/api/router.go's RouterConfig pattern of holding fully
// constructed business-layer dependencies rather than building them
// itself — cmd/server is responsible for wiring concrete
// implementations (store.New, objstore.New, etc) before calling
// NewRouter.
type Deps struct {
	Store      AdminStore
	Objects    *objstore.Service
	Scheduler  *bundle.Scheduler
	Guard      *download.Guard
	Changelog  *changelog.Service
	AuthMW     *auth.Middleware
	OTP        *auth.OTPService
	MagicLink  *auth.MagicLinkService
	DeviceCode *auth.DeviceCodeService
	Tokens     *auth.TokenService
	TokenMgr   *auth.TokenManager
	AuthConfig auth.Config
	RateLimit  *ratelimit.Limiter
	Logger     obslog.Logger
}

// api holds Deps plus the receiver methods for every route handler.
// Unexported: cmd/server only ever sees the *mux.Router NewRouter
// returns.
type api struct {
	Deps
}

// requireAdmin wraps next behind the admin-or-token middleware,
// grounded on spec §4.7's requireAdminOrApiToken({policySignature,
// scopes}).
func (a *api) requireAdmin(signature string, scopes []model.Scope, next http.HandlerFunc) http.Handler {
	return a.AuthMW.RequireAdminOrAPIToken(auth.RequireOptions{PolicySignature: signature, Scopes: scopes}, next)
}

// requireRecipient resolves the portal session cookie into a recipient
// id, writing 401 and returning ok=false if absent or invalid.
func (a *api) requireRecipient(w http.ResponseWriter, r *http.Request) (recipientID string, ok bool) {
	c, err := r.Cookie(a.AuthConfig.RecipientCookieName)
	if err != nil || c.Value == "" {
		writeError(w, unauthorized("recipient session required"))
		return "", false
	}
	sess, err := a.Tokens.ValidateRecipientSession(r.Context(), c.Value)
	if err != nil {
		writeError(w, unauthorized("recipient session invalid or expired"))
		return "", false
	}
	return sess.RecipientID, true
}
