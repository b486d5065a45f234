package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/latchflow/latchflow/internal/apierr"
	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/obslog"
)

type contextKey string

const userContextKey contextKey = "auth.user"

// AuthenticatedUser is what UserFromContext returns: either an admin
// session's user id or a bearer token's user id, plus the token's
// scopes (empty for a cookie-authenticated admin).
type AuthenticatedUser struct {
	UserID string
	Scopes []string
}

// UserFromContext extracts the AuthenticatedUser set by RequireAdminOrAPIToken.
func UserFromContext(ctx context.Context) (AuthenticatedUser, bool) {
	u, ok := ctx.Value(userContextKey).(AuthenticatedUser)
	return u, ok
}

// DecisionLogger records each authorization decision, per spec §4.7's
// logDecision({decision, reason, signature, userId?}).
type DecisionLogger interface {
	LogDecision(ctx context.Context, decision, reason, signature, userID string)
}

type slogDecisionLogger struct{ logger obslog.Logger }

// NewSlogDecisionLogger adapts an obslog.Logger into a DecisionLogger.
func NewSlogDecisionLogger(logger obslog.Logger) DecisionLogger {
	return slogDecisionLogger{logger: logger}
}

func (l slogDecisionLogger) LogDecision(_ context.Context, decision, reason, signature, userID string) {
	decisionsTotal.WithLabelValues(decision, signature).Inc()
	l.logger.Info("auth: decision", "decision", decision, "reason", reason, "signature", signature, "user_id", userID)
}

// Middleware wires RequireAdminOrAPIToken against a Store, a compiled
// Policy and a DecisionLogger. Grounded on
// internal/api/middleware/auth.go's bearer-parsing/context-user/401-403
// shape, generalized from a static API-key map to a real token store
// and a path-pattern policy instead of a role hierarchy.
type Middleware struct {
	store    Store
	tokens   *TokenService
	policy   *Compiled
	decision DecisionLogger
	cfg      Config
}

// NewMiddleware constructs a Middleware.
func NewMiddleware(store Store, tokens *TokenService, policy *Compiled, decision DecisionLogger, cfg Config) *Middleware {
	return &Middleware{store: store, tokens: tokens, policy: policy, decision: decision, cfg: cfg}
}

// RequireOptions configures one RequireAdminOrAPIToken-wrapped handler.
type RequireOptions struct {
	// PolicySignature is the "METHOD /path" string checked against the
	// compiled policy for cookie-authenticated admins.
	PolicySignature string
	// Scopes are the bearer-token scopes required; ignored for
	// cookie-authenticated admins.
	Scopes []model.Scope
}

// RequireAdminOrAPIToken implements spec §4.7's admin-or-token
// middleware.
func (m *Middleware) RequireAdminOrAPIToken(opts RequireOptions, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if header := r.Header.Get("Authorization"); header != "" {
			m.handleBearer(w, r, header, opts, next)
			return
		}

		raw, err := cookieValue(r, m.cfg.AdminCookieName)
		if err != nil || raw == "" {
			m.decision.LogDecision(ctx, "DENY", "no session cookie", opts.PolicySignature, "")
			apierr.Write(w, apierr.New(apierr.CodeUnauthorized, "authentication required"))
			return
		}

		sess, err := m.tokens.ValidateAdminSession(ctx, raw)
		if err != nil {
			m.decision.LogDecision(ctx, "DENY", "invalid session", opts.PolicySignature, "")
			apierr.Write(w, apierr.New(apierr.CodeUnauthorized, "session invalid or expired"))
			return
		}

		method, path := splitSignature(opts.PolicySignature, r)
		if !m.policy.Authorize(method, path, RoleAdmin) {
			m.decision.LogDecision(ctx, "DENY", "policy denied", opts.PolicySignature, sess.UserID)
			apierr.Write(w, apierr.New(apierr.CodeForbidden, "not permitted"))
			return
		}

		m.decision.LogDecision(ctx, "ALLOW", "admin session", opts.PolicySignature, sess.UserID)
		ctx = context.WithValue(ctx, userContextKey, AuthenticatedUser{UserID: sess.UserID})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) handleBearer(w http.ResponseWriter, r *http.Request, header string, opts RequireOptions, next http.Handler) {
	ctx := r.Context()
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		apierr.Write(w, apierr.New(apierr.CodeUnauthorized, "unsupported authorization scheme"))
		return
	}

	tok, err := ValidateAPIToken(ctx, m.store, raw)
	if err != nil {
		m.decision.LogDecision(ctx, "DENY", "invalid token", opts.PolicySignature, "")
		apierr.Write(w, apierr.New(apierr.CodeUnauthorized, "token invalid, revoked, or expired"))
		return
	}

	for _, want := range opts.Scopes {
		if !model.HasScope(tok.Scopes, want) {
			m.decision.LogDecision(ctx, "DENY", "missing scope "+string(want), opts.PolicySignature, tok.UserID)
			apierr.Write(w, apierr.New(apierr.CodeForbidden, "token missing required scope"))
			return
		}
	}

	m.decision.LogDecision(ctx, "ALLOW", "bearer token", opts.PolicySignature, tok.UserID)
	ctx = context.WithValue(ctx, userContextKey, AuthenticatedUser{UserID: tok.UserID, Scopes: tok.Scopes})
	next.ServeHTTP(w, r.WithContext(ctx))
}

func cookieValue(r *http.Request, name string) (string, error) {
	c, err := r.Cookie(name)
	if err != nil {
		return "", err
	}
	return c.Value, nil
}

// splitSignature prefers opts.PolicySignature ("METHOD /path") but
// falls back to the live request when the signature carries no space.
func splitSignature(signature string, r *http.Request) (method, path string) {
	if parts := strings.SplitN(signature, " ", 2); len(parts) == 2 {
		return parts[0], parts[1]
	}
	return r.Method, r.URL.Path
}
