package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/latchflow/latchflow/internal/hashutil"
	"github.com/latchflow/latchflow/internal/model"
)

// sessionTokenBytes is the raw entropy (before base64url encoding) for
// session/magic-link/device tokens — 32 random bytes per spec §4.7.
const sessionTokenBytes = 32

// TokenService mints and validates the raw bearer-ish tokens (session
// cookies, API tokens) that only ever live as a SHA-256 hash at rest.
type TokenService struct {
	store Store
	cfg   Config
}

// NewTokenService constructs a TokenService.
func NewTokenService(store Store, cfg Config) *TokenService {
	return &TokenService{store: store, cfg: cfg}
}

// IssueRecipientSession mints a new RecipientSession and returns its
// raw (unhashed) token.
func (t *TokenService) IssueRecipientSession(ctx context.Context, recipientID string) (string, model.RecipientSession, error) {
	raw, err := hashutil.RandomToken(sessionTokenBytes)
	if err != nil {
		return "", model.RecipientSession{}, fmt.Errorf("auth: generate session token: %w", err)
	}
	sess := model.RecipientSession{
		RecipientID: recipientID,
		TokenHash:   hashutil.SHA256HexString(raw),
		ExpiresAt:   time.Now().Add(t.cfg.RecipientSessionTTL),
	}
	if err := t.store.CreateRecipientSession(ctx, sess); err != nil {
		return "", model.RecipientSession{}, fmt.Errorf("auth: persist session: %w", err)
	}
	return raw, sess, nil
}

// IssueAdminSession mints a new admin Session.
func (t *TokenService) IssueAdminSession(ctx context.Context, userID string) (string, model.Session, error) {
	raw, err := hashutil.RandomToken(sessionTokenBytes)
	if err != nil {
		return "", model.Session{}, fmt.Errorf("auth: generate session token: %w", err)
	}
	sess := model.Session{
		UserID:    userID,
		TokenHash: hashutil.SHA256HexString(raw),
		ExpiresAt: time.Now().Add(t.cfg.AdminSessionTTL),
	}
	if err := t.store.CreateAdminSession(ctx, sess); err != nil {
		return "", model.Session{}, fmt.Errorf("auth: persist session: %w", err)
	}
	return raw, sess, nil
}

// ErrSessionInvalid covers unknown, revoked and expired sessions alike
// — the caller never needs to distinguish them, only to reject.
var ErrSessionInvalid = fmt.Errorf("auth: session invalid or expired")

// ValidateAdminSession resolves a raw cookie value to its Session row.
func (t *TokenService) ValidateAdminSession(ctx context.Context, raw string) (model.Session, error) {
	sess, found, err := t.store.FindAdminSessionByHash(ctx, hashutil.SHA256HexString(raw))
	if err != nil {
		return model.Session{}, fmt.Errorf("auth: find session: %w", err)
	}
	if !found || sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
		return model.Session{}, ErrSessionInvalid
	}
	return sess, nil
}

// ValidateRecipientSession resolves a raw cookie value to its
// RecipientSession row.
func (t *TokenService) ValidateRecipientSession(ctx context.Context, raw string) (model.RecipientSession, error) {
	sess, found, err := t.store.FindRecipientSessionByHash(ctx, hashutil.SHA256HexString(raw))
	if err != nil {
		return model.RecipientSession{}, fmt.Errorf("auth: find session: %w", err)
	}
	if !found || sess.RevokedAt != nil || time.Now().After(sess.ExpiresAt) {
		return model.RecipientSession{}, ErrSessionInvalid
	}
	return sess, nil
}

// LogoutAdmin revokes the admin session for raw, idempotently.
func (t *TokenService) LogoutAdmin(ctx context.Context, raw string) error {
	if raw == "" {
		return nil
	}
	sess, found, err := t.store.FindAdminSessionByHash(ctx, hashutil.SHA256HexString(raw))
	if err != nil {
		return fmt.Errorf("auth: find session: %w", err)
	}
	if !found {
		return nil
	}
	return t.store.RevokeAdminSession(ctx, sess.ID)
}

// CookieSpec describes the HttpOnly/SameSite=Lax/Path=/ cookie spec
// §4.7 requires for every auth cookie.
type CookieSpec struct {
	Name     string
	Value    string
	MaxAge   int // seconds; 0 clears the cookie
	Secure   bool
	HttpOnly bool
	SameSite string
	Path     string
}

// NewCookie builds a CookieSpec for setting a session cookie.
func (c Config) NewCookie(name, value string, ttl time.Duration) CookieSpec {
	return CookieSpec{
		Name: name, Value: value, MaxAge: int(ttl.Seconds()),
		Secure: c.CookieSecure, HttpOnly: true, SameSite: "Lax", Path: "/",
	}
}

// ClearCookie builds a CookieSpec that clears name via Max-Age=0,
// matching spec §4.7's "logout MUST clear cookies with Max-Age=0 even
// when no valid session existed".
func (c Config) ClearCookie(name string) CookieSpec {
	return CookieSpec{Name: name, Value: "", MaxAge: 0, Secure: c.CookieSecure, HttpOnly: true, SameSite: "Lax", Path: "/"}
}
