package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/latchflow/latchflow/internal/hashutil"
	"github.com/latchflow/latchflow/internal/model"
)

// apiTokenBytes is the raw entropy behind an API token's suffix.
const apiTokenBytes = 24

// TokenManager implements the admin-facing token management endpoints:
// create, list, revoke, rotate.
type TokenManager struct {
	store Store
	cfg   Config
}

// NewTokenManager constructs a TokenManager.
func NewTokenManager(store Store, cfg Config) *TokenManager {
	return &TokenManager{store: store, cfg: cfg}
}

// Create mints a new ApiToken for userID, returning the raw token
// exactly once.
func (m *TokenManager) Create(ctx context.Context, userID, name string, scopes []string, ttl *time.Duration) (string, model.ApiToken, error) {
	return issueAPIToken(ctx, m.store, m.cfg, userID, name, scopes, ttl)
}

// List returns userID's tokens (never including raw values, which are
// not retained after minting).
func (m *TokenManager) List(ctx context.Context, userID string) ([]model.ApiToken, error) {
	return m.store.ListAPITokensForUser(ctx, userID)
}

// Revoke revokes tokenID.
func (m *TokenManager) Revoke(ctx context.Context, tokenID string) error {
	return m.store.RevokeAPIToken(ctx, tokenID)
}

// Rotate revokes the old token and mints a fresh one with the same
// name/scopes/ttl, returning the new raw value.
func (m *TokenManager) Rotate(ctx context.Context, old model.ApiToken) (string, model.ApiToken, error) {
	var ttl *time.Duration
	if old.ExpiresAt != nil {
		remaining := time.Until(*old.ExpiresAt)
		ttl = &remaining
	}
	raw, tok, err := issueAPIToken(ctx, m.store, m.cfg, old.UserID, old.Name, old.Scopes, ttl)
	if err != nil {
		return "", model.ApiToken{}, err
	}
	if err := m.store.RevokeAPIToken(ctx, old.ID); err != nil {
		return "", model.ApiToken{}, fmt.Errorf("auth: revoke old token during rotation: %w", err)
	}
	return raw, tok, nil
}

func issueAPIToken(ctx context.Context, store Store, cfg Config, userID, name string, scopes []string, ttl *time.Duration) (string, model.ApiToken, error) {
	suffix, err := hashutil.RandomToken(apiTokenBytes)
	if err != nil {
		return "", model.ApiToken{}, fmt.Errorf("auth: generate token: %w", err)
	}
	raw := cfg.APITokenPrefix + suffix

	tok := model.ApiToken{
		UserID:    userID,
		Name:      name,
		TokenHash: hashutil.SHA256HexString(raw),
		Prefix:    cfg.APITokenPrefix,
		Scopes:    scopes,
	}
	if ttl != nil {
		expires := time.Now().Add(*ttl)
		tok.ExpiresAt = &expires
	} else if cfg.APITokenTTL > 0 {
		expires := time.Now().Add(cfg.APITokenTTL)
		tok.ExpiresAt = &expires
	}

	if err := store.CreateAPIToken(ctx, tok); err != nil {
		return "", model.ApiToken{}, fmt.Errorf("auth: persist token: %w", err)
	}
	return raw, tok, nil
}

// ErrTokenInvalid covers unknown, revoked and expired API tokens.
var ErrTokenInvalid = fmt.Errorf("auth: api token invalid, revoked, or expired")

// ValidateAPIToken resolves a raw bearer token to its ApiToken row,
// touching lastUsedAt on success.
func ValidateAPIToken(ctx context.Context, store Store, raw string) (model.ApiToken, error) {
	tok, found, err := store.FindAPITokenByHash(ctx, hashutil.SHA256HexString(raw))
	if err != nil {
		return model.ApiToken{}, fmt.Errorf("auth: find token: %w", err)
	}
	if !found || tok.RevokedAt != nil || (tok.ExpiresAt != nil && time.Now().After(*tok.ExpiresAt)) {
		return model.ApiToken{}, ErrTokenInvalid
	}
	if err := store.TouchAPITokenLastUsed(ctx, tok.ID, time.Now()); err != nil {
		return model.ApiToken{}, fmt.Errorf("auth: touch last used: %w", err)
	}
	return tok, nil
}
