package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/latchflow/latchflow/internal/hashutil"
	"github.com/latchflow/latchflow/internal/mailer"
	"github.com/latchflow/latchflow/internal/model"
)

// magicLinkTokenBytes is the spec's 32-byte base64url token.
const magicLinkTokenBytes = 32

// MagicLinkService implements spec §4.7 ceremony 2: admin login via a
// single-use emailed link.
type MagicLinkService struct {
	store  Store
	mail   Mailer
	cfg    Config
	tokens *TokenService
}

// NewMagicLinkService constructs a MagicLinkService.
func NewMagicLinkService(store Store, mail Mailer, cfg Config, tokens *TokenService) *MagicLinkService {
	return &MagicLinkService{store: store, mail: mail, cfg: cfg, tokens: tokens}
}

// StartResult carries the dev-allow login URL when Config.AllowDevAuth
// is set; callers in that mode return it in the JSON response instead
// of relying on the (possibly absent) mail provider.
type StartResult struct {
	LoginURL string // only set when cfg.AllowDevAuth
}

// Start upserts a User for email, mints a magic link, and either
// emails it or (in dev-allow mode) returns its URL directly.
func (s *MagicLinkService) Start(ctx context.Context, email, verifyBaseURL string) (StartResult, error) {
	if _, err := s.store.UpsertUserByEmail(ctx, email); err != nil {
		return StartResult{}, fmt.Errorf("auth: upsert user: %w", err)
	}

	raw, err := hashutil.RandomToken(magicLinkTokenBytes)
	if err != nil {
		return StartResult{}, fmt.Errorf("auth: generate magic link token: %w", err)
	}

	if err := s.store.CreateMagicLink(ctx, model.MagicLink{
		Email:     email,
		TokenHash: hashutil.SHA256HexString(raw),
		ExpiresAt: time.Now().Add(s.cfg.AdminMagicLinkTTL),
	}); err != nil {
		return StartResult{}, fmt.Errorf("auth: store magic link: %w", err)
	}

	loginURL := fmt.Sprintf("%s?token=%s", verifyBaseURL, raw)

	if s.cfg.AllowDevAuth {
		return StartResult{LoginURL: loginURL}, nil
	}

	if err := s.mail.Send(ctx, mailer.Message{
		To:       []mailer.Address{{Address: email}},
		Subject:  "Your sign-in link",
		TextBody: fmt.Sprintf("Sign in: %s\nThis link expires in %d minutes.", loginURL, int(s.cfg.AdminMagicLinkTTL.Minutes())),
	}); err != nil {
		return StartResult{}, fmt.Errorf("auth: send magic link email: %w", err)
	}
	return StartResult{}, nil
}

// ErrMagicLinkInvalid covers unknown, expired and already-consumed
// tokens.
var ErrMagicLinkInvalid = fmt.Errorf("auth: magic link invalid, expired, or already used")

// Callback atomically consumes the magic link token and issues an
// admin session, returning its raw cookie value.
func (s *MagicLinkService) Callback(ctx context.Context, rawToken string) (string, error) {
	link, found, err := s.store.FindMagicLinkByHash(ctx, hashutil.SHA256HexString(rawToken))
	if err != nil {
		return "", fmt.Errorf("auth: find magic link: %w", err)
	}
	if !found || link.ConsumedAt != nil || time.Now().After(link.ExpiresAt) {
		return "", ErrMagicLinkInvalid
	}

	if err := s.store.ConsumeMagicLink(ctx, link.ID, time.Now()); err != nil {
		return "", fmt.Errorf("auth: consume magic link: %w", err)
	}

	user, err := s.store.UpsertUserByEmail(ctx, link.Email)
	if err != nil {
		return "", fmt.Errorf("auth: resolve user: %w", err)
	}

	raw, _, err := s.tokens.IssueAdminSession(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("auth: issue admin session: %w", err)
	}
	return raw, nil
}
