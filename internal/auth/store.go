// Package auth implements spec §4.7's three login ceremonies
// (recipient OTP, admin magic link, CLI device-code), bearer API
// tokens, and the admin-or-token middleware, all sharing one substrate:
// hash-at-rest credentials, looked up by their SHA-256 hash through the
// Store rather than compared in memory, and per-(ip, subject) rate
// limiting. Grounded on internal/api/middleware/auth.go
// for the bearer-parsing/context-user/401-403 shape of the middleware,
// generalized from a single API-key map to a real credential store and
// from role strings to compiled path-pattern policy entries.
package auth

import (
	"context"
	"time"

	"github.com/latchflow/latchflow/internal/mailer"
	"github.com/latchflow/latchflow/internal/model"
)

// Store is the persistence surface auth needs.
type Store interface {
	// Users / recipients
	UpsertUserByEmail(ctx context.Context, email string) (model.User, error)
	FindRecipientByIdentity(ctx context.Context, emailOrID string) (recipientID string, found bool, err error)

	// Recipient OTP
	DeleteActiveOTPsForRecipient(ctx context.Context, recipientID string) error
	CreateOTP(ctx context.Context, otp model.RecipientOtp) error
	FindOTPByHash(ctx context.Context, codeHash string) (model.RecipientOtp, bool, error)
	IncrementOTPAttempts(ctx context.Context, id string) (int, error)
	DeleteOTP(ctx context.Context, id string) error

	// Recipient sessions
	CreateRecipientSession(ctx context.Context, sess model.RecipientSession) error
	FindRecipientSessionByHash(ctx context.Context, tokenHash string) (model.RecipientSession, bool, error)
	RevokeRecipientSession(ctx context.Context, id string) error

	// Admin magic links
	CreateMagicLink(ctx context.Context, link model.MagicLink) error
	FindMagicLinkByHash(ctx context.Context, tokenHash string) (model.MagicLink, bool, error)
	ConsumeMagicLink(ctx context.Context, id string, consumedAt time.Time) error

	// Admin sessions
	CreateAdminSession(ctx context.Context, sess model.Session) error
	FindAdminSessionByHash(ctx context.Context, tokenHash string) (model.Session, bool, error)
	RevokeAdminSession(ctx context.Context, id string) error

	// Device auth
	CreateDeviceAuth(ctx context.Context, da model.DeviceAuth) error
	FindDeviceAuthByUserCode(ctx context.Context, userCode string) (model.DeviceAuth, bool, error)
	FindDeviceAuthByDeviceCodeHash(ctx context.Context, hash string) (model.DeviceAuth, bool, error)
	ApproveDeviceAuth(ctx context.Context, id, approvedByUserID, issuedTokenID string) error
	TouchDeviceAuthPoll(ctx context.Context, id string, at time.Time) error

	// API tokens
	CreateAPIToken(ctx context.Context, tok model.ApiToken) error
	FindAPITokenByHash(ctx context.Context, tokenHash string) (model.ApiToken, bool, error)
	ListAPITokensForUser(ctx context.Context, userID string) ([]model.ApiToken, error)
	RevokeAPIToken(ctx context.Context, id string) error
	TouchAPITokenLastUsed(ctx context.Context, id string, at time.Time) error
}

// Mailer aliases mailer.Provider for call-site brevity within auth.
type Mailer = mailer.Provider
