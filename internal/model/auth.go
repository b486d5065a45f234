package model

import "time"

// User is an administrator account.
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// Session is an admin session backed by the lf_admin_sess cookie.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	CreatedAt time.Time
	RevokedAt *time.Time
}

// MagicLink is a one-time admin login token.
type MagicLink struct {
	ID         string
	Email      string
	TokenHash  string
	ExpiresAt  time.Time
	ConsumedAt *time.Time
	CreatedAt  time.Time
}

// RecipientOtp is a one-time code issued to a recipient for portal login.
type RecipientOtp struct {
	ID          string
	RecipientID string
	CodeHash    string
	Attempts    int
	ExpiresAt   time.Time
	CreatedAt   time.Time
}

// RecipientSession is a portal session backed by the lf_recipient_sess
// cookie.
type RecipientSession struct {
	ID          string
	RecipientID string
	TokenHash   string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// DeviceAuthStatus is the lifecycle of a CLI device-code login.
type DeviceAuthStatus string

const (
	DeviceAuthPending  DeviceAuthStatus = "PENDING"
	DeviceAuthApproved DeviceAuthStatus = "APPROVED"
	DeviceAuthExpired  DeviceAuthStatus = "EXPIRED"
	DeviceAuthRevoked  DeviceAuthStatus = "REVOKED"
)

// DeviceAuth is one CLI device-code login flow instance.
type DeviceAuth struct {
	ID              string
	DeviceCodeHash  string
	UserCode        string
	DeviceName      string
	Status          DeviceAuthStatus
	ApprovedByUser  *string
	IntervalSeconds int
	LastPollAt      *time.Time
	ExpiresAt       time.Time
	CreatedAt       time.Time
	IssuedTokenID   *string
}

// ApiToken is a bearer API token with scopes.
type ApiToken struct {
	ID         string
	UserID     string
	Name       string
	TokenHash  string
	Prefix     string
	Scopes     []string
	ExpiresAt  *time.Time
	CreatedAt  time.Time
	RevokedAt  *time.Time
	LastUsedAt *time.Time
}

// Scope is a fixed API-token scope string (spec §4.7).
type Scope string

const (
	ScopeCoreRead        Scope = "core:read"
	ScopeCoreWrite       Scope = "core:write"
	ScopeFilesRead       Scope = "files:read"
	ScopeFilesWrite      Scope = "files:write"
	ScopeBundlesRead     Scope = "bundles:read"
	ScopeBundlesWrite    Scope = "bundles:write"
	ScopeRecipientsRead  Scope = "recipients:read"
	ScopeRecipientsWrite Scope = "recipients:write"
)

// HasScope reports whether scopes contains want.
func HasScope(scopes []string, want Scope) bool {
	for _, s := range scopes {
		if s == string(want) {
			return true
		}
	}
	return false
}
