package auth

import "time"

// Config collects the spec §6.5 environment-derived knobs this
// package needs. Binding from the environment happens in
// internal/config; this package only sees already-parsed values so it
// never reaches for os.Getenv itself.
type Config struct {
	OTPLength            int
	OTPTTL               time.Duration
	OTPMaxAttempts       int
	RecipientSessionTTL  time.Duration
	RecipientCookieName  string
	AdminMagicLinkTTL    time.Duration
	AdminSessionTTL      time.Duration
	AdminCookieName      string
	CookieSecure         bool
	AllowDevAuth         bool
	DeviceCodeTTL        time.Duration
	DeviceCodeInterval   time.Duration
	APITokenPrefix       string
	APITokenTTL          time.Duration
	APITokenDefaultScope []string
}

// DefaultConfig returns spec §6.5's documented defaults.
func DefaultConfig() Config {
	return Config{
		OTPLength:            6,
		OTPTTL:               10 * time.Minute,
		OTPMaxAttempts:       5,
		RecipientSessionTTL:  2 * time.Hour,
		RecipientCookieName:  "lf_recipient_sess",
		AdminMagicLinkTTL:    15 * time.Minute,
		AdminSessionTTL:      12 * time.Hour,
		AdminCookieName:      "lf_admin_sess",
		CookieSecure:         true,
		AllowDevAuth:         false,
		DeviceCodeTTL:        15 * time.Minute,
		DeviceCodeInterval:   5 * time.Second,
		APITokenPrefix:       "lfk_",
		APITokenTTL:          0,
		APITokenDefaultScope: nil,
	}
}
