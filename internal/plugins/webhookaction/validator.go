package webhookaction

import (
	"net"
	"net/url"
	"strings"
)

// ValidationConfig bounds what Config values this plugin accepts,
// mirroring the teacher's webhook_validator.go constraints.
type ValidationConfig struct {
	AllowedSchemes []string
	BlockedHosts   []string
	MaxPayloadSize int64
	MaxHeaders     int
	MaxTimeout     int64 // seconds
}

// defaultValidation matches the teacher's DefaultValidationConfig,
// minus private-range blocking: localhost and the loopback addresses
// are blocked, other private ranges are not.
var defaultValidation = ValidationConfig{
	AllowedSchemes: []string{"https"},
	BlockedHosts:   []string{"localhost", "127.0.0.1", "::1"},
	MaxPayloadSize: 1 << 20, // 1 MiB
	MaxHeaders:     32,
	MaxTimeout:     120,
}

// validateURL checks scheme, credentials-in-url, and the blocked-host
// list, same shape as the teacher's ValidateURL.
func validateURL(raw string) error {
	if raw == "" {
		return ErrEmptyURL
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.User != nil {
		return ErrCredentialsInURL
	}

	schemeOK := false
	for _, s := range defaultValidation.AllowedSchemes {
		if strings.EqualFold(u.Scheme, s) {
			schemeOK = true
			break
		}
	}
	if !schemeOK {
		return ErrInsecureScheme
	}

	host := u.Hostname()
	for _, blocked := range defaultValidation.BlockedHosts {
		if strings.EqualFold(host, blocked) {
			return ErrBlockedHost
		}
	}
	if ip := net.ParseIP(host); ip != nil && (ip.IsLoopback() || ip.IsUnspecified()) {
		return ErrBlockedHost
	}

	return nil
}

// validatePayloadSize enforces the configured (or default) payload
// ceiling.
func validatePayloadSize(size int64, limit int64) error {
	if limit <= 0 {
		limit = defaultValidation.MaxPayloadSize
	}
	if size > limit {
		return ErrPayloadTooLarge
	}
	return nil
}

// validateHeaders caps the header count; the teacher applies the same
// bound to stop a misconfigured action from sending unbounded headers.
func validateHeaders(headers map[string]string) error {
	if len(headers) > defaultValidation.MaxHeaders {
		return ErrTooManyHeaders
	}
	return nil
}

// validateConfig runs the full set of checks against a parsed Config.
func validateConfig(cfg Config) error {
	if err := validateURL(cfg.URL); err != nil {
		return err
	}
	if err := validateHeaders(cfg.Headers); err != nil {
		return err
	}
	return nil
}
