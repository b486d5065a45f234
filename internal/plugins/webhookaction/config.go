// Package webhookaction is an example pluginapi.ActionRuntime: it posts
// an action invocation's payload to an outbound HTTPS endpoint.
// Adapted from the teacher's internal/infrastructure/publishing webhook
// client/validator/auth/circuit-breaker files, now driving
// pluginapi.ServiceError instead of returning bare errors, since the
// action consumer classifies retry-vs-permanent off ServiceError.Kind.
package webhookaction

import (
	"encoding/json"
	"time"
)

// RetryConfig mirrors the teacher's webhook_models.go RetryConfig.
// BaseBackoff/MaxBackoff are plain time.Duration and therefore arrive
// in the config JSON as nanoseconds, same as the teacher's.
type RetryConfig struct {
	MaxRetries  int           `json:"maxRetries"`
	BaseBackoff time.Duration `json:"baseBackoff"`
	MaxBackoff  time.Duration `json:"maxBackoff"`
	Multiplier  float64       `json:"multiplier"`
}

// DefaultRetryConfig matches the teacher's defaults.
var DefaultRetryConfig = RetryConfig{
	MaxRetries:  3,
	BaseBackoff: 100 * time.Millisecond,
	MaxBackoff:  5 * time.Second,
	Multiplier:  2.0,
}

// AuthType selects one of the four outbound-auth strategies.
type AuthType string

const (
	AuthTypeNone   AuthType = ""
	AuthTypeBearer AuthType = "bearer"
	AuthTypeBasic  AuthType = "basic"
	AuthTypeAPIKey AuthType = "apikey"
	AuthTypeCustom AuthType = "custom"
)

// AuthConfig mirrors the teacher's webhook_models.go AuthConfig. Token,
// Password, and APIKey are expected to arrive via the action's
// encrypted config/secrets, never in plaintext definition JSON.
type AuthConfig struct {
	Type          AuthType          `json:"type,omitempty"`
	Token         string            `json:"token,omitempty"`
	Username      string            `json:"username,omitempty"`
	Password      string            `json:"password,omitempty"`
	APIKey        string            `json:"apiKey,omitempty"`
	APIKeyHeader  string            `json:"apiKeyHeader,omitempty"`
	CustomHeaders map[string]string `json:"customHeaders,omitempty"`
}

// Config is the webhook action's capability config, unmarshaled from
// the ActionInput.Config the consumer decrypts and hands to the
// factory.
type Config struct {
	URL            string            `json:"url"`
	Headers        map[string]string `json:"headers,omitempty"`
	Timeout        time.Duration     `json:"timeout,omitempty"`
	MaxPayloadSize int64             `json:"maxPayloadSize,omitempty"`
	Retry          *RetryConfig      `json:"retry,omitempty"`
	Auth           *AuthConfig       `json:"auth,omitempty"`
}

// ParseConfig unmarshals and defaults a Config from raw capability
// config JSON.
func ParseConfig(raw json.RawMessage) (Config, error) {
	var cfg Config
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &cfg); err != nil {
			return Config{}, err
		}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.MaxPayloadSize <= 0 {
		cfg.MaxPayloadSize = defaultValidation.MaxPayloadSize
	}
	if cfg.Retry == nil {
		retry := DefaultRetryConfig
		cfg.Retry = &retry
	}
	return cfg, nil
}

// parseSecretAuth unmarshals the action's encrypted secrets blob, whose
// only defined shape today is an AuthConfig fragment carrying whichever
// credential the configured AuthType needs (token/password/apiKey).
func parseSecretAuth(raw json.RawMessage, out *AuthConfig) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, out)
}

// mergeAuth overlays secret credential fields onto base, so the
// plaintext capability config can name the auth Type/Username/headers
// while the credential itself stays out of the config's plaintext JSON.
func mergeAuth(base *AuthConfig, secret AuthConfig) *AuthConfig {
	merged := AuthConfig{}
	if base != nil {
		merged = *base
	}
	if secret.Token != "" {
		merged.Token = secret.Token
	}
	if secret.Password != "" {
		merged.Password = secret.Password
	}
	if secret.APIKey != "" {
		merged.APIKey = secret.APIKey
	}
	if merged.Type == "" {
		merged.Type = secret.Type
	}
	return &merged
}
