package webhookaction

import (
	"encoding/base64"
	"net/http"
)

// authStrategy applies one outbound auth scheme to an outgoing request,
// mirroring the teacher's webhook_auth.go AuthStrategy interface.
type authStrategy interface {
	Apply(req *http.Request) error
}

// newAuthStrategy resolves cfg into the strategy it names. A nil cfg or
// AuthTypeNone means no auth is applied.
func newAuthStrategy(cfg *AuthConfig) (authStrategy, error) {
	if cfg == nil {
		return noAuthStrategy{}, nil
	}
	switch cfg.Type {
	case AuthTypeNone, "":
		return noAuthStrategy{}, nil
	case AuthTypeBearer:
		if cfg.Token == "" {
			return nil, ErrMissingAuthToken
		}
		return bearerAuthStrategy{token: cfg.Token}, nil
	case AuthTypeBasic:
		if cfg.Username == "" || cfg.Password == "" {
			return nil, ErrMissingBasicAuthCredentials
		}
		return basicAuthStrategy{username: cfg.Username, password: cfg.Password}, nil
	case AuthTypeAPIKey:
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		header := cfg.APIKeyHeader
		if header == "" {
			header = "X-API-Key"
		}
		return apiKeyAuthStrategy{header: header, key: cfg.APIKey}, nil
	case AuthTypeCustom:
		if len(cfg.CustomHeaders) == 0 {
			return nil, ErrNoCustomHeaders
		}
		return customAuthStrategy{headers: cfg.CustomHeaders}, nil
	default:
		return noAuthStrategy{}, nil
	}
}

type noAuthStrategy struct{}

func (noAuthStrategy) Apply(*http.Request) error { return nil }

type bearerAuthStrategy struct{ token string }

func (s bearerAuthStrategy) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Bearer "+s.token)
	return nil
}

type basicAuthStrategy struct{ username, password string }

func (s basicAuthStrategy) Apply(req *http.Request) error {
	req.Header.Set("Authorization", "Basic "+encodeBasicAuth(s.username, s.password))
	return nil
}

type apiKeyAuthStrategy struct{ header, key string }

func (s apiKeyAuthStrategy) Apply(req *http.Request) error {
	req.Header.Set(s.header, s.key)
	return nil
}

type customAuthStrategy struct{ headers map[string]string }

func (s customAuthStrategy) Apply(req *http.Request) error {
	for k, v := range s.headers {
		req.Header.Set(k, v)
	}
	return nil
}

func encodeBasicAuth(username, password string) string {
	return base64.StdEncoding.EncodeToString([]byte(username + ":" + password))
}
