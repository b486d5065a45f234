package webhookaction

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/latchflow/latchflow/internal/pluginapi"
)

// errorClass categorizes a webhook-send failure for retry decisions,
// mirroring the teacher's ErrorType/ErrorCategory split but collapsed
// into the one taxonomy the action consumer understands.
type errorClass int

const (
	classValidation errorClass = iota
	classAuth
	classNetwork
	classTimeout
	classRateLimit
	classServer
)

func (c errorClass) serviceErrorKind() pluginapi.ServiceErrorKind {
	switch c {
	case classNetwork, classTimeout, classServer:
		return pluginapi.KindRetryable
	case classRateLimit:
		return pluginapi.KindRateLimit
	case classAuth:
		return pluginapi.KindPermission
	default:
		return pluginapi.KindValidation
	}
}

func (c errorClass) code() string {
	switch c {
	case classValidation:
		return "WEBHOOK_VALIDATION"
	case classAuth:
		return "WEBHOOK_AUTH"
	case classNetwork:
		return "WEBHOOK_NETWORK"
	case classTimeout:
		return "WEBHOOK_TIMEOUT"
	case classRateLimit:
		return "WEBHOOK_RATE_LIMIT"
	case classServer:
		return "WEBHOOK_SERVER_ERROR"
	default:
		return "WEBHOOK_UNKNOWN"
	}
}

// sendError wraps a failure with its errorClass, the single type this
// package's Execute ever returns as *pluginapi.ServiceError.
type sendError struct {
	class      errorClass
	statusCode int
	message    string
	cause      error
}

func (e *sendError) Error() string {
	if e.statusCode > 0 {
		return fmt.Sprintf("webhookaction: HTTP %d: %s", e.statusCode, e.message)
	}
	return fmt.Sprintf("webhookaction: %s", e.message)
}

func (e *sendError) Unwrap() error { return e.cause }

func (e *sendError) serviceError() *pluginapi.ServiceError {
	return &pluginapi.ServiceError{
		Kind:    e.class.serviceErrorKind(),
		Code:    e.class.code(),
		Message: e.Error(),
	}
}

// Sentinel validation errors, same catalog as the teacher's
// webhook_errors.go.
var (
	ErrEmptyURL         = errors.New("webhookaction: url cannot be empty")
	ErrInvalidURL       = errors.New("webhookaction: invalid url")
	ErrInsecureScheme   = errors.New("webhookaction: url must use an allowed scheme")
	ErrCredentialsInURL = errors.New("webhookaction: url must not contain credentials")
	ErrBlockedHost      = errors.New("webhookaction: blocked hostname")
	ErrPayloadTooLarge  = errors.New("webhookaction: payload exceeds size limit")
	ErrTooManyHeaders   = errors.New("webhookaction: too many headers")

	ErrMissingAuthToken            = errors.New("webhookaction: missing bearer token")
	ErrMissingBasicAuthCredentials = errors.New("webhookaction: missing basic auth credentials")
	ErrMissingAPIKey               = errors.New("webhookaction: missing api key")
	ErrNoCustomHeaders             = errors.New("webhookaction: no custom headers configured")
)

// isRetryableError reports whether err should be retried, fixing the
// teacher's webhook_client.go/webhook_errors.go naming mismatch
// (IsWebhookRetryableError vs IsRetryableError) along the way.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var se *sendError
	if errors.As(err, &se) {
		switch se.class {
		case classNetwork, classTimeout, classRateLimit, classServer:
			return true
		default:
			return false
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return errors.Is(err, context.DeadlineExceeded)
}

// classifyStatusCode maps an HTTP response status to an errorClass.
func classifyStatusCode(statusCode int) errorClass {
	switch {
	case statusCode == 429:
		return classRateLimit
	case statusCode >= 500:
		return classServer
	case statusCode == 401 || statusCode == 403:
		return classAuth
	case statusCode == 408 || statusCode == 504:
		return classTimeout
	default:
		return classValidation
	}
}
