package pluginapi

import "fmt"

// ServiceErrorKind is the PluginServiceError taxonomy of spec §4.4/§7:
// how a plugin-raised error should be treated by the action consumer.
type ServiceErrorKind string

const (
	KindValidation ServiceErrorKind = "VALIDATION"
	KindPermission ServiceErrorKind = "PERMISSION"
	KindFatal      ServiceErrorKind = "FATAL"
	KindRetryable  ServiceErrorKind = "RETRYABLE"
	KindRateLimit  ServiceErrorKind = "RATE_LIMIT"
)

// ServiceError is an error a plugin runtime raises during Execute,
// Start, or Stop. The consumer classifies outcomes off Kind: RETRYABLE
// and RATE_LIMIT schedule a retry, VALIDATION/PERMISSION/FATAL finalize
// as FAILED_PERMANENT.
type ServiceError struct {
	Kind    ServiceErrorKind
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("pluginapi: %s %s: %s", e.Kind, e.Code, e.Message)
}

// ErrActionTimeout is the synthetic error the action consumer raises
// when a plugin's Execute does not return within its timeout budget
// (spec §4.4 step 5).
var ErrActionTimeout = &ServiceError{
	Kind:    KindFatal,
	Code:    "ACTION_TIMEOUT",
	Message: "action execution exceeded its timeout budget",
}

// IsRetryable reports whether err's Kind should schedule a retry rather
// than finalize as permanently failed.
func IsRetryable(err *ServiceError) bool {
	return err.Kind == KindRetryable || err.Kind == KindRateLimit
}
