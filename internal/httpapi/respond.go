package httpapi

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/latchflow/latchflow/internal/apierr"
	"github.com/latchflow/latchflow/internal/store"
)

// writeJSON serializes v as the response body with status, matching
// the teacher's helper of the same shape in internal/api/router.go's
// handlers, generalized from a fixed envelope to an arbitrary payload
// since spec §6.1's success responses have no common wrapper.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// decodeJSON decodes r's body into dst, reporting a BAD_REQUEST
// *apierr.Error on malformed JSON.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return apierr.New(apierr.CodeBadRequest, "malformed request body: "+err.Error())
	}
	return nil
}

// writeError translates err into the §6.1 JSON error envelope,
// recognizing *apierr.Error for its intended status/code and mapping a
// bare store.ErrNotFound to 404 for handlers that call the store
// directly without their own not-found check.
func writeError(w http.ResponseWriter, err error) {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		apierr.Write(w, apiErr)
		return
	}
	if errors.Is(err, store.ErrNotFound) {
		apierr.Write(w, apierr.New(apierr.CodeNotFound, "resource not found"))
		return
	}
	apierr.WriteGeneric(w, err)
}

func badRequest(msg string) *apierr.Error    { return apierr.New(apierr.CodeBadRequest, msg) }
func unauthorized(msg string) *apierr.Error  { return apierr.New(apierr.CodeUnauthorized, msg) }
func forbidden(msg string) *apierr.Error     { return apierr.New(apierr.CodeForbidden, msg) }
func notFound(msg string) *apierr.Error      { return apierr.New(apierr.CodeNotFound, msg) }
func notImplemented(msg string) *apierr.Error {
	return apierr.New(apierr.CodeNotImplemented, msg)
}

func apierrExpired(msg string) *apierr.Error     { return apierr.New(apierr.CodeExpired, msg) }
func apierrRevoked(msg string) *apierr.Error     { return apierr.New(apierr.CodeRevoked, msg) }
func apierrUnavailable(msg string) *apierr.Error { return apierr.New(apierr.CodeUnavailable, msg) }
func apierrSlowDown(msg string) *apierr.Error    { return apierr.New(apierr.CodeSlowDown, msg) }
func apierrInvalidCode(msg string) *apierr.Error { return apierr.New(apierr.CodeInvalidCode, msg) }
func apierrConflict(msg string) *apierr.Error    { return apierr.New(apierr.CodeConflict, msg) }
func apierrInUse(msg string) *apierr.Error       { return apierr.New(apierr.CodeInUse, msg) }
func apierrNoStoragePath(msg string) *apierr.Error {
	return apierr.New(apierr.CodeNoStoragePath, msg)
}
func apierrMaxDownloads(msg string) *apierr.Error {
	return apierr.New(apierr.CodeMaxDownloadsExceeded, msg)
}
func apierrCooldown(msg string) *apierr.Error {
	return apierr.New(apierr.CodeCooldownActive, msg)
}
func apierrRateLimited(msg string) *apierr.Error {
	return apierr.New(apierr.CodeRateLimited, msg)
}

// requestOrigin reconstructs "scheme://host" from r, honoring
// X-Forwarded-Proto from a trusted reverse proxy, since Go's
// http.Request never populates URL.Scheme for server-received
// requests.
func requestOrigin(r *http.Request) string {
	scheme := r.Header.Get("X-Forwarded-Proto")
	if scheme == "" {
		if r.TLS != nil {
			scheme = "https"
		} else {
			scheme = "http"
		}
	}
	return scheme + "://" + r.Host
}

// clientIP extracts the caller's address for rate limiting and
// DownloadEvent.IP, preferring X-Forwarded-For (set by a trusted
// reverse proxy) over RemoteAddr, matching
// internal/api/middleware/rate_limit.go's getClientID precedence.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if real := r.Header.Get("X-Real-IP"); real != "" {
		return real
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
