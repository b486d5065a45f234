package httpapi

import (
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/latchflow/latchflow/internal/auth"
)

// setCookie applies an auth.CookieSpec to w, the one place this
// package touches http.Cookie directly.
func setCookie(w http.ResponseWriter, spec auth.CookieSpec) {
	sameSite := http.SameSiteLaxMode
	http.SetCookie(w, &http.Cookie{
		Name:     spec.Name,
		Value:    spec.Value,
		MaxAge:   spec.MaxAge,
		Secure:   spec.Secure,
		HttpOnly: spec.HttpOnly,
		SameSite: sameSite,
		Path:     spec.Path,
	})
}

// --- Admin magic link (spec §4.7 ceremony 2) ---

type adminStartRequest struct {
	Email string `json:"email"`
}

type adminStartResponse struct {
	LoginURL string `json:"login_url,omitempty"`
}

func (a *api) handleAdminAuthStart(w http.ResponseWriter, r *http.Request) {
	var req adminStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Email == "" {
		writeError(w, badRequest("email is required"))
		return
	}

	result, err := a.MagicLink.Start(r.Context(), req.Email, requestOrigin(r)+"/auth/admin/callback")
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, adminStartResponse{LoginURL: result.LoginURL})
}

func (a *api) handleAdminAuthCallback(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeError(w, badRequest("token is required"))
		return
	}

	raw, err := a.MagicLink.Callback(r.Context(), token)
	if err != nil {
		if errors.Is(err, auth.ErrMagicLinkInvalid) {
			writeError(w, apierrExpired("magic link invalid, expired, or already used"))
			return
		}
		writeError(w, err)
		return
	}

	setCookie(w, a.AuthConfig.NewCookie(a.AuthConfig.AdminCookieName, raw, a.AuthConfig.AdminSessionTTL))
	writeNoContent(w)
}

func (a *api) handleAdminAuthLogout(w http.ResponseWriter, r *http.Request) {
	c, _ := r.Cookie(a.AuthConfig.AdminCookieName)
	var raw string
	if c != nil {
		raw = c.Value
	}
	if err := a.Tokens.LogoutAdmin(r.Context(), raw); err != nil {
		writeError(w, err)
		return
	}
	setCookie(w, a.AuthConfig.ClearCookie(a.AuthConfig.AdminCookieName))
	writeNoContent(w)
}

// --- Recipient OTP (spec §4.7 ceremony 1) ---

type recipientIdentityRequest struct {
	Identity string `json:"identity"`
}

func (a *api) handleRecipientAuthStart(w http.ResponseWriter, r *http.Request) {
	var req recipientIdentityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	// Start never reports whether identity matched a recipient.
	if err := a.OTP.Start(r.Context(), req.Identity); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}

func (a *api) handlePortalOTPResend(w http.ResponseWriter, r *http.Request) {
	var req recipientIdentityRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if err := a.OTP.Resend(r.Context(), req.Identity); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}

type recipientVerifyRequest struct {
	Identity string `json:"identity"`
	Otp      string `json:"otp"`
}

func (a *api) handleRecipientAuthVerify(w http.ResponseWriter, r *http.Request) {
	var req recipientVerifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	raw, err := a.OTP.Verify(r.Context(), req.Identity, req.Otp)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrOTPExpired):
			writeError(w, apierrExpired("otp expired"))
		case errors.Is(err, auth.ErrOTPInvalid):
			writeError(w, apierrInvalidCode("otp invalid or already used"))
		default:
			writeError(w, err)
		}
		return
	}

	setCookie(w, a.AuthConfig.NewCookie(a.AuthConfig.RecipientCookieName, raw, a.AuthConfig.RecipientSessionTTL))
	writeNoContent(w)
}

func (a *api) handleRecipientAuthLogout(w http.ResponseWriter, r *http.Request) {
	c, _ := r.Cookie(a.AuthConfig.RecipientCookieName)
	var raw string
	if c != nil {
		raw = c.Value
	}
	if err := a.OTP.Logout(r.Context(), raw); err != nil {
		writeError(w, err)
		return
	}
	setCookie(w, a.AuthConfig.ClearCookie(a.AuthConfig.RecipientCookieName))
	writeNoContent(w)
}

// --- CLI device code (spec §4.7 ceremony 3) ---

type deviceStartRequest struct {
	DeviceName string `json:"deviceName"`
}

type deviceStartResponse struct {
	DeviceCode      string `json:"device_code"`
	UserCode        string `json:"user_code"`
	VerificationURI string `json:"verification_uri"`
	ExpiresIn       int    `json:"expires_in"`
	Interval        int    `json:"interval"`
}

func (a *api) handleDeviceStart(w http.ResponseWriter, r *http.Request) {
	var req deviceStartRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	verificationURI := requestOrigin(r) + "/auth/cli/device/approve"

	result, err := a.DeviceCode.Start(r.Context(), req.DeviceName, verificationURI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, deviceStartResponse{
		DeviceCode: result.DeviceCode, UserCode: result.UserCode,
		VerificationURI: result.VerificationURI, ExpiresIn: result.ExpiresIn, Interval: result.Interval,
	})
}

type deviceApproveRequest struct {
	UserCode string `json:"user_code"`
}

func (a *api) handleDeviceApprove(w http.ResponseWriter, r *http.Request) {
	var req deviceApproveRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, unauthorized("admin session required"))
		return
	}

	if err := a.DeviceCode.Approve(r.Context(), req.UserCode, user.UserID); err != nil {
		if errors.Is(err, auth.ErrUserCodeInvalid) {
			writeError(w, apierrInvalidCode("unknown or expired user code"))
			return
		}
		writeError(w, err)
		return
	}
	writeNoContent(w)
}

type devicePollRequest struct {
	DeviceCode string `json:"device_code"`
}

type devicePollResponse struct {
	Status string `json:"status"`
	Token  string `json:"token,omitempty"`
}

func (a *api) handleDevicePoll(w http.ResponseWriter, r *http.Request) {
	var req devicePollRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}

	outcome, token, err := a.DeviceCode.Poll(r.Context(), req.DeviceCode)
	if err != nil {
		writeError(w, err)
		return
	}

	switch outcome {
	case auth.PollPending:
		writeJSON(w, http.StatusAccepted, devicePollResponse{Status: string(outcome)})
	case auth.PollApproved:
		writeJSON(w, http.StatusOK, devicePollResponse{Status: string(outcome), Token: token})
	case auth.PollInvalid:
		writeError(w, apierrInvalidCode("invalid device code"))
	case auth.PollExpired:
		writeError(w, apierrExpired("device code expired"))
	case auth.PollRevoked:
		writeError(w, apierrRevoked("device code revoked"))
	case auth.PollSlowDown:
		writeError(w, apierrSlowDown("polling too fast"))
	default:
		writeError(w, apierrUnavailable("device code unavailable"))
	}
}

// --- API token management ---

type createTokenRequest struct {
	Name      string   `json:"name"`
	Scopes    []string `json:"scopes"`
	TTLMinute int      `json:"ttlMinutes,omitempty"`
}

type createTokenResponse struct {
	Token  string   `json:"token"`
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

func (a *api) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	var req createTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, unauthorized("admin session required"))
		return
	}

	var ttl *time.Duration
	if req.TTLMinute > 0 {
		d := time.Duration(req.TTLMinute) * time.Minute
		ttl = &d
	}

	raw, tok, err := a.TokenMgr.Create(r.Context(), user.UserID, req.Name, req.Scopes, ttl)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createTokenResponse{Token: raw, ID: tok.ID, Name: tok.Name, Scopes: tok.Scopes})
}

func (a *api) handleListTokens(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, unauthorized("admin session required"))
		return
	}
	toks, err := a.TokenMgr.List(r.Context(), user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toks)
}

func (a *api) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	tokenID := mux.Vars(r)["tokenId"]
	if err := a.TokenMgr.Revoke(r.Context(), tokenID); err != nil {
		writeError(w, err)
		return
	}
	writeNoContent(w)
}

type rotateTokenRequest struct {
	TokenID string `json:"tokenId"`
}

func (a *api) handleRotateToken(w http.ResponseWriter, r *http.Request) {
	var req rotateTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, unauthorized("admin session required"))
		return
	}

	toks, err := a.TokenMgr.List(r.Context(), user.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	idx := -1
	for i := range toks {
		if toks[i].ID == req.TokenID {
			idx = i
			break
		}
	}
	if idx == -1 {
		writeError(w, notFound("token not found"))
		return
	}

	raw, tok, err := a.TokenMgr.Rotate(r.Context(), toks[idx])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createTokenResponse{Token: raw, ID: tok.ID, Name: tok.Name, Scopes: tok.Scopes})
}
