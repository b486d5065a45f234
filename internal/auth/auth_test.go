package auth_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/auth"
	"github.com/latchflow/latchflow/internal/mailer"
	"github.com/latchflow/latchflow/internal/model"
)

type fakeStore struct {
	mu sync.Mutex

	users       map[string]model.User // email -> user
	recipients  map[string]string     // identity -> recipientID
	otps        map[string]model.RecipientOtp
	recipSess   map[string]model.RecipientSession
	magicLinks  map[string]model.MagicLink
	adminSess   map[string]model.Session
	deviceAuths map[string]model.DeviceAuth // by id
	apiTokens   map[string]model.ApiToken
	nextID      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:       map[string]model.User{},
		recipients:  map[string]string{},
		otps:        map[string]model.RecipientOtp{},
		recipSess:   map[string]model.RecipientSession{},
		magicLinks:  map[string]model.MagicLink{},
		adminSess:   map[string]model.Session{},
		deviceAuths: map[string]model.DeviceAuth{},
		apiTokens:   map[string]model.ApiToken{},
	}
}

func (s *fakeStore) id() string {
	s.nextID++
	return uuid.NewString()
}

func (s *fakeStore) UpsertUserByEmail(_ context.Context, email string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[email]; ok {
		return u, nil
	}
	u := model.User{ID: s.id(), Email: email, CreatedAt: time.Now()}
	s.users[email] = u
	return u, nil
}

func (s *fakeStore) FindRecipientByIdentity(_ context.Context, identity string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.recipients[identity]
	return id, ok, nil
}

func (s *fakeStore) DeleteActiveOTPsForRecipient(_ context.Context, recipientID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k, o := range s.otps {
		if o.RecipientID == recipientID {
			delete(s.otps, k)
		}
	}
	return nil
}

func (s *fakeStore) CreateOTP(_ context.Context, otp model.RecipientOtp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	otp.ID = s.id()
	s.otps[otp.ID] = otp
	return nil
}

func (s *fakeStore) FindOTPByHash(_ context.Context, codeHash string) (model.RecipientOtp, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range s.otps {
		if o.CodeHash == codeHash {
			return o, true, nil
		}
	}
	return model.RecipientOtp{}, false, nil
}

func (s *fakeStore) IncrementOTPAttempts(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.otps[id]
	o.Attempts++
	s.otps[id] = o
	return o.Attempts, nil
}

func (s *fakeStore) DeleteOTP(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.otps, id)
	return nil
}

func (s *fakeStore) CreateRecipientSession(_ context.Context, sess model.RecipientSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = s.id()
	s.recipSess[sess.ID] = sess
	return nil
}

func (s *fakeStore) FindRecipientSessionByHash(_ context.Context, tokenHash string) (model.RecipientSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.recipSess {
		if sess.TokenHash == tokenHash {
			return sess, true, nil
		}
	}
	return model.RecipientSession{}, false, nil
}

func (s *fakeStore) RevokeRecipientSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.recipSess[id]
	now := time.Now()
	sess.RevokedAt = &now
	s.recipSess[id] = sess
	return nil
}

func (s *fakeStore) CreateMagicLink(_ context.Context, link model.MagicLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	link.ID = s.id()
	s.magicLinks[link.ID] = link
	return nil
}

func (s *fakeStore) FindMagicLinkByHash(_ context.Context, tokenHash string) (model.MagicLink, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, l := range s.magicLinks {
		if l.TokenHash == tokenHash {
			return l, true, nil
		}
	}
	return model.MagicLink{}, false, nil
}

func (s *fakeStore) ConsumeMagicLink(_ context.Context, id string, consumedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	l := s.magicLinks[id]
	l.ConsumedAt = &consumedAt
	s.magicLinks[id] = l
	return nil
}

func (s *fakeStore) CreateAdminSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.ID = s.id()
	s.adminSess[sess.ID] = sess
	return nil
}

func (s *fakeStore) FindAdminSessionByHash(_ context.Context, tokenHash string) (model.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sess := range s.adminSess {
		if sess.TokenHash == tokenHash {
			return sess, true, nil
		}
	}
	return model.Session{}, false, nil
}

func (s *fakeStore) RevokeAdminSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.adminSess[id]
	now := time.Now()
	sess.RevokedAt = &now
	s.adminSess[id] = sess
	return nil
}

func (s *fakeStore) CreateDeviceAuth(_ context.Context, da model.DeviceAuth) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	da.ID = s.id()
	s.deviceAuths[da.ID] = da
	return nil
}

func (s *fakeStore) FindDeviceAuthByUserCode(_ context.Context, userCode string) (model.DeviceAuth, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, da := range s.deviceAuths {
		if da.UserCode == userCode {
			return da, true, nil
		}
	}
	return model.DeviceAuth{}, false, nil
}

func (s *fakeStore) FindDeviceAuthByDeviceCodeHash(_ context.Context, hash string) (model.DeviceAuth, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, da := range s.deviceAuths {
		if da.DeviceCodeHash == hash {
			return da, true, nil
		}
	}
	return model.DeviceAuth{}, false, nil
}

func (s *fakeStore) ApproveDeviceAuth(_ context.Context, id, approvedByUserID, issuedTokenID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	da := s.deviceAuths[id]
	da.Status = model.DeviceAuthApproved
	da.ApprovedByUser = &approvedByUserID
	da.IssuedTokenID = &issuedTokenID
	s.deviceAuths[id] = da
	return nil
}

func (s *fakeStore) TouchDeviceAuthPoll(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	da := s.deviceAuths[id]
	da.LastPollAt = &at
	s.deviceAuths[id] = da
	return nil
}

func (s *fakeStore) CreateAPIToken(_ context.Context, tok model.ApiToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok.ID = s.id()
	s.apiTokens[tok.ID] = tok
	return nil
}

func (s *fakeStore) FindAPITokenByHash(_ context.Context, tokenHash string) (model.ApiToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.apiTokens {
		if t.TokenHash == tokenHash {
			return t, true, nil
		}
	}
	return model.ApiToken{}, false, nil
}

func (s *fakeStore) ListAPITokensForUser(_ context.Context, userID string) ([]model.ApiToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ApiToken
	for _, t := range s.apiTokens {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *fakeStore) RevokeAPIToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.apiTokens[id]
	now := time.Now()
	t.RevokedAt = &now
	s.apiTokens[id] = t
	return nil
}

func (s *fakeStore) TouchAPITokenLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.apiTokens[id]
	t.LastUsedAt = &at
	s.apiTokens[id] = t
	return nil
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
}

func (m *fakeMailer) Send(_ context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) last() mailer.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sent[len(m.sent)-1]
}

func TestOTPStartIsSilentOnUnknownRecipient(t *testing.T) {
	store := newFakeStore()
	mail := &fakeMailer{}
	tokens := auth.NewTokenService(store, auth.DefaultConfig())
	otps := auth.NewOTPService(store, mail, auth.DefaultConfig(), tokens)

	err := otps.Start(context.Background(), "ghost@example.com")
	require.NoError(t, err)
	assert.Empty(t, mail.sent, "unknown recipient must never trigger a send")
}

func TestOTPStartVerifyRoundTrip(t *testing.T) {
	store := newFakeStore()
	store.recipients["alice@example.com"] = "recipient-1"
	mail := &fakeMailer{}
	cfg := auth.DefaultConfig()
	tokens := auth.NewTokenService(store, cfg)
	otps := auth.NewOTPService(store, mail, cfg, tokens)

	require.NoError(t, otps.Start(context.Background(), "alice@example.com"))
	require.Len(t, mail.sent, 1)
	body := mail.last().TextBody

	// The code is only ever held as a SHA-256 hash in the store; pull
	// the plaintext value the service actually emailed instead.
	require.Contains(t, body, "code is ")
	code := extractCode(t, body)

	raw, err := otps.Verify(context.Background(), "alice@example.com", code)
	require.NoError(t, err)
	assert.NotEmpty(t, raw)

	_, err = otps.Verify(context.Background(), "alice@example.com", code)
	assert.Error(t, err, "an OTP must not verify twice")
}

func TestOTPVerifyRejectsAfterMaxAttempts(t *testing.T) {
	store := newFakeStore()
	store.recipients["alice@example.com"] = "recipient-1"
	mail := &fakeMailer{}
	cfg := auth.DefaultConfig()
	tokens := auth.NewTokenService(store, cfg)
	otps := auth.NewOTPService(store, mail, cfg, tokens)

	require.NoError(t, otps.Start(context.Background(), "alice@example.com"))

	for i := 0; i < cfg.OTPMaxAttempts; i++ {
		_, err := otps.Verify(context.Background(), "alice@example.com", "000000")
		assert.ErrorIs(t, err, auth.ErrOTPInvalid)
	}
	_, err := otps.Verify(context.Background(), "alice@example.com", "000000")
	assert.Error(t, err)
}

func extractCode(t *testing.T, body string) string {
	t.Helper()
	const marker = "code is "
	idx := len(marker)
	start := indexOf(body, marker) + idx
	end := start
	for end < len(body) && body[end] != '.' {
		end++
	}
	return body[start:end]
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestMagicLinkDevModeReturnsLoginURL(t *testing.T) {
	store := newFakeStore()
	mail := &fakeMailer{}
	cfg := auth.DefaultConfig()
	cfg.AllowDevAuth = true
	tokens := auth.NewTokenService(store, cfg)
	links := auth.NewMagicLinkService(store, mail, cfg, tokens)

	result, err := links.Start(context.Background(), "admin@example.com", "https://app.example.com/auth/callback")
	require.NoError(t, err)
	assert.Contains(t, result.LoginURL, "https://app.example.com/auth/callback?token=")
	assert.Empty(t, mail.sent, "dev-allow mode must not also send an email")
}

func TestMagicLinkCallbackConsumesOnce(t *testing.T) {
	store := newFakeStore()
	mail := &fakeMailer{}
	cfg := auth.DefaultConfig()
	cfg.AllowDevAuth = true
	tokens := auth.NewTokenService(store, cfg)
	links := auth.NewMagicLinkService(store, mail, cfg, tokens)

	result, err := links.Start(context.Background(), "admin@example.com", "https://app.example.com/cb")
	require.NoError(t, err)
	token := tokenFromURL(result.LoginURL)
	require.NotEmpty(t, token)

	rawSession, err := links.Callback(context.Background(), token)
	require.NoError(t, err)
	assert.NotEmpty(t, rawSession)

	_, err = links.Callback(context.Background(), token)
	assert.ErrorIs(t, err, auth.ErrMagicLinkInvalid)
}

func tokenFromURL(u string) string {
	const marker = "token="
	idx := indexOf(u, marker)
	if idx < 0 {
		return ""
	}
	return u[idx+len(marker):]
}

// TestDeviceCodeFlow exercises the CLI device-authorization flow end
// to end: start, an admin approves, and the CLI's poll receives the
// raw token exactly once.
func TestDeviceCodeFlow(t *testing.T) {
	store := newFakeStore()
	cfg := auth.DefaultConfig()
	cfg.DeviceCodeInterval = time.Millisecond
	tokens := auth.NewTokenService(store, cfg)
	devices := auth.NewDeviceCodeService(store, cfg, tokens)
	ctx := context.Background()

	start, err := devices.Start(ctx, "my-laptop", "https://app.example.com/device")
	require.NoError(t, err)
	require.NotEmpty(t, start.DeviceCode)
	require.NotEmpty(t, start.UserCode)

	outcome, raw, err := devices.Poll(ctx, start.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, auth.PollPending, outcome)
	assert.Empty(t, raw)

	time.Sleep(2 * time.Millisecond)
	require.NoError(t, devices.Approve(ctx, start.UserCode, "admin-1"))

	outcome, raw, err = devices.Poll(ctx, start.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, auth.PollApproved, outcome)
	assert.NotEmpty(t, raw)

	time.Sleep(2 * time.Millisecond)
	outcome, raw, err = devices.Poll(ctx, start.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, auth.PollUnavail, outcome, "the raw token is single-use, even to the legitimate poller")
	assert.Empty(t, raw)
}

func TestDeviceCodePollSlowDown(t *testing.T) {
	store := newFakeStore()
	cfg := auth.DefaultConfig()
	cfg.DeviceCodeInterval = time.Hour
	tokens := auth.NewTokenService(store, cfg)
	devices := auth.NewDeviceCodeService(store, cfg, tokens)
	ctx := context.Background()

	start, err := devices.Start(ctx, "my-laptop", "https://app.example.com/device")
	require.NoError(t, err)

	_, _, err = devices.Poll(ctx, start.DeviceCode)
	require.NoError(t, err)

	outcome, _, err := devices.Poll(ctx, start.DeviceCode)
	require.NoError(t, err)
	assert.Equal(t, auth.PollSlowDown, outcome)
}

func TestMiddlewareBearerRequiresScope(t *testing.T) {
	store := newFakeStore()
	cfg := auth.DefaultConfig()
	raw, _, err := auth.NewTokenManager(store, cfg).Create(context.Background(), "user-1", "ci", []string{string(model.ScopeFilesRead)}, nil)
	require.NoError(t, err)

	policy := auth.NewPolicy()
	mw := auth.NewMiddleware(store, auth.NewTokenService(store, cfg), policy, noopDecisionLogger{}, cfg)

	called := false
	handler := mw.RequireAdminOrAPIToken(auth.RequireOptions{
		PolicySignature: "GET /api/files",
		Scopes:          []model.Scope{model.ScopeFilesWrite},
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.False(t, called, "missing scope must deny")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMiddlewareBearerWithSufficientScopeAllows(t *testing.T) {
	store := newFakeStore()
	cfg := auth.DefaultConfig()
	raw, _, err := auth.NewTokenManager(store, cfg).Create(context.Background(), "user-1", "ci", []string{string(model.ScopeFilesRead)}, nil)
	require.NoError(t, err)

	policy := auth.NewPolicy()
	mw := auth.NewMiddleware(store, auth.NewTokenService(store, cfg), policy, noopDecisionLogger{}, cfg)

	called := false
	handler := mw.RequireAdminOrAPIToken(auth.RequireOptions{
		PolicySignature: "GET /api/files",
		Scopes:          []model.Scope{model.ScopeFilesRead},
	}, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		u, ok := auth.UserFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "user-1", u.UserID)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	req.Header.Set("Authorization", "Bearer "+raw)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejectsMissingCredentials(t *testing.T) {
	store := newFakeStore()
	cfg := auth.DefaultConfig()
	policy := auth.NewPolicy()
	mw := auth.NewMiddleware(store, auth.NewTokenService(store, cfg), policy, noopDecisionLogger{}, cfg)

	handler := mw.RequireAdminOrAPIToken(auth.RequireOptions{PolicySignature: "GET /api/files"},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { t.Fatal("must not be called") }))

	req := httptest.NewRequest(http.MethodGet, "/api/files", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

type noopDecisionLogger struct{}

func (noopDecisionLogger) LogDecision(context.Context, string, string, string, string) {}
