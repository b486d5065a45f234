package httpapi_test

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/latchflow/latchflow/internal/model"
)

// fakeAuthStore satisfies auth.Store for the flows httpapi's tests
// actually exercise: recipient session issuance/validation behind the
// portal cookie and bearer API-token lookup. Every other method is
// implemented but unused,
// following internal/auth/auth_test.go's fakeStore convention of a
// full map-plus-mutex fake rather than a partial stub.
type fakeAuthStore struct {
	mu sync.Mutex

	nextID int

	recipientSessions map[string]model.RecipientSession
	adminSessions     map[string]model.Session
	apiTokens         map[string]model.ApiToken
}

func newFakeAuthStore() *fakeAuthStore {
	return &fakeAuthStore{
		recipientSessions: map[string]model.RecipientSession{},
		adminSessions:     map[string]model.Session{},
		apiTokens:         map[string]model.ApiToken{},
	}
}

func (s *fakeAuthStore) id() string {
	s.nextID++
	return "id-" + strconv.Itoa(s.nextID)
}

func (s *fakeAuthStore) UpsertUserByEmail(_ context.Context, email string) (model.User, error) {
	return model.User{ID: "user-" + email, Email: email}, nil
}

func (s *fakeAuthStore) FindRecipientByIdentity(_ context.Context, emailOrID string) (string, bool, error) {
	return emailOrID, true, nil
}

func (s *fakeAuthStore) DeleteActiveOTPsForRecipient(_ context.Context, _ string) error { return nil }
func (s *fakeAuthStore) CreateOTP(_ context.Context, _ model.RecipientOtp) error        { return nil }
func (s *fakeAuthStore) FindOTPByHash(_ context.Context, _ string) (model.RecipientOtp, bool, error) {
	return model.RecipientOtp{}, false, nil
}
func (s *fakeAuthStore) IncrementOTPAttempts(_ context.Context, _ string) (int, error) { return 0, nil }
func (s *fakeAuthStore) DeleteOTP(_ context.Context, _ string) error                   { return nil }

func (s *fakeAuthStore) CreateRecipientSession(_ context.Context, sess model.RecipientSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = s.id()
	}
	s.recipientSessions[sess.TokenHash] = sess
	return nil
}

func (s *fakeAuthStore) FindRecipientSessionByHash(_ context.Context, tokenHash string) (model.RecipientSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.recipientSessions[tokenHash]
	return sess, ok, nil
}

func (s *fakeAuthStore) RevokeRecipientSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, sess := range s.recipientSessions {
		if sess.ID == id {
			now := time.Now()
			sess.RevokedAt = &now
			s.recipientSessions[hash] = sess
		}
	}
	return nil
}

func (s *fakeAuthStore) CreateMagicLink(_ context.Context, _ model.MagicLink) error { return nil }
func (s *fakeAuthStore) FindMagicLinkByHash(_ context.Context, _ string) (model.MagicLink, bool, error) {
	return model.MagicLink{}, false, nil
}
func (s *fakeAuthStore) ConsumeMagicLink(_ context.Context, _ string, _ time.Time) error { return nil }

func (s *fakeAuthStore) CreateAdminSession(_ context.Context, sess model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess.ID == "" {
		sess.ID = s.id()
	}
	s.adminSessions[sess.TokenHash] = sess
	return nil
}

func (s *fakeAuthStore) FindAdminSessionByHash(_ context.Context, tokenHash string) (model.Session, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.adminSessions[tokenHash]
	return sess, ok, nil
}

func (s *fakeAuthStore) RevokeAdminSession(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, sess := range s.adminSessions {
		if sess.ID == id {
			now := time.Now()
			sess.RevokedAt = &now
			s.adminSessions[hash] = sess
		}
	}
	return nil
}

func (s *fakeAuthStore) CreateDeviceAuth(_ context.Context, _ model.DeviceAuth) error { return nil }
func (s *fakeAuthStore) FindDeviceAuthByUserCode(_ context.Context, _ string) (model.DeviceAuth, bool, error) {
	return model.DeviceAuth{}, false, nil
}
func (s *fakeAuthStore) FindDeviceAuthByDeviceCodeHash(_ context.Context, _ string) (model.DeviceAuth, bool, error) {
	return model.DeviceAuth{}, false, nil
}
func (s *fakeAuthStore) ApproveDeviceAuth(_ context.Context, _, _, _ string) error { return nil }
func (s *fakeAuthStore) TouchDeviceAuthPoll(_ context.Context, _ string, _ time.Time) error {
	return nil
}

func (s *fakeAuthStore) CreateAPIToken(_ context.Context, tok model.ApiToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.ID == "" {
		tok.ID = s.id()
	}
	s.apiTokens[tok.TokenHash] = tok
	return nil
}

func (s *fakeAuthStore) FindAPITokenByHash(_ context.Context, tokenHash string) (model.ApiToken, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.apiTokens[tokenHash]
	return tok, ok, nil
}

func (s *fakeAuthStore) ListAPITokensForUser(_ context.Context, userID string) ([]model.ApiToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ApiToken
	for _, tok := range s.apiTokens {
		if tok.UserID == userID {
			out = append(out, tok)
		}
	}
	return out, nil
}

func (s *fakeAuthStore) RevokeAPIToken(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, tok := range s.apiTokens {
		if tok.ID == id {
			now := time.Now()
			tok.RevokedAt = &now
			s.apiTokens[hash] = tok
		}
	}
	return nil
}

func (s *fakeAuthStore) TouchAPITokenLastUsed(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for hash, tok := range s.apiTokens {
		if tok.ID == id {
			tok.LastUsedAt = &at
			s.apiTokens[hash] = tok
		}
	}
	return nil
}
