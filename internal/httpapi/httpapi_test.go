package httpapi_test

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/latchflow/latchflow/internal/auth"
	"github.com/latchflow/latchflow/internal/bundle"
	"github.com/latchflow/latchflow/internal/changelog"
	"github.com/latchflow/latchflow/internal/download"
	"github.com/latchflow/latchflow/internal/hashutil"
	"github.com/latchflow/latchflow/internal/httpapi"
	"github.com/latchflow/latchflow/internal/model"
	"github.com/latchflow/latchflow/internal/objstore"
	"github.com/latchflow/latchflow/internal/objstore/memdriver"
	"github.com/latchflow/latchflow/internal/ratelimit"
)

// sharedObjects is process-global because objstore.New registers
// Prometheus collectors on the default registry; constructing it once
// per test binary avoids a "duplicate metrics collector registration"
// panic across the package's many test functions.
var sharedObjects = objstore.New(memdriver.New(), "test")

// testLogger adapts slog's default logger, which satisfies
// obslog.Logger directly.
var testLogger = slog.Default()

// testEnv bundles everything a handler test needs: the router to drive
// requests through and the fakes backing it, for assertions and for
// minting auth credentials.
type testEnv struct {
	Router    *mux.Router
	Store     *fakeStore
	AuthStore *fakeAuthStore
	AuthCfg   auth.Config
	Tokens    *auth.TokenService
}

// newTestEnv wires a full httpapi.Deps over a fresh fakeStore, the
// shared in-memory object store, and a real bundle.Scheduler /
// download.Guard / changelog.Service / auth stack — mirroring how
// cmd/server constructs Deps, just backed by fakes instead of Postgres.
// Rate limiting, CORS, and compression are left off so tests exercise
// only the routing and handler logic.
func newTestEnv() *testEnv {
	store := newFakeStore()
	scheduler := bundle.New(store, sharedObjects, testLogger, 0)
	guard := download.New(downloadStoreAdapter{s: store}, sharedObjects, scheduler, testLogger)
	cl := changelog.New(fakeChangelogStore{}, 10, 50)

	authStore := newFakeAuthStore()
	cfg := auth.DefaultConfig()
	tokens := auth.NewTokenService(authStore, cfg)
	tokenMgr := auth.NewTokenManager(authStore, cfg)
	decision := auth.NewSlogDecisionLogger(testLogger)
	policy := auth.NewPolicy()
	mw := auth.NewMiddleware(authStore, tokens, policy, decision, cfg)
	mail := noopMailer{}
	otp := auth.NewOTPService(authStore, mail, cfg, tokens)
	magic := auth.NewMagicLinkService(authStore, mail, cfg, tokens)
	device := auth.NewDeviceCodeService(authStore, cfg, tokens)

	deps := httpapi.Deps{
		Store:      store,
		Objects:    sharedObjects,
		Scheduler:  scheduler,
		Guard:      guard,
		Changelog:  cl,
		AuthMW:     mw,
		OTP:        otp,
		MagicLink:  magic,
		DeviceCode: device,
		Tokens:     tokens,
		TokenMgr:   tokenMgr,
		AuthConfig: cfg,
		RateLimit:  ratelimit.New(0, 0),
		Logger:     testLogger,
	}

	router := httpapi.NewRouter(httpapi.Config{}, deps)
	return &testEnv{Router: router, Store: store, AuthStore: authStore, AuthCfg: cfg, Tokens: tokens}
}

// ctxBg is a tiny alias so test bodies calling into the fake store
// directly (to set up fixtures the HTTP surface can't create on its
// own, like a File with a pre-set ContentHash) don't need to import
// "context" individually.
func ctxBg() context.Context { return context.Background() }

// adminToken mints a raw bearer token with the given scopes, bypassing
// the CLI device-code/token-issuance ceremony the handlers also cover,
// since what these tests need is an authenticated admin caller, not a
// re-test of token minting itself.
func (e *testEnv) adminToken(scopes ...model.Scope) string {
	raw := hashutil.MustRandomToken(24)
	str := make([]string, len(scopes))
	for i, s := range scopes {
		str[i] = string(s)
	}
	_ = e.AuthStore.CreateAPIToken(context.Background(), model.ApiToken{
		UserID:    "admin-user",
		Name:      "test token",
		TokenHash: hashutil.SHA256HexString(raw),
		Scopes:    str,
	})
	return raw
}

// recipientCookie issues a portal session for recipientID and returns
// the cookie the portal routes expect.
func (e *testEnv) recipientCookie(recipientID string) *http.Cookie {
	raw, _, err := e.Tokens.IssueRecipientSession(context.Background(), recipientID)
	if err != nil {
		panic(err)
	}
	return &http.Cookie{Name: e.AuthCfg.RecipientCookieName, Value: raw}
}
