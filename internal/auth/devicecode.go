package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/latchflow/latchflow/internal/hashutil"
	"github.com/latchflow/latchflow/internal/model"
)

// deviceCodeBytes/userCodeDigits size the two codes spec §4.7 ceremony
// 3 hands back: a long, unguessable device_code and a short,
// human-typeable user_code.
const (
	deviceCodeBytes = 32
	userCodeDigits  = 8

	// deviceTokenCacheSize bounds the raw-token cache; entries are
	// evicted on the single successful Poll read well before this
	// fills, so the bound only guards against abandoned approvals.
	deviceTokenCacheSize = 4096
)

// DeviceCodeService implements spec §4.7 ceremony 3: CLI login via
// device-code polling, mirroring OAuth 2.0 Device Authorization Grant
// semantics. The raw API token is cached process-locally, single-use,
// exactly as spec §5's deviceTokenCache describes — it is never
// persisted in cleartext and does not survive a restart by design.
// Grounded on internal/infrastructure/template/cache.go's L1
// lru.Cache[K,V] usage.
type DeviceCodeService struct {
	store  Store
	cfg    Config
	tokens *TokenService

	cache *lru.Cache[string, string] // deviceCodeHash -> raw API token, single read
}

// NewDeviceCodeService constructs a DeviceCodeService.
func NewDeviceCodeService(store Store, cfg Config, tokens *TokenService) *DeviceCodeService {
	cache, err := lru.New[string, string](deviceTokenCacheSize)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// deviceTokenCacheSize never is.
		panic(fmt.Sprintf("auth: device token cache: %v", err))
	}
	return &DeviceCodeService{store: store, cfg: cfg, tokens: tokens, cache: cache}
}

// DeviceStartResult is what device/start returns to the CLI.
type DeviceStartResult struct {
	DeviceCode      string
	UserCode        string
	VerificationURI string
	ExpiresIn       int
	Interval        int
}

// Start begins a device-code login for deviceName, returning the
// device/user code pair.
func (s *DeviceCodeService) Start(ctx context.Context, deviceName, verificationURI string) (DeviceStartResult, error) {
	deviceCode, err := hashutil.RandomToken(deviceCodeBytes)
	if err != nil {
		return DeviceStartResult{}, fmt.Errorf("auth: generate device code: %w", err)
	}
	userCode, err := hashutil.NumericOTP(userCodeDigits)
	if err != nil {
		return DeviceStartResult{}, fmt.Errorf("auth: generate user code: %w", err)
	}

	if err := s.store.CreateDeviceAuth(ctx, model.DeviceAuth{
		DeviceCodeHash:  hashutil.SHA256HexString(deviceCode),
		UserCode:        userCode,
		DeviceName:      deviceName,
		Status:          model.DeviceAuthPending,
		IntervalSeconds: int(s.cfg.DeviceCodeInterval.Seconds()),
		ExpiresAt:       time.Now().Add(s.cfg.DeviceCodeTTL),
	}); err != nil {
		return DeviceStartResult{}, fmt.Errorf("auth: store device auth: %w", err)
	}

	return DeviceStartResult{
		DeviceCode:      deviceCode,
		UserCode:        userCode,
		VerificationURI: verificationURI,
		ExpiresIn:       int(s.cfg.DeviceCodeTTL.Seconds()),
		Interval:        int(s.cfg.DeviceCodeInterval.Seconds()),
	}, nil
}

// ErrUserCodeInvalid is returned when Approve can't resolve userCode.
var ErrUserCodeInvalid = errors.New("auth: unknown or expired user code")

// Approve requires an authenticated admin (adminUserID) and mints the
// ApiToken that device/poll will hand back exactly once.
func (s *DeviceCodeService) Approve(ctx context.Context, userCode, adminUserID string) error {
	da, found, err := s.store.FindDeviceAuthByUserCode(ctx, userCode)
	if err != nil {
		return fmt.Errorf("auth: find device auth: %w", err)
	}
	if !found || da.Status != model.DeviceAuthPending || time.Now().After(da.ExpiresAt) {
		return ErrUserCodeInvalid
	}

	raw, tok, err := s.issueToken(ctx, adminUserID, "cli: "+da.DeviceName, s.cfg.APITokenDefaultScope)
	if err != nil {
		return fmt.Errorf("auth: issue device token: %w", err)
	}

	if err := s.store.ApproveDeviceAuth(ctx, da.ID, adminUserID, tok.ID); err != nil {
		return fmt.Errorf("auth: mark device auth approved: %w", err)
	}

	s.cache.Add(da.DeviceCodeHash, raw)
	return nil
}

// PollOutcome enumerates device/poll's result kinds.
type PollOutcome string

const (
	PollPending  PollOutcome = "PENDING"
	PollApproved PollOutcome = "APPROVED"
	PollInvalid  PollOutcome = "INVALID_CODE"
	PollExpired  PollOutcome = "EXPIRED"
	PollRevoked  PollOutcome = "REVOKED"
	PollUnavail  PollOutcome = "UNAVAILABLE"
	PollSlowDown PollOutcome = "SLOW_DOWN"
)

// Poll implements device/poll's state machine, evicting the cached raw
// token on the single successful read.
func (s *DeviceCodeService) Poll(ctx context.Context, deviceCode string) (PollOutcome, string, error) {
	hash := hashutil.SHA256HexString(deviceCode)
	da, found, err := s.store.FindDeviceAuthByDeviceCodeHash(ctx, hash)
	if err != nil {
		return "", "", fmt.Errorf("auth: find device auth: %w", err)
	}
	if !found {
		return PollInvalid, "", nil
	}

	if da.LastPollAt != nil && time.Since(*da.LastPollAt) < time.Duration(da.IntervalSeconds)*time.Second {
		return PollSlowDown, "", nil
	}
	if err := s.store.TouchDeviceAuthPoll(ctx, da.ID, time.Now()); err != nil {
		return "", "", fmt.Errorf("auth: touch poll time: %w", err)
	}

	switch da.Status {
	case model.DeviceAuthExpired:
		return PollExpired, "", nil
	case model.DeviceAuthRevoked:
		return PollRevoked, "", nil
	case model.DeviceAuthPending:
		if time.Now().After(da.ExpiresAt) {
			return PollExpired, "", nil
		}
		return PollPending, "", nil
	case model.DeviceAuthApproved:
		raw, ok := s.cache.Get(hash)
		if ok {
			s.cache.Remove(hash)
		}
		if !ok {
			// Already delivered once, or this process never held it
			// (e.g. after a restart) — the cache's single-use,
			// non-persistent contract makes this terminal.
			return PollUnavail, "", nil
		}
		return PollApproved, raw, nil
	default:
		return PollUnavail, "", nil
	}
}

func (s *DeviceCodeService) issueToken(ctx context.Context, userID, name string, scopes []string) (string, model.ApiToken, error) {
	return issueAPIToken(ctx, s.store, s.cfg, userID, name, scopes, nil)
}
