package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/latchflow/latchflow/internal/hashutil"
	"github.com/latchflow/latchflow/internal/mailer"
	"github.com/latchflow/latchflow/internal/model"
)

// OTPService implements spec §4.7 ceremony 1: recipient one-time-code
// login.
type OTPService struct {
	store  Store
	mail   Mailer
	cfg    Config
	tokens *TokenService
}

// NewOTPService constructs an OTPService.
func NewOTPService(store Store, mail Mailer, cfg Config, tokens *TokenService) *OTPService {
	return &OTPService{store: store, mail: mail, cfg: cfg, tokens: tokens}
}

// Start issues a fresh OTP for identity (email or recipient id) and
// emails it. It never reports whether identity matched a recipient —
// callers always respond 204.
func (s *OTPService) Start(ctx context.Context, identity string) error {
	recipientID, found, err := s.store.FindRecipientByIdentity(ctx, identity)
	if err != nil {
		return fmt.Errorf("auth: find recipient: %w", err)
	}
	if !found {
		return nil
	}
	return s.issue(ctx, recipientID, identity)
}

// Resend is Start's alias for the spec's separate resend entry point —
// same unconditional-204 semantics, always issuing a fresh code.
func (s *OTPService) Resend(ctx context.Context, identity string) error {
	return s.Start(ctx, identity)
}

func (s *OTPService) issue(ctx context.Context, recipientID, notifyAddress string) error {
	if err := s.store.DeleteActiveOTPsForRecipient(ctx, recipientID); err != nil {
		return fmt.Errorf("auth: clear prior otps: %w", err)
	}

	code, err := hashutil.NumericOTP(s.cfg.OTPLength)
	if err != nil {
		return fmt.Errorf("auth: generate otp: %w", err)
	}

	if err := s.store.CreateOTP(ctx, model.RecipientOtp{
		RecipientID: recipientID,
		CodeHash:    hashutil.SHA256HexString(code),
		ExpiresAt:   time.Now().Add(s.cfg.OTPTTL),
	}); err != nil {
		return fmt.Errorf("auth: store otp: %w", err)
	}

	return s.mail.Send(ctx, mailer.Message{
		To:       []mailer.Address{{Address: notifyAddress}},
		Subject:  "Your verification code",
		TextBody: fmt.Sprintf("Your code is %s. It expires in %d minutes.", code, int(s.cfg.OTPTTL.Minutes())),
	})
}

// ErrOTPInvalid and ErrOTPExpired classify Verify failures.
var (
	ErrOTPInvalid = fmt.Errorf("auth: otp invalid or already used")
	ErrOTPExpired = fmt.Errorf("auth: otp expired")
)

// Verify checks code against the active OTP for identity; on success
// it deletes the OTP and returns a freshly minted RecipientSession raw
// token (to be set as the lf_recipient_sess cookie).
func (s *OTPService) Verify(ctx context.Context, identity, code string) (rawSessionToken string, err error) {
	recipientID, found, err := s.store.FindRecipientByIdentity(ctx, identity)
	if err != nil {
		return "", fmt.Errorf("auth: find recipient: %w", err)
	}
	if !found {
		return "", ErrOTPInvalid
	}

	codeHash := hashutil.SHA256HexString(code)
	otp, found, err := s.store.FindOTPByHash(ctx, codeHash)
	if err != nil {
		return "", fmt.Errorf("auth: find otp: %w", err)
	}
	if !found || otp.RecipientID != recipientID {
		return "", ErrOTPInvalid
	}

	if time.Now().After(otp.ExpiresAt) {
		return "", ErrOTPExpired
	}

	attempts, err := s.store.IncrementOTPAttempts(ctx, otp.ID)
	if err != nil {
		return "", fmt.Errorf("auth: increment attempts: %w", err)
	}
	if attempts > s.cfg.OTPMaxAttempts {
		return "", ErrOTPInvalid
	}

	if err := s.store.DeleteOTP(ctx, otp.ID); err != nil {
		return "", fmt.Errorf("auth: delete otp: %w", err)
	}

	raw, _, err := s.tokens.IssueRecipientSession(ctx, recipientID)
	if err != nil {
		return "", fmt.Errorf("auth: issue session: %w", err)
	}
	return raw, nil
}

// Logout revokes the recipient session identified by rawSessionToken,
// idempotently: an already-revoked or unknown token is not an error.
func (s *OTPService) Logout(ctx context.Context, rawSessionToken string) error {
	if rawSessionToken == "" {
		return nil
	}
	sess, found, err := s.store.FindRecipientSessionByHash(ctx, hashutil.SHA256HexString(rawSessionToken))
	if err != nil {
		return fmt.Errorf("auth: find session: %w", err)
	}
	if !found {
		return nil
	}
	return s.store.RevokeRecipientSession(ctx, sess.ID)
}
