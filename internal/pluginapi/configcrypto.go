package pluginapi

import (
	"encoding/json"
	"fmt"

	"github.com/latchflow/latchflow/internal/obslog"
)

// EncryptionMode selects the config transformation of spec §4.1.
type EncryptionMode string

const (
	ModeNone   EncryptionMode = "none"
	ModeAESGCM EncryptionMode = "aes-gcm"
)

// EncryptOptions parameterizes Encrypt/Decrypt.
type EncryptOptions struct {
	Mode EncryptionMode
}

// ErrAESGCMNotImplemented is returned by Decrypt/Encrypt when Mode is
// aes-gcm; per the open question in spec §9(b), this implementation
// refuses to start rather than pass ciphertext-shaped bytes through as
// if they were plaintext.
var ErrAESGCMNotImplemented = fmt.Errorf("pluginapi: aes-gcm config encryption is not implemented; refuse to start rather than silently pass through")

// Encrypt transforms cfg per opts.Mode. With ModeNone it is the
// identity function.
func Encrypt(cfg json.RawMessage, opts EncryptOptions) (json.RawMessage, error) {
	switch opts.Mode {
	case ModeNone, "":
		return cfg, nil
	case ModeAESGCM:
		return nil, ErrAESGCMNotImplemented
	default:
		return nil, fmt.Errorf("pluginapi: unknown encryption mode %q", opts.Mode)
	}
}

// Decrypt reverses Encrypt.
func Decrypt(cfg json.RawMessage, opts EncryptOptions) (json.RawMessage, error) {
	switch opts.Mode {
	case ModeNone, "":
		return cfg, nil
	case ModeAESGCM:
		return nil, ErrAESGCMNotImplemented
	default:
		return nil, fmt.Errorf("pluginapi: unknown encryption mode %q", opts.Mode)
	}
}

// ResolveConfigEncryption reads the configured mode and validates it is
// usable, degrading to ModeNone with a warning on any resolution failure
// (spec §4.1: "A failing resolveConfigEncryption degrades to mode:none
// with a warning"). It does NOT degrade an explicit, recognized
// "aes-gcm" request — that case must fail startup via the caller
// checking the returned error, not be silently downgraded.
func ResolveConfigEncryption(logger obslog.Logger, configuredMode string) (EncryptOptions, error) {
	switch EncryptionMode(configuredMode) {
	case ModeNone, "":
		return EncryptOptions{Mode: ModeNone}, nil
	case ModeAESGCM:
		return EncryptOptions{Mode: ModeAESGCM}, ErrAESGCMNotImplemented
	default:
		logger.Warn("unknown config encryption mode, degrading to none", "configured_mode", configuredMode)
		return EncryptOptions{Mode: ModeNone}, nil
	}
}
