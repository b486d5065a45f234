package pluginapi_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latchflow/latchflow/internal/pluginapi"
)

func TestEncryptDecryptModeNoneIsIdentity(t *testing.T) {
	cfg := []byte(`{"a":1}`)
	enc, err := pluginapi.Encrypt(cfg, pluginapi.EncryptOptions{Mode: pluginapi.ModeNone})
	require.NoError(t, err)
	assert.Equal(t, cfg, []byte(enc))

	dec, err := pluginapi.Decrypt(enc, pluginapi.EncryptOptions{Mode: pluginapi.ModeNone})
	require.NoError(t, err)
	assert.Equal(t, cfg, []byte(dec))
}

func TestEncryptDecryptAESGCMRefuses(t *testing.T) {
	_, err := pluginapi.Encrypt([]byte(`{}`), pluginapi.EncryptOptions{Mode: pluginapi.ModeAESGCM})
	assert.ErrorIs(t, err, pluginapi.ErrAESGCMNotImplemented)

	_, err = pluginapi.Decrypt([]byte(`{}`), pluginapi.EncryptOptions{Mode: pluginapi.ModeAESGCM})
	assert.ErrorIs(t, err, pluginapi.ErrAESGCMNotImplemented)
}

func TestResolveConfigEncryptionDegradesUnknownModeToNone(t *testing.T) {
	logger := slog.Default()
	opts, err := pluginapi.ResolveConfigEncryption(logger, "bogus")
	require.NoError(t, err)
	assert.Equal(t, pluginapi.ModeNone, opts.Mode)
}

func TestResolveConfigEncryptionDoesNotSilentlyDowngradeAESGCM(t *testing.T) {
	logger := slog.Default()
	opts, err := pluginapi.ResolveConfigEncryption(logger, "aes-gcm")
	assert.ErrorIs(t, err, pluginapi.ErrAESGCMNotImplemented)
	assert.Equal(t, pluginapi.ModeAESGCM, opts.Mode)
}
