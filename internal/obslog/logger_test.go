package obslog_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/latchflow/latchflow/internal/obslog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"":        slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"bogus":   slog.LevelInfo,
	}
	for input, want := range cases {
		assert.Equal(t, want, obslog.ParseLevel(input), "input=%q", input)
	}
}

func TestNewDefaultsToStdoutJSON(t *testing.T) {
	l := obslog.New(obslog.Config{Level: "info"})
	assert.NotNil(t, l)

	var _ obslog.Logger = l // *slog.Logger satisfies obslog.Logger
}
