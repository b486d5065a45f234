package mailer

import (
	"context"
	"strings"

	"github.com/latchflow/latchflow/internal/obslog"
)

// LogProvider is a Provider that writes every message to a structured
// logger instead of transmitting it, the same stand-in the teacher's
// dev-profile notification paths fall back to when no SMTP/API
// credentials are configured. Latchflow ships no concrete SMTP client
// (see the package doc), so cmd/server wires this in by default;
// operators who need real delivery supply their own Provider.
type LogProvider struct {
	logger obslog.Logger
}

// NewLogProvider constructs a LogProvider.
func NewLogProvider(logger obslog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

// Send validates msg and logs it at info level. It fails only when msg
// does not validate.
func (p *LogProvider) Send(_ context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	to := make([]string, 0, len(msg.To))
	for _, addr := range msg.To {
		to = append(to, addr.String())
	}
	p.logger.Info("mailer: message sent",
		"to", strings.Join(to, ","),
		"subject", msg.Subject,
	)
	return nil
}
