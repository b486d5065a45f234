// Package mailer defines the outbound-email boundary of spec §6.4.
// Only the interface is specified; wiring a concrete SMTP/API-backed
// provider is out of scope, per the spec's Non-goals around outer
// transport surfaces — admin magic links fall back to the dev-allow
// JSON `login_url` response instead of an actual send in that mode.
package mailer

import (
	"context"
	"fmt"
	"strings"
)

// Address is either "Name <addr>" or a bare address.
type Address struct {
	Address     string
	DisplayName string
}

func (a Address) String() string {
	if a.DisplayName == "" {
		return a.Address
	}
	return fmt.Sprintf("%s <%s>", a.DisplayName, a.Address)
}

// Message is one outbound email, per spec §6.4's sendEmail contract.
type Message struct {
	To       []Address
	Cc       []Address
	Bcc      []Address
	From     Address
	ReplyTo  *Address
	Subject  string
	TextBody string
	HTMLBody string
	Headers  map[string]string
}

// Validate checks the normalization rules spec §6.4 requires:
// addresses contain "@", display names (when present) are non-empty,
// and at least one body variant is set.
func (m Message) Validate() error {
	if len(m.To) == 0 {
		return fmt.Errorf("mailer: message has no recipients")
	}
	for _, addr := range append(append(append([]Address{}, m.To...), m.Cc...), m.Bcc...) {
		if err := addr.validate(); err != nil {
			return err
		}
	}
	if m.TextBody == "" && m.HTMLBody == "" {
		return fmt.Errorf("mailer: message has neither textBody nor htmlBody")
	}
	return nil
}

func (a Address) validate() error {
	if !strings.Contains(a.Address, "@") {
		return fmt.Errorf("mailer: invalid address %q", a.Address)
	}
	if a.DisplayName != "" && strings.TrimSpace(a.DisplayName) == "" {
		return fmt.Errorf("mailer: display name for %q is blank, not absent", a.Address)
	}
	return nil
}

// Provider sends a validated Message. Implementations (SMTP, a
// transactional-email API) live outside this module.
type Provider interface {
	Send(ctx context.Context, msg Message) error
}
