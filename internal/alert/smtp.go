package alert

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/gyaneshwarpardhi/atmsvr/internal/event"
)

const (
	DefaultSMTPAddr  = "localhost:2500"
	DefaultFrom      = "svr@localhost"
	DefaultRecipient = "root@localhost"
)

// Mailer delivers alerts as plain-text email through an SMTP relay.
type Mailer struct {
	addr string
	from string
	to   string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewMailer creates a Mailer. Empty arguments take the package defaults.
func NewMailer(addr, from, to string) *Mailer {
	if addr == "" {
		addr = DefaultSMTPAddr
	}
	if from == "" {
		from = DefaultFrom
	}
	if to == "" {
		to = DefaultRecipient
	}
	return &Mailer{addr: addr, from: from, to: to, send: smtp.SendMail}
}

// Channel names the mail channel in config and metrics.
func (m *Mailer) Channel() string { return "smtp" }

// Recipient returns the configured destination address.
func (m *Mailer) Recipient() string { return m.to }

// Notify sends one message. ctx is honoured only before the relay is
// contacted; net/smtp has no context support.
func (m *Mailer) Notify(ctx context.Context, ev event.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := m.send(m.addr, nil, m.from, []string{m.to}, m.message(ev)); err != nil {
		return fmt.Errorf("smtp %s: %w", m.addr, err)
	}
	return nil
}

func (m *Mailer) message(ev event.Event) []byte {
	host := "localhost"
	if h, _, err := net.SplitHostPort(m.addr); err == nil && h != "" {
		host = h
	}
	var b strings.Builder
	fmt.Fprintf(&b, "To: <%s>\r\n", m.to)
	fmt.Fprintf(&b, "From: <%s> (SVR)\r\n", m.from)
	fmt.Fprintf(&b, "Subject: %s\r\n", Subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	fmt.Fprintf(&b, "Message-ID: <%s@%s>\r\n", uuid.New().String(), host)
	b.WriteString("\r\n")
	b.WriteString(Body(ev))
	return []byte(b.String())
}
