package notify

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"strings"
	"time"

	"github.com/hbashir/aide/internal/approval"
)

// smtpTimeout bounds the whole SMTP conversation so a stalled server never
// hangs a notification dispatch.
const smtpTimeout = 30 * time.Second

// Email sends approval notifications over SMTP.
type Email struct {
	host string
	port string
	user string
	pass string
	from string
	to   string

	// send is swappable for tests.
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmail creates an SMTP channel. addr is "host:port".
func NewEmail(addr, user, pass, from, to string) (*Email, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid smtp address %q: %w", addr, err)
	}
	return &Email{
		host: host,
		port: port,
		user: user,
		pass: pass,
		from: from,
		to:   to,
		send: sendWithDeadline,
	}, nil
}

// sendWithDeadline speaks SMTP over a connection with a hard deadline.
// smtp.SendMail has no timeout at all.
func sendWithDeadline(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := net.DialTimeout("tcp", addr, smtpTimeout)
	if err != nil {
		return err
	}
	if err := conn.SetDeadline(time.Now().Add(smtpTimeout)); err != nil {
		_ = conn.Close()
		return err
	}

	host, _, _ := net.SplitHostPort(addr)
	c, err := smtp.NewClient(conn, host)
	if err != nil {
		_ = conn.Close()
		return err
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(&tls.Config{ServerName: host}); err != nil {
			return err
		}
	}
	if a != nil {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(a); err != nil {
				return err
			}
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

func (e *Email) Name() string { return "email" }

func (e *Email) Notify(_ context.Context, req approval.Request) error {
	subject := fmt.Sprintf("Approval needed: %s (%s)", req.Kind, req.ID)
	return e.deliver(subject, FormatRequest(req))
}

func (e *Email) NotifyEscalation(_ context.Context, req approval.Request) error {
	subject := fmt.Sprintf("Approval overdue: %s (%s)", req.Kind, req.ID)
	return e.deliver(subject, FormatEscalation(req))
}

// Send delivers an arbitrary message through the configured SMTP account.
func (e *Email) Send(subject, body string) error {
	return e.deliver(subject, body)
}

func (e *Email) deliver(subject, body string) error {
	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", e.from)
	fmt.Fprintf(&msg, "To: %s\r\n", e.to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(body)

	var auth smtp.Auth
	if e.user != "" {
		auth = smtp.PlainAuth("", e.user, e.pass, e.host)
	}

	addr := net.JoinHostPort(e.host, e.port)
	if err := e.send(addr, auth, e.from, []string{e.to}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send failed: %w", err)
	}
	return nil
}
