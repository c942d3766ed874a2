package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/gomail.v2"

	"github.com/apony/quoteintake/internal/core"
)

// DefaultSMTPTimeout bounds one fallback send.
const DefaultSMTPTimeout = 60 * time.Second

// ErrMailNotInitialized is returned when the mail transport has no usable
// credentials even after reinitializing.
var ErrMailNotInitialized = errors.New("mail transport not initialized")

// MailDialer is the part of *gomail.Dialer the transport uses.
type MailDialer interface {
	Dial() (gomail.SendCloser, error)
	DialAndSend(m ...*gomail.Message) error
}

// SMTPConfig configures the fallback transport.
type SMTPConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// SMTPTransport sends HTML and plain-text mail over SMTP.
type SMTPTransport struct {
	cfg   SMTPConfig
	creds *CredentialCache
	// newDialer builds a dialer from resolved credentials; replaced in tests.
	newDialer func(host string, port int, user, password string) MailDialer

	mu     sync.Mutex
	dialer MailDialer
	from   string
}

// NewSMTPTransport builds the fallback transport over creds.
func NewSMTPTransport(cfg SMTPConfig, creds *CredentialCache) *SMTPTransport {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultSMTPTimeout
	}
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	return &SMTPTransport{
		cfg:   cfg,
		creds: creds,
		newDialer: func(host string, port int, user, password string) MailDialer {
			// gomail enables implicit TLS when port is 465.
			return gomail.NewDialer(host, port, user, password)
		},
	}
}

// Method implements Transport.
func (t *SMTPTransport) Method() core.NotifyMethod {
	return core.NotifySMTP
}

// Configured implements Transport.
func (t *SMTPTransport) Configured() bool {
	return t != nil && strings.TrimSpace(t.cfg.Host) != "" && t.creds != nil
}

// Reinitialize drops cached credentials and rebuilds the dialer.
func (t *SMTPTransport) Reinitialize(ctx context.Context) error {
	if t.creds == nil {
		return ErrMailNotInitialized
	}
	t.creds.Invalidate()

	creds, err := t.creds.Resolve(ctx)

	t.mu.Lock()
	defer t.mu.Unlock()
	if err != nil {
		t.dialer = nil
		t.from = ""
		return err
	}
	t.dialer = t.newDialer(t.cfg.Host, t.cfg.Port, creds.User, creds.Password)
	t.from = creds.From
	return nil
}

// Verify opens and closes an SMTP session to check host and credentials.
func (t *SMTPTransport) Verify(ctx context.Context) error {
	dialer, _, err := t.ready(ctx)
	if err != nil {
		return err
	}
	return t.withTimeout(ctx, func() error {
		conn, err := dialer.Dial()
		if err != nil {
			return err
		}
		return conn.Close()
	})
}

// Send implements Transport.
func (t *SMTPTransport) Send(ctx context.Context, n Notification) (Receipt, error) {
	if n.Quote == nil {
		return Receipt{}, errors.New("notification has no quote request")
	}

	dialer, from, err := t.ready(ctx)
	if err != nil {
		return Receipt{}, err
	}

	htmlBody, err := RenderHTML(n)
	if err != nil {
		return Receipt{}, err
	}

	messageID := fmt.Sprintf("<%s@quoteintake>", uuid.New().String())

	m := gomail.NewMessage()
	m.SetHeader("From", from)
	m.SetHeader("To", n.Recipients...)
	m.SetHeader("Subject", n.Subject())
	m.SetHeader("Message-ID", messageID)
	m.SetBody("text/plain", HTMLToText(htmlBody))
	m.AddAlternative("text/html", htmlBody)

	if err := t.withTimeout(ctx, func() error { return dialer.DialAndSend(m) }); err != nil {
		return Receipt{}, fmt.Errorf("smtp send: %w", err)
	}
	return Receipt{MessageID: messageID}, nil
}

// ready returns the current dialer, reinitializing once when there is none.
func (t *SMTPTransport) ready(ctx context.Context) (MailDialer, string, error) {
	t.mu.Lock()
	dialer, from := t.dialer, t.from
	t.mu.Unlock()
	if dialer != nil {
		return dialer, from, nil
	}

	if err := t.Reinitialize(ctx); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrMailNotInitialized, err)
	}

	t.mu.Lock()
	dialer, from = t.dialer, t.from
	t.mu.Unlock()
	if dialer == nil {
		return nil, "", ErrMailNotInitialized
	}
	return dialer, from, nil
}

// withTimeout runs fn, giving up after the configured timeout or when ctx
// ends. gomail has no context support, so fn may outlive the call.
func (t *SMTPTransport) withTimeout(ctx context.Context, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, t.cfg.Timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- fn() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("smtp: %w", ctx.Err())
	}
}
