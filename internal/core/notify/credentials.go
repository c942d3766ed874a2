package notify

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"
)

// DefaultCredentialTTL is how long resolved mail credentials are reused.
const DefaultCredentialTTL = 5 * time.Minute

// Secret names looked up for the fallback mail transport.
const (
	SecretSMTPUser     = "smtp_user"
	SecretSMTPPassword = "smtp_app_password"
	SecretSMTPFrom     = "smtp_from"
)

// ErrCredentialsUnavailable means neither the secret provider nor local
// configuration supplied a mail user and password.
var ErrCredentialsUnavailable = errors.New("smtp credentials unavailable")

// Credentials authenticate against the mail server.
type Credentials struct {
	User     string
	Password string
	From     string
}

// SecretProvider returns the current value of a named secret.
type SecretProvider interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// CredentialCache resolves mail credentials from a SecretProvider, falling
// back to locally configured values, and caches the result for TTL.
type CredentialCache struct {
	Provider SecretProvider
	Fallback Credentials
	Prefix   string
	TTL      time.Duration
	Clock    func() time.Time
	Logger   *logging.Logger

	mu        sync.Mutex
	cached    *Credentials
	fetchedAt time.Time
}

// Resolve returns cached credentials while fresh, otherwise fetches them.
// The provider is called without holding the cache lock.
func (c *CredentialCache) Resolve(ctx context.Context) (Credentials, error) {
	now := c.now()

	c.mu.Lock()
	if c.cached != nil && now.Sub(c.fetchedAt) < c.ttl() {
		creds := *c.cached
		c.mu.Unlock()
		return creds, nil
	}
	c.mu.Unlock()

	creds := Credentials{
		User:     c.secret(ctx, SecretSMTPUser, c.Fallback.User),
		Password: c.secret(ctx, SecretSMTPPassword, c.Fallback.Password),
		From:     c.secret(ctx, SecretSMTPFrom, c.Fallback.From),
	}
	if creds.From == "" {
		creds.From = creds.User
	}
	if creds.User == "" || creds.Password == "" {
		return Credentials{}, ErrCredentialsUnavailable
	}

	c.mu.Lock()
	c.cached = &creds
	c.fetchedAt = now
	c.mu.Unlock()

	return creds, nil
}

// Invalidate drops cached credentials so the next Resolve refetches.
func (c *CredentialCache) Invalidate() {
	c.mu.Lock()
	c.cached = nil
	c.fetchedAt = time.Time{}
	c.mu.Unlock()
}

func (c *CredentialCache) secret(ctx context.Context, name, fallback string) string {
	if c.Provider == nil {
		return strings.TrimSpace(fallback)
	}
	value, err := c.Provider.GetSecret(ctx, c.Prefix+name)
	if err != nil {
		if c.Logger != nil {
			c.Logger.Warn("secret lookup failed, using local config",
				zap.String("secret", c.Prefix+name), zap.Error(err))
		}
		return strings.TrimSpace(fallback)
	}
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return strings.TrimSpace(fallback)
}

func (c *CredentialCache) ttl() time.Duration {
	if c.TTL > 0 {
		return c.TTL
	}
	return DefaultCredentialTTL
}

func (c *CredentialCache) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now()
}
