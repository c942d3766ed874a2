package notify

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSecrets struct {
	mu     sync.Mutex
	values map[string]string
	err    error
	calls  int
}

func (f *fakeSecrets) GetSecret(_ context.Context, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	return f.values[name], nil
}

func TestCredentialCachePrefersProvider(t *testing.T) {
	secrets := &fakeSecrets{values: map[string]string{
		"prod/smtp_user":         "mailer@x.io",
		"prod/smtp_app_password": "app-pass",
	}}
	cache := &CredentialCache{
		Provider: secrets,
		Prefix:   "prod/",
		Fallback: Credentials{User: "local", Password: "local-pass", From: "noreply@x.io"},
	}

	creds, err := cache.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, Credentials{User: "mailer@x.io", Password: "app-pass", From: "noreply@x.io"}, creds)
}

func TestCredentialCacheFallsBackOnProviderError(t *testing.T) {
	cache := &CredentialCache{
		Provider: &fakeSecrets{err: errors.New("access denied")},
		Fallback: Credentials{User: "local", Password: "local-pass"},
	}

	creds, err := cache.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, "local", creds.User)
	require.Equal(t, "local", creds.From)
}

func TestCredentialCacheTTL(t *testing.T) {
	now := time.Date(2025, 3, 4, 9, 0, 0, 0, time.UTC)
	secrets := &fakeSecrets{values: map[string]string{
		SecretSMTPUser:     "u",
		SecretSMTPPassword: "p",
		SecretSMTPFrom:     "f@x.io",
	}}
	cache := &CredentialCache{Provider: secrets, Clock: func() time.Time { return now }}

	_, err := cache.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, secrets.calls)

	now = now.Add(4 * time.Minute)
	_, err = cache.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, secrets.calls)

	now = now.Add(time.Minute)
	_, err = cache.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, 6, secrets.calls)

	cache.Invalidate()
	_, err = cache.Resolve(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, secrets.calls)
}

func TestCredentialCacheUnavailable(t *testing.T) {
	cache := &CredentialCache{Fallback: Credentials{User: "only-user"}}

	_, err := cache.Resolve(context.Background())
	require.ErrorIs(t, err, ErrCredentialsUnavailable)
}
