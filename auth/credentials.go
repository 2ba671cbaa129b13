package auth

import (
	"context"
	"errors"
	"time"
)

// ErrCredentialsUnavailable is wrapped by every credentials resolution failure.
var ErrCredentialsUnavailable = errors.New("auth: credentials unavailable")

// Credentials is a resolved access key pair.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Expires is zero for credentials that never expire.
	Expires time.Time

	// Source names the provider that produced the credentials.
	Source string
}

// Anonymous returns credentials that cause requests to go out unsigned.
func Anonymous() Credentials {
	return Credentials{Source: "Anonymous"}
}

// IsAnonymous reports whether c carries no key material.
func (c Credentials) IsAnonymous() bool {
	return c.AccessKeyID == "" && c.SecretAccessKey == ""
}

// Expired reports whether c expires at or before now.
func (c Credentials) Expired(now time.Time) bool {
	return !c.Expires.IsZero() && !now.Before(c.Expires)
}

// CredentialsProvider resolves credentials. Implementations must be safe for
// concurrent use; one provider is typically shared by many clients.
type CredentialsProvider interface {
	Retrieve(ctx context.Context) (Credentials, error)
}

// Invalidator is implemented by providers that cache credentials.
type Invalidator interface {
	Invalidate()
}

// ProviderFunc adapts a function to a CredentialsProvider.
type ProviderFunc func(ctx context.Context) (Credentials, error)

// Retrieve calls f.
func (f ProviderFunc) Retrieve(ctx context.Context) (Credentials, error) {
	return f(ctx)
}

// StaticProvider always returns the same credentials.
type StaticProvider struct {
	Value Credentials
}

// NewStaticProvider returns a provider for a fixed key pair.
func NewStaticProvider(accessKeyID, secretAccessKey, sessionToken string) StaticProvider {
	return StaticProvider{Value: Credentials{
		AccessKeyID:     accessKeyID,
		SecretAccessKey: secretAccessKey,
		SessionToken:    sessionToken,
		Source:          "Static",
	}}
}

// Retrieve returns the static credentials.
func (p StaticProvider) Retrieve(context.Context) (Credentials, error) {
	if p.Value.AccessKeyID == "" || p.Value.SecretAccessKey == "" {
		return Credentials{}, errors.Join(ErrCredentialsUnavailable, errors.New("static credentials are empty"))
	}
	return p.Value, nil
}

// AnonymousProvider returns anonymous credentials.
type AnonymousProvider struct{}

// Retrieve returns Anonymous().
func (AnonymousProvider) Retrieve(context.Context) (Credentials, error) {
	return Anonymous(), nil
}

// Compile-time interface checks.
var (
	_ CredentialsProvider = ProviderFunc(nil)
	_ CredentialsProvider = StaticProvider{}
	_ CredentialsProvider = AnonymousProvider{}
	_ CredentialsProvider = (*RefreshingProvider)(nil)
	_ CredentialsProvider = (*TimedProvider)(nil)
	_ Invalidator         = (*RefreshingProvider)(nil)
	_ Invalidator         = (*TimedProvider)(nil)
)
