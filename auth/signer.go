package auth

import (
	"context"

	"github.com/kroma-labs/cloudsdk-go/wire"
)

// Signer adds authentication to a request attempt.
// Sign mutates req in place; req is always a per-attempt clone.
type Signer interface {
	Sign(ctx context.Context, req *wire.Request, creds Credentials) error
}

// SignerProvider chooses the signer for an attempt. isRetry is true for every
// attempt after the first.
type SignerProvider interface {
	Signer(req *wire.Request, isRetry bool) Signer
}

// SignerFunc adapts a function to a Signer.
type SignerFunc func(ctx context.Context, req *wire.Request, creds Credentials) error

// Sign calls f.
func (f SignerFunc) Sign(ctx context.Context, req *wire.Request, creds Credentials) error {
	return f(ctx, req, creds)
}

// NoopSigner leaves requests unsigned.
type NoopSigner struct{}

// Sign does nothing.
func (NoopSigner) Sign(context.Context, *wire.Request, Credentials) error { return nil }

// StaticSignerProvider returns the same signer for every attempt.
type StaticSignerProvider struct {
	S Signer
}

// NewStaticSignerProvider wraps s. A nil s yields NoopSigner.
func NewStaticSignerProvider(s Signer) StaticSignerProvider {
	if s == nil {
		s = NoopSigner{}
	}
	return StaticSignerProvider{S: s}
}

// Signer returns the wrapped signer.
func (p StaticSignerProvider) Signer(*wire.Request, bool) Signer {
	if p.S == nil {
		return NoopSigner{}
	}
	return p.S
}

// Compile-time interface checks.
var (
	_ Signer         = SignerFunc(nil)
	_ Signer         = NoopSigner{}
	_ Signer         = (*HMACSigner)(nil)
	_ SignerProvider = StaticSignerProvider{}
)
