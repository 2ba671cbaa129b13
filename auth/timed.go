package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/kroma-labs/cloudsdk-go/metrics"
)

// TimedProvider records how long each resolution takes.
type TimedProvider struct {
	next     CredentialsProvider
	recorder *metrics.Recorder
}

// NewTimedProvider wraps p so every Retrieve is recorded under
// metrics.CredentialsRequestTime. A nil p resolves anonymous credentials.
func NewTimedProvider(p CredentialsProvider, recorder *metrics.Recorder) *TimedProvider {
	if p == nil {
		p = AnonymousProvider{}
	}
	return &TimedProvider{next: p, recorder: recorder}
}

// Retrieve resolves credentials from the wrapped provider. Failures wrap
// ErrCredentialsUnavailable.
func (p *TimedProvider) Retrieve(ctx context.Context) (Credentials, error) {
	p.recorder.StartEvent(metrics.CredentialsRequestTime)
	defer p.recorder.EndEvent(metrics.CredentialsRequestTime)

	c, err := p.next.Retrieve(ctx)
	if err != nil {
		if errors.Is(err, ErrCredentialsUnavailable) {
			return Credentials{}, err
		}
		return Credentials{}, fmt.Errorf("%w: %w", ErrCredentialsUnavailable, err)
	}
	return c, nil
}

// Invalidate forwards to the wrapped provider when it caches.
func (p *TimedProvider) Invalidate() {
	if inv, ok := p.next.(Invalidator); ok {
		inv.Invalidate()
	}
}

// Unwrap returns the wrapped provider.
func (p *TimedProvider) Unwrap() CredentialsProvider {
	return p.next
}
