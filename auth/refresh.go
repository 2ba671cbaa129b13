package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultExpiryWindow is how long before expiry cached credentials are
// considered stale.
const DefaultExpiryWindow = 5 * time.Minute

// RefreshingProvider caches credentials from an underlying provider and
// refreshes them shortly before they expire. Concurrent refreshes are
// coalesced into a single call to the underlying provider.
type RefreshingProvider struct {
	source CredentialsProvider
	window time.Duration
	now    func() time.Time

	group singleflight.Group

	mu     sync.RWMutex
	cached *Credentials
}

// RefreshOption configures a RefreshingProvider.
type RefreshOption func(*RefreshingProvider)

// WithExpiryWindow sets how early credentials are refreshed.
// Default: DefaultExpiryWindow.
func WithExpiryWindow(d time.Duration) RefreshOption {
	return func(p *RefreshingProvider) {
		if d >= 0 {
			p.window = d
		}
	}
}

// WithRefreshClock replaces time.Now. Used by tests.
func WithRefreshClock(now func() time.Time) RefreshOption {
	return func(p *RefreshingProvider) {
		if now != nil {
			p.now = now
		}
	}
}

// NewRefreshingProvider wraps source with caching.
func NewRefreshingProvider(source CredentialsProvider, opts ...RefreshOption) *RefreshingProvider {
	p := &RefreshingProvider{
		source: source,
		window: DefaultExpiryWindow,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Retrieve returns cached credentials while they are fresh, otherwise
// refreshes them from the source.
func (p *RefreshingProvider) Retrieve(ctx context.Context) (Credentials, error) {
	if c, ok := p.fresh(); ok {
		return c, nil
	}

	ch := p.group.DoChan("refresh", func() (interface{}, error) {
		if c, ok := p.fresh(); ok {
			return c, nil
		}
		c, err := p.source.Retrieve(context.WithoutCancel(ctx))
		if err != nil {
			return Credentials{}, err
		}
		p.mu.Lock()
		p.cached = &c
		p.mu.Unlock()
		return c, nil
	})

	select {
	case <-ctx.Done():
		return Credentials{}, fmt.Errorf("%w: %w", ErrCredentialsUnavailable, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return Credentials{}, res.Err
		}
		return res.Val.(Credentials), nil
	}
}

// Invalidate drops the cached credentials so the next Retrieve refreshes.
func (p *RefreshingProvider) Invalidate() {
	p.mu.Lock()
	p.cached = nil
	p.mu.Unlock()
}

func (p *RefreshingProvider) fresh() (Credentials, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.cached == nil {
		return Credentials{}, false
	}
	if !p.cached.Expires.IsZero() && p.cached.Expired(p.now().Add(p.window)) {
		return Credentials{}, false
	}
	return *p.cached, true
}
