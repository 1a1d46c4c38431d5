// Package ratelimit provides the shared admission controller for outbound
// provider calls. Every executor routes each upstream request through
// Execute, keyed by provider name, so one provider's budget cannot be
// consumed by another provider's traffic.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// laxTier is the priority tier at or above which callers get a bounded wait
// instead of queueing indefinitely behind more urgent work.
const laxTier = 4

// maxLaxWait bounds how long a low-urgency caller may wait for admission.
const maxLaxWait = 30 * time.Second

// ProviderSnapshot is the observable state of one provider's budget.
type ProviderSnapshot struct {
	Pending     int       `json:"pending"`
	Served      uint64    `json:"served"`
	Rejected    uint64    `json:"rejected"`
	LastRequest time.Time `json:"last_request"`
}

type provider struct {
	lim         *rate.Limiter
	pending     int
	served      uint64
	rejected    uint64
	lastRequest time.Time
}

// Limiter admits outbound operations under per-provider token buckets.
type Limiter struct {
	mu           sync.Mutex
	providers    map[string]*provider
	defaultRate  rate.Limit
	defaultBurst int
	log          zerolog.Logger
}

// New creates a limiter with a default budget applied to providers that have
// not been configured explicitly.
func New(requestsPerSecond float64, burst int, log zerolog.Logger) *Limiter {
	if requestsPerSecond <= 0 {
		requestsPerSecond = 1
	}
	if burst < 1 {
		burst = 1
	}

	return &Limiter{
		providers:    make(map[string]*provider),
		defaultRate:  rate.Limit(requestsPerSecond),
		defaultBurst: burst,
		log:          log.With().Str("component", "ratelimit").Logger(),
	}
}

// Configure sets a provider-specific budget, replacing the default.
func (l *Limiter) Configure(name string, requestsPerSecond float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.providers[name] = &provider{
		lim: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Execute admits fn under the named provider's budget and runs it. Urgent
// tiers (1-3) wait for a token as long as the context allows; lax tiers wait
// at most maxLaxWait before giving up. The operation's error is returned
// unwrapped so callers can inspect provider failures directly.
func (l *Limiter) Execute(ctx context.Context, providerName string, tier int, fn func(context.Context) error) error {
	p := l.get(providerName)

	l.mu.Lock()
	p.pending++
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		p.pending--
		l.mu.Unlock()
	}()

	waitCtx := ctx
	if tier >= laxTier {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, maxLaxWait)
		defer cancel()
	}

	if err := p.lim.Wait(waitCtx); err != nil {
		l.mu.Lock()
		p.rejected++
		l.mu.Unlock()

		l.log.Debug().
			Str("provider", providerName).
			Int("tier", tier).
			Msg("Admission wait aborted")
		return fmt.Errorf("rate limit admission for %s: %w", providerName, err)
	}

	err := fn(ctx)

	l.mu.Lock()
	p.served++
	p.lastRequest = time.Now()
	l.mu.Unlock()

	return err
}

// Snapshot returns a copy of every provider's current state.
func (l *Limiter) Snapshot() map[string]ProviderSnapshot {
	l.mu.Lock()
	defer l.mu.Unlock()

	snap := make(map[string]ProviderSnapshot, len(l.providers))
	for name, p := range l.providers {
		snap[name] = ProviderSnapshot{
			Pending:     p.pending,
			Served:      p.served,
			Rejected:    p.rejected,
			LastRequest: p.lastRequest,
		}
	}
	return snap
}

// get returns the provider entry, creating one with the default budget on
// first use.
func (l *Limiter) get(name string) *provider {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.providers[name]
	if !ok {
		p = &provider{
			lim: rate.NewLimiter(l.defaultRate, l.defaultBurst),
		}
		l.providers[name] = p
	}
	return p
}
