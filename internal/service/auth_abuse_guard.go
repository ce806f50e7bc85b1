package service

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
)

type AuthAbuseScope string

const (
	// AuthAbuseScopeAccessCode covers participant sign-ins that failed on the
	// session access code. Four digit codes fall to guessing without it.
	AuthAbuseScopeAccessCode AuthAbuseScope = "access_code"
	AuthAbuseScopeAdminLogin AuthAbuseScope = "admin_login"
)

type AuthAbusePolicy struct {
	FreeAttempts int
	BaseDelay    time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	ResetWindow  time.Duration
}

// AuthAbuseGuard tracks failed credential attempts per identity and per
// client address and reports how long further attempts must wait.
type AuthAbuseGuard interface {
	Check(ctx context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error)
	RegisterFailure(ctx context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error)
	Reset(ctx context.Context, scope AuthAbuseScope, identity, ip string) error
}

func DefaultAuthAbusePolicy() AuthAbusePolicy {
	return AuthAbusePolicy{
		FreeAttempts: 5,
		BaseDelay:    2 * time.Second,
		Multiplier:   2,
		MaxDelay:     5 * time.Minute,
		ResetWindow:  15 * time.Minute,
	}
}

func normalizeAuthAbusePolicy(p AuthAbusePolicy) AuthAbusePolicy {
	d := DefaultAuthAbusePolicy()
	if p.FreeAttempts < 0 {
		p.FreeAttempts = 0
	}
	if p.FreeAttempts == 0 && p.BaseDelay == 0 && p.MaxDelay == 0 {
		p.FreeAttempts = d.FreeAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = d.BaseDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = d.Multiplier
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = d.MaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	if p.ResetWindow <= 0 {
		p.ResetWindow = d.ResetWindow
	}
	return p
}

// cooldownFor returns the wait imposed after the given number of failures.
func (p AuthAbusePolicy) cooldownFor(failures int64) time.Duration {
	over := failures - int64(p.FreeAttempts)
	if over <= 0 {
		return 0
	}
	d := float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(over-1))
	if d > float64(p.MaxDelay) || math.IsInf(d, 0) {
		return p.MaxDelay
	}
	return time.Duration(d)
}

func normalizeAuthIdentity(identity string) string {
	return strings.ToLower(strings.TrimSpace(identity))
}

type abuseState struct {
	failures      int64
	lastFailure   time.Time
	cooldownUntil time.Time
}

type InMemoryAuthAbuseGuard struct {
	mu     sync.Mutex
	policy AuthAbusePolicy
	states map[string]*abuseState
	now    func() time.Time
}

func NewInMemoryAuthAbuseGuard(policy AuthAbusePolicy) *InMemoryAuthAbuseGuard {
	return &InMemoryAuthAbuseGuard{
		policy: normalizeAuthAbusePolicy(policy),
		states: make(map[string]*abuseState),
		now:    time.Now,
	}
}

func (g *InMemoryAuthAbuseGuard) keys(scope AuthAbuseScope, identity, ip string) []string {
	keys := []string{string(scope) + ":id:" + normalizeAuthIdentity(identity)}
	if ip != "" {
		keys = append(keys, string(scope)+":ip:"+ip)
	}
	return keys
}

func (g *InMemoryAuthAbuseGuard) Check(_ context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	var wait time.Duration
	for _, k := range g.keys(scope, identity, ip) {
		if st, ok := g.states[k]; ok && st.cooldownUntil.After(now) {
			wait = max(wait, st.cooldownUntil.Sub(now))
		}
	}
	return wait, nil
}

func (g *InMemoryAuthAbuseGuard) RegisterFailure(_ context.Context, scope AuthAbuseScope, identity, ip string) (time.Duration, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.now()
	var wait time.Duration
	for _, k := range g.keys(scope, identity, ip) {
		st, ok := g.states[k]
		if !ok || now.Sub(st.lastFailure) > g.policy.ResetWindow {
			st = &abuseState{}
			g.states[k] = st
		}
		st.failures++
		st.lastFailure = now
		if d := g.policy.cooldownFor(st.failures); d > 0 {
			st.cooldownUntil = now.Add(d)
			wait = max(wait, d)
		}
	}
	g.sweepLocked(now)
	return wait, nil
}

func (g *InMemoryAuthAbuseGuard) Reset(_ context.Context, scope AuthAbuseScope, identity, ip string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, k := range g.keys(scope, identity, ip) {
		delete(g.states, k)
	}
	return nil
}

func (g *InMemoryAuthAbuseGuard) sweepLocked(now time.Time) {
	if len(g.states) < 10000 {
		return
	}
	for k, st := range g.states {
		if now.Sub(st.lastFailure) > g.policy.ResetWindow && !st.cooldownUntil.After(now) {
			delete(g.states, k)
		}
	}
}
