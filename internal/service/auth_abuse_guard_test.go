package service

import (
	"context"
	"testing"
	"time"
)

func TestAuthAbusePolicyCooldown(t *testing.T) {
	p := AuthAbusePolicy{FreeAttempts: 2, BaseDelay: time.Second, Multiplier: 3, MaxDelay: 5 * time.Second, ResetWindow: time.Minute}
	cases := []struct {
		failures int64
		want     time.Duration
	}{
		{1, 0},
		{2, 0},
		{3, time.Second},
		{4, 3 * time.Second},
		{5, 5 * time.Second},
		{60, 5 * time.Second},
	}
	for _, tc := range cases {
		if got := p.cooldownFor(tc.failures); got != tc.want {
			t.Fatalf("cooldownFor(%d)=%v want %v", tc.failures, got, tc.want)
		}
	}
}

func TestInMemoryAuthAbuseGuardWindowExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1_700_000_000, 0)
	g := NewInMemoryAuthAbuseGuard(AuthAbusePolicy{FreeAttempts: 1, BaseDelay: time.Second, Multiplier: 2, MaxDelay: time.Minute, ResetWindow: 10 * time.Second})
	g.now = func() time.Time { return now }

	if d, _ := g.RegisterFailure(ctx, AuthAbuseScopeAccessCode, "s1", "10.0.0.1"); d != 0 {
		t.Fatalf("first failure should be free, got %v", d)
	}
	if d, _ := g.RegisterFailure(ctx, AuthAbuseScopeAccessCode, "s1", "10.0.0.1"); d != time.Second {
		t.Fatalf("expected base delay, got %v", d)
	}
	// A different session from the same address is still held back.
	if d, _ := g.Check(ctx, AuthAbuseScopeAccessCode, "s2", "10.0.0.1"); d != time.Second {
		t.Fatalf("expected address cooldown to apply, got %v", d)
	}

	now = now.Add(30 * time.Second)
	if d, _ := g.Check(ctx, AuthAbuseScopeAccessCode, "s1", "10.0.0.1"); d != 0 {
		t.Fatalf("expected cooldown to lapse, got %v", d)
	}
	if d, _ := g.RegisterFailure(ctx, AuthAbuseScopeAccessCode, "s1", "10.0.0.1"); d != 0 {
		t.Fatalf("expected counter reset after the window, got %v", d)
	}

	if err := g.Reset(ctx, AuthAbuseScopeAccessCode, "s1", "10.0.0.1"); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if len(g.states) != 0 {
		t.Fatalf("expected reset to clear state, got %d entries", len(g.states))
	}
}
