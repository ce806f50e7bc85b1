package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "wrapped duplicate", err: fmt.Errorf("%w: agenda a1", ErrDuplicateVote), want: "DUPLICATE_VOTE"},
		{name: "not voting", err: ErrNotVotingNow, want: "NOT_VOTING_NOW"},
		{name: "quota", err: fmt.Errorf("cast: %w", ErrQuotaExceeded), want: "QUOTA_EXCEEDED"},
		{name: "infrastructure", err: errors.New("connection refused"), want: "STORAGE_UNAVAILABLE"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Code(tc.err); got != tc.want {
				t.Fatalf("Code()=%q want %q", got, tc.want)
			}
		})
	}
}

func TestIsDomainError(t *testing.T) {
	if IsDomainError(nil) {
		t.Fatal("nil is not a domain error")
	}
	if !IsDomainError(fmt.Errorf("%w: x", ErrOutOfRange)) {
		t.Fatal("expected wrapped out-of-range to be a domain error")
	}
	if IsDomainError(errors.New("timeout")) {
		t.Fatal("expected infrastructure error to be classified separately")
	}
}
