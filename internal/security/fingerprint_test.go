package security

import (
	"strconv"
	"strings"
	"testing"
)

func TestValidFingerprint(t *testing.T) {
	cases := []struct {
		name string
		fp   string
		want bool
	}{
		{name: "empty", fp: "", want: false},
		{name: "too short", fp: strings.Repeat("x", 19), want: false},
		{name: "min", fp: strings.Repeat("x", 20), want: true},
		{name: "max", fp: strings.Repeat("x", 500), want: true},
		{name: "too long", fp: strings.Repeat("x", 501), want: false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidFingerprint(tc.fp); got != tc.want {
				t.Fatalf("ValidFingerprint(len=%d)=%v want %v", len(tc.fp), got, tc.want)
			}
		})
	}
}

func TestGenerateAccessCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateAccessCode()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 4 {
			t.Fatalf("expected four digits, got %q", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil || n < 1000 || n > 9999 {
			t.Fatalf("code out of range: %q", code)
		}
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("correct horse")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "correct horse") {
		t.Fatal("expected password to match")
	}
	if CheckPassword(hash, "wrong") {
		t.Fatal("expected mismatch")
	}
}
