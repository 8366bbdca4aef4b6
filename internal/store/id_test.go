package store

import (
	"strings"
	"testing"
)

func TestNewSessionID(t *testing.T) {
	t.Run("canonical form", func(t *testing.T) {
		id := NewSessionID()
		if len(id) != 36 {
			t.Fatalf("expected length 36, got %d: %s", len(id), id)
		}
		if !ValidSessionID(id) {
			t.Fatalf("expected %s to be valid", id)
		}
	})

	t.Run("unique", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 1000; i++ {
			id := NewSessionID()
			if seen[id] {
				t.Fatalf("duplicate id %s", id)
			}
			seen[id] = true
		}
	})
}

func TestValidSessionID(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  bool
	}{
		{"canonical", "3f2b8c1e-9a4d-4e6f-8b1a-0c2d3e4f5a6b", true},
		{"upper case", "3F2B8C1E-9A4D-4E6F-8B1A-0C2D3E4F5A6B", false},
		{"no hyphens", "3f2b8c1e9a4d4e6f8b1a0c2d3e4f5a6b", false},
		{"braced", "{3f2b8c1e-9a4d-4e6f-8b1a-0c2d3e4f5a6b}", false},
		{"urn", "urn:uuid:3f2b8c1e-9a4d-4e6f-8b1a-0c2d3e4f5a6b", false},
		{"empty", "", false},
		{"garbage", "zzzzzzzz-zzzz-zzzz-zzzz-zzzzzzzzzzzz", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ValidSessionID(tc.input); got != tc.want {
				t.Fatalf("ValidSessionID(%q) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}

func TestLeaseTokens(t *testing.T) {
	token := NewLeaseToken()
	if len(token) != 32 || strings.Contains(token, "-") {
		t.Fatalf("unexpected token format %q", token)
	}
	if token == NewLeaseToken() {
		t.Fatal("expected distinct tokens")
	}

	hash := HashLeaseToken(token)
	if len(hash) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(hash))
	}
	if hash != HashLeaseToken(" "+token+"\n") {
		t.Fatal("expected surrounding whitespace to be ignored")
	}
	if hash == HashLeaseToken(NewLeaseToken()) {
		t.Fatal("expected different tokens to hash differently")
	}
}
