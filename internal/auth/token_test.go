package auth

import (
	"strings"
	"testing"
)

func TestNewToken(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		tok, err := NewToken()
		if err != nil {
			t.Fatalf("NewToken failed: %v", err)
		}
		if len(tok) != TokenLength {
			t.Fatalf("expected %d characters, got %d", TokenLength, len(tok))
		}
		for _, c := range tok {
			if !strings.ContainsRune(alphanumeric, c) {
				t.Fatalf("token %q contains non-alphanumeric %q", tok, c)
			}
		}
		if seen[tok] {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = true
	}
}

func TestNewTokenN(t *testing.T) {
	tok, err := NewTokenN(64)
	if err != nil {
		t.Fatalf("NewTokenN failed: %v", err)
	}
	if len(tok) != 64 {
		t.Errorf("expected 64 characters, got %d", len(tok))
	}

	if _, err := NewTokenN(0); err == nil {
		t.Error("expected error for zero length")
	}
}

func TestTokenEqual(t *testing.T) {
	if !TokenEqual("abc", "abc") {
		t.Error("equal tokens compared unequal")
	}
	if TokenEqual("abc", "abd") {
		t.Error("different tokens compared equal")
	}
	if TokenEqual("abc", "abcd") {
		t.Error("tokens of different length compared equal")
	}
	if TokenEqual("", "") {
		t.Error("empty tokens must never match")
	}
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4, 5}
	Zero(b)
	for i, v := range b {
		if v != 0 {
			t.Errorf("Zero failed at index %d: expected 0, got %v", i, v)
		}
	}

	// Should not panic on nil
	Zero(nil)
}
