package types

import (
	"errors"
	"fmt"
	"testing"
)

func TestSentinelsWrap(t *testing.T) {
	tests := []struct {
		name     string
		sentinel error
	}{
		{"missing credential", ErrMissingCredential},
		{"invalid configuration", ErrInvalidConfiguration},
		{"empty input", ErrEmptyInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := fmt.Errorf("outer: %w", tt.sentinel)
			if !errors.Is(wrapped, tt.sentinel) {
				t.Errorf("errors.Is(%v, %v) = false, want true", wrapped, tt.sentinel)
			}
		})
	}

	if errors.Is(ErrInvalidConfiguration, ErrMissingCredential) {
		t.Error("distinct sentinels must not match each other")
	}
}

func TestContextKeysDistinct(t *testing.T) {
	keys := []ContextKey{ContextKeyRequestID, ContextKeyUserID, ContextKeySessionID, ContextKeyRequestSource}
	seen := make(map[ContextKey]bool)
	for _, k := range keys {
		if seen[k] {
			t.Errorf("duplicate context key %q", k)
		}
		seen[k] = true
	}
}
