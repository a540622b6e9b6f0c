package domain

import (
	"errors"
	"fmt"
	"testing"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := NewError(KindRemoteAPIError, "rate limited", nil)
	wrapped := fmt.Errorf("chat completion: %w", err)

	if !errors.Is(wrapped, ErrRemoteAPIError) {
		t.Error("Expected wrapped error to match ErrRemoteAPIError")
	}
	if errors.Is(wrapped, ErrNetworkFailure) {
		t.Error("Expected wrapped error not to match ErrNetworkFailure")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"domain message", NewError(KindRemoteAPIError, "rate limited", nil), "rate limited"},
		{"wrapped domain", fmt.Errorf("outer: %w", NewError(KindNetworkFailure, "", errors.New("dial tcp"))), "Network request failed"},
		{"plain error", errors.New("boom"), "boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Describe(tt.err); got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKindOf(t *testing.T) {
	kind, ok := KindOf(fmt.Errorf("x: %w", NewError(KindNoVoiceAvailable, "", nil)))
	if !ok || kind != KindNoVoiceAvailable {
		t.Errorf("Expected no_voice_available, got %q (ok=%v)", kind, ok)
	}

	if _, ok := KindOf(errors.New("plain")); ok {
		t.Error("Expected plain error to have no kind")
	}
}

func TestError_UnwrapKeepsCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(KindNetworkFailure, "", cause)

	if !errors.Is(err, cause) {
		t.Error("Expected cause to be reachable through Unwrap")
	}
	if err.Error() != "Network request failed: connection reset" {
		t.Errorf("Unexpected Error() output: %s", err.Error())
	}
}
