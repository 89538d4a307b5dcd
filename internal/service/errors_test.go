package service

import (
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"kidnector/internal/backend"
	"kidnector/internal/repository"
	"kidnector/internal/validation"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"field", validation.ValidationError{Field: "email", Message: "Email is required"}, KindValidation},
		{"form", ValidationErrors{"a", "b"}, KindValidation},
		{"bad id", fmt.Errorf("lookup: %w", repository.ErrInvalidID), KindValidation},
		{"signed out", ErrNotAuthenticated, KindNotAuthenticated},
		{"client signed out", backend.ErrNotAuthenticated, KindNotAuthenticated},
		{"unauthorized", &backend.APIError{Status: 401}, KindNotAuthenticated},
		{"forbidden", fmt.Errorf("failed to get family: %w", &backend.APIError{Status: 403}), KindNotAuthenticated},
		{"no rows", &backend.APIError{Status: 406, Code: backend.CodeNoRows}, KindNotFound},
		{"child", ErrChildNotFound, KindNotFound},
		{"duplicate", &backend.APIError{Status: 409, Code: "23505"}, KindConflict},
		{"already submitted", ErrAlreadySubmitted, KindConflict},
		{"cooldown", &ResendCooldownError{Remaining: time.Second}, KindConflict},
		{"server", &backend.APIError{Status: 500}, KindBackend},
		{"network", &url.Error{Op: "Post", URL: "https://x", Err: errors.New("connection refused")}, KindNetwork},
		{"other", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"field", validation.ValidationError{Field: "email", Message: "Email is required"}, "Email is required"},
		{"single", ValidationErrors{"Name is required"}, "Name is required"},
		{"several", ValidationErrors{"Name is required", "Age is required"}, "1. Name is required\n2. Age is required"},
		{"cooldown", &ResendCooldownError{Remaining: 1500 * time.Millisecond}, "Please wait 2 seconds before requesting another email"},
		{"backend", &backend.APIError{Status: 400, Message: "Invalid login credentials"}, "Invalid login credentials"},
		{"signed out", ErrNotAuthenticated, "Please sign in first."},
		{"network", &url.Error{Op: "Get", URL: "https://x", Err: errors.New("timeout")}, "Could not reach the server. Check your connection and try again."},
		{"sentinel", ErrAlreadySubmitted, "Today's affirmation has already been submitted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Message(tt.err))
		})
	}
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "unknown", Kind(99).String())
}
