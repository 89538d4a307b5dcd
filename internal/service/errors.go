package service

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kidnector/internal/backend"
	"kidnector/internal/repository"
	"kidnector/internal/validation"
)

// Kind classifies a failure so callers can choose how to present it
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotAuthenticated
	KindNotFound
	KindConflict
	KindBackend
	KindNetwork
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindBackend:
		return "backend"
	case KindNetwork:
		return "network"
	}
	return "unknown"
}

var (
	ErrNotAuthenticated     = errors.New("not authenticated")
	ErrFamilyNotFound       = errors.New("family not found")
	ErrChildNotFound        = errors.New("child not found")
	ErrCompletionNotFound   = errors.New("completion not found")
	ErrAlreadySubmitted     = errors.New("today's affirmation has already been submitted")
	ErrCompletionNotPending = errors.New("completion is not waiting for review")
	ErrResendCooldown       = errors.New("verification email was sent recently")
)

// ValidationErrors collects the messages of every failed check on a form
type ValidationErrors []string

func (e ValidationErrors) Error() string {
	return validation.FormatErrors(e)
}

// validate returns the failed checks as ValidationErrors, or nil
func validate(errs ...error) error {
	if msgs := validation.Messages(errs...); len(msgs) > 0 {
		return ValidationErrors(msgs)
	}
	return nil
}

// ResendCooldownError reports how long to wait before another verification email
type ResendCooldownError struct {
	Remaining time.Duration
}

func (e *ResendCooldownError) Error() string {
	secs := int((e.Remaining + time.Second - 1) / time.Second)
	return fmt.Sprintf("Please wait %d seconds before requesting another email", secs)
}

func (e *ResendCooldownError) Is(target error) bool {
	return target == ErrResendCooldown
}

// KindOf classifies err
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var ve validation.ValidationError
	var ves ValidationErrors
	switch {
	case errors.As(err, &ve), errors.As(err, &ves), errors.Is(err, repository.ErrInvalidID):
		return KindValidation
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, backend.ErrNotAuthenticated):
		return KindNotAuthenticated
	case errors.Is(err, ErrFamilyNotFound), errors.Is(err, ErrChildNotFound), errors.Is(err, ErrCompletionNotFound):
		return KindNotFound
	case errors.Is(err, ErrAlreadySubmitted), errors.Is(err, ErrCompletionNotPending), errors.Is(err, ErrResendCooldown):
		return KindConflict
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusUnauthorized, apiErr.Status == http.StatusForbidden:
			return KindNotAuthenticated
		case apiErr.Code == backend.CodeNoRows, apiErr.Status == http.StatusNotFound:
			return KindNotFound
		case apiErr.Status == http.StatusConflict, apiErr.Code == "23505":
			return KindConflict
		}
		return KindBackend
	}

	var urlErr *url.Error
	var netErr net.Error
	if errors.As(err, &urlErr) || errors.As(err, &netErr) {
		return KindNetwork
	}

	return KindUnknown
}

// Message returns the text to show a person for err
func Message(err error) string {
	if err == nil {
		return ""
	}

	var ves ValidationErrors
	if errors.As(err, &ves) {
		return ves.Error()
	}
	var ve validation.ValidationError
	if errors.As(err, &ve) {
		return ve.Message
	}
	var cooldown *ResendCooldownError
	if errors.As(err, &cooldown) {
		return cooldown.Error()
	}

	switch KindOf(err) {
	case KindNotAuthenticated:
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) && apiErr.Message != "" {
			return apiErr.Message
		}
		return "Please sign in first."
	case KindNetwork:
		return "Could not reach the server. Check your connection and try again."
	}

	var apiErr *backend.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}

	msg := err.Error()
	if msg == "" {
		return "Something went wrong"
	}
	return strings.ToUpper(msg[:1]) + msg[1:]
}
