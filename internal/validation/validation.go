// Package validation holds the client-side format checks run before anything
// is submitted to the backend. Every function is pure.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"
)

var (
	emailRegex  = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	letterRegex = regexp.MustCompile(`[a-zA-Z]`)
	digitRegex  = regexp.MustCompile(`\d`)
	leadingInt  = regexp.MustCompile(`^[+-]?\d+`)
	screenTimes = []int{30, 45, 60, 90, 120}
)

const (
	MinPasswordLength   = 6
	MaxPasswordLength   = 128
	MinChildAge         = 3
	MaxChildAge         = 18
	MaxParentNameLength = 50
	MaxChildNameLength  = 30
	MaxRedoReasonLength = 200
	MaxAffirmationText  = 200
)

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return ValidationError{Field: "email", Message: "Email is required"}
	}
	if !emailRegex.MatchString(email) {
		return ValidationError{Field: "email", Message: "Please enter a valid email address"}
	}
	return nil
}

// ValidatePassword checks length bounds and that the password mixes letters and digits
func ValidatePassword(password string) error {
	if password == "" {
		return ValidationError{Field: "password", Message: "Password is required"}
	}
	if len(password) < MinPasswordLength {
		return ValidationError{Field: "password", Message: "Password must be at least 6 characters"}
	}
	if len(password) > MaxPasswordLength {
		return ValidationError{Field: "password", Message: "Password is too long"}
	}
	if !letterRegex.MatchString(password) || !digitRegex.MatchString(password) {
		return ValidationError{Field: "password", Message: "Password must contain at least one letter and one number"}
	}
	return nil
}

// ValidatePasswordMatch checks the confirmation field
func ValidatePasswordMatch(password, confirm string) error {
	if password != confirm {
		return ValidationError{Field: "confirm_password", Message: "Passwords do not match"}
	}
	return nil
}

// ValidateParentName checks the parent's display name
func ValidateParentName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "parent_name", Message: "Name is required"}
	}
	n := utf8.RuneCountInString(name)
	if n < 2 {
		return ValidationError{Field: "parent_name", Message: "Name must be at least 2 characters"}
	}
	if n > MaxParentNameLength {
		return ValidationError{Field: "parent_name", Message: "Name is too long"}
	}
	return nil
}

// ValidateChildName checks a child's display name
func ValidateChildName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return ValidationError{Field: "name", Message: "Child's name is required"}
	}
	if utf8.RuneCountInString(name) > MaxChildNameLength {
		return ValidationError{Field: "name", Message: "Child's name is too long"}
	}
	return nil
}

// ParseChildAge reads the leading integer of the input, the way form fields are read.
// "7 years" parses as 7.
func ParseChildAge(age string) (int, error) {
	m := leadingInt.FindString(strings.TrimSpace(age))
	if m == "" {
		return 0, ValidationError{Field: "age", Message: "Please enter a valid age"}
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, ValidationError{Field: "age", Message: "Please enter a valid age"}
	}
	return n, nil
}

// ValidateChildAge checks that the age is a number between 3 and 18 inclusive
func ValidateChildAge(age string) error {
	if strings.TrimSpace(age) == "" {
		return ValidationError{Field: "age", Message: "Age is required"}
	}
	n, err := ParseChildAge(age)
	if err != nil {
		return err
	}
	if n < MinChildAge {
		return ValidationError{Field: "age", Message: "Age must be at least 3 years"}
	}
	if n > MaxChildAge {
		return ValidationError{Field: "age", Message: "Age must be 18 or younger"}
	}
	return nil
}

// ScreenTimeOptions returns the daily allowances a parent can pick from
func ScreenTimeOptions() []int {
	return append([]int(nil), screenTimes...)
}

// ValidateScreenTime checks the daily allowance is one of the offered options
func ValidateScreenTime(minutes int) error {
	for _, m := range screenTimes {
		if m == minutes {
			return nil
		}
	}
	return ValidationError{Field: "daily_screen_time_minutes", Message: "Please choose 30, 45, 60, 90 or 120 minutes"}
}

// ValidateRedoReason checks the optional note attached to a redo request
func ValidateRedoReason(reason string) error {
	if utf8.RuneCountInString(strings.TrimSpace(reason)) > MaxRedoReasonLength {
		return ValidationError{Field: "redo_reason", Message: "Reason is too long"}
	}
	return nil
}

// ValidateAffirmationText checks a custom affirmation
func ValidateAffirmationText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ValidationError{Field: "text", Message: "Affirmation text is required"}
	}
	if utf8.RuneCountInString(text) > MaxAffirmationText {
		return ValidationError{Field: "text", Message: "Affirmation is too long"}
	}
	return nil
}

// FormatErrors joins several messages into one alert body, numbering them when there is more than one
func FormatErrors(errs []string) string {
	switch len(errs) {
	case 0:
		return ""
	case 1:
		return errs[0]
	}

	lines := make([]string, len(errs))
	for i, e := range errs {
		lines[i] = fmt.Sprintf("%d. %s", i+1, e)
	}
	return strings.Join(lines, "\n")
}

// Messages extracts the user-facing messages of the non-nil errors
func Messages(errs ...error) []string {
	var out []string
	for _, err := range errs {
		if err == nil {
			continue
		}
		if ve, ok := err.(ValidationError); ok {
			out = append(out, ve.Message)
			continue
		}
		out = append(out, err.Error())
	}
	return out
}
