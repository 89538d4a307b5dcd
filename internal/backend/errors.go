package backend

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// CodeNoRows is the code returned when a single-row request matched nothing
const CodeNoRows = "PGRST116"

// ErrNotAuthenticated is returned when a call needs a session and none is held
var ErrNotAuthenticated = errors.New("not authenticated")

// APIError is a non-2xx response from the backend
type APIError struct {
	Status  int
	Code    string
	Message string
	Details string
	Hint    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	if e.Code != "" {
		return fmt.Sprintf("%s (%s)", msg, e.Code)
	}
	return msg
}

// IsNoRows reports whether err is the "no rows" result of a single-row request
func IsNoRows(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == CodeNoRows
}

// IsStatus reports whether err is an APIError with the given HTTP status
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// errorBody covers the error shapes of the table API and the auth API
type errorBody struct {
	Code             json.RawMessage `json:"code"`
	ErrorCode        string          `json:"error_code"`
	Message          string          `json:"message"`
	Msg              string          `json:"msg"`
	Error            string          `json:"error"`
	ErrorDescription string          `json:"error_description"`
	Details          json.RawMessage `json:"details"`
	Hint             string          `json:"hint"`
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(raw) == 0 {
		return apiErr
	}

	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil {
		apiErr.Message = strings.TrimSpace(string(raw))
		return apiErr
	}

	apiErr.Message = firstNonEmpty(body.Message, body.Msg, body.ErrorDescription, body.Error)
	apiErr.Code = firstNonEmpty(body.ErrorCode, rawString(body.Code))
	if apiErr.Code == "" && body.Error != "" && apiErr.Message != body.Error {
		apiErr.Code = body.Error
	}
	apiErr.Details = rawString(body.Details)
	apiErr.Hint = body.Hint

	return apiErr
}

// rawString renders a JSON scalar without quotes
func rawString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
