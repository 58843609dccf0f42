package scorekeeper

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// ConnectivityMessage is shown when no response was received at all. Raw
// transport error text never reaches the user.
const ConnectivityMessage = "Could not reach the scorekeeper service. Check your connection and try again."

// maxVerbatimBodyLen caps how much of a non-JSON error body is shown
// verbatim before falling back to the generic message.
const maxVerbatimBodyLen = 500

// APIError is the uniform shape every failed scorekeeper call is normalized
// into. StatusCode is 0 for transport failures.
type APIError struct {
	StatusCode  int
	UserMessage string

	cause error
}

func (e *APIError) Error() string {
	if e.StatusCode == 0 {
		return e.UserMessage
	}
	return fmt.Sprintf("%s (status=%d)", e.UserMessage, e.StatusCode)
}

// Unwrap exposes the underlying transport error for logging; it is never
// part of the user-facing message.
func (e *APIError) Unwrap() error {
	return e.cause
}

// AsAPIError attempts to unwrap an error into an APIError.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// messageProbes are tried in order against a decoded error body; the first
// match wins. More structured shapes take precedence over looser ones. The
// upstream service has drifted between these shapes over time, so this must
// stay tolerant of all of them.
var messageProbes = []func(body map[string]any) (string, bool){
	func(body map[string]any) (string, bool) {
		msg, ok := body["error"].(string)
		return msg, ok && msg != ""
	},
	func(body map[string]any) (string, bool) {
		nested, ok := body["error"].(map[string]any)
		if !ok {
			return "", false
		}
		msg, ok := nested["message"].(string)
		return msg, ok && msg != ""
	},
	func(body map[string]any) (string, bool) {
		msg, ok := body["message"].(string)
		return msg, ok && msg != ""
	},
	func(body map[string]any) (string, bool) {
		msg, ok := body["detail"].(string)
		return msg, ok && msg != ""
	},
}

// normalizeError maps an error response body to an APIError by probing
// known body shapes. Non-JSON bodies under maxVerbatimBodyLen characters
// are used verbatim; anything else falls back to a generic message.
func normalizeError(statusCode int, body []byte) *APIError {
	return &APIError{
		StatusCode:  statusCode,
		UserMessage: extractMessage(statusCode, body),
	}
}

func extractMessage(statusCode int, body []byte) string {
	var decoded map[string]any
	if err := json.Unmarshal(body, &decoded); err == nil {
		for _, probe := range messageProbes {
			if msg, ok := probe(decoded); ok {
				return msg
			}
		}
		return fallbackMessage(statusCode)
	}

	text := strings.TrimSpace(string(body))
	if text != "" && utf8.RuneCountInString(text) < maxVerbatimBodyLen {
		return text
	}
	return fallbackMessage(statusCode)
}

func fallbackMessage(statusCode int) string {
	return fmt.Sprintf("Request failed with status %d", statusCode)
}

// transportError wraps a no-response failure (DNS, refused connection,
// cancelled context) into the uniform shape with connectivity advice.
func transportError(err error) *APIError {
	return &APIError{StatusCode: 0, UserMessage: ConnectivityMessage, cause: err}
}
