package scorekeeper

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestExtractMessageProbingOrder(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"error string", `{"error": "Y"}`, "Y"},
		{"nested error message", `{"error": {"message": "X"}}`, "X"},
		{"message", `{"message": "Z"}`, "Z"},
		{"detail", `{"detail": "D"}`, "D"},
		{"error string beats message", `{"error": "first", "message": "second"}`, "first"},
		{"nested beats plain message", `{"error": {"message": "nested"}, "message": "plain"}`, "nested"},
		{"message beats detail", `{"message": "msg", "detail": "det"}`, "msg"},
		{"empty object falls back", `{}`, "Request failed with status 500"},
		{"unrecognized shape falls back", `{"code": 42}`, "Request failed with status 500"},
		{"error is number falls back", `{"error": 42}`, "Request failed with status 500"},
		{"short non-JSON verbatim", "service unavailable", "service unavailable"},
		{"empty body falls back", "", "Request failed with status 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := extractMessage(500, []byte(tt.body))
			if got != tt.want {
				t.Errorf("extractMessage = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExtractMessageLongNonJSONBody(t *testing.T) {
	long := strings.Repeat("x", maxVerbatimBodyLen)
	got := extractMessage(502, []byte(long))
	if got != "Request failed with status 502" {
		t.Errorf("long non-JSON body should fall back, got %q", got)
	}

	short := strings.Repeat("x", maxVerbatimBodyLen-1)
	if got := extractMessage(502, []byte(short)); got != short {
		t.Error("body just under the limit should be used verbatim")
	}
}

func TestNormalizeError(t *testing.T) {
	apiErr := normalizeError(404, []byte(`{"error": "not here"}`))
	if apiErr.StatusCode != 404 || apiErr.UserMessage != "not here" {
		t.Errorf("normalizeError = %+v", apiErr)
	}
}

func TestTransportErrorHidesCause(t *testing.T) {
	cause := fmt.Errorf("dial tcp: connection refused")
	apiErr := transportError(cause)

	if apiErr.StatusCode != 0 {
		t.Errorf("StatusCode = %d, want 0", apiErr.StatusCode)
	}
	if apiErr.UserMessage != ConnectivityMessage {
		t.Errorf("UserMessage = %q, want connectivity advice", apiErr.UserMessage)
	}
	if strings.Contains(apiErr.UserMessage, "dial tcp") {
		t.Error("raw transport text must not leak into the user message")
	}
	if !errors.Is(apiErr, cause) {
		t.Error("cause should remain unwrappable for logging")
	}
}

func TestAsAPIError(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", &APIError{StatusCode: 401, UserMessage: "nope"})
	apiErr, ok := AsAPIError(wrapped)
	if !ok || apiErr.StatusCode != 401 {
		t.Errorf("AsAPIError = %+v, %v", apiErr, ok)
	}
	if _, ok := AsAPIError(errors.New("plain")); ok {
		t.Error("plain errors should not unwrap into APIError")
	}
}
