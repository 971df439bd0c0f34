package llm

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

// IsUnavailable reports whether err means the upstream is temporarily
// unable to serve (HTTP 503). Only these failures are worth retrying.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusServiceUnavailable
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusServiceUnavailable
	}

	// langchaingo providers only surface the status in the message.
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "503") || strings.Contains(msg, "service unavailable")
}
