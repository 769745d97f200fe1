package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrEmptyPrompt is returned when an image is requested for a blank prompt.
	ErrEmptyPrompt = errors.New("image prompt is empty")
	// ErrNoImage is returned when a provider answered without image data.
	ErrNoImage = errors.New("no image data in response")
	// ErrImagesUnsupported is returned by providers without image generation.
	ErrImagesUnsupported = errors.New("image generation is not supported by this provider")
)

// ErrorKind is the user-facing classification of a provider failure.
type ErrorKind int

const (
	KindGeneric ErrorKind = iota
	KindAuth              // invalid or missing credentials, permission denied
	KindQuota             // rate limited or quota exhausted
	KindServer            // 5xx
)

func (k ErrorKind) String() string {
	switch k {
	case KindAuth:
		return "auth"
	case KindQuota:
		return "quota"
	case KindServer:
		return "server"
	default:
		return "generic"
	}
}

// Fatal reports whether the kind ends the session.
func (k ErrorKind) Fatal() bool {
	return k != KindGeneric
}

// APIError is a provider failure normalized across SDKs.
type APIError struct {
	Provider   string
	StatusCode int
	Code       string // provider status code, e.g. RESOURCE_EXHAUSTED
	Message    string
	Err        error
}

func (e *APIError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: %s", e.Provider, e.Message)
}

func (e *APIError) Unwrap() error { return e.Err }

// HTTPStatus exposes the status to the retry policy.
func (e *APIError) HTTPStatus() int { return e.StatusCode }

// Classify maps an error to its ErrorKind using the status code first and
// the message text second.
func Classify(err error) ErrorKind {
	if err == nil || errors.Is(err, context.Canceled) {
		return KindGeneric
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden ||
			apiErr.Code == "PERMISSION_DENIED" || apiErr.Code == "UNAUTHENTICATED":
			return KindAuth
		case apiErr.StatusCode == http.StatusTooManyRequests || apiErr.Code == "RESOURCE_EXHAUSTED":
			return KindQuota
		case apiErr.StatusCode >= 500 && apiErr.StatusCode <= 599:
			return KindServer
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "api key not valid") || strings.Contains(msg, "authentication failed"):
		return KindAuth
	case strings.Contains(msg, "quota") || strings.Contains(msg, "rate limit"):
		return KindQuota
	}
	return KindGeneric
}

// StoryErrorMessage renders a failed story request for the player.
func StoryErrorMessage(err error) string {
	switch Classify(err) {
	case KindAuth:
		return "Failed to get story response: API key is invalid or lacks permissions."
	case KindQuota:
		return "Failed to get story response: Rate limit or quota exceeded. Please try again later."
	case KindServer:
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return fmt.Sprintf("Failed to get story response: Server error (status %d). Please try again later.", apiErr.StatusCode)
		}
		return "Failed to get story response: Server error. Please try again later."
	default:
		return "Failed to get story response: " + err.Error()
	}
}

// SessionErrorMessage renders a failed session start for the player.
func SessionErrorMessage(err error) string {
	switch Classify(err) {
	case KindAuth:
		return "Error starting chat: API key is invalid or lacks permissions."
	case KindQuota:
		return "Error starting chat: Rate limit or quota exceeded."
	default:
		return "Error starting chat: " + err.Error()
	}
}
