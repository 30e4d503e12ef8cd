package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"ugly/models"
)

// NetworkError means the request never reached the service or the response
// never made it back.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// ProtocolError means the service answered with a success status but the
// body was not the expected shape.
type ProtocolError struct {
	Err error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol error: %v", e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// ApplicationError is a non-success response. Message is empty when the body
// did not carry a usable message.
type ApplicationError struct {
	Status  int
	Message string
}

func (e *ApplicationError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("service responded with status %d", e.Status)
	}
	return fmt.Sprintf("service responded with status %d: %s", e.Status, e.Message)
}

// ParseMessage extracts the message field of a failure body. It reports false
// for anything that is not a JSON object with a non-empty string message.
func ParseMessage(body []byte) (string, bool) {
	var response models.MessageResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", false
	}
	message := strings.TrimSpace(response.Message)
	if message == "" {
		return "", false
	}
	return message, true
}

// UserMessage returns the text to show a user for err. Only application
// errors with a message are shown verbatim, everything else gets fallback.
func UserMessage(err error, fallback string) string {
	var appErr *ApplicationError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
