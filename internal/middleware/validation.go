package middleware

import (
	"errors"
	"unicode/utf8"

	"github.com/google/uuid"
)

// ValidatePrompt validates an agent prompt.
func ValidatePrompt(prompt string) error {
	if len(prompt) == 0 {
		return errors.New("prompt cannot be empty")
	}
	if len(prompt) > 100000 { // ~100KB limit
		return errors.New("prompt exceeds maximum length")
	}
	if !utf8.ValidString(prompt) {
		return errors.New("prompt must be valid UTF-8")
	}
	return nil
}

// ValidateThingID validates a Thing ID.
func ValidateThingID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid thing ID format")
	}
	return nil
}

// ValidateSessionID validates an agent session ID.
func ValidateSessionID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return errors.New("invalid session ID format")
	}
	return nil
}

// ValidateThingName validates a Thing name.
func ValidateThingName(name string) error {
	if len(name) == 0 {
		return errors.New("name cannot be empty")
	}
	if len(name) > 256 {
		return errors.New("name exceeds maximum length")
	}
	if !utf8.ValidString(name) {
		return errors.New("name must be valid UTF-8")
	}
	return nil
}

// ValidateDocumentBody validates markdown document content.
func ValidateDocumentBody(body string) error {
	if len(body) > 1<<20 { // 1MB limit
		return errors.New("document exceeds maximum length")
	}
	if !utf8.ValidString(body) {
		return errors.New("document must be valid UTF-8")
	}
	return nil
}
