// Package util provides shared utility functions.
package util

import "github.com/google/uuid"

// NewSessionID returns a random identifier for a transfer session.
func NewSessionID() string {
	return uuid.NewString()
}

// ShortID trims a session id to its first group for log output.
func ShortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
