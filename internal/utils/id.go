package utils

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// NewEventID returns a time-ordered UUIDv7, or a random UUIDv4 if v7 generation fails.
func NewEventID() string {
	id, err := uuid.NewV7()
	if err != nil {
		logrus.WithError(err).Warn("Failed to generate UUIDv7, falling back to UUIDv4")
		return uuid.New().String()
	}
	return id.String()
}
