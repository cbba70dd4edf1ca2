package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a prefixed unique identifier
func GenerateID(prefix string) string {
	return fmt.Sprintf("%s-%s", prefix, uuid.New().String()[:8])
}

// GetCurrentTime returns the current UTC time
func GetCurrentTime() time.Time {
	return time.Now().UTC()
}
