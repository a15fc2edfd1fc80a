package utils

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenerateRunID generates a run ID with a timestamp prefix
func GenerateRunID() string {
	return NewRunID(time.Now())
}

// NewRunID formats a run ID for a run started at t
func NewRunID(t time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("run-%s-%x", t.Format("20060102-150405"), id[:4])
}
