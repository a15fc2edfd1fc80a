package utils

import (
	"regexp"
	"testing"
	"time"
)

func TestGenerateRunID(t *testing.T) {
	id1 := GenerateRunID()
	id2 := GenerateRunID()

	if id1 == id2 {
		t.Error("GenerateRunID should return unique IDs")
	}

	pattern := regexp.MustCompile(`^run-\d{8}-\d{6}-[0-9a-f]{8}$`)
	if !pattern.MatchString(id1) {
		t.Errorf("GenerateRunID has unexpected format: %s", id1)
	}
}

func TestNewRunIDTimestamp(t *testing.T) {
	start := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	id := NewRunID(start)
	if id[:19] != "run-20240309-140507" {
		t.Errorf("NewRunID should start with the run timestamp, got %s", id)
	}
}
