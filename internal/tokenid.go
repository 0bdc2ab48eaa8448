package internal

import (
	"fmt"

	"github.com/google/uuid"
)

// NewTokenID returns a random (version 4) UUID string for the jti claim.
func NewTokenID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("token id: %w", err)
	}
	return id.String(), nil
}

// ValidTokenID reports whether s parses as a UUID.
func ValidTokenID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
