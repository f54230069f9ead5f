package utils

import (
	"crypto/rand"
)

const idAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// EnrollmentIDLength matches the record id shape of the primary store.
const EnrollmentIDLength = 15

// GenerateID returns n random characters from [a-z0-9].
func GenerateID(n int) (string, error) {
	// Make a slice of n random bytes.
	byt := make([]byte, n)

	// Read into the slice.
	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	for i := range byt {
		byt[i] = idAlphabet[int(byt[i])%len(idAlphabet)]
	}

	return string(byt), nil
}

// NewEnrollmentID generates an id accepted by every enrollment store.
func NewEnrollmentID() (string, error) {
	return GenerateID(EnrollmentIDLength)
}
