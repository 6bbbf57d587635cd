package uid

import "github.com/google/uuid"

// UUID generates time-ordered UUID strings (version 7).
type UUID struct{}

// NewUUID returns a UUID generator.
func NewUUID() *UUID {
	return &UUID{}
}

// Generate returns a new UUID string, falling back to a random (v4) UUID when
// the clock sequence cannot be read.
func (*UUID) Generate() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
