package hash

// Hash turns a secret into an opaque, storable value and checks candidates
// against it.
type Hash interface {
	// Hash returns the stored representation of plaintext.
	Hash(plaintext string) ([]byte, error)
	// Verify reports whether plaintext matches hashed. It never panics and
	// returns false for malformed hashed input.
	Verify(hashed []byte, plaintext string) bool
}
