package hash

import (
	"crypto/sha256"
	"encoding/base64"

	"golang.org/x/crypto/bcrypt"
)

// bcryptMaxInput is the number of input bytes bcrypt actually consumes.
const bcryptMaxInput = 72

// Bcrypt implements Hash using bcrypt.
//
// Pepper is appended to the plaintext before hashing/verifying. Keep the pepper
// secret and store it in configuration (not in the database).
type Bcrypt struct {
	cost   int
	pepper string
}

// NewBcrypt returns a bcrypt-based hasher.
//
// cost controls the hashing work factor; values outside bcrypt's accepted
// range fall back to bcrypt.DefaultCost.
func NewBcrypt(cost int, pepper string) *Bcrypt {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}

	return &Bcrypt{cost: cost, pepper: pepper}
}

// Hash hashes plaintext using bcrypt.
func (h *Bcrypt) Hash(plaintext string) ([]byte, error) {
	return bcrypt.GenerateFromPassword(h.input(plaintext), h.cost)
}

// Verify returns true when plaintext matches the hashed value.
func (h *Bcrypt) Verify(hashed []byte, plaintext string) bool {
	if len(hashed) == 0 {
		return false
	}

	return bcrypt.CompareHashAndPassword(hashed, h.input(plaintext)) == nil
}

// input pre-hashes inputs longer than bcrypt accepts so long passwords keep
// all of their entropy instead of being rejected.
func (h *Bcrypt) input(plaintext string) []byte {
	in := []byte(plaintext + h.pepper)
	if len(in) <= bcryptMaxInput {
		return in
	}

	sum := sha256.Sum256(in)
	out := make([]byte, base64.StdEncoding.EncodedLen(len(sum)))
	base64.StdEncoding.Encode(out, sum[:])

	return out
}
