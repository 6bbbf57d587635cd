package otp

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"io"
	"math/big"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

// Digits is the length of every generated code.
const Digits = 6

var codeSpace = big.NewInt(1_000_000)

// Generator produces one-time passcodes.
type Generator interface {
	// Generate returns a fresh zero-padded six digit code.
	Generate() (string, error)
}

// Random draws codes uniformly from 000000-999999 using crypto/rand.
type Random struct {
	src io.Reader
}

// NewRandom returns a Random generator reading from crypto/rand.
func NewRandom() *Random {
	return &Random{src: rand.Reader}
}

// Generate returns a uniformly distributed six digit code.
func (r *Random) Generate() (string, error) {
	n, err := rand.Int(r.src, codeSpace)
	if err != nil {
		return "", fmt.Errorf("read random code: %w", err)
	}

	return fmt.Sprintf("%0*d", Digits, n.Int64()), nil
}

// HOTP derives each code from a fresh random 160-bit secret with the
// HMAC-based one-time password algorithm (RFC 4226) at counter zero.
//
// The dynamic truncation makes the distribution uniform up to a bias
// below 2^-11 per value.
type HOTP struct {
	src io.Reader
}

// NewHOTP returns a HOTP generator reading secrets from crypto/rand.
func NewHOTP() *HOTP {
	return &HOTP{src: rand.Reader}
}

// Generate returns a six digit HOTP code for a throwaway secret.
func (h *HOTP) Generate() (string, error) {
	secret := make([]byte, 20)
	if _, err := io.ReadFull(h.src, secret); err != nil {
		return "", fmt.Errorf("read hotp secret: %w", err)
	}

	code, err := hotp.GenerateCodeCustom(
		base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret),
		0,
		hotp.ValidateOpts{Digits: otp.DigitsSix, Algorithm: otp.AlgorithmSHA1},
	)
	if err != nil {
		return "", fmt.Errorf("generate hotp code: %w", err)
	}

	return code, nil
}

// New returns the generator registered under name ("random" or "hotp").
func New(name string) (Generator, error) {
	switch name {
	case "", "random":
		return NewRandom(), nil
	case "hotp":
		return NewHOTP(), nil
	default:
		return nil, fmt.Errorf("unknown otp generator %q", name)
	}
}
