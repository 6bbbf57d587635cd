package entity

import (
	"fmt"
	"strings"
	"time"

	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
)

var (
	ErrDuplicateUsername = fmt.Errorf("account: username already exists: %w", goerror.ErrConflict)
	ErrDuplicateEmail    = fmt.Errorf("account: email already registered: %w", goerror.ErrConflict)
)

// Account is a registered user together with its one-time passcode slot.
type Account struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	// OTPDigest is the keyed digest of the pending passcode, empty when none is pending.
	OTPDigest   string
	OTPIssuedAt *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (a *Account) OTPState() OTPState {
	if a == nil || a.OTPDigest == "" {
		return OTPStateNone
	}
	return OTPStatePending
}

type NewAccount struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// NormalizeUsername trims surrounding whitespace. Case is kept for display;
// comparisons go through Key.
func NormalizeUsername(username string) string {
	return strings.TrimSpace(username)
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Key is the case-insensitive form used for uniqueness and lookups.
func Key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// LockKey names the per-account lock that serializes OTP slot writes.
func LockKey(username string) string {
	return "account:" + Key(username)
}
