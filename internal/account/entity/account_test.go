package entity

import (
	"errors"
	"testing"
	"time"

	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAccount_OTPState(t *testing.T) {
	var nilAccount *Account
	assert.Equal(t, OTPStateNone, nilAccount.OTPState())
	assert.Equal(t, OTPStateNone, (&Account{}).OTPState())

	now := time.Now()
	acc := &Account{OTPDigest: "abc", OTPIssuedAt: &now}
	assert.Equal(t, OTPStatePending, acc.OTPState())
	assert.Equal(t, "Pending", acc.OTPState().String())
}

func TestNormalize(t *testing.T) {
	assert.Equal(t, "Bob", NormalizeUsername("  Bob \t"))
	assert.Equal(t, "bob@x.com", NormalizeEmail(" Bob@X.com "))
	assert.Equal(t, "bob", Key(" BoB "))
	assert.Equal(t, "account:bob", LockKey("BOB "))
}

func TestDuplicateErrorsAreConflicts(t *testing.T) {
	assert.True(t, errors.Is(ErrDuplicateUsername, goerror.ErrConflict))
	assert.True(t, errors.Is(ErrDuplicateEmail, goerror.ErrConflict))
	assert.False(t, errors.Is(ErrDuplicateUsername, ErrDuplicateEmail))
}

func TestParseDeliveryMode(t *testing.T) {
	tests := []struct {
		in      string
		want    DeliveryMode
		wantErr bool
	}{
		{in: "", want: DeliveryEmail},
		{in: "email", want: DeliveryEmail},
		{in: " Inline ", want: DeliveryInline},
		{in: "sms", want: DeliveryEmail, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDeliveryMode(tt.in)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrDeliveryModeUnknown)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}

	assert.True(t, DeliveryEmail.RequiresEmail())
	assert.False(t, DeliveryInline.RequiresEmail())
	assert.Equal(t, "inline", DeliveryInline.String())
}
