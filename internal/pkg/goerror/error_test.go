package goerror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid format", err: NewInvalidFormat(), want: http.StatusBadRequest},
		{name: "invalid input", err: NewInvalidInput("bad", nil), want: http.StatusBadRequest},
		{name: "unauthorized", err: NewBusiness("no", CodeUnauthorized), want: http.StatusUnauthorized},
		{name: "conflict", err: NewBusiness("dup", CodeConflict), want: http.StatusConflict},
		{name: "unavailable", err: NewBusiness("off", CodeUnavailable), want: http.StatusServiceUnavailable},
		{name: "server", err: NewServer(errors.New("boom")), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ge, ok := As(tt.err)
			require.True(t, ok)
			assert.Equal(t, tt.want, ge.StatusCode())
		})
	}
}

func TestNewServer(t *testing.T) {
	cause := errors.New("db down")

	err := NewServer(cause)
	ge, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, "Internal server error.", ge.Msg())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, TypeServer, ge.Type())

	err = NewServer(cause, "Could not send OTP email. Try again later.")
	ge, _ = As(err)
	assert.Equal(t, "Could not send OTP email. Try again later.", ge.Msg())
}

func TestNewInvalidInput(t *testing.T) {
	fields := map[string]string{"password": "too short"}

	err := NewInvalidInput("Invalid signup details.", fields)
	fields["password"] = "mutated"

	ge, ok := As(fmt.Errorf("wrapped: %w", err))
	require.True(t, ok)
	assert.Equal(t, CodeInvalidInput, ge.Code())
	assert.Equal(t, "too short", ge.Fields()["password"])
	assert.Equal(t, "Invalid signup details.", ge.Error())
}

func TestAs_PlainError(t *testing.T) {
	_, ok := As(errors.New("plain"))
	assert.False(t, ok)
}
