package otp

import (
	"bytes"
	"errors"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reCode = regexp.MustCompile(`^[0-9]{6}$`)

func TestGenerators_Shape(t *testing.T) {
	for _, name := range []string{"random", "hotp"} {
		t.Run(name, func(t *testing.T) {
			gen, err := New(name)
			require.NoError(t, err)

			seen := make(map[string]struct{})
			for range 200 {
				code, err := gen.Generate()
				require.NoError(t, err)
				assert.Regexp(t, reCode, code)
				seen[code] = struct{}{}
			}

			assert.Greater(t, len(seen), 150, "codes should not repeat often")
		})
	}
}

func TestRandom_ZeroPadded(t *testing.T) {
	r := &Random{src: bytes.NewReader(make([]byte, 64))}

	code, err := r.Generate()
	require.NoError(t, err)
	assert.Equal(t, "000000", code)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerators_SourceFailure(t *testing.T) {
	_, err := (&Random{src: failingReader{}}).Generate()
	assert.Error(t, err)

	_, err = (&HOTP{src: failingReader{}}).Generate()
	assert.Error(t, err)
}

func TestHOTP_Deterministic(t *testing.T) {
	secret := bytes.Repeat([]byte{0x01}, 20)

	a, err := (&HOTP{src: bytes.NewReader(secret)}).Generate()
	require.NoError(t, err)
	b, err := (&HOTP{src: bytes.NewReader(secret)}).Generate()
	require.NoError(t, err)

	assert.Equal(t, a, b)
}

func TestNew_Unknown(t *testing.T) {
	_, err := New("totp")
	assert.Error(t, err)
}
