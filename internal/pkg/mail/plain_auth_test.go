package mail

import (
	"net/smtp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlainAuth_UnencryptedRemoteRelay(t *testing.T) {
	server := &smtp.ServerInfo{Name: "relay.example.com", TLS: false, Auth: []string{"LOGIN", "PLAIN"}}

	s, err := NewSMTP(SMTPConfig{Host: "relay.example.com", Port: 25, Username: "u", Password: "p", TLS: TLSNone})
	require.NoError(t, err)

	proto, resp, err := s.auth.Start(server)
	require.NoError(t, err)
	assert.Equal(t, "PLAIN", proto)
	assert.Equal(t, []byte("\x00u\x00p"), resp)

	next, err := s.auth.Next(nil, false)
	assert.NoError(t, err)
	assert.Nil(t, next)

	_, err = s.auth.Next([]byte("challenge"), true)
	assert.Error(t, err)
}

func TestPlainAuth_RequiresPlainMechanism(t *testing.T) {
	a := &plainAuth{username: "u", password: "p"}

	_, _, err := a.Start(&smtp.ServerInfo{Name: "relay.example.com", Auth: []string{"CRAM-MD5"}})
	assert.ErrorIs(t, err, ErrSMTPAuthUnsupported)
}

func TestPlainAuth_TLSModesKeepStdlibCheck(t *testing.T) {
	s, err := NewSMTP(SMTPConfig{Host: "relay.example.com", Port: 587, Username: "u", Password: "p", TLS: TLSStartTLS})
	require.NoError(t, err)

	_, isPlain := s.auth.(*plainAuth)
	assert.False(t, isPlain)
}
