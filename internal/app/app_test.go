package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/shandysiswandi/passcode/internal/pkg/mail/mailtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reCode = regexp.MustCompile(`\b\d{6}\b`)

type testServer struct {
	baseURL string
	client  *http.Client
}

// startApp boots the whole service against a temp SQLite file on a loopback
// port. extra is appended to the generated YAML config.
func startApp(t *testing.T, smtpPort int, extra string) *testServer {
	t.Helper()

	dir := t.TempDir()
	staticDir := filepath.Join(dir, "web")
	require.NoError(t, os.Mkdir(staticDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "index.html"), []byte("<h1>passcode</h1>"), 0o600))

	cfg := fmt.Sprintf(`
app:
  static:
    dir: %q
database:
  driver: sqlite
  sqlite:
    dsn: %q
mail:
  host: 127.0.0.1
  port: %d
  from: noreply@passcode.test
  disable_tls: true
  timeout_seconds: 5
hash:
  bcrypt:
    cost: 4
  otp_secret: e2e-secret
instrument:
  log_level: error
%s`, staticDir, "file:"+filepath.Join(dir, "passcode.db")+"?_pragma=busy_timeout(5000)", smtpPort, extra)

	cfgPath := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))
	t.Setenv("CONFIG_PATH", cfgPath)

	a := New()

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	errCh := a.Serve(l)

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.Stop(ctx)

		if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
			t.Errorf("serve: %v", err)
		}
	})

	return &testServer{
		baseURL: "http://" + l.Addr().String(),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *testServer) post(t *testing.T, path string, payload any) (int, map[string]any) {
	t.Helper()

	body, err := json.Marshal(payload)
	require.NoError(t, err)

	resp, err := s.client.Post(s.baseURL+path, "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (s *testServer) get(t *testing.T, path string) (int, string) {
	t.Helper()

	resp, err := s.client.Get(s.baseURL + path)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(raw)
}

func TestApp_EmailFlow(t *testing.T) {
	smtp := mailtest.NewServer(t)
	srv := startApp(t, smtp.Port(), "")

	code, body := srv.get(t, "/api/health")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"status":"ok"}`, body)

	code, body = srv.get(t, "/")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "<h1>passcode</h1>", body)

	code, body = srv.get(t, "/missing.js")
	assert.Equal(t, http.StatusNotFound, code)
	assert.JSONEq(t, `{"error":"Not found"}`, body)

	status, out := srv.post(t, "/api/signup", map[string]string{"username": "bob", "password": "secret1", "email": "bob@x.com"})
	require.Equal(t, http.StatusCreated, status, out)
	assert.Equal(t, "Signup successful.", out["message"])

	status, out = srv.post(t, "/api/signup", map[string]string{"username": "BOB", "password": "secret1", "email": "other@x.com"})
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "Username already exists.", out["error"])

	status, out = srv.post(t, "/api/login", map[string]string{"username": "bob", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Invalid credentials.", out["error"])

	status, out = srv.post(t, "/api/login", map[string]string{"username": "bob", "password": "secret1"})
	require.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "OTP sent to your email address.", out["message"])
	assert.Equal(t, "b*b@x.com", out["email_hint"])

	msg, ok := smtp.Last()
	require.True(t, ok)
	assert.Equal(t, []string{"bob@x.com"}, msg.To)
	otp := reCode.FindString(msg.Body)
	require.NotEmpty(t, otp, msg.Body)

	status, out = srv.post(t, "/api/verify", map[string]string{"username": "bob", "otp": otp})
	assert.Equal(t, http.StatusOK, status, out)
	assert.Equal(t, "Verification successful.", out["message"])

	status, out = srv.post(t, "/api/verify", map[string]string{"username": "bob", "otp": otp})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "OTP verification failed.", out["error"])
}

func TestApp_DispatchFailureLeavesNoOTP(t *testing.T) {
	smtp := mailtest.NewServer(t)
	srv := startApp(t, smtp.Port(), "")

	status, _ := srv.post(t, "/api/signup", map[string]string{"username": "carol", "password": "secret1", "email": "carol@x.com"})
	require.Equal(t, http.StatusCreated, status)

	smtp.Reject(true)
	status, out := srv.post(t, "/api/login", map[string]string{"username": "carol", "password": "secret1"})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Could not send OTP email. Try again later.", out["error"])

	// no pending code is left to guess against
	status, _ = srv.post(t, "/api/verify", map[string]string{"username": "carol", "otp": "000000"})
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestApp_InlineFlow(t *testing.T) {
	smtp := mailtest.NewServer(t)
	srv := startApp(t, smtp.Port(), "modules:\n  account:\n    delivery: inline\n")

	status, out := srv.post(t, "/api/signup", map[string]string{"username": "dave", "password": "secret1"})
	require.Equal(t, http.StatusCreated, status, out)

	status, out = srv.post(t, "/api/login", map[string]string{"username": "dave", "password": "secret1"})
	require.Equal(t, http.StatusOK, status, out)
	otp, _ := out["otp"].(string)
	require.Len(t, otp, 6)
	assert.Empty(t, smtp.Messages())

	status, _ = srv.post(t, "/api/verify", map[string]string{"username": "dave", "otp": otp})
	assert.Equal(t, http.StatusOK, status)
}
