package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/account/usecase"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
	"github.com/shandysiswandi/passcode/internal/pkg/router"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedID string

func (f fixedID) Generate() string { return string(f) }

type fakeUC struct {
	signupIn  *usecase.SignupInput
	loginIn   *usecase.LoginInput
	verifyIn  *usecase.VerifyInput
	loginOut  *usecase.LoginOutput
	err       error
	callCount int
}

func (f *fakeUC) Signup(_ context.Context, in usecase.SignupInput) error {
	f.callCount++
	f.signupIn = &in
	return f.err
}

func (f *fakeUC) Login(_ context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error) {
	f.callCount++
	f.loginIn = &in
	if f.err != nil {
		return nil, f.err
	}
	return f.loginOut, nil
}

func (f *fakeUC) Verify(_ context.Context, in usecase.VerifyInput) error {
	f.callCount++
	f.verifyIn = &in
	return f.err
}

func newHandler(uc uc, mode entity.DeliveryMode) http.Handler {
	r := router.NewRouter(router.Config{UUID: fixedID("cid")})
	RegisterHTTPEndpoint(r, uc, mode)
	return r
}

func post(t *testing.T, h http.Handler, target, body string) (int, map[string]any) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec.Code, out
}

func TestHealth(t *testing.T) {
	h := newHandler(&fakeUC{}, entity.DeliveryEmail)

	req := httptest.NewRequest(http.MethodGet, "/api/health", http.NoBody)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSignup(t *testing.T) {
	tests := []struct {
		name      string
		mode      entity.DeliveryMode
		body      string
		ucErr     error
		wantCode  int
		wantError string
		wantIn    *usecase.SignupInput
	}{
		{
			name:     "Created",
			mode:     entity.DeliveryEmail,
			body:     `{"username":" bob ","password":"secret1","email":"Bob@X.com"}`,
			wantCode: http.StatusCreated,
			wantIn:   &usecase.SignupInput{Username: " bob ", Password: "secret1", Email: "Bob@X.com"},
		},
		{
			name:      "MissingEmail",
			mode:      entity.DeliveryEmail,
			body:      `{"username":"bob","password":"secret1"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "Username, password, and email are required.",
		},
		{
			name:      "NullPassword",
			mode:      entity.DeliveryEmail,
			body:      `{"username":"bob","password":null,"email":"bob@x.com"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "Username, password, and email are required.",
		},
		{
			name:      "WrongType",
			mode:      entity.DeliveryEmail,
			body:      `{"username":42,"password":"secret1","email":"bob@x.com"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "Username, password, and email are required.",
		},
		{
			name:      "NotJSON",
			mode:      entity.DeliveryEmail,
			body:      `username=bob`,
			wantCode:  http.StatusBadRequest,
			wantError: "Username, password, and email are required.",
		},
		{
			name:     "InlineWithoutEmail",
			mode:     entity.DeliveryInline,
			body:     `{"username":"bob","password":"secret1"}`,
			wantCode: http.StatusCreated,
			wantIn:   &usecase.SignupInput{Username: "bob", Password: "secret1"},
		},
		{
			name:      "InlineMissingPassword",
			mode:      entity.DeliveryInline,
			body:      `{"username":"bob"}`,
			wantCode:  http.StatusBadRequest,
			wantError: "Username and password are required.",
		},
		{
			name:      "Conflict",
			mode:      entity.DeliveryEmail,
			body:      `{"username":"bob","password":"secret1","email":"bob@x.com"}`,
			ucErr:     goerror.NewBusiness("Username already exists.", goerror.CodeConflict),
			wantCode:  http.StatusConflict,
			wantError: "Username already exists.",
		},
		{
			name:      "ServerError",
			mode:      entity.DeliveryEmail,
			body:      `{"username":"bob","password":"secret1","email":"bob@x.com"}`,
			ucErr:     goerror.NewServer(errors.New("disk full")),
			wantCode:  http.StatusInternalServerError,
			wantError: "Internal server error.",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeUC{err: tt.ucErr}
			code, out := post(t, newHandler(fake, tt.mode), "/api/signup", tt.body)

			assert.Equal(t, tt.wantCode, code)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, out["error"])
			} else {
				assert.Equal(t, "Signup successful.", out["message"])
			}
			if tt.wantIn != nil {
				assert.Equal(t, tt.wantIn, fake.signupIn)
			}
			if tt.wantCode == http.StatusBadRequest {
				assert.Zero(t, fake.callCount, "malformed requests never reach the usecase")
			}
		})
	}
}

func TestLogin(t *testing.T) {
	t.Run("EmailDelivery", func(t *testing.T) {
		fake := &fakeUC{loginOut: &usecase.LoginOutput{EmailHint: "b*b@x.com"}}
		code, out := post(t, newHandler(fake, entity.DeliveryEmail), "/api/login", `{"username":"bob","password":"secret1"}`)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, map[string]any{
			"message":    "OTP sent to your email address.",
			"email_hint": "b*b@x.com",
		}, out)
		assert.Equal(t, &usecase.LoginInput{Username: "bob", Password: "secret1"}, fake.loginIn)
	})

	t.Run("InlineDelivery", func(t *testing.T) {
		fake := &fakeUC{loginOut: &usecase.LoginOutput{OTP: "012345"}}
		code, out := post(t, newHandler(fake, entity.DeliveryInline), "/api/login", `{"username":"bob","password":"secret1"}`)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "012345", out["otp"])
		assert.NotContains(t, out, "email_hint")
	})

	t.Run("MissingPassword", func(t *testing.T) {
		fake := &fakeUC{}
		code, out := post(t, newHandler(fake, entity.DeliveryEmail), "/api/login", `{"username":"bob"}`)

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Username and password are required.", out["error"])
		assert.Zero(t, fake.callCount)
	})

	t.Run("Unauthorized", func(t *testing.T) {
		fake := &fakeUC{err: goerror.NewBusiness("Invalid credentials.", goerror.CodeUnauthorized)}
		code, out := post(t, newHandler(fake, entity.DeliveryEmail), "/api/login", `{"username":"bob","password":"nope"}`)

		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, map[string]any{"error": "Invalid credentials."}, out)
	})
}

func TestVerify(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		fake := &fakeUC{}
		code, out := post(t, newHandler(fake, entity.DeliveryEmail), "/api/verify", `{"username":"bob","otp":" 123456 "}`)

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, "Verification successful.", out["message"])
		assert.Equal(t, &usecase.VerifyInput{Username: "bob", OTP: " 123456 "}, fake.verifyIn)
	})

	t.Run("NumericOTP", func(t *testing.T) {
		fake := &fakeUC{}
		code, out := post(t, newHandler(fake, entity.DeliveryEmail), "/api/verify", `{"username":"bob","otp":123456}`)

		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, "Username and OTP are required.", out["error"])
		assert.Zero(t, fake.callCount)
	})

	t.Run("Failed", func(t *testing.T) {
		fake := &fakeUC{err: goerror.NewBusiness("OTP verification failed.", goerror.CodeUnauthorized)}
		code, out := post(t, newHandler(fake, entity.DeliveryEmail), "/api/verify", `{"username":"bob","otp":"000000"}`)

		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, "OTP verification failed.", out["error"])
	})
}
