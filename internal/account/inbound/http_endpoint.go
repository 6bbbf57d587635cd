package inbound

import (
	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/account/usecase"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
	"github.com/shandysiswandi/passcode/internal/pkg/router"
)

const (
	msgSignupFieldsEmail  = "Username, password, and email are required."
	msgSignupFieldsInline = "Username and password are required."
	msgLoginFields        = "Username and password are required."
	msgVerifyFields       = "Username and OTP are required."
)

// HTTPEndpoint exposes the account workflows over JSON.
type HTTPEndpoint struct {
	uc   uc
	mode entity.DeliveryMode
}

// Health reports liveness.
// @Summary Health check
// @Tags Account
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /api/health [get]
func (h *HTTPEndpoint) Health(*router.Request) (any, error) {
	return HealthResponse{Status: "ok"}, nil
}

// Signup registers a new account.
// @Summary Register account
// @Description Creates an account. Email is required unless OTPs are delivered inline.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body SignupRequest true "Signup payload"
// @Success 201 {object} SignupResponse
// @Failure 400 {object} router.ErrorResponse "Missing fields or invalid details"
// @Failure 409 {object} router.ErrorResponse "Username or email taken"
// @Failure 500 {object} router.ErrorResponse "Internal server error"
// @Router /api/signup [post]
func (h *HTTPEndpoint) Signup(r *router.Request) (any, error) {
	msg := msgSignupFieldsEmail
	if !h.mode.RequiresEmail() {
		msg = msgSignupFieldsInline
	}

	var req SignupRequest
	if err := r.DecodeBody(&req, msg); err != nil {
		return nil, err
	}

	if req.Username == nil || req.Password == nil || (h.mode.RequiresEmail() && req.Email == nil) {
		return nil, goerror.NewInvalidFormat(msg)
	}

	in := usecase.SignupInput{Username: *req.Username, Password: *req.Password}
	if req.Email != nil {
		in.Email = *req.Email
	}

	if err := h.uc.Signup(r.Context(), in); err != nil {
		return nil, err
	}

	return SignupResponse{Message: "Signup successful."}, nil
}

// Login checks the password and issues a one-time passcode.
// @Summary Password login
// @Description Verifies credentials, then emails a 6-digit OTP or returns it inline.
// @Tags Account
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} router.ErrorResponse "Missing fields or no email on file"
// @Failure 401 {object} router.ErrorResponse "Invalid credentials"
// @Failure 500 {object} router.ErrorResponse "OTP could not be sent"
// @Router /api/login [post]
func (h *HTTPEndpoint) Login(r *router.Request) (any, error) {
	var req LoginRequest
	if err := r.DecodeBody(&req, msgLoginFields); err != nil {
		return nil, err
	}

	if req.Username == nil || req.Password == nil {
		return nil, goerror.NewInvalidFormat(msgLoginFields)
	}

	resp, err := h.uc.Login(r.Context(), usecase.LoginInput{
		Username: *req.Username,
		Password: *req.Password,
	})
	if err != nil {
		return nil, err
	}

	if !h.mode.RequiresEmail() {
		return LoginInlineResponse{Message: "OTP generated.", OTP: resp.OTP}, nil
	}

	return LoginResponse{
		Message:   "OTP sent to your email address.",
		EmailHint: resp.EmailHint,
	}, nil
}

// Verify consumes a pending one-time passcode.
// @Summary Verify OTP
// @Tags Account
// @Accept json
// @Produce json
// @Param request body VerifyRequest true "Verify payload"
// @Success 200 {object} VerifyResponse
// @Failure 400 {object} router.ErrorResponse "Missing fields"
// @Failure 401 {object} router.ErrorResponse "OTP verification failed"
// @Failure 500 {object} router.ErrorResponse "Internal server error"
// @Router /api/verify [post]
func (h *HTTPEndpoint) Verify(r *router.Request) (any, error) {
	var req VerifyRequest
	if err := r.DecodeBody(&req, msgVerifyFields); err != nil {
		return nil, err
	}

	if req.Username == nil || req.OTP == nil {
		return nil, goerror.NewInvalidFormat(msgVerifyFields)
	}

	err := h.uc.Verify(r.Context(), usecase.VerifyInput{
		Username: *req.Username,
		OTP:      *req.OTP,
	})
	if err != nil {
		return nil, err
	}

	return VerifyResponse{Message: "Verification successful."}, nil
}
