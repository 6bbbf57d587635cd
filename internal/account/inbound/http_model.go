package inbound

import "net/http"

// Request fields are pointers so a missing field is told apart from an empty
// one. JSON of the wrong type fails decoding.

type SignupRequest struct {
	Username *string `json:"username" example:"bob"`
	Password *string `json:"password" example:"secret1"`
	Email    *string `json:"email,omitempty" example:"bob@example.com"`
}

type SignupResponse struct {
	Message string `json:"message" example:"Signup successful."`
}

func (SignupResponse) StatusCode() int { return http.StatusCreated }

type LoginRequest struct {
	Username *string `json:"username" example:"bob"`
	Password *string `json:"password" example:"secret1"`
}

type LoginResponse struct {
	Message   string `json:"message" example:"OTP sent to your email address."`
	EmailHint string `json:"email_hint" example:"b*b@example.com"`
}

type LoginInlineResponse struct {
	Message string `json:"message" example:"OTP generated."`
	OTP     string `json:"otp" example:"042917"`
}

type VerifyRequest struct {
	Username *string `json:"username" example:"bob"`
	OTP      *string `json:"otp" example:"042917"`
}

type VerifyResponse struct {
	Message string `json:"message" example:"Verification successful."`
}

type HealthResponse struct {
	Status string `json:"status" example:"ok"`
}
