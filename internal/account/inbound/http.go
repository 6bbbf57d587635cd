package inbound

import (
	"context"

	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/account/usecase"
	"github.com/shandysiswandi/passcode/internal/pkg/router"
)

type uc interface {
	Signup(ctx context.Context, in usecase.SignupInput) error
	Login(ctx context.Context, in usecase.LoginInput) (*usecase.LoginOutput, error)
	Verify(ctx context.Context, in usecase.VerifyInput) error
}

func RegisterHTTPEndpoint(r *router.Router, uc uc, mode entity.DeliveryMode) {
	end := &HTTPEndpoint{uc: uc, mode: mode}

	r.GET("/api/health", end.Health)

	r.POST("/api/signup", end.Signup)
	r.POST("/api/login", end.Login)
	r.POST("/api/verify", end.Verify)
}
