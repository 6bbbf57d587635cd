package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
)

var (
	errUsernameTaken   = goerror.NewBusiness("Username already exists.", goerror.CodeConflict)
	errEmailRegistered = goerror.NewBusiness("Email already registered.", goerror.CodeConflict)
)

type SignupInput struct {
	Username string
	Password string
	// Email is ignored when passcodes are returned inline.
	Email string
}

type signupPolicy struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"password"`
	Email    string `json:"email" validate:"emailaddr"`
}

type signupPolicyInline struct {
	Username string `json:"username" validate:"notblank"`
	Password string `json:"password" validate:"password"`
}

func (s *Usecase) Signup(ctx context.Context, in SignupInput) error {
	ctx, span := s.startSpan(ctx, "Signup")
	defer span.End()

	username := entity.NormalizeUsername(in.Username)
	email := ""
	if s.opts.Delivery.RequiresEmail() {
		email = entity.NormalizeEmail(in.Email)
		if err := s.validate(ctx, signupPolicy{Username: username, Password: in.Password, Email: email},
			"Invalid signup details. Use a unique username, valid email, and a password with at least 6 characters."); err != nil {
			return err
		}
	} else {
		if err := s.validate(ctx, signupPolicyInline{Username: username, Password: in.Password},
			"Invalid signup details. Use a unique username and a password with at least 6 characters."); err != nil {
			return err
		}
	}

	_, err := s.repoDB.GetAccountByUsername(ctx, username)
	if err == nil {
		slog.WarnContext(ctx, "username already exists", "username", username)
		return errUsernameTaken
	}
	if !errors.Is(err, goerror.ErrNotFound) {
		slog.ErrorContext(ctx, "failed to repo get account by username", "username", username, "error", err)
		return goerror.NewServer(err)
	}

	if email != "" {
		_, err := s.repoDB.GetAccountByEmail(ctx, email)
		if err == nil {
			slog.WarnContext(ctx, "email already registered", "username", username)
			return errEmailRegistered
		}
		if !errors.Is(err, goerror.ErrNotFound) {
			slog.ErrorContext(ctx, "failed to repo get account by email", "username", username, "error", err)
			return goerror.NewServer(err)
		}
	}

	hashed, err := s.password.Hash(in.Password)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash password", "username", username, "error", err)
		return goerror.NewServer(err)
	}

	acc := entity.NewAccount{
		ID:           s.uid.Generate(),
		Username:     username,
		Email:        email,
		PasswordHash: hashed,
		CreatedAt:    s.clock.Now(),
	}

	err = s.repoDB.CreateAccount(ctx, acc)
	switch {
	case errors.Is(err, entity.ErrDuplicateUsername):
		slog.WarnContext(ctx, "username taken by a concurrent signup", "username", username)
		return errUsernameTaken
	case errors.Is(err, entity.ErrDuplicateEmail):
		slog.WarnContext(ctx, "email taken by a concurrent signup", "username", username)
		return errEmailRegistered
	case err != nil:
		slog.ErrorContext(ctx, "failed to repo create account", "username", username, "error", err)
		return goerror.NewServer(err)
	}

	slog.InfoContext(ctx, "account registered", "account_id", acc.ID, "username", username)

	return nil
}
