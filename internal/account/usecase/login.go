package usecase

import (
	"context"
	"errors"
	"log/slog"

	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
)

var (
	errInvalidCredentials = goerror.NewBusiness("Invalid credentials.", goerror.CodeUnauthorized)
	errEmailNotSet        = goerror.NewBusiness("Email not set for this account. Contact support.", goerror.CodeInvalidInput)
)

type LoginInput struct {
	Username string
	Password string
}

type LoginOutput struct {
	// EmailHint is the masked address the passcode was sent to (email delivery).
	EmailHint string
	// OTP is the issued passcode itself (inline delivery).
	OTP string
}

// Login checks the credentials and issues a fresh passcode, replacing any
// pending one. With email delivery the passcode is only kept if it was sent.
func (s *Usecase) Login(ctx context.Context, in LoginInput) (*LoginOutput, error) {
	ctx, span := s.startSpan(ctx, "Login")
	defer span.End()

	username := entity.NormalizeUsername(in.Username)

	release, err := s.locker.Acquire(ctx, entity.LockKey(username), s.opts.LockTTL)
	if err != nil {
		slog.ErrorContext(ctx, "failed to acquire account lock", "username", username, "error", err)
		return nil, goerror.NewServer(err)
	}
	defer release()

	acc, err := s.repoDB.GetAccountByUsername(ctx, username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found", "username", username)
		return nil, errInvalidCredentials
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by username", "username", username, "error", err)
		return nil, goerror.NewServer(err)
	}

	if s.opts.Delivery.RequiresEmail() && acc.Email == "" {
		slog.WarnContext(ctx, "account has no email", "account_id", acc.ID)
		return nil, errEmailNotSet
	}

	if !s.password.Verify(acc.PasswordHash, in.Password) {
		slog.WarnContext(ctx, "password account not match", "account_id", acc.ID)
		return nil, errInvalidCredentials
	}

	code, err := s.otp.Generate()
	if err != nil {
		slog.ErrorContext(ctx, "failed to generate otp", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	digest, err := s.otpDigest.Hash(code)
	if err != nil {
		slog.ErrorContext(ctx, "failed to hash otp", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}

	if err := s.repoDB.SetOTP(ctx, acc.ID, string(digest), s.clock.Now()); err != nil {
		slog.ErrorContext(ctx, "failed to repo set otp", "account_id", acc.ID, "error", err)
		return nil, goerror.NewServer(err)
	}
	s.incr(ctx, s.otpIssued)

	if !s.opts.Delivery.RequiresEmail() {
		slog.InfoContext(ctx, "otp issued inline", "account_id", acc.ID)
		return &LoginOutput{OTP: code}, nil
	}

	if err := s.repoMail.SendOTP(ctx, acc.Email, code); err != nil {
		s.incr(ctx, s.otpDispatchFailed)
		slog.ErrorContext(ctx, "failed to send otp email", "account_id", acc.ID, "error", err)

		// the request context may already be done; the rollback must still land
		if cErr := s.repoDB.ClearOTP(context.WithoutCancel(ctx), acc.ID); cErr != nil {
			slog.ErrorContext(ctx, "failed to repo clear otp after send failure", "account_id", acc.ID, "error", cErr)
		}

		return nil, goerror.NewServer(err, "Could not send OTP email. Try again later.")
	}

	slog.InfoContext(ctx, "otp sent", "account_id", acc.ID)

	return &LoginOutput{EmailHint: MaskEmail(acc.Email)}, nil
}
