package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/shandysiswandi/passcode/internal/account/entity"
	"github.com/shandysiswandi/passcode/internal/pkg/goerror"
)

var errVerificationFailed = goerror.NewBusiness("OTP verification failed.", goerror.CodeUnauthorized)

type VerifyInput struct {
	Username string
	OTP      string
}

// Verify consumes the pending passcode when code matches it. A wrong code
// leaves the passcode pending.
func (s *Usecase) Verify(ctx context.Context, in VerifyInput) error {
	ctx, span := s.startSpan(ctx, "Verify")
	defer span.End()

	username := entity.NormalizeUsername(in.Username)

	acc, err := s.repoDB.GetAccountByUsername(ctx, username)
	if errors.Is(err, goerror.ErrNotFound) {
		slog.WarnContext(ctx, "account not found", "username", username)
		return errVerificationFailed
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo get account by username", "username", username, "error", err)
		return goerror.NewServer(err)
	}

	if acc.OTPState() != entity.OTPStatePending {
		slog.WarnContext(ctx, "no otp pending", "account_id", acc.ID)
		return errVerificationFailed
	}

	if !s.otpDigest.Verify([]byte(acc.OTPDigest), strings.TrimSpace(in.OTP)) {
		slog.WarnContext(ctx, "otp not match", "account_id", acc.ID)
		return errVerificationFailed
	}

	consumed, err := s.repoDB.ConsumeOTP(ctx, acc.ID, acc.OTPDigest)
	if err != nil {
		slog.ErrorContext(ctx, "failed to repo consume otp", "account_id", acc.ID, "error", err)
		return goerror.NewServer(err)
	}
	if !consumed {
		slog.WarnContext(ctx, "otp consumed or replaced concurrently", "account_id", acc.ID)
		return errVerificationFailed
	}

	s.incr(ctx, s.otpVerified)
	slog.InfoContext(ctx, "otp verified", "account_id", acc.ID)

	return nil
}
