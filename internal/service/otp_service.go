package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"go.uber.org/zap"

	"storefront-auth/internal/config"
	"storefront-auth/internal/model"
	"storefront-auth/internal/sms"
	"storefront-auth/internal/util"
)

const (
	otpRequestPrefix = "otp_attempts:"
	otpVerifyPrefix  = "otp_verify_attempts:"
	otpResendPrefix  = "otp_resend:"
)

// validateOpts covers the full challenge TTL: with a 30 second step, a
// skew of 10 keeps every code minted in the last 5 minutes valid.
var validateOpts = totp.ValidateOpts{
	Period:    30,
	Skew:      10,
	Digits:    otp.DigitsSix,
	Algorithm: otp.AlgorithmSHA1,
}

// OTPService issues and verifies phone challenges.
type OTPService struct {
	challenges model.ChallengeCache
	throttle   model.ThrottleStore
	users      model.UserRepository
	gateway    *sms.Gateway
	limits     config.LimitsConfig
	now        func() time.Time
}

func NewOTPService(
	challenges model.ChallengeCache,
	throttle model.ThrottleStore,
	users model.UserRepository,
	gateway *sms.Gateway,
	limits config.LimitsConfig,
) *OTPService {
	return &OTPService{
		challenges: challenges,
		throttle:   throttle,
		users:      users,
		gateway:    gateway,
		limits:     limits,
		now:        time.Now,
	}
}

// RequestChallenge mints a fresh secret for the phone, stores it for the
// challenge TTL and dispatches the code over SMS. The code never travels
// back through the HTTP response.
func (s *OTPService) RequestChallenge(ctx context.Context, phone string) error {
	normalized := util.NormalizePhone(phone)
	if !util.IsValidPhone(normalized) {
		return ErrInvalidPhone
	}

	allowed, count, err := s.throttle.IncrementAndCheck(ctx,
		otpRequestPrefix+normalized, s.limits.OTPRequestWindow, s.limits.OTPRequestMax)
	if err != nil {
		return fmt.Errorf("%w: throttle check: %v", ErrInfrastructure, err)
	}
	if !allowed {
		util.Warn("OTP request rate limited",
			zap.String("phone", util.MaskPhone(normalized)),
			zap.Int64("count", count))
		return ErrRateLimited
	}

	return s.issue(ctx, normalized)
}

// ResendChallenge re-issues a code for an existing account under the
// separate hourly resend cap.
func (s *OTPService) ResendChallenge(ctx context.Context, phone string) error {
	normalized := util.NormalizePhone(phone)
	if !util.IsValidPhone(normalized) {
		return ErrInvalidPhone
	}

	if _, err := s.users.GetByPhone(ctx, normalized); err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: user lookup: %v", ErrInfrastructure, err)
	}

	allowed, _, err := s.throttle.IncrementAndCheck(ctx,
		otpResendPrefix+normalized, s.limits.OTPResendWindow, s.limits.OTPResendMax)
	if err != nil {
		return fmt.Errorf("%w: throttle check: %v", ErrInfrastructure, err)
	}
	if !allowed {
		return ErrRateLimited
	}

	return s.issue(ctx, normalized)
}

func (s *OTPService) issue(ctx context.Context, phone string) error {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      "storefront-auth",
		AccountName: phone,
		SecretSize:  20,
	})
	if err != nil {
		return fmt.Errorf("%w: secret generation: %v", ErrInfrastructure, err)
	}
	secret := key.Secret()

	// SET overwrites, so at most one challenge is live per phone.
	if err := s.challenges.SetSecret(ctx, phone, secret, s.limits.OTPChallengeTTL); err != nil {
		return fmt.Errorf("%w: challenge store: %v", ErrInfrastructure, err)
	}

	code, err := totp.GenerateCode(secret, s.now())
	if err != nil {
		return fmt.Errorf("%w: code derivation: %v", ErrInfrastructure, err)
	}

	// SMS failure is logged but does not void the challenge; the code
	// can still be resent.
	if result, err := s.gateway.SendOTP(ctx, phone, code); err != nil {
		util.Error("OTP SMS dispatch failed",
			zap.String("phone", util.MaskPhone(phone)),
			zap.Error(err))
	} else if !result.Success {
		util.Warn("OTP SMS rejected by gateway",
			zap.String("phone", util.MaskPhone(phone)),
			zap.String("error", result.Error))
	}

	util.Info("OTP challenge issued", zap.String("phone", util.MaskPhone(phone)))
	return nil
}

// Verify checks the submitted code against the live challenge. A missing
// or expired challenge and a wrong code both read as (false, nil); the
// caller cannot distinguish them. Success consumes the challenge.
func (s *OTPService) Verify(ctx context.Context, phone, code string) (bool, error) {
	normalized := util.NormalizePhone(phone)
	if !util.IsValidPhone(normalized) {
		return false, ErrInvalidPhone
	}

	allowed, _, err := s.throttle.IncrementAndCheck(ctx,
		otpVerifyPrefix+normalized, s.limits.OTPVerifyWindow, s.limits.OTPVerifyMax)
	if err != nil {
		return false, fmt.Errorf("%w: throttle check: %v", ErrInfrastructure, err)
	}
	if !allowed {
		return false, ErrRateLimited
	}

	secret, err := s.challenges.GetSecret(ctx, normalized)
	if err != nil {
		return false, fmt.Errorf("%w: challenge store: %v", ErrInfrastructure, err)
	}
	if secret == "" {
		return false, nil
	}

	valid, err := totp.ValidateCustom(code, secret, s.now(), validateOpts)
	if err != nil || !valid {
		return false, nil
	}

	// Single use: drop the secret and clear the guess counter.
	if err := s.challenges.DeleteSecret(ctx, normalized); err != nil {
		util.Warn("Failed to consume OTP secret",
			zap.String("phone", util.MaskPhone(normalized)),
			zap.Error(err))
	}
	if err := s.throttle.Reset(ctx, otpVerifyPrefix+normalized); err != nil {
		util.Warn("Failed to reset verify counter", zap.Error(err))
	}

	util.Info("OTP verified", zap.String("phone", util.MaskPhone(normalized)))
	return true, nil
}
