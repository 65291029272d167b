package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storefront-auth/internal/config"
	"storefront-auth/internal/geoip"
	"storefront-auth/internal/model"
	"storefront-auth/internal/sms"
	"storefront-auth/internal/token"
	"storefront-auth/internal/util"
)

const deviceListLimit = 50

// AuthService orchestrates signup, login, token lifecycle and the
// device audit trail.
type AuthService struct {
	users      model.UserRepository
	profiles   model.ProfileRepository
	deviceLogs model.DeviceLogRepository
	otp        *OTPService
	tokens     *token.Manager
	denylist   model.TokenDenylist
	geo        geoip.Resolver
	gateway    *sms.Gateway
	publisher  *EventPublisher
	anomalies  *AnomalyNotifier
	limits     config.LimitsConfig
	now        func() time.Time
}

func NewAuthService(
	users model.UserRepository,
	profiles model.ProfileRepository,
	deviceLogs model.DeviceLogRepository,
	otp *OTPService,
	tokens *token.Manager,
	denylist model.TokenDenylist,
	geo geoip.Resolver,
	gateway *sms.Gateway,
	publisher *EventPublisher,
	anomalies *AnomalyNotifier,
	limits config.LimitsConfig,
) *AuthService {
	return &AuthService{
		users:      users,
		profiles:   profiles,
		deviceLogs: deviceLogs,
		otp:        otp,
		tokens:     tokens,
		denylist:   denylist,
		geo:        geo,
		gateway:    gateway,
		publisher:  publisher,
		anomalies:  anomalies,
		limits:     limits,
		now:        time.Now,
	}
}

// SignUp registers the phone and sends the first challenge. The account
// starts inactive and unverified; activation happens on first successful
// verification. Re-signup of a not-yet-activated account just re-issues
// the challenge.
func (s *AuthService) SignUp(ctx context.Context, phone, ip string) error {
	normalized := util.NormalizePhone(phone)
	if !util.IsValidPhone(normalized) {
		return ErrInvalidPhone
	}

	existing, err := s.users.GetByPhone(ctx, normalized)
	switch {
	case err == nil && existing.IsActive:
		return ErrUserAlreadyExists
	case err == nil:
		// Inactive leftover from an abandoned signup; no new rows.
		return s.otp.RequestChallenge(ctx, normalized)
	case !errors.Is(err, model.ErrUserNotFound):
		return fmt.Errorf("%w: user lookup: %v", ErrInfrastructure, err)
	}

	user := &model.User{
		Phone:         normalized,
		IsVerified:    false,
		IsActive:      false,
		AllowSMS:      true,
		TermsAccepted: true,
		SignupIP:      ip,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return fmt.Errorf("%w: user create: %v", ErrInfrastructure, err)
	}

	profile := &model.Profile{
		UserID:          user.UserID,
		SMSOrderUpdates: true,
	}
	if err := s.profiles.Create(ctx, profile); err != nil {
		// The account exists; a missing profile row is repairable.
		util.Error("Profile creation failed after signup",
			zap.String("user_id", user.UserID),
			zap.Error(err))
	}

	return s.otp.RequestChallenge(ctx, normalized)
}

// Login verifies the submitted code and mints the token pair. The first
// successful verification activates the account and triggers the
// one-time welcome message.
func (s *AuthService) Login(ctx context.Context, phone, code, ip, userAgent string) (*model.TokenPair, error) {
	normalized := util.NormalizePhone(phone)
	if !util.IsValidPhone(normalized) {
		return nil, ErrInvalidPhone
	}

	ok, err := s.otp.Verify(ctx, normalized, code)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidOrExpiredCode
	}

	user, err := s.users.GetByPhone(ctx, normalized)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("%w: user lookup: %v", ErrInfrastructure, err)
	}

	applied, err := s.users.Activate(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("%w: activation: %v", ErrInfrastructure, err)
	}
	if applied && user.AllowSMS {
		if _, err := s.gateway.SendWelcome(ctx, user.Phone); err != nil {
			util.Warn("Welcome SMS failed",
				zap.String("user_id", user.UserID),
				zap.Error(err))
		}
	}

	location := s.geo.Resolve(ctx, ip)

	// Count before inserting so the fresh login compares against prior
	// history only.
	since := s.now().UTC().Add(-s.limits.AnomalyWindow)
	recent, err := s.deviceLogs.CountSince(ctx, user.UserID, since)
	if err != nil {
		util.Warn("Recent login count failed",
			zap.String("user_id", user.UserID),
			zap.Error(err))
		recent = 0
	}

	logEntry := &model.DeviceLog{
		UserID:    user.UserID,
		IP:        ip,
		UserAgent: userAgent,
		City:      location.City,
		Country:   location.Country,
		LoggedAt:  s.now().UTC(),
	}
	if err := s.deviceLogs.Insert(ctx, logEntry); err != nil {
		return nil, fmt.Errorf("%w: device log: %v", ErrInfrastructure, err)
	}

	if recent > s.limits.AnomalyThreshold {
		s.anomalies.Notify(user.UserID, user.Phone, ip, userAgent, recent)
	}

	if err := s.users.UpdateLastLogin(ctx, user, ip); err != nil {
		util.Warn("Last-login update failed",
			zap.String("user_id", user.UserID),
			zap.Error(err))
	}

	s.publisher.PublishLogin(ctx, &model.LoginEvent{
		UserID:    user.UserID,
		Phone:     user.Phone,
		IP:        ip,
		UserAgent: userAgent,
		City:      location.City,
		Country:   location.Country,
		LoggedAt:  logEntry.LoggedAt,
	})

	pair, err := s.tokens.GeneratePair(user.UserID, user.Phone)
	if err != nil {
		return nil, fmt.Errorf("%w: token generation: %v", ErrInfrastructure, err)
	}

	util.Info("Login successful",
		zap.String("user_id", user.UserID),
		zap.String("phone", util.MaskPhone(user.Phone)),
		zap.String("city", location.City))

	return pair, nil
}

// Logout revokes the refresh token. Revoking an already-revoked or
// otherwise invalid token is a client error.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.tokens.Parse(refreshToken, token.TypeRefresh)
	if err != nil {
		return ErrInvalidToken
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return fmt.Errorf("%w: denylist check: %v", ErrInfrastructure, err)
	}
	if revoked {
		return ErrInvalidToken
	}

	if err := s.denylist.Revoke(ctx, claims.ID, s.tokens.RemainingTTL(claims)); err != nil {
		return fmt.Errorf("%w: denylist write: %v", ErrInfrastructure, err)
	}

	util.Info("Refresh token revoked", zap.String("user_id", claims.UserID))
	return nil
}

// Refresh rotates the pair: the old refresh token is denylisted the
// moment the new pair is minted.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*model.TokenPair, error) {
	claims, err := s.tokens.Parse(refreshToken, token.TypeRefresh)
	if err != nil {
		return nil, ErrInvalidToken
	}

	revoked, err := s.denylist.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: denylist check: %v", ErrInfrastructure, err)
	}
	if revoked {
		return nil, ErrInvalidToken
	}

	pair, err := s.tokens.GeneratePair(claims.UserID, claims.Phone)
	if err != nil {
		return nil, fmt.Errorf("%w: token generation: %v", ErrInfrastructure, err)
	}

	if err := s.denylist.Revoke(ctx, claims.ID, s.tokens.RemainingTTL(claims)); err != nil {
		return nil, fmt.Errorf("%w: denylist write: %v", ErrInfrastructure, err)
	}

	return pair, nil
}

// Devices lists the login audit trail, newest first.
func (s *AuthService) Devices(ctx context.Context, userID string) ([]*model.DeviceLog, error) {
	logs, err := s.deviceLogs.ListByUser(ctx, userID, deviceListLimit)
	if err != nil {
		return nil, fmt.Errorf("%w: device list: %v", ErrInfrastructure, err)
	}
	return logs, nil
}

// RevokeDevice removes one audit row; this is the only delete path for
// device logs.
func (s *AuthService) RevokeDevice(ctx context.Context, userID, logID string) error {
	err := s.deviceLogs.Delete(ctx, userID, logID)
	if err != nil {
		if errors.Is(err, model.ErrDeviceLogNotFound) {
			return ErrDeviceLogNotFound
		}
		return fmt.Errorf("%w: device revoke: %v", ErrInfrastructure, err)
	}
	return nil
}
