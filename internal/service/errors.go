package service

import (
	"errors"

	"storefront-auth/internal/model"
)

var (
	ErrInvalidPhone         = errors.New("invalid phone number")
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrRateLimited          = errors.New("rate limited")
	ErrInvalidOrExpiredCode = errors.New("invalid or expired code")
	ErrInvalidToken         = errors.New("invalid token")

	// Not-found conditions surface the shared model sentinels.
	ErrUserNotFound      = model.ErrUserNotFound
	ErrDeviceLogNotFound = model.ErrDeviceLogNotFound

	// ErrInfrastructure covers backing-store failures. Throttle checks
	// fail closed on it.
	ErrInfrastructure = errors.New("infrastructure failure")
)
