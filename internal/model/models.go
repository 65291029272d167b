package model

import (
	"context"
	"errors"
	"time"
)

// Not-found sentinels shared by repositories and services.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrProfileNotFound   = errors.New("profile not found")
	ErrDeviceLogNotFound = errors.New("device log not found")
)

// -------------------- USER MODEL --------------------
type User struct {
	UserID        string     `json:"user_id" db:"user_id"`       // UUID
	Phone         string     `json:"phone" db:"phone"`           // normalized, 09XXXXXXXXX
	UserBucket    int        `json:"-" db:"user_bucket"`         // murmur3 partition bucket
	IsVerified    bool       `json:"is_verified" db:"is_verified"`
	IsActive      bool       `json:"is_active" db:"is_active"`
	AllowSMS      bool       `json:"allow_sms" db:"allow_sms"`
	TermsAccepted bool       `json:"terms_accepted" db:"terms_accepted"`
	SignupIP      string     `json:"-" db:"signup_ip"`
	LastLoginIP   string     `json:"-" db:"last_login_ip"`
	LastActivity  time.Time  `json:"last_activity" db:"last_activity"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// -------------------- PROFILE MODEL --------------------
type Profile struct {
	UserID            string     `json:"-" db:"user_id"`
	SMSMarketingOptin bool       `json:"sms_marketing_optin" db:"sms_marketing_optin"`
	SMSOrderUpdates   bool       `json:"sms_order_updates" db:"sms_order_updates"`
	SMSNewsletter     bool       `json:"sms_newsletter" db:"sms_newsletter"`
	BirthDate         *time.Time `json:"birth_date,omitempty" db:"birth_date"`
	LoyaltyPoints     int        `json:"loyalty_points" db:"loyalty_points"`
	PreferredLanguage string     `json:"preferred_language" db:"preferred_language"`
	CreatedAt         time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at" db:"updated_at"`
}

// -------------------- DEVICE LOG MODEL --------------------
// One row per successful login. Append-only; rows disappear only through
// the device-revoke endpoint.
type DeviceLog struct {
	ID        string    `json:"id" db:"id"` // UUID
	UserID    string    `json:"-" db:"user_id"`
	IP        string    `json:"ip" db:"ip"`
	UserAgent string    `json:"user_agent" db:"user_agent"`
	City      string    `json:"city" db:"city"`
	Country   string    `json:"country" db:"country"`
	LoggedAt  time.Time `json:"logged_at" db:"logged_at"`
}

// -------------------- TOKEN MODEL --------------------
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// -------------------- GEO MODEL --------------------
type Location struct {
	City    string `json:"city"`
	Country string `json:"country"`
}

// -------------------- EVENT MODELS --------------------
type LoginEvent struct {
	UserID    string    `json:"user_id"`
	Phone     string    `json:"phone"`
	IP        string    `json:"ip"`
	UserAgent string    `json:"user_agent"`
	City      string    `json:"city"`
	Country   string    `json:"country"`
	LoggedAt  time.Time `json:"logged_at"`
}

type SecurityAlert struct {
	UserID     string    `json:"user_id"`
	Phone      string    `json:"phone"`
	IP         string    `json:"ip"`
	UserAgent  string    `json:"user_agent"`
	LoginCount int       `json:"login_count"`
	DetectedAt time.Time `json:"detected_at"`
}

// -------------------- REPOSITORY INTERFACES --------------------

// UserRepository defines the interface for user persistence
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	// GetByPhone is the canonical lookup; token claims carry the phone so
	// every read path resolves through the phone_to_user table.
	GetByPhone(ctx context.Context, phone string) (*User, error)
	// Activate flips the account to verified+active. The first successful
	// call returns true; every later call returns false.
	Activate(ctx context.Context, user *User) (bool, error)
	UpdateLastLogin(ctx context.Context, user *User, ip string) error
}

// ProfileRepository defines the interface for storefront profile persistence
type ProfileRepository interface {
	Create(ctx context.Context, profile *Profile) error
	GetByUserID(ctx context.Context, userID string) (*Profile, error)
}

// DeviceLogRepository defines the interface for the login audit trail
type DeviceLogRepository interface {
	Insert(ctx context.Context, log *DeviceLog) error
	CountSince(ctx context.Context, userID string, since time.Time) (int, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]*DeviceLog, error)
	Delete(ctx context.Context, userID, logID string) error
}

// -------------------- CACHE INTERFACES --------------------

// ThrottleStore counts requests in fixed windows. The crossing request is
// counted and rejected; requests past the cap are rejected without counting.
type ThrottleStore interface {
	IncrementAndCheck(ctx context.Context, key string, window time.Duration, max int64) (allowed bool, count int64, err error)
	Reset(ctx context.Context, key string) error
}

// ChallengeCache stores the live OTP secret per phone
type ChallengeCache interface {
	SetSecret(ctx context.Context, phone, secret string, ttl time.Duration) error
	// GetSecret returns ("", nil) when no challenge is live.
	GetSecret(ctx context.Context, phone string) (string, error)
	DeleteSecret(ctx context.Context, phone string) error
}

// TokenDenylist tracks revoked refresh-token IDs until they would expire
type TokenDenylist interface {
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// GeoCache caches resolved IP locations
type GeoCache interface {
	Get(ctx context.Context, ip string) (*Location, bool, error)
	Set(ctx context.Context, ip string, loc *Location, ttl time.Duration) error
}
