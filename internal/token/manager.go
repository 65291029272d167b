package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"storefront-auth/internal/model"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongType    = errors.New("wrong token type")
)

// Claims carried by both token types. The jti in RegisteredClaims is
// what the denylist tracks after logout.
type Claims struct {
	UserID    string `json:"uid"`
	Phone     string `json:"phone"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// Manager mints and verifies the HS256 access/refresh pair.
type Manager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewManager(secret []byte, issuer string, accessTTL, refreshTTL time.Duration) *Manager {
	return &Manager{
		secret:     secret,
		issuer:     issuer,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// GeneratePair mints a fresh access and refresh token for the user.
// Each token gets its own jti.
func (m *Manager) GeneratePair(userID, phone string) (*model.TokenPair, error) {
	access, err := m.generate(userID, phone, TypeAccess, m.accessTTL)
	if err != nil {
		return nil, err
	}

	refresh, err := m.generate(userID, phone, TypeRefresh, m.refreshTTL)
	if err != nil {
		return nil, err
	}

	return &model.TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *Manager) generate(userID, phone, tokenType string, ttl time.Duration) (string, error) {
	now := m.now().UTC()

	claims := &Claims{
		UserID:    userID,
		Phone:     phone,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.issuer,
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", tokenType, err)
	}

	return signed, nil
}

// Parse verifies the signature and expiry and checks the token carries
// the expected type.
func (m *Manager) Parse(tokenString, wantType string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.TokenType != wantType {
		return nil, ErrWrongType
	}

	return claims, nil
}

// RemainingTTL reports how long the token stays valid, used to bound
// denylist entries to the token's own lifetime.
func (m *Manager) RemainingTTL(claims *Claims) time.Duration {
	if claims.ExpiresAt == nil {
		return 0
	}
	return claims.ExpiresAt.Time.Sub(m.now().UTC())
}
