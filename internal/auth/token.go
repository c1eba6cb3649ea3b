package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	TokenIssuer   = "snow-store-admin"
	TokenAudience = "snow-store-admin-panel"

	AccessTokenTTL  = 15 * time.Minute
	RefreshTokenTTL = 7 * 24 * time.Hour
)

type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies both token kinds. Keys are converted once at
// construction and reused for every call.
type TokenService struct {
	accessKey  []byte
	refreshKey []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenService(accessSecret, refreshSecret string) *TokenService {
	return &TokenService{
		accessKey:  []byte(accessSecret),
		refreshKey: []byte(refreshSecret),
		accessTTL:  AccessTokenTTL,
		refreshTTL: RefreshTokenTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func (s *TokenService) GenerateAccessToken(identity Identity) (string, error) {
	token, _, err := s.sign(identity, s.accessKey, s.accessTTL)
	return token, err
}

// GenerateRefreshToken also returns the expiry it stamped so callers can
// persist the same instant.
func (s *TokenService) GenerateRefreshToken(identity Identity) (string, time.Time, error) {
	return s.sign(identity, s.refreshKey, s.refreshTTL)
}

func (s *TokenService) IssuePair(identity Identity) (TokenPair, error) {
	access, err := s.GenerateAccessToken(identity)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, expiresAt, err := s.GenerateRefreshToken(identity)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, RefreshExpiresAt: expiresAt}, nil
}

func (s *TokenService) VerifyAccessToken(token string) (Identity, bool) {
	return s.verify(token, s.accessKey)
}

func (s *TokenService) VerifyRefreshToken(token string) (Identity, bool) {
	return s.verify(token, s.refreshKey)
}

func (s *TokenService) sign(identity Identity, key []byte, ttl time.Duration) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(ttl)

	id, err := uuid.NewRandom()
	if err != nil {
		return "", time.Time{}, fmt.Errorf("generate token id: %w", err)
	}

	claims := Claims{
		UserID: identity.UserID,
		Email:  identity.Email,
		Role:   identity.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        id.String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign jwt: %w", err)
	}

	// Persist the truncated instant the token actually carries.
	return signed, claims.ExpiresAt.Time, nil
}

func (s *TokenService) verify(token string, key []byte) (Identity, bool) {
	if token == "" {
		return Identity{}, false
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || !parsed.Valid || claims.UserID == "" {
		return Identity{}, false
	}

	return Identity{UserID: claims.UserID, Email: claims.Email, Role: claims.Role}, true
}
