package security

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrWrongTokenType = errors.New("wrong token type for this endpoint")
)

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"

	issuer          = "assetbook"
	audienceAccess  = "api-access"
	audienceRefresh = "token-refresh"
)

// UserClaims are carried by access and refresh tokens.
type UserClaims struct {
	UserID  int64     `json:"user_id"`
	IsStaff bool      `json:"is_staff"`
	Type    TokenType `json:"type"`
	jwt.RegisteredClaims
}

// TokenPair is returned on login.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TokenManager issues and validates HS256 session tokens.
type TokenManager struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

func NewTokenManager(secret string, accessTTL, refreshTTL time.Duration) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        time.Now,
	}
}

// WithClock replaces the time source.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	m.now = now
	return m
}

func (m *TokenManager) GenerateAccessToken(userID int64, isStaff bool) (string, error) {
	return m.sign(userID, isStaff, TokenTypeAccess, audienceAccess, m.accessTTL)
}

func (m *TokenManager) GenerateRefreshToken(userID int64, isStaff bool) (string, error) {
	return m.sign(userID, isStaff, TokenTypeRefresh, audienceRefresh, m.refreshTTL)
}

func (m *TokenManager) GeneratePair(userID int64, isStaff bool) (*TokenPair, error) {
	access, err := m.GenerateAccessToken(userID, isStaff)
	if err != nil {
		return nil, err
	}
	refresh, err := m.GenerateRefreshToken(userID, isStaff)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

func (m *TokenManager) sign(userID int64, isStaff bool, typ TokenType, audience string, ttl time.Duration) (string, error) {
	now := m.now()
	claims := UserClaims{
		UserID:  userID,
		IsStaff: isStaff,
		Type:    typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
			Audience:  jwt.ClaimStrings{audience},
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(m.secret)
}

// ValidateToken parses tokenString and checks it is of the expected type.
func (m *TokenManager) ValidateToken(tokenString string, expected TokenType) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Type != expected {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}
