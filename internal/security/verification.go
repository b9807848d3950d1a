package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const verificationAudience = "email-verification"

// VerificationTokens signs time-bound email verification tokens for a username.
type VerificationTokens struct {
	secret []byte
	clock  func() time.Time
	maxAge time.Duration
}

func NewVerificationTokens(secret string, clock func() time.Time, maxAge time.Duration) *VerificationTokens {
	if clock == nil {
		clock = time.Now
	}
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	return &VerificationTokens{secret: []byte(secret), clock: clock, maxAge: maxAge}
}

func (v *VerificationTokens) Generate(username string) (string, error) {
	now := v.clock()
	claims := jwt.RegisteredClaims{
		Subject:   username,
		Audience:  jwt.ClaimStrings{verificationAudience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(v.maxAge)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// Verify returns the username the token was issued for.
func (v *VerificationTokens) Verify(token string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(verificationAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(v.clock),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrExpiredToken
		}
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
