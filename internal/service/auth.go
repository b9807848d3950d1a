package service

import (
	"context"
	"errors"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"assetbook/internal/domain"
	"assetbook/internal/lifecycle"
	"assetbook/internal/models"
	"assetbook/internal/notify"
	"assetbook/internal/security"

	"github.com/rs/zerolog"
)

const minPasswordLength = 8

var errBadCredentials = domain.Unauthorized("no active account found with the given credentials")

type SignupRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
}

type AuthService struct {
	users        domain.UserRepository
	tokens       *security.TokenManager
	verification *security.VerificationTokens
	mail         domain.MailQueue
	verifyURL    string
	now          func() time.Time
	logger       *zerolog.Logger
}

func NewAuthService(
	users domain.UserRepository,
	tokens *security.TokenManager,
	verification *security.VerificationTokens,
	mailQueue domain.MailQueue,
	verifyURL string,
	logger *zerolog.Logger,
) *AuthService {
	return &AuthService{
		users:        users,
		tokens:       tokens,
		verification: verification,
		mail:         mailQueue,
		verifyURL:    verifyURL,
		now:          time.Now,
		logger:       logger,
	}
}

// Signup creates an inactive account and mails a verification link.
func (s *AuthService) Signup(ctx context.Context, req SignupRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	req.FirstName = strings.TrimSpace(req.FirstName)

	switch {
	case req.Username == "":
		return nil, domain.Validation("username is required")
	case req.Email == "":
		return nil, domain.Validation("email is required")
	case len(req.Password) < minPasswordLength:
		return nil, domain.Validation("password must be at least %d characters", minPasswordLength)
	}
	if _, err := mail.ParseAddress(req.Email); err != nil {
		return nil, domain.Validation("enter a valid email address")
	}

	usernameTaken, emailTaken, err := s.users.UserExists(ctx, req.Username, req.Email)
	if err != nil {
		return nil, err
	}
	if usernameTaken {
		return nil, domain.Validation("a user with that username already exists")
	}
	if emailTaken {
		return nil, domain.Validation("a user with that email already exists")
	}

	hash, err := security.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
		FirstName:    req.FirstName,
	}
	if err := s.users.CreateUser(ctx, user); err != nil {
		return nil, err
	}

	s.sendVerification(user)
	s.logger.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("user signed up")
	return user, nil
}

func (s *AuthService) sendVerification(user *models.User) {
	if s.mail == nil {
		return
	}
	token, err := s.verification.Generate(user.Username)
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("generate verification token")
		return
	}
	if err := s.mail.Enqueue(notify.VerificationEmail(user, s.verifyLink(token))); err != nil {
		s.logger.Error().Err(err).Int64("user_id", user.ID).Msg("enqueue verification email")
	}
}

func (s *AuthService) verifyLink(token string) string {
	u, err := url.Parse(s.verifyURL)
	if err != nil || s.verifyURL == "" {
		return token
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// VerifyEmail activates the account named by token. alreadyVerified is true
// when it had been activated before.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (alreadyVerified bool, err error) {
	if strings.TrimSpace(token) == "" {
		return false, domain.Validation("token is required")
	}
	username, err := s.verification.Verify(token)
	if err != nil {
		return false, domain.Validation("invalid or expired token")
	}

	user, err := s.users.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return false, domain.Validation("invalid or expired token")
		}
		return false, err
	}
	if user.Verified() {
		return true, nil
	}
	if err := s.users.MarkEmailVerified(ctx, user.ID, s.now()); err != nil {
		return false, err
	}
	s.logger.Info().Int64("user_id", user.ID).Msg("email verified")
	return false, nil
}

// Login exchanges credentials for an access/refresh pair.
func (s *AuthService) Login(ctx context.Context, username, password string) (*security.TokenPair, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, errBadCredentials
		}
		return nil, err
	}
	if !security.CheckPassword(user.PasswordHash, password) || !user.IsActive {
		return nil, errBadCredentials
	}
	return s.tokens.GeneratePair(user.ID, user.IsStaff)
}

// Refresh issues a new access token for a valid refresh token.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (string, error) {
	claims, err := s.tokens.ValidateToken(refreshToken, security.TokenTypeRefresh)
	if err != nil {
		return "", domain.Unauthorized("token is invalid or expired")
	}
	user, err := s.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", domain.Unauthorized("user not found")
		}
		return "", err
	}
	if !user.IsActive {
		return "", errBadCredentials
	}
	return s.tokens.GenerateAccessToken(user.ID, user.IsStaff)
}

// Authenticate resolves an access token into the caller identity.
func (s *AuthService) Authenticate(accessToken string) (lifecycle.Actor, error) {
	claims, err := s.tokens.ValidateToken(accessToken, security.TokenTypeAccess)
	if err != nil {
		return lifecycle.Actor{}, domain.Unauthorized("given token not valid for any token type")
	}
	return lifecycle.Actor{UserID: claims.UserID, IsAdmin: claims.IsStaff}, nil
}
