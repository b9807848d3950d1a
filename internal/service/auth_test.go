package service

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"assetbook/internal/database"
	"assetbook/internal/domain"
	"assetbook/internal/models"
	"assetbook/internal/security"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	svc    *AuthService
	users  *mockUserRepo
	mail   *mockMailQueue
	tokens *security.TokenManager
	verify *security.VerificationTokens
	clock  time.Time
}

func newAuthFixture() *authFixture {
	f := &authFixture{users: new(mockUserRepo), mail: new(mockMailQueue), clock: time.Now()}
	now := func() time.Time { return f.clock }
	f.tokens = security.NewTokenManager("jwt-secret", time.Hour, 7*24*time.Hour).WithClock(now)
	f.verify = security.NewVerificationTokens("verify-secret", now, 24*time.Hour)
	logger := zerolog.New(io.Discard)
	f.svc = NewAuthService(f.users, f.tokens, f.verify, f.mail, "https://assets.example.com/verify", &logger)
	f.svc.now = now
	return f
}

func TestAuthService_SignupWithoutFirstName(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.users.On("UserExists", ctx, "bob", "bob@example.com").Return(false, false, nil).Once()
	f.users.On("CreateUser", ctx, mock.MatchedBy(func(u *models.User) bool {
		return u.Username == "bob" && u.FirstName == ""
	})).Return(nil).Once()
	f.mail.On("Enqueue", mock.Anything).Return(nil).Once()

	user, err := f.svc.Signup(ctx, SignupRequest{Username: "bob", Password: "longenough", Email: "bob@example.com"})
	require.NoError(t, err)
	assert.Empty(t, user.FirstName)
	f.users.AssertExpectations(t)
}

func TestAuthService_SignupValidation(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	cases := []SignupRequest{
		{Password: "longenough", Email: "a@example.com", FirstName: "A"},
		{Username: "a", Password: "longenough", FirstName: "A"},
		{Username: "a", Password: "short", Email: "a@example.com", FirstName: "A"},
		{Username: "a", Password: "longenough", Email: "not-an-email", FirstName: "A"},
	}
	for _, req := range cases {
		_, err := f.svc.Signup(ctx, req)
		assert.ErrorIs(t, err, domain.ErrValidation, "%+v", req)
	}

	f.users.On("UserExists", ctx, "taken", "a@example.com").Return(true, false, nil).Once()
	_, err := f.svc.Signup(ctx, SignupRequest{Username: "taken", Password: "longenough", Email: "a@example.com", FirstName: "A"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "username")

	f.users.On("UserExists", ctx, "free", "used@example.com").Return(false, true, nil).Once()
	_, err = f.svc.Signup(ctx, SignupRequest{Username: "free", Password: "longenough", Email: "used@example.com", FirstName: "A"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "email")
}

func TestAuthService_SignupVerifyLogin(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	var created *models.User
	var link string
	f.users.On("UserExists", ctx, "alice", "alice@example.com").Return(false, false, nil).Once()
	f.users.On("CreateUser", ctx, mock.AnythingOfType("*models.User")).Run(func(args mock.Arguments) {
		created = args.Get(1).(*models.User)
		created.ID = 11
	}).Return(nil).Once()
	f.mail.On("Enqueue", mock.MatchedBy(func(m models.Email) bool {
		link = m.Text[strings.Index(m.Text, "https://"):]
		return m.To == "alice@example.com"
	})).Return(nil).Once()

	user, err := f.svc.Signup(ctx, SignupRequest{Username: "alice", Password: "wonderland", Email: "alice@example.com", FirstName: "Alice"})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.NotEqual(t, "wonderland", created.PasswordHash)
	require.Contains(t, link, "token=")
	token := link[strings.Index(link, "token=")+len("token="):]

	// inactive users cannot log in
	f.users.On("GetUserByUsername", ctx, "alice").Return(created, nil)
	_, err = f.svc.Login(ctx, "alice", "wonderland")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	f.users.On("MarkEmailVerified", ctx, int64(11), f.clock).Run(func(mock.Arguments) {
		verifiedAt := f.clock
		created.EmailVerifiedAt = &verifiedAt
		created.IsActive = true
	}).Return(nil).Once()

	already, err := f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.False(t, already)

	already, err = f.svc.VerifyEmail(ctx, token)
	require.NoError(t, err)
	assert.True(t, already)

	_, err = f.svc.Login(ctx, "alice", "wrong-password")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	pair, err := f.svc.Login(ctx, "alice", "wonderland")
	require.NoError(t, err)

	actor, err := f.svc.Authenticate(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, int64(11), actor.UserID)
	assert.False(t, actor.IsAdmin)

	_, err = f.svc.Authenticate(pair.Refresh)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	f.users.On("GetUserByID", ctx, int64(11)).Return(created, nil).Once()
	access, err := f.svc.Refresh(ctx, pair.Refresh)
	require.NoError(t, err)
	_, err = f.svc.Authenticate(access)
	assert.NoError(t, err)

	f.users.AssertExpectations(t)
	f.mail.AssertExpectations(t)
}

func TestAuthService_VerifyEmailErrors(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	_, err := f.svc.VerifyEmail(ctx, "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	_, err = f.svc.VerifyEmail(ctx, "junk")
	assert.ErrorIs(t, err, domain.ErrValidation)

	token, err := f.verify.Generate("ghost")
	require.NoError(t, err)
	f.users.On("GetUserByUsername", ctx, "ghost").Return(nil, database.ErrUserNotFound).Once()
	_, err = f.svc.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, domain.ErrValidation)

	token, err = f.verify.Generate("late")
	require.NoError(t, err)
	f.clock = f.clock.Add(25 * time.Hour)
	_, err = f.svc.VerifyEmail(ctx, token)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestAuthService_LoginUnknownAndRefreshErrors(t *testing.T) {
	f := newAuthFixture()
	ctx := context.Background()

	f.users.On("GetUserByUsername", ctx, "nobody").Return(nil, database.ErrUserNotFound).Once()
	_, err := f.svc.Login(ctx, "nobody", "whatever1")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.Refresh(ctx, "junk")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	refresh, err := f.tokens.GenerateRefreshToken(5, false)
	require.NoError(t, err)
	f.users.On("GetUserByID", ctx, int64(5)).Return(&models.User{ID: 5, IsActive: false}, nil).Once()
	_, err = f.svc.Refresh(ctx, refresh)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
