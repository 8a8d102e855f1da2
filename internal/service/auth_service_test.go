package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ios-sistema/presenca-api/internal/models"
	appErrors "github.com/ios-sistema/presenca-api/pkg/errors"
)

type fakeAuthRepo struct {
	users  map[string]*models.User
	tokens map[string]*models.RefreshToken
}

func newFakeAuthRepo(users ...*models.User) *fakeAuthRepo {
	repo := &fakeAuthRepo{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeAuthRepo) FindByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) FindByID(_ context.Context, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) Create(_ context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = "user-new"
	}
	f.users[user.ID] = user
	return nil
}

func (f *fakeAuthRepo) UpdateStatus(_ context.Context, id string, status models.UserStatus) error {
	f.users[id].Status = status
	return nil
}

func (f *fakeAuthRepo) UpdateLastLogin(_ context.Context, id string, ts time.Time) error {
	f.users[id].LastLogin = &ts
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(_ context.Context, id, passwordHash string, _ time.Time) error {
	f.users[id].PasswordHash = passwordHash
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(_ context.Context, userID string) error {
	for _, t := range f.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(_ context.Context, token *models.RefreshToken) error {
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(_ context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := f.tokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) RevokeRefreshToken(_ context.Context, id string, _ time.Time) error {
	for _, t := range f.tokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	return nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "presenca-api",
	}
}

func hashOf(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func TestLoginAndValidateToken(t *testing.T) {
	repo := newFakeAuthRepo(&models.User{
		ID:           "u1",
		Email:        "prof@example.org",
		PasswordHash: hashOf(t, "secret123"),
		FullName:     "Prof Silva",
		Role:         models.RoleInstructor,
		Status:       models.UserStatusActive,
		Active:       true,
	})
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "prof@example.org", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, models.RoleInstructor, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleInstructor, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	repo := newFakeAuthRepo(&models.User{
		ID:           "u1",
		Email:        "prof@example.org",
		PasswordHash: hashOf(t, "secret123"),
		Status:       models.UserStatusActive,
		Active:       true,
	})
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "prof@example.org", Password: "wrong"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidCredentials))
}

func TestLoginPendingAccountRejected(t *testing.T) {
	repo := newFakeAuthRepo(&models.User{
		ID:           "u1",
		Email:        "novo@example.org",
		PasswordHash: hashOf(t, "secret123"),
		Status:       models.UserStatusPending,
		Active:       true,
	})
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "novo@example.org", Password: "secret123"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInactiveAccount))
}

func TestRefreshTokenRotation(t *testing.T) {
	repo := newFakeAuthRepo(&models.User{
		ID:           "u1",
		Email:        "prof@example.org",
		PasswordHash: hashOf(t, "secret123"),
		Role:         models.RoleInstructor,
		Status:       models.UserStatusActive,
		Active:       true,
	})
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	login, err := svc.Login(context.Background(), models.LoginRequest{Email: "prof@example.org", Password: "secret123"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, login.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked, a second exchange fails.
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: login.RefreshToken})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthenticated))
}

func TestFirstAccessAndApproval(t *testing.T) {
	repo := newFakeAuthRepo()
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())
	ctx := context.Background()

	user, err := svc.FirstAccess(ctx, models.FirstAccessRequest{
		FullName: "Novo Instrutor",
		Email:    "novo@example.org",
		Password: "secret123",
		Role:     models.RoleInstructor,
	})
	require.NoError(t, err)
	assert.Equal(t, models.UserStatusPending, user.Status)

	// Pending accounts cannot log in yet.
	_, err = svc.Login(ctx, models.LoginRequest{Email: "novo@example.org", Password: "secret123"})
	require.Error(t, err)

	admin := models.Principal{UserID: "adm", Role: models.RoleAdmin}
	require.NoError(t, svc.Approve(ctx, admin, user.ID, "temp-pass-1"))

	resp, err := svc.Login(ctx, models.LoginRequest{Email: "novo@example.org", Password: "temp-pass-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
}

func TestFirstAccessRejectsAdminRole(t *testing.T) {
	svc := NewAuthService(newFakeAuthRepo(), nil, zap.NewNop(), testAuthConfig())

	_, err := svc.FirstAccess(context.Background(), models.FirstAccessRequest{
		FullName: "Wannabe Admin",
		Email:    "admin@example.org",
		Password: "secret123",
		Role:     models.RoleAdmin,
	})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidInput))
}

func TestApproveRequiresAdmin(t *testing.T) {
	repo := newFakeAuthRepo(&models.User{ID: "u1", Status: models.UserStatusPending, Active: true})
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	err := svc.Approve(context.Background(), models.Principal{UserID: "inst", Role: models.RoleInstructor}, "u1", "temp-pass-1")
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestResolvePrincipalInactiveUser(t *testing.T) {
	repo := newFakeAuthRepo(&models.User{ID: "u1", Status: models.UserStatusInactive, Active: false})
	svc := NewAuthService(repo, nil, zap.NewNop(), testAuthConfig())

	_, err := svc.ResolvePrincipal(context.Background(), &models.JWTClaims{UserID: "u1"})
	require.Error(t, err)
	assert.True(t, appErrors.Is(err, appErrors.ErrUnauthenticated))
}
