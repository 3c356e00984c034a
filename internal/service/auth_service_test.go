package service

import (
	"context"
	"database/sql"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/relovo/relovo-api/internal/models"
	appErrors "github.com/relovo/relovo-api/pkg/errors"
)

type userRepoStub struct {
	users map[string]*models.User
}

func (s userRepoStub) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if user, ok := s.users[email]; ok {
		return user, nil
	}
	return nil, sql.ErrNoRows
}

func newAuthServiceForTest(t *testing.T, password string, active bool) *AuthService {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	repo := userRepoStub{users: map[string]*models.User{
		"tina@example.com": {
			ID: "tenant-1", Email: "tina@example.com", Name: "Tina Tenant",
			Role: models.RoleTenant, Active: active, PasswordHash: string(hash),
		},
	}}
	return NewAuthService(repo, nil, zap.NewNop(), AuthConfig{JWTSecret: "test-secret", JWTExpiration: time.Hour})
}

func TestAuthServiceLogin(t *testing.T) {
	svc := newAuthServiceForTest(t, "secret123", true)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "tina@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "tenant-1", resp.User.ID)
	assert.Equal(t, models.RoleTenant, resp.User.Role)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "tenant-1", claims.UserID)
	assert.Equal(t, models.RoleTenant, claims.Role)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	svc := newAuthServiceForTest(t, "secret123", true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "tina@example.com", Password: "wrong"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginUnknownUser(t *testing.T) {
	svc := newAuthServiceForTest(t, "secret123", true)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@example.com", Password: "secret123"})
	assert.ErrorIs(t, err, appErrors.ErrInvalidCredentials)
}

func TestAuthServiceLoginInactiveAccount(t *testing.T) {
	svc := newAuthServiceForTest(t, "secret123", false)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "tina@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, appErrors.FromError(err).Status)
}

func TestAuthServiceValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthServiceForTest(t, "secret123", true)

	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, appErrors.FromError(err).Status)
}
