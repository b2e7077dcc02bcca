package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/melodia-school/melodia-api/internal/models"
	appErrors "github.com/melodia-school/melodia-api/pkg/errors"
)

type mockAuthRepo struct {
	usersByEmail  map[string]*models.User
	usersByID     map[string]*models.User
	usersByGoogle map[string]*models.User
	refreshTokens map[string]*models.RefreshToken

	created       []*models.User
	linkedGoogle  []string
	revokedTokens []string
	revokedUsers  []string
	auditLogs     []*models.AuditLog
	passwordSet   string
}

func newMockAuthRepo() *mockAuthRepo {
	return &mockAuthRepo{
		usersByEmail:  map[string]*models.User{},
		usersByID:     map[string]*models.User{},
		usersByGoogle: map[string]*models.User{},
		refreshTokens: map[string]*models.RefreshToken{},
	}
}

func (m *mockAuthRepo) addUser(user *models.User) {
	m.usersByEmail[user.Email] = user
	m.usersByID[user.ID] = user
	if user.GoogleID != nil {
		m.usersByGoogle[*user.GoogleID] = user
	}
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if u, ok := m.usersByEmail[email]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.usersByID[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) FindByGoogleID(ctx context.Context, googleID string) (*models.User, error) {
	if u, ok := m.usersByGoogle[googleID]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "u-created"
	m.created = append(m.created, user)
	m.addUser(user)
	return nil
}

func (m *mockAuthRepo) LinkGoogleAccount(ctx context.Context, id, googleID string) error {
	m.linkedGoogle = append(m.linkedGoogle, id)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

func (m *mockAuthRepo) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	m.passwordSet = passwordHash
	return nil
}

func (m *mockAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	m.revokedUsers = append(m.revokedUsers, userID)
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := m.refreshTokens[token]; ok {
		return t, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	m.revokedTokens = append(m.revokedTokens, id)
	return nil
}

func (m *mockAuthRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type stubGoogleVerifier struct {
	profile *GoogleProfile
	err     error
}

func (s *stubGoogleVerifier) Profile(ctx context.Context, code string) (*GoogleProfile, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.profile, nil
}

func testAuthConfig() AuthConfig {
	return AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  time.Hour,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "melodia-test",
	}
}

func hashOf(t *testing.T, password string) *string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	s := string(hash)
	return &s
}

func TestLoginSuccess(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "admin@melodia.test", FullName: "Admin", Role: models.RoleAdmin, Active: true, PasswordHash: hashOf(t, "secret123")})
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@melodia.test", Password: "secret123"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "u1", resp.User.ID)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogin, repo.auditLogs[0].Action)

	claims, err := svc.ValidateToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.UserID)
	assert.Equal(t, models.RoleAdmin, claims.Role)
}

func TestLoginFailures(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "admin@melodia.test", Role: models.RoleAdmin, Active: true, PasswordHash: hashOf(t, "secret123")})
	repo.addUser(&models.User{ID: "u2", Email: "off@melodia.test", Role: models.RoleAdmin, Active: false, PasswordHash: hashOf(t, "secret123")})
	google := "g-1"
	repo.addUser(&models.User{ID: "u3", Email: "parent@melodia.test", Role: models.RoleParent, Active: true, GoogleID: &google})
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "nobody@melodia.test", Password: "secret123"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "admin@melodia.test", Password: "wrong-password"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "off@melodia.test", Password: "secret123"})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)

	// Google-only accounts have no password to check.
	_, err = svc.Login(context.Background(), models.LoginRequest{Email: "parent@melodia.test", Password: "anything123"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginWithGoogleCreatesAccount(t *testing.T) {
	repo := newMockAuthRepo()
	verifier := &stubGoogleVerifier{profile: &GoogleProfile{Subject: "g-new", Email: "new@family.test", VerifiedEmail: true, Name: "New Parent"}}
	svc := NewAuthService(repo, verifier, nil, nil, testAuthConfig())

	resp, err := svc.LoginWithGoogle(context.Background(), models.GoogleLoginRequest{Code: "auth-code"})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.Equal(t, "new@family.test", repo.created[0].Email)
	assert.Equal(t, models.RoleStudent, repo.created[0].Role)
	assert.Equal(t, "u-created", resp.User.ID)
}

func TestLoginWithGoogleLinksExistingEmail(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u5", Email: "known@family.test", Role: models.RoleParent, Active: true})
	verifier := &stubGoogleVerifier{profile: &GoogleProfile{Subject: "g-5", Email: "known@family.test", VerifiedEmail: true, Name: "Known Parent"}}
	svc := NewAuthService(repo, verifier, nil, nil, testAuthConfig())

	resp, err := svc.LoginWithGoogle(context.Background(), models.GoogleLoginRequest{Code: "auth-code"})
	require.NoError(t, err)
	assert.Equal(t, "u5", resp.User.ID)
	assert.Equal(t, []string{"u5"}, repo.linkedGoogle)
	assert.Empty(t, repo.created)
}

func TestLoginWithGoogleRejectsUnverifiedEmail(t *testing.T) {
	verifier := &stubGoogleVerifier{profile: &GoogleProfile{Subject: "g-1", Email: "x@y.test", VerifiedEmail: false}}
	svc := NewAuthService(newMockAuthRepo(), verifier, nil, nil, testAuthConfig())

	_, err := svc.LoginWithGoogle(context.Background(), models.GoogleLoginRequest{Code: "auth-code"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginWithGoogleNotConfigured(t *testing.T) {
	svc := NewAuthService(newMockAuthRepo(), nil, nil, nil, testAuthConfig())

	_, err := svc.LoginWithGoogle(context.Background(), models.GoogleLoginRequest{Code: "auth-code"})
	assert.Error(t, err)
}

func TestRefreshTokenRotation(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "admin@melodia.test", Role: models.RoleAdmin, Active: true})
	repo.refreshTokens["old-token"] = &models.RefreshToken{
		ID:        "rt-1",
		UserID:    "u1",
		Token:     "old-token",
		ExpiresAt: time.Now().UTC().Add(time.Hour),
	}
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	resp, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old-token"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEqual(t, "old-token", resp.RefreshToken)
	assert.Equal(t, []string{"rt-1"}, repo.revokedTokens)
}

func TestRefreshTokenExpiredOrRevoked(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "a@b.test", Role: models.RoleAdmin, Active: true})
	repo.refreshTokens["expired"] = &models.RefreshToken{ID: "rt-2", UserID: "u1", Token: "expired", ExpiresAt: time.Now().UTC().Add(-time.Minute)}
	repo.refreshTokens["revoked"] = &models.RefreshToken{ID: "rt-3", UserID: "u1", Token: "revoked", ExpiresAt: time.Now().UTC().Add(time.Hour), Revoked: true}
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "expired"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "revoked"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "missing"})
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestLogout(t *testing.T) {
	repo := newMockAuthRepo()
	repo.refreshTokens["tok"] = &models.RefreshToken{ID: "rt-1", UserID: "u1", Token: "tok", ExpiresAt: time.Now().UTC().Add(time.Hour)}
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	require.NoError(t, svc.Logout(context.Background(), "tok", "u1", "127.0.0.1", "test"))
	assert.Equal(t, []string{"rt-1"}, repo.revokedTokens)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionLogout, repo.auditLogs[0].Action)

	err := svc.Logout(context.Background(), "tok", "someone-else", "127.0.0.1", "test")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestChangePassword(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "admin@melodia.test", Role: models.RoleAdmin, Active: true, PasswordHash: hashOf(t, "old-secret")})
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	err := svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "wrong", NewPassword: "new-secret-1"})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.ChangePassword(context.Background(), "u1", models.ChangePasswordRequest{OldPassword: "old-secret", NewPassword: "new-secret-1"}))
	assert.NotEmpty(t, repo.passwordSet)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.passwordSet), []byte("new-secret-1")))
	assert.Equal(t, []string{"u1"}, repo.revokedUsers)
}

func TestValidateTokenRejectsTampering(t *testing.T) {
	repo := newMockAuthRepo()
	repo.addUser(&models.User{ID: "u1", Email: "admin@melodia.test", Role: models.RoleAdmin, Active: true, PasswordHash: hashOf(t, "secret123")})
	svc := NewAuthService(repo, nil, nil, nil, testAuthConfig())

	resp, err := svc.Login(context.Background(), models.LoginRequest{Email: "admin@melodia.test", Password: "secret123"})
	require.NoError(t, err)

	other := NewAuthService(repo, nil, nil, nil, AuthConfig{AccessTokenSecret: "different", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(resp.AccessToken)
	assert.Error(t, err)

	_, err = svc.ValidateToken("not-a-jwt")
	assert.Error(t, err)
}

func TestLoginGoogleLookupErrorSurfaces(t *testing.T) {
	verifier := &stubGoogleVerifier{err: errors.New("exchange failed")}
	svc := NewAuthService(newMockAuthRepo(), verifier, nil, nil, testAuthConfig())

	_, err := svc.LoginWithGoogle(context.Background(), models.GoogleLoginRequest{Code: "bad-code"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}
