package auth

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	er "github.com/mailroomhq/mailroom/internal/errors"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/logger"
	"github.com/mailroomhq/mailroom/internal/models"
	"github.com/mailroomhq/mailroom/internal/utils"
)

type mockCredentialStore struct {
	mock.Mock
}

func (m *mockCredentialStore) GetTokens(accountID string) (*models.TokenSet, error) {
	args := m.Called(accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenSet), args.Error(1)
}

func (m *mockCredentialStore) GetLegacyTokens() (*models.TokenSet, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenSet), args.Error(1)
}

func (m *mockCredentialStore) PutTokens(accountID string, tokens *models.TokenSet) error {
	return m.Called(accountID, tokens).Error(0)
}

func (m *mockCredentialStore) PutLegacyTokens(tokens *models.TokenSet) error {
	return m.Called(tokens).Error(0)
}

func (m *mockCredentialStore) GetPassword(accountID string) (string, error) {
	args := m.Called(accountID)
	return args.String(0), args.Error(1)
}

func (m *mockCredentialStore) PutPassword(accountID string, password string) error {
	return m.Called(accountID, password).Error(0)
}

type mockTokenRefresher struct {
	mock.Mock
}

func (m *mockTokenRefresher) Refresh(ctx context.Context, refreshToken string, provider enum.EmailProvider) (*models.TokenSet, error) {
	args := m.Called(ctx, refreshToken, provider)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.TokenSet), args.Error(1)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func passwordAccount() *models.Account {
	return &models.Account{
		ID:       "acct_pass",
		Email:    "user@example.com",
		AuthKind: enum.AuthPassword,
		Provider: enum.EmailGeneric,
	}
}

func oauthAccount() *models.Account {
	return &models.Account{
		ID:       "acct_oauth",
		Email:    "user@gmail.com",
		AuthKind: enum.AuthOAuth2,
		Provider: enum.EmailGmail,
	}
}

func TestResolve_PasswordAccount(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	refresher := &mockTokenRefresher{}
	store.On("GetPassword", "acct_pass").Return("hunter2", nil)
	resolver := NewCredentialResolver(getLogger(), store, refresher)

	// Act
	creds, err := resolver.Resolve(context.Background(), passwordAccount())

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, models.PasswordCredentials{User: "user@example.com", Password: "hunter2"}, creds)
	refresher.AssertNotCalled(t, "Refresh")
}

func TestResolve_PasswordAccount_NoStoredPassword(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	refresher := &mockTokenRefresher{}
	store.On("GetPassword", "acct_pass").Return("", errors.Wrap(er.ErrUnauthenticated, "account acct_pass"))
	resolver := NewCredentialResolver(getLogger(), store, refresher)

	// Act
	creds, err := resolver.Resolve(context.Background(), passwordAccount())

	// Assert
	assert.Nil(t, creds)
	assert.True(t, errors.Is(err, er.ErrUnauthenticated))
}

func TestResolve_OAuthAccount_FreshToken_NoRefresh(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	refresher := &mockTokenRefresher{}
	store.On("GetTokens", "acct_oauth").Return(&models.TokenSet{
		AccessToken:  "fresh",
		RefreshToken: "rt",
		ExpiresAt:    utils.Now().Add(time.Hour),
	}, nil)
	resolver := NewCredentialResolver(getLogger(), store, refresher)

	// Act
	creds, err := resolver.Resolve(context.Background(), oauthAccount())

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, models.OAuth2Credentials{User: "user@gmail.com", AccessToken: "fresh"}, creds)
	refresher.AssertNotCalled(t, "Refresh")
	store.AssertNotCalled(t, "PutTokens")
}

func TestResolve_OAuthAccount_ExpiringToken_Refreshes(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	refresher := &mockTokenRefresher{}
	refreshed := &models.TokenSet{
		AccessToken:  "renewed",
		RefreshToken: "rt",
		ExpiresAt:    utils.Now().Add(time.Hour),
	}
	store.On("GetTokens", "acct_oauth").Return(&models.TokenSet{
		AccessToken:  "stale",
		RefreshToken: "rt",
		// Inside the 60-second skew, so it counts as expired already.
		ExpiresAt: utils.Now().Add(30 * time.Second),
	}, nil)
	refresher.On("Refresh", mock.Anything, "rt", enum.EmailGmail).Return(refreshed, nil)
	store.On("PutTokens", "acct_oauth", refreshed).Return(nil)
	store.On("PutLegacyTokens", refreshed).Return(nil)
	resolver := NewCredentialResolver(getLogger(), store, refresher)

	// Act
	creds, err := resolver.Resolve(context.Background(), oauthAccount())

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, models.OAuth2Credentials{User: "user@gmail.com", AccessToken: "renewed"}, creds)
	store.AssertCalled(t, "PutTokens", "acct_oauth", refreshed)
	store.AssertCalled(t, "PutLegacyTokens", refreshed)
}

func TestResolve_OAuthAccount_PersistFailureIsSwallowed(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	refresher := &mockTokenRefresher{}
	refreshed := &models.TokenSet{
		AccessToken: "renewed",
		ExpiresAt:   utils.Now().Add(time.Hour),
	}
	store.On("GetTokens", "acct_oauth").Return(&models.TokenSet{
		AccessToken:  "stale",
		RefreshToken: "rt",
		ExpiresAt:    utils.Now().Add(-time.Minute),
	}, nil)
	refresher.On("Refresh", mock.Anything, "rt", enum.EmailGmail).Return(refreshed, nil)
	store.On("PutTokens", "acct_oauth", refreshed).Return(errors.New("keyring locked"))
	store.On("PutLegacyTokens", refreshed).Return(errors.New("keyring locked"))
	resolver := NewCredentialResolver(getLogger(), store, refresher)

	// Act
	creds, err := resolver.Resolve(context.Background(), oauthAccount())

	// Assert - the in-memory token is still usable for this call
	assert.NoError(t, err)
	assert.Equal(t, models.OAuth2Credentials{User: "user@gmail.com", AccessToken: "renewed"}, creds)
}

func TestResolve_OAuthAccount_ExpiredWithoutRefreshToken(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	refresher := &mockTokenRefresher{}
	store.On("GetTokens", "acct_oauth").Return(&models.TokenSet{
		AccessToken: "stale",
		ExpiresAt:   utils.Now().Add(-time.Minute),
	}, nil)
	resolver := NewCredentialResolver(getLogger(), store, refresher)

	// Act
	creds, err := resolver.Resolve(context.Background(), oauthAccount())

	// Assert
	assert.Nil(t, creds)
	assert.True(t, errors.Is(err, er.ErrReauthRequired))
	refresher.AssertNotCalled(t, "Refresh")
}

func TestResolve_OAuthAccount_RefreshFailure(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	refresher := &mockTokenRefresher{}
	store.On("GetTokens", "acct_oauth").Return(&models.TokenSet{
		AccessToken:  "stale",
		RefreshToken: "rt",
		ExpiresAt:    utils.Now().Add(-time.Minute),
	}, nil)
	refresher.On("Refresh", mock.Anything, "rt", enum.EmailGmail).Return(nil, errors.New("invalid_grant"))
	resolver := NewCredentialResolver(getLogger(), store, refresher)

	// Act
	creds, err := resolver.Resolve(context.Background(), oauthAccount())

	// Assert - nothing is written back on a failed refresh
	assert.Nil(t, creds)
	assert.True(t, errors.Is(err, er.ErrRefreshFailed))
	store.AssertNotCalled(t, "PutTokens")
	store.AssertNotCalled(t, "PutLegacyTokens")
}

func TestResolve_OAuthAccount_LegacySlotFallback(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	refresher := &mockTokenRefresher{}
	store.On("GetTokens", "acct_oauth").Return(nil, errors.New("key not found"))
	store.On("GetLegacyTokens").Return(&models.TokenSet{
		AccessToken: "from-legacy-slot",
		ExpiresAt:   utils.Now().Add(time.Hour),
	}, nil)
	resolver := NewCredentialResolver(getLogger(), store, refresher)

	// Act
	creds, err := resolver.Resolve(context.Background(), oauthAccount())

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, models.OAuth2Credentials{User: "user@gmail.com", AccessToken: "from-legacy-slot"}, creds)
}

func TestResolve_OAuthAccount_NoTokensAnywhere(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	refresher := &mockTokenRefresher{}
	store.On("GetTokens", "acct_oauth").Return(nil, errors.New("key not found"))
	store.On("GetLegacyTokens").Return(nil, errors.New("key not found"))
	resolver := NewCredentialResolver(getLogger(), store, refresher)

	// Act
	creds, err := resolver.Resolve(context.Background(), oauthAccount())

	// Assert
	assert.Nil(t, creds)
	assert.True(t, errors.Is(err, er.ErrUnauthenticated))
}
