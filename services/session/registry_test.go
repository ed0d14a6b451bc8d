package session

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mailroomhq/mailroom/config"
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

type mockCredentialResolver struct {
	mock.Mock
}

func (m *mockCredentialResolver) Resolve(ctx context.Context, account *models.Account) (models.Credentials, error) {
	args := m.Called(ctx, account)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(models.Credentials), args.Error(1)
}

type mockAccountRepository struct {
	mock.Mock
}

func (m *mockAccountRepository) GetAccounts(ctx context.Context) ([]*models.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Account), args.Error(1)
}

func (m *mockAccountRepository) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockAccountRepository) GetActiveAccount(ctx context.Context) (*models.Account, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Account), args.Error(1)
}

func (m *mockAccountRepository) SaveAccount(ctx context.Context, account *models.Account) error {
	return m.Called(ctx, account).Error(0)
}

func (m *mockAccountRepository) SetActiveAccount(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *mockAccountRepository) DeleteAccount(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func oauthAccount() *models.Account {
	return &models.Account{
		ID:       "acct_oauth",
		Email:    "user@gmail.com",
		AuthKind: enum.AuthOAuth2,
		Provider: enum.EmailGmail,
		ImapHost: "imap.gmail.com",
		ImapPort: 993,
		Security: enum.EmailSecurityTLS,
	}
}

func newTestRegistry(store *mockCredentialStore, resolver *mockCredentialResolver, accounts *mockAccountRepository) *sessionRegistry {
	return NewSessionRegistry(
		getLogger(),
		&config.IMAPConfig{DialTimeoutSeconds: 1},
		accounts,
		store,
		resolver,
		nil,
	).(*sessionRegistry)
}

func TestGetOrCreate_CacheHitReturnsSameHandle(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	resolver := &mockCredentialResolver{}
	account := oauthAccount()
	store.On("GetTokens", account.ID).Return(&models.TokenSet{
		AccessToken: "at",
		ExpiresAt:   utils.Now().Add(time.Hour),
	}, nil)
	resolver.On("Resolve", mock.Anything, account).
		Return(models.OAuth2Credentials{User: account.Email, AccessToken: "at"}, nil)
	registry := newTestRegistry(store, resolver, &mockAccountRepository{})

	// Act
	first, err1 := registry.GetOrCreate(context.Background(), account)
	second, err2 := registry.GetOrCreate(context.Background(), account)

	// Assert - same handle, credentials resolved exactly once
	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.Same(t, first, second)
	resolver.AssertNumberOfCalls(t, "Resolve", 1)
}

func TestGetOrCreate_ExpiringTokensEvictCachedHandle(t *testing.T) {
	// Arrange - tokens fresh on the first call, inside the skew on the second
	store := &mockCredentialStore{}
	resolver := &mockCredentialResolver{}
	account := oauthAccount()
	store.On("GetTokens", account.ID).Return(&models.TokenSet{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    utils.Now().Add(time.Hour),
	}, nil).Once()
	store.On("GetTokens", account.ID).Return(&models.TokenSet{
		AccessToken:  "at",
		RefreshToken: "rt",
		ExpiresAt:    utils.Now().Add(10 * time.Second),
	}, nil)
	resolver.On("Resolve", mock.Anything, account).
		Return(models.OAuth2Credentials{User: account.Email, AccessToken: "renewed"}, nil)
	registry := newTestRegistry(store, resolver, &mockAccountRepository{})

	// Act
	first, err1 := registry.GetOrCreate(context.Background(), account)
	second, err2 := registry.GetOrCreate(context.Background(), account)

	// Assert - the cached handle must not survive credential expiry
	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.NotSame(t, first, second)
	resolver.AssertNumberOfCalls(t, "Resolve", 2)
}

func TestGetOrCreate_PasswordAccountSkipsExpiryCheck(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	resolver := &mockCredentialResolver{}
	account := &models.Account{
		ID:       "acct_pass",
		Email:    "user@example.com",
		AuthKind: enum.AuthPassword,
		ImapHost: "mail.example.com",
		ImapPort: 993,
	}
	resolver.On("Resolve", mock.Anything, account).
		Return(models.PasswordCredentials{User: account.Email, Password: "hunter2"}, nil)
	registry := newTestRegistry(store, resolver, &mockAccountRepository{})

	// Act
	first, err1 := registry.GetOrCreate(context.Background(), account)
	second, err2 := registry.GetOrCreate(context.Background(), account)

	// Assert - no token reads at all for password accounts
	assert.NoError(t, err1)
	assert.NoError(t, err2)
	assert.Same(t, first, second)
	store.AssertNotCalled(t, "GetTokens")
}

func TestGetOrCreate_ResolverErrorPropagates(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	resolver := &mockCredentialResolver{}
	account := oauthAccount()
	store.On("GetTokens", account.ID).Return(&models.TokenSet{
		AccessToken: "at",
		ExpiresAt:   utils.Now().Add(time.Hour),
	}, nil)
	resolver.On("Resolve", mock.Anything, account).
		Return(nil, errors.Wrap(er.ErrReauthRequired, "account acct_oauth"))
	registry := newTestRegistry(store, resolver, &mockAccountRepository{})

	// Act
	session, err := registry.GetOrCreate(context.Background(), account)

	// Assert - nothing gets cached on a failed create
	assert.Nil(t, session)
	assert.True(t, errors.Is(err, er.ErrReauthRequired))
	registry.mu.Lock()
	assert.Empty(t, registry.sessions)
	registry.mu.Unlock()
}

func TestGetActiveSession_NoActiveAccount(t *testing.T) {
	// Arrange
	accounts := &mockAccountRepository{}
	accounts.On("GetActiveAccount", mock.Anything).Return(nil, er.ErrNoActiveAccount)
	registry := newTestRegistry(&mockCredentialStore{}, &mockCredentialResolver{}, accounts)

	// Act
	session, err := registry.GetActiveSession(context.Background())

	// Assert
	assert.Nil(t, session)
	assert.True(t, errors.Is(err, er.ErrNoActiveAccount))
}

func TestRemove_DropsCachedHandle(t *testing.T) {
	// Arrange
	store := &mockCredentialStore{}
	resolver := &mockCredentialResolver{}
	account := oauthAccount()
	store.On("GetTokens", account.ID).Return(&models.TokenSet{
		AccessToken: "at",
		ExpiresAt:   utils.Now().Add(time.Hour),
	}, nil)
	resolver.On("Resolve", mock.Anything, account).
		Return(models.OAuth2Credentials{User: account.Email, AccessToken: "at"}, nil)
	registry := newTestRegistry(store, resolver, &mockAccountRepository{})

	first, err := registry.GetOrCreate(context.Background(), account)
	assert.NoError(t, err)

	// Act
	registry.Remove(account.ID)
	second, err := registry.GetOrCreate(context.Background(), account)

	// Assert
	assert.NoError(t, err)
	assert.NotSame(t, first, second)
	resolver.AssertNumberOfCalls(t, "Resolve", 2)
}
