package interfaces

import (
	"context"

	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/models"
)

// CredentialStore is the durable secret storage for account credentials.
// The legacy methods read and write the single-account slot kept from the
// pre-multi-account storage layout.
type CredentialStore interface {
	GetTokens(accountID string) (*models.TokenSet, error)
	GetLegacyTokens() (*models.TokenSet, error)
	PutTokens(accountID string, tokens *models.TokenSet) error
	PutLegacyTokens(tokens *models.TokenSet) error
	GetPassword(accountID string) (string, error)
	PutPassword(accountID string, password string) error
}

// TokenRefresher exchanges a refresh token for a new token set. Stateless.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string, provider enum.EmailProvider) (*models.TokenSet, error)
}

// CredentialResolver produces ready-to-use connection credentials for an
// account, refreshing and persisting expiring tokens along the way.
type CredentialResolver interface {
	Resolve(ctx context.Context, account *models.Account) (models.Credentials, error)
}
