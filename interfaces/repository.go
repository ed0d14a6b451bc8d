package interfaces

import (
	"context"

	"github.com/mailroomhq/mailroom/internal/models"
)

type AccountRepository interface {
	GetAccounts(ctx context.Context) ([]*models.Account, error)
	GetAccount(ctx context.Context, id string) (*models.Account, error)
	// GetActiveAccount returns the single account currently marked active,
	// or ErrNoActiveAccount.
	GetActiveAccount(ctx context.Context) (*models.Account, error)
	SaveAccount(ctx context.Context, account *models.Account) error
	// SetActiveAccount moves the active flag to the given account in one
	// transaction, so at most one account is ever active.
	SetActiveAccount(ctx context.Context, id string) error
	DeleteAccount(ctx context.Context, id string) error
}
