package interfaces

import (
	"context"
	"time"

	"github.com/mailroomhq/mailroom/internal/models"
)

// MailSession is one account's live connection to its mail server. A session
// serializes its operations internally; callers may share one instance.
type MailSession interface {
	// Connect establishes the IMAP connection. Construction never dials;
	// the first operation on a fresh session connects lazily.
	Connect(ctx context.Context) error
	ListMessages(ctx context.Context, folder string, limit, offset uint32) ([]*models.EmailSummary, error)
	GetMessage(ctx context.Context, folder string, uid uint32) (*models.EmailMessage, error)
	Send(ctx context.Context, email *models.OutgoingEmail) error
	SetFlags(ctx context.Context, folder string, uid uint32, flags []string, set bool) error
	MoveMessage(ctx context.Context, folder string, uid uint32, destFolder string) error
	FolderStats(ctx context.Context, folder string) (*models.FolderStats, error)
	// AwaitChange blocks until the folder changes, maxWait elapses, or the
	// connection fails. True means a change was observed.
	AwaitChange(ctx context.Context, folder string, maxWait time.Duration) (bool, error)
	Close() error
}

// SessionRegistry owns the per-account session cache.
type SessionRegistry interface {
	GetActiveSession(ctx context.Context) (MailSession, error)
	GetOrCreate(ctx context.Context, account *models.Account) (MailSession, error)
	Remove(accountID string)
	CloseAll()
}
