package interfaces

import (
	"context"
	"time"

	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/models"
)

// WatchSupervisor owns the set of live folder watchers. Starting an account
// always replaces its previous watcher set; stopping is signal-and-forget.
type WatchSupervisor interface {
	Start(ctx context.Context, account *models.Account) error
	Stop(accountID string)
	StopAll()
	Status() map[string]WatcherStatus
}

type WatcherStatus struct {
	AccountID   string            `json:"accountId"`
	Folder      string            `json:"folder"`
	State       enum.WatcherState `json:"state"`
	LastEventAt *time.Time        `json:"lastEventAt,omitempty"`
	LastError   string            `json:"lastError,omitempty"`
}
