package interfaces

import (
	"context"

	"github.com/mailroomhq/mailroom/internal/enum"
)

type EventPublisher interface {
	PublishFanoutEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error
	// PublishNewMail announces new mail in a folder. Fire-and-forget from
	// the caller's point of view; delivery failures are logged, not returned.
	PublishNewMail(ctx context.Context, accountID, folder string)
	Close() error
}
