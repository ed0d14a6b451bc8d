package events

import (
	"context"

	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/logger"
)

// NoopPublisher logs events instead of delivering them. Used when no broker
// is configured.
type noopPublisher struct {
	log logger.Logger
}

func NewNoopPublisher(log logger.Logger) interfaces.EventPublisher {
	return &noopPublisher{log: log}
}

func (p *noopPublisher) PublishFanoutEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error {
	p.log.Debugf("dropping fanout event for %s %s, no broker configured", entityType, entityId)
	return nil
}

func (p *noopPublisher) PublishNewMail(ctx context.Context, accountID, folder string) {
	p.log.Debugf("dropping new mail event for %s/%s, no broker configured", accountID, folder)
}

func (p *noopPublisher) Close() error {
	return nil
}
