package services

import (
	"github.com/mailroomhq/mailroom/config"
	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/logger"
	"github.com/mailroomhq/mailroom/internal/repository"
	"github.com/mailroomhq/mailroom/services/auth"
	"github.com/mailroomhq/mailroom/services/events"
	"github.com/mailroomhq/mailroom/services/secrets"
	"github.com/mailroomhq/mailroom/services/session"
	"github.com/mailroomhq/mailroom/services/smtp"
	"github.com/mailroomhq/mailroom/services/watcher"
)

type Services struct {
	EventsService      *events.EventsService
	CredentialStore    interfaces.CredentialStore
	CredentialResolver interfaces.CredentialResolver
	SMTPSender         interfaces.SMTPSender
	SessionRegistry    interfaces.SessionRegistry
	WatchSupervisor    interfaces.WatchSupervisor
}

func InitServices(cfg *config.Config, log logger.Logger, repos *repository.Repositories) (*Services, error) {
	// events
	publisherConfig := &events.PublisherConfig{
		MessageTTL:          events.DefaultMessageTTL,
		MaxRetries:          events.DefaultMaxRetries,
		PublishTimeout:      events.DefaultPublishTimeout,
		ReconnectBackoff:    events.DefaultReconnectBackoff,
		MaxReconnectBackoff: events.DefaultMaxReconnectBackoff,
	}

	eventsService, err := events.NewEventsService(cfg.AppConfig.RabbitMQURL, log, publisherConfig)
	if err != nil {
		return nil, err
	}

	store, err := secrets.NewKeyringStore(cfg.KeyringConfig)
	if err != nil {
		return nil, err
	}

	refresher := auth.NewOAuthRefresher(cfg.OAuthConfig)
	resolver := auth.NewCredentialResolver(log, store, refresher)
	sender := smtp.NewSMTPSender()

	registry := session.NewSessionRegistry(log, cfg.IMAPConfig, repos.AccountRepository, store, resolver, sender)
	supervisor := watcher.NewWatchSupervisor(log, cfg.IMAPConfig, resolver, sender, eventsService.Publisher)

	services := Services{
		EventsService:      eventsService,
		CredentialStore:    store,
		CredentialResolver: resolver,
		SMTPSender:         sender,
		SessionRegistry:    registry,
		WatchSupervisor:    supervisor,
	}

	return &services, nil
}
