package watcher

import (
	"context"
	"strings"
	"sync"

	"github.com/opentracing/opentracing-go"

	"github.com/mailroomhq/mailroom/config"
	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/logger"
	"github.com/mailroomhq/mailroom/internal/models"
	"github.com/mailroomhq/mailroom/internal/tracing"
	"github.com/mailroomhq/mailroom/services/session"
)

// registration pairs a running watcher with its cancellation channel. The
// registry map is the single source of truth for what is being monitored.
type registration struct {
	cancel  chan struct{}
	watcher *folderWatcher
}

type watchSupervisor struct {
	log        logger.Logger
	resolver   interfaces.CredentialResolver
	events     interfaces.EventPublisher
	newSession sessionFactory

	mu       sync.Mutex
	watchers map[string]registration
}

// NewWatchSupervisor builds the supervisor that owns all folder watchers.
// Watcher sessions are dialed fresh per reconnect and never shared with the
// on-demand session cache.
func NewWatchSupervisor(
	log logger.Logger,
	cfg *config.IMAPConfig,
	resolver interfaces.CredentialResolver,
	sender interfaces.SMTPSender,
	events interfaces.EventPublisher,
) interfaces.WatchSupervisor {
	factory := func(account *models.Account, creds models.Credentials) interfaces.MailSession {
		return session.NewIMAPSession(log, cfg, account, creds, sender)
	}
	return &watchSupervisor{
		log:        log,
		resolver:   resolver,
		events:     events,
		newSession: factory,
		watchers:   make(map[string]registration),
	}
}

// Start replaces the account's watcher set with one watcher per monitored
// folder. Any previous set is stopped first, so registrations are swapped
// wholesale rather than accumulated.
func (s *watchSupervisor) Start(ctx context.Context, account *models.Account) error {
	span, _ := opentracing.StartSpanFromContext(ctx, "WatchSupervisor.Start")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	s.Stop(account.ID)

	folders := account.MonitoredFolders()
	span.LogKV("folders", strings.Join(folders, ","))

	for _, folder := range folders {
		key := registrationKey(account.ID, folder)
		w := newFolderWatcher(s.log, account, folder, s.resolver, s.newSession, s.events)
		cancel := make(chan struct{})

		s.mu.Lock()
		s.watchers[key] = registration{cancel: cancel, watcher: w}
		s.mu.Unlock()

		go w.run(cancel)
	}

	s.log.Infof("monitoring started for account %s on %d folders", account.ID, len(folders))
	return nil
}

// Stop removes every registration belonging to the account and signals its
// watchers. It does not wait for the loops to exit; each watcher observes the
// signal at its next loop-top check.
func (s *watchSupervisor) Stop(accountID string) {
	prefix := accountID + ":"

	s.mu.Lock()
	var cancels []chan struct{}
	for key, reg := range s.watchers {
		if strings.HasPrefix(key, prefix) {
			cancels = append(cancels, reg.cancel)
			delete(s.watchers, key)
		}
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		close(cancel)
	}

	if len(cancels) > 0 {
		s.log.Infof("signalled %d watchers to stop for account %s", len(cancels), accountID)
	}
}

// StopAll signals every watcher regardless of account. Used at shutdown.
func (s *watchSupervisor) StopAll() {
	s.mu.Lock()
	var cancels []chan struct{}
	for key, reg := range s.watchers {
		cancels = append(cancels, reg.cancel)
		delete(s.watchers, key)
	}
	s.mu.Unlock()

	for _, cancel := range cancels {
		close(cancel)
	}

	if len(cancels) > 0 {
		s.log.Infof("signalled all %d watchers to stop", len(cancels))
	}
}

// Status reports a snapshot of every registered watcher, keyed the same way
// as the registry.
func (s *watchSupervisor) Status() map[string]interfaces.WatcherStatus {
	s.mu.Lock()
	regs := make(map[string]*folderWatcher, len(s.watchers))
	for key, reg := range s.watchers {
		regs[key] = reg.watcher
	}
	s.mu.Unlock()

	out := make(map[string]interfaces.WatcherStatus, len(regs))
	for key, w := range regs {
		out[key] = w.status()
	}
	return out
}

func registrationKey(accountID, folder string) string {
	return accountID + ":" + folder
}
