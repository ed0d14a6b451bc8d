package watcher

import (
	"context"
	"sync"
	"time"

	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/logger"
	"github.com/mailroomhq/mailroom/internal/models"
	"github.com/mailroomhq/mailroom/internal/utils"
)

// awaitBound keeps each wait under the 29-minute re-issue requirement of
// RFC 2177, which servers enforce by dropping idle connections.
const awaitBound = 29 * time.Minute

// retryDelay is the fixed pause between failed connection attempts.
var retryDelay = 30 * time.Second

// sessionFactory builds a fresh, unconnected session for one reconnect
// attempt. Watchers never share sessions with the on-demand cache.
type sessionFactory func(account *models.Account, creds models.Credentials) interfaces.MailSession

// folderWatcher drives one folder's watch loop. It owns its session outright
// and resolves its own credentials on every reconnect, so a token refreshed
// mid-loop is picked up without coordination.
type folderWatcher struct {
	log        logger.Logger
	account    *models.Account
	folder     string
	resolver   interfaces.CredentialResolver
	newSession sessionFactory
	events     interfaces.EventPublisher

	mu          sync.Mutex
	state       enum.WatcherState
	lastEventAt *time.Time
	lastError   string
}

func newFolderWatcher(
	log logger.Logger,
	account *models.Account,
	folder string,
	resolver interfaces.CredentialResolver,
	newSession sessionFactory,
	events interfaces.EventPublisher,
) *folderWatcher {
	return &folderWatcher{
		log:        log,
		account:    account,
		folder:     folder,
		resolver:   resolver,
		newSession: newSession,
		events:     events,
		state:      enum.WatcherConnecting,
	}
}

// run loops until the cancel channel closes. Cancellation is observed at the
// top of the loop only; an in-flight wait or connect finishes first, so stop
// latency is bounded by the current operation, not instantaneous.
func (w *folderWatcher) run(cancel <-chan struct{}) {
	w.log.Infof("[%s][%s] watcher started", w.account.ID, w.folder)

	var sess interfaces.MailSession
	defer func() {
		if sess != nil {
			sess.Close()
		}
		w.setState(enum.WatcherStopped)
		w.log.Infof("[%s][%s] watcher stopped", w.account.ID, w.folder)
	}()

	for {
		select {
		case <-cancel:
			return
		default:
		}

		if sess == nil {
			w.setState(enum.WatcherConnecting)
			created, err := w.connect()
			if err != nil {
				w.setError(err)
				w.log.Warnf("[%s][%s] connect failed, retrying in %s: %v", w.account.ID, w.folder, retryDelay, err)
				time.Sleep(retryDelay)
				continue
			}
			sess = created
		}

		w.setState(enum.WatcherWatching)
		newMail, err := sess.AwaitChange(context.Background(), w.folder, awaitBound)
		if err != nil {
			w.setError(err)
			w.log.Warnf("[%s][%s] watch error, reconnecting in %s: %v", w.account.ID, w.folder, retryDelay, err)
			sess.Close()
			sess = nil
			time.Sleep(retryDelay)
			continue
		}

		if newMail {
			w.noteEvent()
			w.log.Infof("[%s][%s] new mail detected", w.account.ID, w.folder)
			w.events.PublishNewMail(context.Background(), w.account.ID, w.folder)
			continue
		}

		w.log.Debugf("[%s][%s] no change within %s, reissuing watch", w.account.ID, w.folder, awaitBound)
	}
}

// connect resolves credentials and dials a brand new session. Credentials are
// never carried over from a previous attempt.
func (w *folderWatcher) connect() (interfaces.MailSession, error) {
	ctx := context.Background()

	creds, err := w.resolver.Resolve(ctx, w.account)
	if err != nil {
		return nil, err
	}

	sess := w.newSession(w.account, creds)
	if err := sess.Connect(ctx); err != nil {
		sess.Close()
		return nil, err
	}
	return sess, nil
}

func (w *folderWatcher) status() interfaces.WatcherStatus {
	w.mu.Lock()
	defer w.mu.Unlock()

	return interfaces.WatcherStatus{
		AccountID:   w.account.ID,
		Folder:      w.folder,
		State:       w.state,
		LastEventAt: w.lastEventAt,
		LastError:   w.lastError,
	}
}

func (w *folderWatcher) setState(state enum.WatcherState) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = state
}

func (w *folderWatcher) setError(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastError = err.Error()
}

func (w *folderWatcher) noteEvent() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastEventAt = utils.NowPtr()
	w.lastError = ""
}
