package watcher

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/logger"
	"github.com/mailroomhq/mailroom/internal/models"
)

func TestMain(m *testing.M) {
	// Watchers sleep retryDelay between failed attempts; the production value
	// would stall these tests.
	retryDelay = 5 * time.Millisecond
	os.Exit(m.Run())
}

// countingResolver hands out fixed credentials and counts how often it is
// asked, so tests can prove each reconnect resolves afresh.
type countingResolver struct {
	mu    sync.Mutex
	calls int
	creds models.Credentials
	err   error
}

func (r *countingResolver) Resolve(ctx context.Context, account *models.Account) (models.Credentials, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.err != nil {
		return nil, r.err
	}
	return r.creds, nil
}

func (r *countingResolver) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// recordingPublisher collects new-mail events.
type recordingPublisher struct {
	mu    sync.Mutex
	mails [][2]string
}

func (p *recordingPublisher) PublishFanoutEvent(ctx context.Context, entityId string, entityType enum.EntityType, message interface{}) error {
	return nil
}

func (p *recordingPublisher) PublishNewMail(ctx context.Context, accountID, folder string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mails = append(p.mails, [2]string{accountID, folder})
}

func (p *recordingPublisher) Close() error { return nil }

func (p *recordingPublisher) newMailEvents() [][2]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][2]string, len(p.mails))
	copy(out, p.mails)
	return out
}

// scriptedSession is a MailSession whose AwaitChange behavior is supplied by
// the test. The one-shot operations are never exercised by watchers.
type scriptedSession struct {
	await func() (bool, error)

	mu       sync.Mutex
	connects int
	closes   int
}

func (s *scriptedSession) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connects++
	return nil
}

func (s *scriptedSession) AwaitChange(ctx context.Context, folder string, maxWait time.Duration) (bool, error) {
	return s.await()
}

func (s *scriptedSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closes++
	return nil
}

func (s *scriptedSession) connectCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connects
}

func (s *scriptedSession) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closes
}

func (s *scriptedSession) ListMessages(ctx context.Context, folder string, limit, offset uint32) ([]*models.EmailSummary, error) {
	panic("not used by watchers")
}

func (s *scriptedSession) GetMessage(ctx context.Context, folder string, uid uint32) (*models.EmailMessage, error) {
	panic("not used by watchers")
}

func (s *scriptedSession) Send(ctx context.Context, email *models.OutgoingEmail) error {
	panic("not used by watchers")
}

func (s *scriptedSession) SetFlags(ctx context.Context, folder string, uid uint32, flags []string, set bool) error {
	panic("not used by watchers")
}

func (s *scriptedSession) MoveMessage(ctx context.Context, folder string, uid uint32, destFolder string) error {
	panic("not used by watchers")
}

func (s *scriptedSession) FolderStats(ctx context.Context, folder string) (*models.FolderStats, error) {
	panic("not used by watchers")
}

// quietSession waits briefly and reports no change, keeping the loop alive
// without busy-spinning.
func quietSession() *scriptedSession {
	return &scriptedSession{await: func() (bool, error) {
		time.Sleep(5 * time.Millisecond)
		return false, nil
	}}
}

func getLogger() logger.Logger {
	appLogger := logger.NewAppLogger(&logger.Config{
		DevMode: true,
	})
	appLogger.InitLogger()
	return appLogger
}

func testAccount(id string, folders ...string) *models.Account {
	return &models.Account{
		ID:       id,
		Email:    id + "@example.com",
		AuthKind: enum.AuthOAuth2,
		Provider: enum.EmailGmail,
		Folders:  folders,
	}
}

func TestFolderWatcher_WatchErrorForcesFullReconnect(t *testing.T) {
	// Arrange - first session dies during the wait, second one stays quiet
	account := testAccount("acct_1")
	resolver := &countingResolver{creds: models.PasswordCredentials{User: account.Email, Password: "pw"}}
	events := &recordingPublisher{}

	var mu sync.Mutex
	var sessions []*scriptedSession
	factory := func(a *models.Account, creds models.Credentials) interfaces.MailSession {
		mu.Lock()
		defer mu.Unlock()
		var s *scriptedSession
		if len(sessions) == 0 {
			s = &scriptedSession{await: func() (bool, error) {
				return false, errors.New("connection reset by peer")
			}}
		} else {
			s = quietSession()
		}
		sessions = append(sessions, s)
		return s
	}

	w := newFolderWatcher(getLogger(), account, models.FolderInbox, resolver, factory, events)
	cancel := make(chan struct{})

	// Act
	go w.run(cancel)

	// Assert - a second session is dialed with freshly resolved credentials,
	// not a re-issued wait on the broken one
	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(sessions) >= 2
	}, time.Second, time.Millisecond)

	mu.Lock()
	first, second := sessions[0], sessions[1]
	mu.Unlock()

	assert.Eventually(t, func() bool { return first.closeCount() >= 1 }, time.Second, time.Millisecond)
	assert.Equal(t, 1, first.connectCount())
	assert.Equal(t, 1, second.connectCount())
	assert.GreaterOrEqual(t, resolver.callCount(), 2)

	close(cancel)
	assert.Eventually(t, func() bool {
		return w.status().State == enum.WatcherStopped
	}, time.Second, time.Millisecond)
}

func TestFolderWatcher_NewMailEmitsEvent(t *testing.T) {
	// Arrange - one change signal, then quiet
	account := testAccount("acct_2")
	resolver := &countingResolver{creds: models.PasswordCredentials{User: account.Email, Password: "pw"}}
	events := &recordingPublisher{}

	var once sync.Once
	session := &scriptedSession{}
	session.await = func() (bool, error) {
		newMail := false
		once.Do(func() { newMail = true })
		if !newMail {
			time.Sleep(5 * time.Millisecond)
		}
		return newMail, nil
	}
	factory := func(a *models.Account, creds models.Credentials) interfaces.MailSession {
		return session
	}

	w := newFolderWatcher(getLogger(), account, models.FolderInbox, resolver, factory, events)
	cancel := make(chan struct{})

	// Act
	go w.run(cancel)

	// Assert - the event carries (account_id, folder) and the session is kept,
	// the wait is simply re-issued
	assert.Eventually(t, func() bool {
		return len(events.newMailEvents()) >= 1
	}, time.Second, time.Millisecond)
	assert.Equal(t, [2]string{"acct_2", models.FolderInbox}, events.newMailEvents()[0])
	assert.Equal(t, 1, session.connectCount())

	close(cancel)
	assert.Eventually(t, func() bool {
		return w.status().State == enum.WatcherStopped
	}, time.Second, time.Millisecond)
	assert.Equal(t, 1, session.closeCount())
}

func TestFolderWatcher_ConnectFailureRetries(t *testing.T) {
	// Arrange - credentials never resolve, the watcher must keep trying until
	// cancelled rather than give up
	account := testAccount("acct_3")
	resolver := &countingResolver{err: errors.New("keyring unavailable")}
	events := &recordingPublisher{}

	factory := func(a *models.Account, creds models.Credentials) interfaces.MailSession {
		panic("factory must not be called when credential resolution fails")
	}

	w := newFolderWatcher(getLogger(), account, models.FolderInbox, resolver, factory, events)
	cancel := make(chan struct{})

	// Act
	go w.run(cancel)

	// Assert
	assert.Eventually(t, func() bool {
		return resolver.callCount() >= 3
	}, time.Second, time.Millisecond)
	assert.NotEmpty(t, w.status().LastError)
	assert.Empty(t, events.newMailEvents())

	close(cancel)
	assert.Eventually(t, func() bool {
		return w.status().State == enum.WatcherStopped
	}, time.Second, time.Millisecond)
}
