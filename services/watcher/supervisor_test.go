package watcher

import (
	"context"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/models"
)

func newTestSupervisor() *watchSupervisor {
	factory := func(account *models.Account, creds models.Credentials) interfaces.MailSession {
		return quietSession()
	}
	return &watchSupervisor{
		log:        getLogger(),
		resolver:   &countingResolver{creds: models.PasswordCredentials{User: "u", Password: "pw"}},
		events:     &recordingPublisher{},
		newSession: factory,
		watchers:   make(map[string]registration),
	}
}

func registeredKeys(s *watchSupervisor) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.watchers))
	for key := range s.watchers {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func TestSupervisor_StartRegistersOneWatcherPerFolder(t *testing.T) {
	// Arrange
	s := newTestSupervisor()
	defer s.StopAll()
	account := testAccount("acme", models.FolderInbox, models.FolderSent)

	// Act
	err := s.Start(context.Background(), account)

	// Assert
	assert.NoError(t, err)
	assert.Equal(t, []string{"acme:INBOX", "acme:Sent"}, registeredKeys(s))
}

func TestSupervisor_StartUsesDefaultFolderSet(t *testing.T) {
	// Arrange
	s := newTestSupervisor()
	defer s.StopAll()
	account := testAccount("acct_d")

	// Act
	err := s.Start(context.Background(), account)

	// Assert - the five standard folders
	assert.NoError(t, err)
	assert.Equal(t, []string{
		"acct_d:Drafts", "acct_d:INBOX", "acct_d:Sent", "acct_d:Spam", "acct_d:Trash",
	}, registeredKeys(s))
}

func TestSupervisor_DoubleStartReplacesWatcherSet(t *testing.T) {
	// Arrange
	s := newTestSupervisor()
	defer s.StopAll()
	account := testAccount("acme", models.FolderInbox, models.FolderSent)

	// Act
	assert.NoError(t, s.Start(context.Background(), account))
	assert.NoError(t, s.Start(context.Background(), account))

	// Assert - exactly one watcher per folder, never two
	assert.Equal(t, []string{"acme:INBOX", "acme:Sent"}, registeredKeys(s))
}

func TestSupervisor_StopRemovesOnlyTheAccountsWatchers(t *testing.T) {
	// Arrange
	s := newTestSupervisor()
	defer s.StopAll()
	assert.NoError(t, s.Start(context.Background(), testAccount("acme", models.FolderInbox, models.FolderSent)))
	assert.NoError(t, s.Start(context.Background(), testAccount("acmeco", models.FolderInbox)))

	// Act
	s.Stop("acme")

	// Assert - the prefix match must not catch "acmeco"
	assert.Equal(t, []string{"acmeco:INBOX"}, registeredKeys(s))
}

func TestSupervisor_StopEmptiesRegistryAndStopsWatchers(t *testing.T) {
	// Arrange
	s := newTestSupervisor()
	account := testAccount("acme", models.FolderInbox, models.FolderSent)
	assert.NoError(t, s.Start(context.Background(), account))

	s.mu.Lock()
	watchers := make([]*folderWatcher, 0, len(s.watchers))
	for _, reg := range s.watchers {
		watchers = append(watchers, reg.watcher)
	}
	s.mu.Unlock()

	// Act
	s.Stop("acme")

	// Assert - registry empties immediately, the loops wind down on their own
	assert.Empty(t, registeredKeys(s))
	for _, w := range watchers {
		w := w
		assert.Eventually(t, func() bool {
			return w.status().State == enum.WatcherStopped
		}, time.Second, time.Millisecond)
	}
}

func TestSupervisor_StopUnknownAccountIsANoop(t *testing.T) {
	// Arrange
	s := newTestSupervisor()
	defer s.StopAll()
	assert.NoError(t, s.Start(context.Background(), testAccount("acme", models.FolderInbox)))

	// Act
	s.Stop("nobody")

	// Assert
	assert.Equal(t, []string{"acme:INBOX"}, registeredKeys(s))
}

func TestSupervisor_StopAll(t *testing.T) {
	// Arrange
	s := newTestSupervisor()
	assert.NoError(t, s.Start(context.Background(), testAccount("acme", models.FolderInbox)))
	assert.NoError(t, s.Start(context.Background(), testAccount("globex", models.FolderInbox)))

	// Act
	s.StopAll()

	// Assert
	assert.Empty(t, registeredKeys(s))
}

func TestSupervisor_StatusReflectsRegistry(t *testing.T) {
	// Arrange
	s := newTestSupervisor()
	defer s.StopAll()
	assert.NoError(t, s.Start(context.Background(), testAccount("acme", models.FolderInbox)))

	// Act
	assert.Eventually(t, func() bool {
		status, ok := s.Status()["acme:INBOX"]
		return ok && status.State == enum.WatcherWatching
	}, time.Second, time.Millisecond)

	// Assert
	status := s.Status()["acme:INBOX"]
	assert.Equal(t, "acme", status.AccountID)
	assert.Equal(t, models.FolderInbox, status.Folder)
}
