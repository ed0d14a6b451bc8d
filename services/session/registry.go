package session

import (
	"context"
	"sync"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	"github.com/mailroomhq/mailroom/config"
	er "github.com/mailroomhq/mailroom/internal/errors"
	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/logger"
	"github.com/mailroomhq/mailroom/internal/models"
	"github.com/mailroomhq/mailroom/internal/tracing"
	"github.com/mailroomhq/mailroom/internal/utils"
)

type sessionRegistry struct {
	log      logger.Logger
	cfg      *config.IMAPConfig
	accounts interfaces.AccountRepository
	store    interfaces.CredentialStore
	resolver interfaces.CredentialResolver
	sender   interfaces.SMTPSender

	// mu guards the map only. It is never held across credential
	// resolution, connection I/O, or session Close.
	mu       sync.Mutex
	sessions map[string]interfaces.MailSession
}

func NewSessionRegistry(
	log logger.Logger,
	cfg *config.IMAPConfig,
	accounts interfaces.AccountRepository,
	store interfaces.CredentialStore,
	resolver interfaces.CredentialResolver,
	sender interfaces.SMTPSender,
) interfaces.SessionRegistry {
	return &sessionRegistry{
		log:      log,
		cfg:      cfg,
		accounts: accounts,
		store:    store,
		resolver: resolver,
		sender:   sender,
		sessions: make(map[string]interfaces.MailSession),
	}
}

func (r *sessionRegistry) GetActiveSession(ctx context.Context) (interfaces.MailSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SessionRegistry.GetActiveSession")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)

	account, err := r.accounts.GetActiveAccount(ctx)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}
	return r.GetOrCreate(ctx, account)
}

// GetOrCreate returns the cached session for the account, first evicting it
// when the stored OAuth tokens are expired or about to be. Staleness is
// judged by credential expiry alone, never by handle age.
func (r *sessionRegistry) GetOrCreate(ctx context.Context, account *models.Account) (interfaces.MailSession, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "SessionRegistry.GetOrCreate")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	if account.AuthKind == enum.AuthOAuth2 && r.storedTokensExpiring(account) {
		if evicted := r.take(account.ID); evicted != nil {
			span.LogKV("evicted", "token expiry")
			r.log.Debugf("evicting session for account %s, stored tokens are expiring", account.ID)
			if err := evicted.Close(); err != nil {
				r.log.Warnf("failed to close evicted session for account %s: %v", account.ID, err)
			}
		}
	}

	r.mu.Lock()
	existing, ok := r.sessions[account.ID]
	r.mu.Unlock()
	if ok {
		return existing, nil
	}

	creds, err := r.resolver.Resolve(ctx, account)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, err
	}

	created := NewIMAPSession(r.log, r.cfg, account, creds, r.sender)

	r.mu.Lock()
	// A concurrent create for the same account may have won the race.
	// Last writer wins; the loser's handle never dialed and closes for free.
	replaced, hadPrev := r.sessions[account.ID]
	r.sessions[account.ID] = created
	stored, ok := r.sessions[account.ID]
	r.mu.Unlock()

	if hadPrev && replaced != created {
		if err := replaced.Close(); err != nil {
			r.log.Warnf("failed to close replaced session for account %s: %v", account.ID, err)
		}
	}
	if !ok {
		err = errors.Wrapf(er.ErrNoClientStored, "account %s", account.ID)
		tracing.TraceErr(span, err)
		return nil, err
	}
	return stored, nil
}

func (r *sessionRegistry) Remove(accountID string) {
	if handle := r.take(accountID); handle != nil {
		if err := handle.Close(); err != nil {
			r.log.Warnf("failed to close session for account %s: %v", accountID, err)
		}
	}
}

func (r *sessionRegistry) CloseAll() {
	r.mu.Lock()
	handles := make([]interfaces.MailSession, 0, len(r.sessions))
	for id, handle := range r.sessions {
		handles = append(handles, handle)
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for _, handle := range handles {
		if err := handle.Close(); err != nil {
			r.log.Warnf("failed to close session: %v", err)
		}
	}
}

// take removes and returns the cached handle, or nil when absent.
func (r *sessionRegistry) take(accountID string) interfaces.MailSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	handle, ok := r.sessions[accountID]
	if !ok {
		return nil
	}
	delete(r.sessions, accountID)
	return handle
}

// storedTokensExpiring reads the account's tokens, falling back to the legacy
// slot, and applies the expiry skew rule. Unreadable tokens are not judged
// here; creation will surface the real error.
func (r *sessionRegistry) storedTokensExpiring(account *models.Account) bool {
	tokens, err := r.store.GetTokens(account.ID)
	if err != nil {
		tokens, err = r.store.GetLegacyTokens()
		if err != nil {
			return false
		}
	}
	return tokens.ExpiresWithin(utils.Now(), models.TokenExpirySkew)
}
