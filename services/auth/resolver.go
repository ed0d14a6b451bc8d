package auth

import (
	"context"

	"github.com/opentracing/opentracing-go"
	"github.com/pkg/errors"

	er "github.com/mailroomhq/mailroom/internal/errors"
	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/logger"
	"github.com/mailroomhq/mailroom/internal/models"
	"github.com/mailroomhq/mailroom/internal/tracing"
	"github.com/mailroomhq/mailroom/internal/utils"
)

type credentialResolver struct {
	log       logger.Logger
	store     interfaces.CredentialStore
	refresher interfaces.TokenRefresher
}

func NewCredentialResolver(log logger.Logger, store interfaces.CredentialStore, refresher interfaces.TokenRefresher) interfaces.CredentialResolver {
	return &credentialResolver{
		log:       log,
		store:     store,
		refresher: refresher,
	}
}

// Resolve returns connection-ready credentials for the account. OAuth tokens
// that expire within models.TokenExpirySkew are refreshed before being handed
// out, so a session built from the result will not authenticate with a token
// about to lapse mid-handshake.
func (r *credentialResolver) Resolve(ctx context.Context, account *models.Account) (models.Credentials, error) {
	span, ctx := opentracing.StartSpanFromContext(ctx, "CredentialResolver.Resolve")
	defer span.Finish()
	tracing.SetDefaultServiceSpanTags(ctx, span)
	tracing.TagAccount(span, account.ID)

	switch account.AuthKind {
	case enum.AuthPassword:
		password, err := r.store.GetPassword(account.ID)
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, err
		}
		return models.PasswordCredentials{User: account.Email, Password: password}, nil
	case enum.AuthOAuth2:
		return r.resolveOAuth(ctx, span, account)
	default:
		err := errors.Errorf("unsupported auth kind %s for account %s", account.AuthKind, account.ID)
		tracing.TraceErr(span, err)
		return nil, err
	}
}

func (r *credentialResolver) resolveOAuth(ctx context.Context, span opentracing.Span, account *models.Account) (models.Credentials, error) {
	tokens, err := r.store.GetTokens(account.ID)
	if err != nil {
		// Installs upgraded from the single-account layout still hold
		// their tokens in the legacy slot.
		tokens, err = r.store.GetLegacyTokens()
		if err != nil {
			tracing.TraceErr(span, err)
			return nil, errors.Wrapf(er.ErrUnauthenticated, "account %s", account.ID)
		}
	}

	if !tokens.ExpiresWithin(utils.Now(), models.TokenExpirySkew) {
		return models.OAuth2Credentials{User: account.Email, AccessToken: tokens.AccessToken}, nil
	}

	if !tokens.CanRefresh() {
		err = errors.Wrapf(er.ErrReauthRequired, "account %s", account.ID)
		tracing.TraceErr(span, err)
		return nil, err
	}

	refreshed, err := r.refresher.Refresh(ctx, tokens.RefreshToken, account.Provider)
	if err != nil {
		tracing.TraceErr(span, err)
		return nil, errors.Wrapf(er.ErrRefreshFailed, "account %s: %v", account.ID, err)
	}

	// A failed write still leaves a working access token in hand, so
	// persistence problems are logged rather than returned.
	if err = r.store.PutTokens(account.ID, refreshed); err != nil {
		tracing.TraceErr(span, err)
		r.log.Warnf("failed to persist refreshed tokens for account %s: %v", account.ID, err)
	}
	if err = r.store.PutLegacyTokens(refreshed); err != nil {
		tracing.TraceErr(span, err)
		r.log.Warnf("failed to persist refreshed tokens to legacy slot: %v", err)
	}

	return models.OAuth2Credentials{User: account.Email, AccessToken: refreshed.AccessToken}, nil
}
