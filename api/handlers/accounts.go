package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	apierrors "github.com/mailroomhq/mailroom/api/errors"
	"github.com/mailroomhq/mailroom/dto"
	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/enum"
	"github.com/mailroomhq/mailroom/internal/models"
	"github.com/mailroomhq/mailroom/internal/tracing"
)

// ListAccounts returns all configured accounts
func ListAccounts(accounts interfaces.AccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "ListAccounts")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		all, err := accounts.GetAccounts(ctx)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"accounts": all, "count": len(all)})
	}
}

// CreateAccount registers a new account. Secret material from the request goes
// to the credential store; the database row never carries it.
func CreateAccount(accounts interfaces.AccountRepository, store interfaces.CredentialStore) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "CreateAccount")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req dto.CreateAccountRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account := &models.Account{
			Email:       req.Email,
			Provider:    enum.EmailProvider(req.Provider),
			AuthKind:    enum.AuthKind(req.AuthKind),
			ImapHost:    req.ImapHost,
			ImapPort:    req.ImapPort,
			SmtpHost:    req.SmtpHost,
			SmtpPort:    req.SmtpPort,
			Folders:     req.Folders,
			DisplayName: req.DisplayName,
		}
		if req.Security != "" {
			account.Security = enum.EmailSecurity(req.Security)
		}

		if err := accounts.SaveAccount(ctx, account); err != nil {
			apierrors.Respond(c, err)
			return
		}
		tracing.TagAccount(span, account.ID)

		if err := storeInitialSecrets(store, account, &req); err != nil {
			apierrors.Respond(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{"status": "account created", "id": account.ID})
	}
}

func storeInitialSecrets(store interfaces.CredentialStore, account *models.Account, req *dto.CreateAccountRequest) error {
	switch account.AuthKind {
	case enum.AuthPassword:
		if req.Password == "" {
			return nil
		}
		return store.PutPassword(account.ID, req.Password)
	case enum.AuthOAuth2:
		if req.AccessToken == "" {
			return nil
		}
		tokens := &models.TokenSet{
			AccessToken:  req.AccessToken,
			RefreshToken: req.RefreshToken,
		}
		if req.ExpiresAt != "" {
			expiresAt, err := time.Parse(time.RFC3339, req.ExpiresAt)
			if err != nil {
				return err
			}
			tokens.ExpiresAt = expiresAt
		}
		return store.PutTokens(account.ID, tokens)
	}
	return nil
}

// GetAccount returns one account by id
func GetAccount(accounts interfaces.AccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "GetAccount")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		account, err := accounts.GetAccount(ctx, c.Param("id"))
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, account)
	}
}

// ActivateAccount moves the active flag to the given account.
func ActivateAccount(accounts interfaces.AccountRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "ActivateAccount")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		tracing.TagAccount(span, id)

		if err := accounts.SetActiveAccount(ctx, id); err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "account activated", "id": id})
	}
}

// DeleteAccount removes the account after tearing down its watchers and its
// cached session.
func DeleteAccount(
	accounts interfaces.AccountRepository,
	registry interfaces.SessionRegistry,
	supervisor interfaces.WatchSupervisor,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "DeleteAccount")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		tracing.TagAccount(span, id)

		supervisor.Stop(id)
		registry.Remove(id)

		if err := accounts.DeleteAccount(ctx, id); err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "account deleted", "id": id})
	}
}
