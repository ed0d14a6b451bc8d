package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	apierrors "github.com/mailroomhq/mailroom/api/errors"
	"github.com/mailroomhq/mailroom/dto"
	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/models"
	"github.com/mailroomhq/mailroom/internal/tracing"
	"github.com/mailroomhq/mailroom/internal/utils"
)

// ListEmails pages through a folder of the active account, newest first.
func ListEmails(registry interfaces.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "ListEmails")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		folder := utils.MapFolderName(c.DefaultQuery("folder", "inbox"))
		limit := queryUint32(c, "limit", 0)
		offset := queryUint32(c, "offset", 0)
		tracing.TagFolder(span, folder)

		session, err := registry.GetActiveSession(ctx)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}

		summaries, err := session.ListMessages(ctx, folder, limit, offset)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"emails": summaries, "count": len(summaries), "folder": folder})
	}
}

// GetEmail fetches one message by its ref. The message is marked seen after a
// successful fetch, matching what a mail client shows the user.
func GetEmail(accounts interfaces.AccountRepository, registry interfaces.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "GetEmail")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		session, folder, uid, err := sessionForRef(ctx, accounts, registry, c.Param("ref"))
		if err != nil {
			apierrors.Respond(c, err)
			return
		}

		email, err := session.GetMessage(ctx, folder, uid)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}

		if !email.Seen {
			if err := session.SetFlags(ctx, folder, uid, []string{"seen"}, true); err != nil {
				tracing.TraceErr(span, err)
			} else {
				email.Seen = true
			}
		}
		c.JSON(http.StatusOK, email)
	}
}

// SendEmail delivers a message through the active account.
func SendEmail(accounts interfaces.AccountRepository, registry interfaces.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "SendEmail")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req dto.SendEmailRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		account, err := accounts.GetActiveAccount(ctx)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		tracing.TagAccount(span, account.ID)

		session, err := registry.GetOrCreate(ctx, account)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}

		email := &models.OutgoingEmail{
			FromAddress:  account.Email,
			FromName:     account.DisplayName,
			ToAddresses:  utils.UniqueEmails(req.To),
			CcAddresses:  utils.UniqueEmails(req.Cc),
			BccAddresses: utils.UniqueEmails(req.Bcc),
			Subject:      req.Subject,
			BodyText:     req.Body,
			BodyHTML:     req.BodyHTML,
		}
		if err := session.Send(ctx, email); err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "email sent"})
	}
}

// SetEmailFlags adds or removes flags on the message a ref points at.
func SetEmailFlags(accounts interfaces.AccountRepository, registry interfaces.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "SetEmailFlags")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req dto.FlagRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		session, folder, uid, err := sessionForRef(ctx, accounts, registry, c.Param("ref"))
		if err != nil {
			apierrors.Respond(c, err)
			return
		}

		if err := session.SetFlags(ctx, folder, uid, req.Flags, req.Set); err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "flags updated"})
	}
}

// MoveEmail moves the message a ref points at into another folder.
func MoveEmail(accounts interfaces.AccountRepository, registry interfaces.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "MoveEmail")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		var req dto.MoveRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			tracing.TraceErr(span, err)
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		moveToFolder(c, accounts, registry, utils.MapFolderName(req.Destination))
	}
}

// ArchiveEmail moves the message a ref points at into the archive folder.
func ArchiveEmail(accounts interfaces.AccountRepository, registry interfaces.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "ArchiveEmail")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		moveToFolder(c, accounts, registry, models.FolderArchive)
	}
}

// FolderStats reports totals for every monitored folder of the active account.
// A folder the server rejects contributes zero counts rather than failing the
// whole summary.
func FolderStats(accounts interfaces.AccountRepository, registry interfaces.SessionRegistry) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "FolderStats")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		account, err := accounts.GetActiveAccount(ctx)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}
		tracing.TagAccount(span, account.ID)

		session, err := registry.GetOrCreate(ctx, account)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}

		stats := make([]*models.FolderStats, 0, len(account.MonitoredFolders()))
		for _, folder := range account.MonitoredFolders() {
			folderStats, err := session.FolderStats(ctx, folder)
			if err != nil {
				tracing.TraceErr(span, err)
				folderStats = &models.FolderStats{Folder: folder}
			}
			stats = append(stats, folderStats)
		}
		c.JSON(http.StatusOK, gin.H{"stats": stats})
	}
}

func moveToFolder(c *gin.Context, accounts interfaces.AccountRepository, registry interfaces.SessionRegistry, destination string) {
	ctx := c.Request.Context()

	session, folder, uid, err := sessionForRef(ctx, accounts, registry, c.Param("ref"))
	if err != nil {
		apierrors.Respond(c, err)
		return
	}

	if err := session.MoveMessage(ctx, folder, uid, destination); err != nil {
		apierrors.Respond(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "email moved", "destination": destination})
}

// sessionForRef decodes a message ref and locates the session able to serve
// it. Refs carry the account id, so handlers stay stateless.
func sessionForRef(
	ctx context.Context,
	accounts interfaces.AccountRepository,
	registry interfaces.SessionRegistry,
	ref string,
) (interfaces.MailSession, string, uint32, error) {
	accountID, folder, uid, err := utils.ParseMessageRef(ref)
	if err != nil {
		return nil, "", 0, err
	}

	account, err := accounts.GetAccount(ctx, accountID)
	if err != nil {
		return nil, "", 0, err
	}

	session, err := registry.GetOrCreate(ctx, account)
	if err != nil {
		return nil, "", 0, err
	}
	return session, folder, uid, nil
}

func queryUint32(c *gin.Context, name string, fallback uint32) uint32 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return fallback
	}
	return uint32(n)
}
