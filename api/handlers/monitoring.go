package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/opentracing/opentracing-go"

	apierrors "github.com/mailroomhq/mailroom/api/errors"
	"github.com/mailroomhq/mailroom/interfaces"
	"github.com/mailroomhq/mailroom/internal/tracing"
)

// StartMonitoring spawns the watcher set for the account. Any previous set is
// replaced, so calling this twice leaves exactly one watcher per folder.
func StartMonitoring(accounts interfaces.AccountRepository, supervisor interfaces.WatchSupervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "StartMonitoring")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		tracing.TagAccount(span, id)

		account, err := accounts.GetAccount(ctx, id)
		if err != nil {
			apierrors.Respond(c, err)
			return
		}

		if err := supervisor.Start(ctx, account); err != nil {
			apierrors.Respond(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "monitoring started",
			"id":      account.ID,
			"folders": account.MonitoredFolders(),
		})
	}
}

// StopMonitoring signals every watcher of the account to stop. The watchers
// exit at their next loop-top check; this returns immediately.
func StopMonitoring(supervisor interfaces.WatchSupervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		span, ctx := opentracing.StartSpanFromContext(ctx, "StopMonitoring")
		defer span.Finish()
		tracing.SetDefaultRestSpanTags(ctx, span)

		id := c.Param("id")
		tracing.TagAccount(span, id)

		supervisor.Stop(id)
		c.JSON(http.StatusOK, gin.H{"status": "monitoring stopped", "id": id})
	}
}
