package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mailroomhq/mailroom/interfaces"
)

func HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Status reports every registered folder watcher, keyed "{account_id}:{folder}".
func Status(supervisor interfaces.WatchSupervisor) gin.HandlerFunc {
	return func(c *gin.Context) {
		statuses := supervisor.Status()
		c.JSON(http.StatusOK, gin.H{
			"watchers": statuses,
			"count":    len(statuses),
		})
	}
}
