package manager

import (
	"net/http"

	"TurnMatch/internal/matchmaker"
	"TurnMatch/internal/middleware"

	"github.com/gin-gonic/gin"
)

// POST /match/start
// 结果（match.found / matchmaker.failed 等）通过 websocket 推送
func (m *GameManager) StartHandler(c *gin.Context) {
	addr := c.GetString(middleware.ContextAddress)
	if addr == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	allowed := gin.H{"min": matchmaker.MinSupported, "max": m.svc.MaxSupported()}

	var req matchmaker.StartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "allowed": allowed})
		return
	}

	l := m.Start(c.Request.Context(), addr, req)
	c.JSON(http.StatusAccepted, gin.H{
		"state":   l.State().String(),
		"sheetId": l.SheetID(),
		"allowed": allowed,
	})
}
