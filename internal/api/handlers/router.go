package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/langchou/chargegazer/pkg/ws"
)

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	// API 路由
	api := r.Group("/api")
	{
		// 数据集
		api.POST("/upload", h.UploadJSON)
		api.POST("/demo", h.LoadDemoData)
		api.POST("/share", h.ShareDataset)
		api.POST("/reset", h.ResetDataset)
		api.GET("/workspace", h.GetWorkspace)

		// 充电记录与统计
		api.GET("/sessions", h.GetSessions)
		api.GET("/session/:id", h.GetSession)
		api.GET("/stats", h.GetStats)
		api.GET("/grouped-providers", h.GetGroupedProviders)
		api.GET("/map", h.GetMapData)

		// 车队统计
		api.GET("/anonymous-stats", h.GetAnonymousStats)
		api.GET("/battery-health", h.GetBatteryHealth)

		api.GET("/version", h.GetVersion)
	}

	// WebSocket
	r.GET("/ws", h.HandleWebSocket)

	// 健康检查
	r.GET("/health", h.HealthCheck)
}

// HandleWebSocket WebSocket 处理，workspace 参数缺省时使用 cookie 中的工作区
func (h *Handler) HandleWebSocket(c *gin.Context) {
	id := c.Query("workspace")
	if id == "" {
		id, _ = c.Cookie(workspaceCookie)
	}
	w, err := h.workspaces.Get(id)
	if err != nil {
		h.respondError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade websocket", zap.Error(err))
		return
	}

	client := ws.NewClient(h.wsHub, conn, w.ID)
	if !client.Register() {
		conn.Close()
		return
	}

	// 启动读写协程
	go client.ReadPump()
	go client.WritePump()
}

// GetVersion 返回版本号
func (h *Handler) GetVersion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"version": Version})
}

// HealthCheck 健康检查
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"ws_clients":    h.wsHub.ClientCount(),
		"workspaces":    h.workspaces.Count(),
		"fleet_enabled": h.fleet.Enabled(),
	})
}
